// Package xdpabi reproduces the Linux AF_XDP kernel ABI bit-exact: socket
// option numbers, bind flags, and the wire layout of every record the
// kernel reads or writes across the UMEM/socket boundary.
//
// Everything here is a constant, a struct with native alignment, or a
// conversion between the two. Nothing in this package touches a socket.
package xdpabi

import "unsafe"

// AF_XDP is not yet defined in golang.org/x/sys/unix on every supported
// architecture, so the address family and socket option level are
// reproduced directly from the kernel headers.
const (
	AFXDP  = 44
	SOLXDP = 283
)

// Socket option numbers for SOL_XDP, from linux/if_xdp.h.
const (
	OptMmapOffsets        = 1
	OptRxRing             = 2
	OptTxRing             = 3
	OptUmemReg            = 4
	OptUmemFillRing       = 5
	OptUmemCompletionRing = 6
	OptStatistics         = 7
	OptOptions            = 8
)

// Bind flags, from linux/if_xdp.h's XDP_* defines.
const (
	BindSharedUmem    uint16 = 1 << 0
	BindCopy          uint16 = 1 << 1
	BindZeroCopy      uint16 = 1 << 2
	BindUseNeedWakeup uint16 = 1 << 3
)

// RingFlagNeedWakeup is the bit the kernel sets in a ring's flags word to
// request a wakeup (kick) from the user side.
const RingFlagNeedWakeup uint32 = 1 << 0

// SIOCGIFINDEX is the standard ioctl used to resolve an interface name to
// its kernel index.
const SIOCGIFINDEX = 0x8933

// Mmap page offsets, from linux/if_xdp.h. Each ring's pages are mapped
// at fd's corresponding pgoff; the UMEM rings (Fill, Completion) use the
// high offsets regardless of which socket registered the UMEM.
const (
	PgoffRxRing             = 0
	PgoffTxRing             = 0x80000000
	PgoffUmemFillRing       = 0x100000000
	PgoffUmemCompletionRing = 0x180000000
)

// RingOffset is the kernel's xdp_ring_offset: the byte offsets, within an
// mmap'd ring region, of the producer index, consumer index, descriptor
// array, and flags word.
type RingOffset struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
	Flags    uint64
}

// MmapOffsets is the kernel's xdp_mmap_offsets, returned by the
// XDP_MMAP_OFFSETS getsockopt. Order is fixed by the kernel ABI.
type MmapOffsets struct {
	RX   RingOffset
	TX   RingOffset
	Fill RingOffset
	Comp RingOffset
}

// UmemReg is the kernel's xdp_umem_reg, passed to XDP_UMEM_REG.
type UmemReg struct {
	Addr      uint64
	Len       uint64
	ChunkSize uint32
	Headroom  uint32
	Flags     uint32
	_         [4]byte // native alignment padding to a multiple of 8 bytes
}

// SockaddrXDP is the kernel's sockaddr_xdp, passed to bind(2).
type SockaddrXDP struct {
	Family       uint16
	Flags        uint16
	Ifindex      uint32
	QueueID      uint32
	SharedUmemFD uint32
}

// Desc is the kernel's xdp_desc: exactly 16 bytes, describing one packet
// in the RX or TX ring.
type Desc struct {
	Addr    uint64
	Len     uint32
	Options uint32
}

// Stats is the kernel's xdp_statistics, returned by the XDP_STATISTICS
// getsockopt.
type Stats struct {
	RxDropped            uint64
	RxInvalidDescs       uint64
	TxInvalidDescs       uint64
	RxRingFull           uint64
	RxFillRingEmptyDescs uint64
	TxRingEmptyDescs     uint64
}

// DescSize is the wire size of a single descriptor; ring capacity
// arithmetic is expressed in terms of it rather than a hardcoded 16.
const DescSize = unsafe.Sizeof(Desc{})

// AddrSize is the wire size of a single Fill/Completion ring slot (a bare
// UMEM offset).
const AddrSize = unsafe.Sizeof(uint64(0))
