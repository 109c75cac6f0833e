package xdpsock

import (
	"unsafe"

	"github.com/penguintechinc/xdpcore/xdpabi"
)

// mappedRing is one ring's raw mmap'd region plus the byte offsets the
// kernel reported for it, reinterpreted as typed views. Isolating the
// unsafe casts here keeps socket.go and dataplane.go pointer-free.
type mappedRing struct {
	region []byte
	off    xdpabi.RingOffset
}

func (m mappedRing) prodCell() *uint32 {
	return (*uint32)(unsafe.Pointer(&m.region[m.off.Producer]))
}

func (m mappedRing) consCell() *uint32 {
	return (*uint32)(unsafe.Pointer(&m.region[m.off.Consumer]))
}

func (m mappedRing) flagsCell() *uint32 {
	return (*uint32)(unsafe.Pointer(&m.region[m.off.Flags]))
}

func (m mappedRing) addrSlots(n uint32) []uint64 {
	return unsafe.Slice((*uint64)(unsafe.Pointer(&m.region[m.off.Desc])), n)
}

func (m mappedRing) descSlots(n uint32) []xdpabi.Desc {
	return unsafe.Slice((*xdpabi.Desc)(unsafe.Pointer(&m.region[m.off.Desc])), n)
}

// ringRegionLen returns the number of bytes to mmap for a ring holding
// n slots of elemSize bytes each, matching the kernel's own layout:
// the descriptor array starts at off.Desc and runs for n*elemSize.
func ringRegionLen(off xdpabi.RingOffset, n uint32, elemSize uintptr) int {
	return int(off.Desc) + int(n)*int(elemSize)
}
