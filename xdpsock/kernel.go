package xdpsock

import "github.com/penguintechinc/xdpcore/xdpabi"

// kernel abstracts every syscall the bring-up protocol and dataplane
// issue against an AF_XDP socket. Bring-up and dataplane logic are
// written against this interface rather than golang.org/x/sys/unix
// directly so the state machine, error handling, and ring wiring can
// be exercised by ordinary unit tests against a fake kernel, without
// root, a real NIC, or even a kernel that supports AF_XDP.
type kernel interface {
	// socket creates the AF_XDP socket handle (bring-up step 1).
	socket() (fd int, err error)

	// setUmemReg issues the UMEM-registration option (step 2).
	setUmemReg(fd int, reg xdpabi.UmemReg) error

	// setRingSize issues one of the four per-ring size options (step 3).
	setRingSize(fd int, opt int, size uint32) error

	// mmapOffsets issues the mmap-offsets option, returning the byte
	// offsets of each ring's producer, consumer, descriptor array, and
	// flags word (step 4).
	mmapOffsets(fd int) (xdpabi.MmapOffsets, error)

	// mmapRing maps size bytes at pgoff into the process and returns
	// the mapped region (step 5).
	mmapRing(fd int, pgoff int64, size int) ([]byte, error)

	// munmap releases a region previously returned by mmapRing.
	munmap(region []byte) error

	// bind binds the socket to an (interface, queue, flags) endpoint
	// (step 7).
	bind(fd int, addr xdpabi.SockaddrXDP) error

	// kick issues the non-blocking zero-byte send that nudges the
	// kernel to process the TX ring.
	kick(fd int) error

	// stats issues the XDP_STATISTICS getsockopt.
	stats(fd int) (xdpabi.Stats, error)

	// close releases the socket file descriptor.
	close(fd int) error
}
