package ring

import "github.com/penguintechinc/xdpcore/xdpabi"

// AddrRing is the Fill/Completion ring flavor: each slot is a bare UMEM
// offset, posted by the user (Fill) or produced by the kernel
// (Completion).
type AddrRing = Ring[uint64]

// DescRing is the RX/TX ring flavor: each slot is a 16-byte descriptor
// naming a UMEM offset, a length, and option flags.
type DescRing = Ring[xdpabi.Desc]

// NewAddrRing builds an AddrRing of the given power-of-two size over
// prodCell/consCell.
func NewAddrRing(size uint32, prodCell, consCell *uint32) *AddrRing {
	return New[uint64](size, prodCell, consCell, make([]uint64, size))
}

// NewDescRing builds a DescRing of the given power-of-two size over
// prodCell/consCell.
func NewDescRing(size uint32, prodCell, consCell *uint32) *DescRing {
	return New[xdpabi.Desc](size, prodCell, consCell, make([]xdpabi.Desc, size))
}
