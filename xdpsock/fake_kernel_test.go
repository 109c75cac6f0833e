package xdpsock

import (
	"errors"
	"sync/atomic"

	"github.com/penguintechinc/xdpcore/ring"
	"github.com/penguintechinc/xdpcore/umem"
	"github.com/penguintechinc/xdpcore/xdpabi"
)

var errNoZeroCopy = errors.New("driver does not support zero-copy mode")

// fakeKernel is an in-process stand-in for a real AF_XDP-capable
// kernel: it hands out plain byte slices for ring regions instead of
// kernel-shared mmap pages, and its pump* methods play the kernel's
// role on those same regions (producing RX/Completion entries,
// consuming Fill/TX entries), so bring-up and the dataplane can be
// exercised without root or a real NIC.
type fakeKernel struct {
	nextFD int32

	rxSize, txSize, fillSize, compSize uint32

	fillRegion, compRegion, rxRegion, txRegion []byte

	zeroCopyCapable bool
	bindErr         error

	kickErr   error
	kickCount int32

	// u is set by the test after newWithKernel returns, so pump
	// methods can read/write frame payloads via the real Umem the
	// Socket under test registered.
	u *umem.Umem

	// echo holds payload bytes most recently transmitted, queued for
	// delivery back as an inbound packet by pumpFillToRX.
	echo [][]byte
}

// fakeRingOffset is the layout every fake-kernel ring uses: producer
// at byte 0, consumer on the next cache line, flags on the one after,
// and the slot array starting four cache lines in. Any layout
// the real kernel might choose is equally valid; this one just needs
// to be self-consistent between mmapOffsets and the pump methods.
func fakeRingOffset() xdpabi.RingOffset {
	return xdpabi.RingOffset{
		Producer: 0,
		Consumer: ring.CacheLineSize,
		Flags:    2 * ring.CacheLineSize,
		Desc:     4 * ring.CacheLineSize,
	}
}

func (f *fakeKernel) socket() (int, error) {
	f.nextFD++
	return int(f.nextFD), nil
}

func (f *fakeKernel) setUmemReg(fd int, reg xdpabi.UmemReg) error { return nil }

func (f *fakeKernel) setRingSize(fd int, opt int, size uint32) error {
	switch opt {
	case xdpabi.OptUmemFillRing:
		f.fillSize = size
	case xdpabi.OptUmemCompletionRing:
		f.compSize = size
	case xdpabi.OptRxRing:
		f.rxSize = size
	case xdpabi.OptTxRing:
		f.txSize = size
	}
	return nil
}

func (f *fakeKernel) mmapOffsets(fd int) (xdpabi.MmapOffsets, error) {
	off := fakeRingOffset()
	return xdpabi.MmapOffsets{RX: off, TX: off, Fill: off, Comp: off}, nil
}

func (f *fakeKernel) mmapRing(fd int, pgoff int64, size int) ([]byte, error) {
	region := make([]byte, size)
	switch pgoff {
	case xdpabi.PgoffUmemFillRing:
		f.fillRegion = region
	case xdpabi.PgoffUmemCompletionRing:
		f.compRegion = region
	case xdpabi.PgoffRxRing:
		f.rxRegion = region
	case xdpabi.PgoffTxRing:
		f.txRegion = region
	}
	return region, nil
}

func (f *fakeKernel) munmap(region []byte) error { return nil }

func (f *fakeKernel) bind(fd int, addr xdpabi.SockaddrXDP) error {
	if addr.Flags&xdpabi.BindZeroCopy != 0 && !f.zeroCopyCapable {
		return errNoZeroCopy
	}
	return f.bindErr
}

func (f *fakeKernel) kick(fd int) error {
	atomic.AddInt32(&f.kickCount, 1)
	return f.kickErr
}

func (f *fakeKernel) stats(fd int) (xdpabi.Stats, error) { return xdpabi.Stats{}, nil }

func (f *fakeKernel) close(fd int) error { return nil }

// pumpFillToRX plays the NIC: for each queued echo payload, as far as
// the Fill and RX rings allow, it consumes one frame address posted to
// the Fill ring, writes the payload into that frame, and produces a
// matching RX descriptor for it.
func (f *fakeKernel) pumpFillToRX() int {
	off := fakeRingOffset()
	fillRing := mappedRing{region: f.fillRegion, off: off}
	fillCons := ring.New[uint64](f.fillSize, fillRing.prodCell(), fillRing.consCell(), fillRing.addrSlots(f.fillSize)).Consumer()

	rxRing := mappedRing{region: f.rxRegion, off: off}
	rxProd := ring.New[xdpabi.Desc](f.rxSize, rxRing.prodCell(), rxRing.consCell(), rxRing.descSlots(f.rxSize)).Producer()

	avail := fillCons.Peek(f.fillSize)
	n := uint32(len(f.echo))
	if n > avail {
		n = avail
	}
	n = rxProd.Reserve(n)

	for i := uint32(0); i < n; i++ {
		addr := *fillCons.Slot(i)
		payload := f.u.FramePayload(addr)
		data := f.echo[0]
		f.echo = f.echo[1:]
		copy(payload, data)
		*rxProd.Slot(i) = xdpabi.Desc{Addr: addr, Len: uint32(len(data)), Options: 0}
	}
	fillCons.Release(n)
	rxProd.Submit(n)
	return int(n)
}

// pumpTXToCompletion plays the NIC transmit path: it consumes every
// descriptor posted to the TX ring, queues its payload for delivery
// back through pumpFillToRX (the loopback), and produces a
// Completion-ring entry so the user can reclaim the TX frame.
func (f *fakeKernel) pumpTXToCompletion() int {
	off := fakeRingOffset()
	txRing := mappedRing{region: f.txRegion, off: off}
	txCons := ring.New[xdpabi.Desc](f.txSize, txRing.prodCell(), txRing.consCell(), txRing.descSlots(f.txSize)).Consumer()

	compRing := mappedRing{region: f.compRegion, off: off}
	compProd := ring.New[uint64](f.compSize, compRing.prodCell(), compRing.consCell(), compRing.addrSlots(f.compSize)).Producer()

	k := txCons.Peek(f.txSize)
	k = compProd.Reserve(k)

	for i := uint32(0); i < k; i++ {
		desc := *txCons.Slot(i)
		payload := f.u.FramePayload(desc.Addr)
		data := make([]byte, desc.Len)
		copy(data, payload[:desc.Len])
		f.echo = append(f.echo, data)

		*compProd.Slot(i) = desc.Addr
	}
	txCons.Release(k)
	compProd.Submit(k)
	return int(k)
}
