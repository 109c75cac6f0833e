package xdpsock

import (
	"sync/atomic"
	"syscall"

	"github.com/penguintechinc/xdpcore/packet"
	"github.com/penguintechinc/xdpcore/xdpabi"
)

// Recv drains up to batch.Remaining() descriptors from the RX ring
// into batch, copying each frame's payload out and returning the
// frame to the UMEM free stack. It reports how many packets were
// appended, then replenishes the Fill ring. Only legal in
// StateServing.
func (s *Socket) Recv(batch *packet.Batch) int {
	capacity := uint32(batch.Remaining())
	if capacity == 0 {
		return 0
	}

	k := s.rxCons.Peek(capacity)
	if k == 0 {
		return 0
	}

	var bytes uint64
	for i := uint32(0); i < k; i++ {
		desc := *s.rxCons.Slot(i)

		payload := s.umem.FramePayload(desc.Addr)
		n := int(desc.Len)
		if payload == nil {
			n = 0
		} else if n > len(payload) {
			n = len(payload)
		}

		ts := s.clock()
		if n > 0 {
			batch.Append(payload[:n], ts)
			bytes += uint64(n)
		} else {
			batch.Append(nil, ts)
		}

		s.umem.FreeFrame(desc.Addr)
	}
	s.rxCons.Release(k)

	atomic.AddUint64(&s.rxPackets, uint64(k))
	atomic.AddUint64(&s.rxBytes, bytes)

	if k < capacity {
		s.logger.LogDataplaneShortCount("recv", s.ifaceName, int(s.queueID), int(capacity), int(k))
	}

	s.PopulateFill()
	return int(k)
}

// Send submits up to min(batch.Len(), TX ring capacity) packets from
// batch onto the TX ring, allocating a UMEM frame for each, then kicks
// the kernel. It reports how many packets were submitted; a short
// count means the TX ring had fewer free slots than batch.Len(), or
// the UMEM free stack ran out of frames first.
func (s *Socket) Send(batch *packet.Batch) int {
	want := uint32(batch.Len())
	if want == 0 {
		return 0
	}

	k := s.txProd.Reserve(want)
	if k == 0 {
		return 0
	}

	var submitted uint32
	var bytes uint64
	for i := uint32(0); i < k; i++ {
		p := batch.Packets[i]

		addr, ok := s.umem.AllocFrame()
		if !ok {
			break
		}

		payload := s.umem.FramePayload(addr)
		n := len(p.Data)
		if n > len(payload) {
			n = len(payload)
		}
		copy(payload[:n], p.Data[:n])

		*s.txProd.Slot(submitted) = xdpabi.Desc{Addr: addr, Len: uint32(n), Options: 0}
		submitted++
		bytes += uint64(n)
	}

	if submitted > 0 {
		s.txProd.Submit(submitted)
		atomic.AddUint64(&s.txPackets, uint64(submitted))
		atomic.AddUint64(&s.txBytes, bytes)
	}

	if submitted < want {
		s.logger.LogDataplaneShortCount("send", s.ifaceName, int(s.queueID), int(want), int(submitted))
	}

	if submitted > 0 {
		s.maybeKick()
	}

	return int(submitted)
}

// maybeKick issues Kick unconditionally unless USE_NEED_WAKEUP is set,
// in which case it only kicks when the TX ring's flags word has the
// kernel's need-wakeup bit set.
func (s *Socket) maybeKick() {
	if s.needWakeup {
		flags := atomic.LoadUint32(s.txFlags)
		if flags&xdpabi.RingFlagNeedWakeup == 0 {
			return
		}
	}
	s.Kick()
}

// Kick issues the non-blocking zero-byte send that nudges the kernel
// to process the TX ring. EAGAIN and EBUSY are benign and ignored;
// any other error increments tx_errors and is returned.
func (s *Socket) Kick() error {
	err := s.k.kick(s.fd)
	if err == nil {
		return nil
	}
	if err == syscall.EAGAIN || err == syscall.EBUSY {
		return nil
	}
	atomic.AddUint64(&s.txErrors, 1)
	s.logger.Warn("tx kick failed", "interface", s.ifaceName, "queue_id", s.queueID, "error", err.Error())
	return err
}

// CompleteTX reclaims frames the kernel has finished transmitting,
// returning each to the UMEM free stack. Must be called regularly to
// avoid free-stack exhaustion; safe to call from the same goroutine as
// Send.
func (s *Socket) CompleteTX() int {
	k := s.compCons.Peek(s.umem.CompSize())
	if k == 0 {
		return 0
	}
	for i := uint32(0); i < k; i++ {
		s.umem.FreeFrame(*s.compCons.Slot(i))
	}
	s.compCons.Release(k)
	return int(k)
}

// PopulateFill attempts to reserve up to half the Fill ring's
// capacity and posts a free frame into each reserved slot. If the
// UMEM free stack empties first, only the partially filled prefix is
// submitted; the half-capacity figure is a tunable heuristic, not a
// contract.
func (s *Socket) PopulateFill() int {
	half := s.fillProd.Reserve(s.umem.FillSize() / 2)
	if half == 0 {
		return 0
	}

	var posted uint32
	for i := uint32(0); i < half; i++ {
		addr, ok := s.umem.AllocFrame()
		if !ok {
			break
		}
		*s.fillProd.Slot(posted) = addr
		posted++
	}
	if posted == 0 {
		return 0
	}
	s.fillProd.Submit(posted)
	return int(posted)
}
