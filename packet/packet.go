// Package packet defines the opaque, length-bounded byte-buffer
// container the core's dataplane reads from and writes into. It is the
// only type in this module that a caller building something on top of
// xdpsock (a router, a load generator, a capture tool) is expected to
// hold directly.
package packet

// Packet is one packet copied out of (or queued into) the dataplane.
// Timestamp is a monotonic nanosecond value, stamped by Socket.Recv at
// the moment the descriptor was drained from the RX ring; it is zero
// for packets a caller constructs for Send.
type Packet struct {
	Data      []byte
	Timestamp int64
}

// Batch is a fixed-capacity, caller-owned collection of Packets. Its
// zero value is not usable; construct one with NewBatch.
type Batch struct {
	Packets []Packet
	cap     int
}

// NewBatch returns a Batch with room for up to capacity packets.
func NewBatch(capacity int) *Batch {
	return &Batch{
		Packets: make([]Packet, 0, capacity),
		cap:     capacity,
	}
}

// Capacity returns the batch's maximum size.
func (b *Batch) Capacity() int { return b.cap }

// Len returns the number of packets currently held.
func (b *Batch) Len() int { return len(b.Packets) }

// Remaining returns how many more packets the batch can hold.
func (b *Batch) Remaining() int { return b.cap - len(b.Packets) }

// Append copies data into a new Packet appended to the batch, stamped
// with ts. It reports false without modifying the batch if the batch is
// already at capacity.
func (b *Batch) Append(data []byte, ts int64) bool {
	if len(b.Packets) >= b.cap {
		return false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	b.Packets = append(b.Packets, Packet{Data: buf, Timestamp: ts})
	return true
}

// Reset empties the batch, keeping its backing array.
func (b *Batch) Reset() {
	b.Packets = b.Packets[:0]
}
