// Package ring implements the single-producer/single-consumer index
// discipline shared by all four AF_XDP rings (Fill, Completion, RX, TX).
//
// A Ring is a fixed-size circular slot array plus two 32-bit index
// cells — producer and consumer — that may live in memory shared with
// the kernel. Each side of the ring gets its own view (Producer or
// Consumer) so that calling a consumer operation on a producer's view,
// or vice versa, is a compile error rather than a runtime misuse. Each
// view caches the peer's index locally to avoid reloading it on every
// call; see Producer.Reserve and Consumer.Peek for when a reload is
// forced.
package ring

import "sync/atomic"

// CacheLineSize is the assumed width of a cache line on the target
// architectures this module supports (x86-64, arm64). The kernel's own
// ring layout already separates the producer and consumer cells of a
// real AF_XDP ring onto distinct cache lines; IndexPair reproduces the
// same separation for rings built entirely in user space (tests, mock
// kernels).
const CacheLineSize = 64

// IndexPair holds a producer and a consumer index cell on distinct
// cache lines, for callers constructing a ring without a kernel-mapped
// backing region (mock kernels, property tests).
type IndexPair struct {
	Producer uint32
	_        [CacheLineSize - 4]byte
	Consumer uint32
	_        [CacheLineSize - 4]byte
}

// Ring is the shared-memory state of one SPSC ring: its slot array and
// the two index cells. It holds no per-side cache; that lives in
// Producer and Consumer, since the whole point of the cache is that
// each side keeps its own private idea of where the peer is.
type Ring[T any] struct {
	size     uint32
	mask     uint32
	slots    []T
	prodCell *uint32
	consCell *uint32
}

// New builds a Ring over slots, with the producer and consumer index
// cells at prodCell/consCell. size must be a power of two and equal to
// len(slots); prodCell and consCell must not be nil and should not
// alias the same word.
func New[T any](size uint32, prodCell, consCell *uint32, slots []T) *Ring[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("ring: size must be a power of two")
	}
	if uint32(len(slots)) != size {
		panic("ring: len(slots) must equal size")
	}
	return &Ring[T]{
		size:     size,
		mask:     size - 1,
		slots:    slots,
		prodCell: prodCell,
		consCell: consCell,
	}
}

// Size returns the ring's slot capacity.
func (r *Ring[T]) Size() uint32 { return r.size }

// Producer returns this process's producer-side view of the ring,
// initialized from the cell's currently published value.
func (r *Ring[T]) Producer() *Producer[T] {
	return &Producer[T]{
		ring:           r,
		local:          atomic.LoadUint32(r.prodCell),
		cachedConsumer: atomic.LoadUint32(r.consCell),
	}
}

// Consumer returns this process's consumer-side view of the ring,
// initialized from the cell's currently published value.
func (r *Ring[T]) Consumer() *Consumer[T] {
	return &Consumer[T]{
		ring:           r,
		local:          atomic.LoadUint32(r.consCell),
		cachedProducer: atomic.LoadUint32(r.prodCell),
	}
}

// Producer is the producer-side view of a Ring: it owns the producer
// index and may only read the consumer index.
type Producer[T any] struct {
	ring           *Ring[T]
	local          uint32 // local shadow of the published producer value
	cachedConsumer uint32 // last observed consumer value
}

// Reserve reports how many contiguous slots, 0 <= k <= n, may be filled
// without overrunning the consumer. It checks the cached consumer
// index first; only when that says there isn't enough room does it
// reload the peer index with acquire semantics.
func (p *Producer[T]) Reserve(n uint32) uint32 {
	free := p.ring.size - (p.local - p.cachedConsumer)
	if free < n {
		p.cachedConsumer = atomic.LoadUint32(p.ring.consCell)
		free = p.ring.size - (p.local - p.cachedConsumer)
	}
	if n < free {
		return n
	}
	return free
}

// Slot returns the slot at position i within the most recent Reserve
// window, 0 <= i < k. The producer must write every reserved slot
// exactly once before Submit.
func (p *Producer[T]) Slot(i uint32) *T {
	idx := (p.local + i) & p.ring.mask
	return &p.ring.slots[idx]
}

// Submit advances the local producer index by k and publishes it with
// release semantics, making the k slots visible to the consumer.
func (p *Producer[T]) Submit(k uint32) {
	p.local += k
	atomic.StoreUint32(p.ring.prodCell, p.local)
}

// Consumer is the consumer-side view of a Ring: it owns the consumer
// index and may only read the producer index.
type Consumer[T any] struct {
	ring           *Ring[T]
	local          uint32 // local shadow of the published consumer value
	cachedProducer uint32 // last observed producer value
}

// Peek reports how many contiguous slots, 0 <= k <= n, are available to
// consume. Unlike Producer.Reserve, Peek always reloads the peer
// producer index with acquire semantics: on the kernel-facing rings the
// producer side is an independent agent whose progress this side has no
// other way of learning about.
func (c *Consumer[T]) Peek(n uint32) uint32 {
	c.cachedProducer = atomic.LoadUint32(c.ring.prodCell)
	avail := c.cachedProducer - c.local
	if n < avail {
		return n
	}
	return avail
}

// Slot returns the slot at position i within the most recent Peek
// window, 0 <= i < k.
func (c *Consumer[T]) Slot(i uint32) *T {
	idx := (c.local + i) & c.ring.mask
	return &c.ring.slots[idx]
}

// Release advances the local consumer index by k and publishes it with
// release semantics, returning the k slots to the producer.
func (c *Consumer[T]) Release(k uint32) {
	c.local += k
	atomic.StoreUint32(c.ring.consCell, c.local)
}
