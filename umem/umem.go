// Package umem manages the pool of fixed-size, page-aligned packet
// frames an AF_XDP socket registers with the kernel.
//
// The free-frame stack is owned exclusively by the socket's dataplane
// agent (see package xdpsock): it is never locked, because the
// contract is that only one goroutine ever calls AllocFrame/FreeFrame
// on a given Umem. That mirrors the teacher's UMEM struct, minus its
// mutex and channel, which existed only because that code shared the
// pool across a polling goroutine and the caller's goroutine — a
// pattern this module's single-dataplane-agent model ABI explicitly
// forbids.
package umem

import (
	"golang.org/x/sys/unix"

	"github.com/penguintechinc/xdpcore/xdperr"
)

// Default values used by Create when a Config field is left zero.
const (
	DefaultSize      = 64 << 20
	DefaultFrameSize = 4096
	DefaultHeadroom  = 256
	DefaultFillSize  = 4096
	DefaultCompSize  = 4096
)

// Config configures a Umem. Zero-valued fields take the defaults above.
type Config struct {
	// Size is the requested total UMEM size in bytes; it is rounded up
	// to a whole number of pages, then down to a whole number of frames.
	Size uint64
	// FrameSize is the size of one frame; must be a power of two.
	FrameSize uint32
	// Headroom is the number of bytes reserved at the start of each
	// frame, before the payload, for the owner's own metadata.
	Headroom uint32
	// FillSize is the capacity of the Fill ring bound to this UMEM.
	FillSize uint32
	// CompSize is the capacity of the Completion ring bound to this
	// UMEM.
	CompSize uint32
}

func (c Config) withDefaults() Config {
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	if c.FrameSize == 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.Headroom == 0 {
		c.Headroom = DefaultHeadroom
	}
	if c.FillSize == 0 {
		c.FillSize = DefaultFillSize
	}
	if c.CompSize == 0 {
		c.CompSize = DefaultCompSize
	}
	return c
}

// Umem is a registered pool of fixed-size frames backed by one
// anonymous, page-aligned mmap region.
type Umem struct {
	mem        []byte
	frameSize  uint32
	frameCount uint32
	headroom   uint32
	fillSize   uint32
	compSize   uint32
	free       []uint64 // stack of free frame addresses; top is free[len(free)-1]
}

// Create allocates and lays out a Umem per cfg. The returned Umem's
// free stack holds every frame address; the caller is responsible for
// registering it with a kernel socket (package xdpsock does this as
// part of bring-up) before posting any frame to a ring.
func Create(cfg Config) (*Umem, error) {
	cfg = cfg.withDefaults()

	if cfg.FrameSize == 0 || cfg.FrameSize&(cfg.FrameSize-1) != 0 {
		return nil, xdperr.New(xdperr.KindUmemRegistrationFailed, "frame size must be a power of two")
	}
	if cfg.Headroom >= cfg.FrameSize {
		return nil, xdperr.New(xdperr.KindUmemRegistrationFailed, "headroom must be smaller than frame size")
	}

	pageSize := uint64(unix.Getpagesize())
	aligned := (cfg.Size + pageSize - 1) &^ (pageSize - 1)
	frameCount := aligned / uint64(cfg.FrameSize)
	if frameCount == 0 {
		return nil, xdperr.New(xdperr.KindUmemRegistrationFailed, "size too small for one frame")
	}
	aligned = frameCount * uint64(cfg.FrameSize)

	mem, err := unix.Mmap(-1, 0, int(aligned),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, xdperr.Wrap(xdperr.KindUmemRegistrationFailed, "mmap umem region", err)
	}

	free := make([]uint64, frameCount)
	for i := range free {
		free[i] = uint64(i) * uint64(cfg.FrameSize)
	}

	return &Umem{
		mem:        mem,
		frameSize:  cfg.FrameSize,
		frameCount: uint32(frameCount),
		headroom:   cfg.Headroom,
		fillSize:   cfg.FillSize,
		compSize:   cfg.CompSize,
		free:       free,
	}, nil
}

// AllocFrame pops a frame address off the free stack. ok is false iff
// the stack was empty.
func (u *Umem) AllocFrame() (addr uint64, ok bool) {
	n := len(u.free)
	if n == 0 {
		return 0, false
	}
	addr = u.free[n-1]
	u.free = u.free[:n-1]
	return addr, true
}

// FreeFrame pushes addr back onto the free stack. Duplicate frees and
// out-of-range addresses are silently accepted here — callers are
// trusted, and nothing in this package detects a caller that violates
// that.
func (u *Umem) FreeFrame(addr uint64) {
	u.free = append(u.free, addr)
}

// FramePayload returns the writable payload window for the frame at
// addr: the bytes from addr+headroom to addr+frameSize. It returns nil
// if addr does not name a frame within this Umem.
func (u *Umem) FramePayload(addr uint64) []byte {
	if addr%uint64(u.frameSize) != 0 || addr+uint64(u.frameSize) > uint64(len(u.mem)) {
		return nil
	}
	start := addr + uint64(u.headroom)
	end := addr + uint64(u.frameSize)
	return u.mem[start:end]
}

// BaseAddr returns the UMEM region's base address, for passing to
// xdpabi.UmemReg.Addr during socket registration.
func (u *Umem) BaseAddr() uintptr {
	return uintptr(unsafeSliceBase(u.mem))
}

// Len returns the UMEM region's total size in bytes.
func (u *Umem) Len() uint64 { return uint64(len(u.mem)) }

// FrameSize returns the configured frame size.
func (u *Umem) FrameSize() uint32 { return u.frameSize }

// FrameCount returns the number of frames in the pool.
func (u *Umem) FrameCount() uint32 { return u.frameCount }

// Headroom returns the configured per-frame headroom.
func (u *Umem) Headroom() uint32 { return u.headroom }

// FillSize returns the configured Fill ring capacity.
func (u *Umem) FillSize() uint32 { return u.fillSize }

// CompSize returns the configured Completion ring capacity.
func (u *Umem) CompSize() uint32 { return u.compSize }

// FreeCount returns the number of frames currently on the free stack.
// It exists for statistics and test accounting, not as part of the
// dataplane contract.
func (u *Umem) FreeCount() int { return len(u.free) }

// Close unmaps the UMEM region. It must only be called after every
// socket referencing this Umem has been closed.
func (u *Umem) Close() error {
	if u.mem == nil {
		return nil
	}
	err := unix.Munmap(u.mem)
	u.mem = nil
	return err
}
