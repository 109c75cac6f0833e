// Package xdpsock owns the bound AF_XDP endpoint: an UMEM, its four
// rings, and the batched dataplane operations that move packets across
// them. Bring-up is an eight-step, fully-rolled-back staged builder;
// the dataplane is lock-free, and Recv copies each received payload
// into a newly allocated buffer.
package xdpsock

import (
	"sync/atomic"

	"github.com/penguintechinc/xdpcore/hostutil"
	"github.com/penguintechinc/xdpcore/internal/logging"
	"github.com/penguintechinc/xdpcore/internal/tracing"
	"github.com/penguintechinc/xdpcore/ring"
	"github.com/penguintechinc/xdpcore/umem"
	"github.com/penguintechinc/xdpcore/xdpabi"
	"github.com/penguintechinc/xdpcore/xdperr"
)

// Default ring sizes used by Config when RXSize/TXSize are left zero.
const (
	DefaultRXSize = 2048
	DefaultTXSize = 2048
)

// defaultResolver is shared across every Socket that doesn't supply its
// own Resolver, so repeated bring-ups against the same interface (a
// supervisor rebinding a queue after a failure, for instance) hit the
// cache instead of re-issuing SIOCGIFINDEX.
var defaultResolver = hostutil.NewResolver(0)

// Config configures one Socket's bring-up.
type Config struct {
	// InterfaceName is resolved to a kernel interface index via
	// hostutil before bind.
	InterfaceName string
	// QueueID selects the NIC queue to bind to.
	QueueID uint32
	// RXSize, TXSize are the RX/TX ring capacities; zero uses the
	// Default{RX,TX}Size constants. Must be a power of two.
	RXSize, TXSize uint32
	// BindFlags is a bitwise OR of xdpabi.Bind* flags.
	BindFlags uint16
	// Umem configures the UMEM this socket registers and owns
	// exclusively; see package umem's Config for field defaults.
	Umem umem.Config

	// Logger receives structured bring-up and dataplane-short-count
	// events. A nil Logger gets a default at info level.
	Logger *logging.Logger
	// Tracer wraps bring-up in an OpenTelemetry span tree. A nil
	// Tracer disables tracing.
	Tracer *tracing.Tracer
	// Resolver resolves cfg.InterfaceName to a kernel index. A nil
	// Resolver uses a shared package-level default, so repeated
	// bring-ups against the same interface skip the ioctl after the
	// first.
	Resolver *hostutil.Resolver

	// clock returns a monotonic nanosecond timestamp; overridable in
	// tests. A nil value uses nanoseconds elapsed on the monotonic
	// clock since package initialization.
	clock func() int64
}

func (c Config) withDefaults() Config {
	if c.RXSize == 0 {
		c.RXSize = DefaultRXSize
	}
	if c.TXSize == 0 {
		c.TXSize = DefaultTXSize
	}
	if c.Logger == nil {
		c.Logger = logging.New("info")
	}
	if c.Resolver == nil {
		c.Resolver = defaultResolver
	}
	if c.clock == nil {
		c.clock = defaultClock
	}
	return c
}

// State is one stage of a Socket's lifecycle.
type State int

const (
	StateNew State = iota
	StateRegistered
	StateMapped
	StateBound
	StateServing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRegistered:
		return "registered"
	case StateMapped:
		return "mapped"
	case StateBound:
		return "bound"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats holds the socket-local counters, updated only by the single
// dataplane agent permitted to call Recv/Send/CompleteTX on a Socket.
// Read with Socket.Stats, which loads each counter atomically.
type Stats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
	RxDropped uint64
	TxErrors  uint64
}

// Snapshot merges a Socket's local Stats with the kernel's own
// XDP_STATISTICS counters, as published to internal/metrics.
type Snapshot struct {
	Stats
	Kernel xdpabi.Stats
}

// Socket owns one bound AF_XDP endpoint. Construct with New; a zero
// Socket is never usable.
type Socket struct {
	k kernel

	fd         int
	state      State
	ifaceName  string
	ifaceIndex int
	queueID    uint32
	bindFlags  uint16
	needWakeup bool

	umem *umem.Umem

	fillRegion, compRegion, rxRegion, txRegion []byte

	fillProd *ring.Producer[uint64]
	compCons *ring.Consumer[uint64]
	rxCons   *ring.Consumer[xdpabi.Desc]
	txProd   *ring.Producer[xdpabi.Desc]
	txFlags  *uint32

	logger *logging.Logger
	clock  func() int64

	rxPackets uint64
	txPackets uint64
	rxBytes   uint64
	txBytes   uint64
	rxDropped uint64
	txErrors  uint64
}

// State returns the socket's current lifecycle state.
func (s *Socket) State() State { return s.state }

// Stats returns a point-in-time copy of the socket-local counters.
func (s *Socket) Stats() Stats {
	return Stats{
		RxPackets: atomic.LoadUint64(&s.rxPackets),
		TxPackets: atomic.LoadUint64(&s.txPackets),
		RxBytes:   atomic.LoadUint64(&s.rxBytes),
		TxBytes:   atomic.LoadUint64(&s.txBytes),
		RxDropped: atomic.LoadUint64(&s.rxDropped),
		TxErrors:  atomic.LoadUint64(&s.txErrors),
	}
}

// Snapshot fetches the kernel's XDP_STATISTICS counters and merges
// them with the socket-local Stats.
func (s *Socket) Snapshot() (Snapshot, error) {
	kstats, err := s.k.stats(s.fd)
	if err != nil {
		return Snapshot{}, xdperr.Wrap(xdperr.KindStatsFetchFailed, "fetch xdp statistics", err)
	}
	return Snapshot{Stats: s.Stats(), Kernel: kstats}, nil
}

// Close unmaps every ring, unmaps the UMEM, and closes the socket file
// descriptor, in reverse acquisition order. Safe to call once on any
// non-closed socket, including one left in StateFailed by a failed
// New.
func (s *Socket) Close() error {
	if s.state == StateClosed {
		return nil
	}
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.txRegion != nil {
		record(s.k.munmap(s.txRegion))
	}
	if s.rxRegion != nil {
		record(s.k.munmap(s.rxRegion))
	}
	if s.compRegion != nil {
		record(s.k.munmap(s.compRegion))
	}
	if s.fillRegion != nil {
		record(s.k.munmap(s.fillRegion))
	}
	if s.umem != nil {
		record(s.umem.Close())
	}
	if s.fd != 0 {
		record(s.k.close(s.fd))
	}

	s.state = StateClosed
	return firstErr
}
