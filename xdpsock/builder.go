package xdpsock

import (
	"context"

	"github.com/penguintechinc/xdpcore/internal/tracing"
	"github.com/penguintechinc/xdpcore/ring"
	"github.com/penguintechinc/xdpcore/umem"
	"github.com/penguintechinc/xdpcore/xdpabi"
	"github.com/penguintechinc/xdpcore/xdperr"
)

// New brings up a Socket per cfg: resolves the interface, creates the
// UMEM, and runs the eight-step bring-up protocol (socket creation,
// UMEM registration, ring-size configuration, mmap-offsets query,
// ring mmap, index init, bind, initial fill populate). Any step
// failing aborts construction and rolls back every resource already
// acquired, in reverse order; the returned error is always an
// *xdperr.Error.
func New(ctx context.Context, cfg Config) (*Socket, error) {
	return newWithKernel(ctx, cfg, sysKernel{})
}

func newWithKernel(ctx context.Context, cfg Config, k kernel) (*Socket, error) {
	cfg = cfg.withDefaults()

	tracer := cfg.Tracer
	if tracer == nil {
		var err error
		tracer, err = tracing.Init(tracing.Config{})
		if err != nil {
			return nil, xdperr.Wrap(xdperr.KindUnsupported, "init no-op tracer", err)
		}
	}
	_, endBringUp, step := tracer.StartBringUp(ctx, cfg.InterfaceName, int(cfg.QueueID))

	ifaceIndex, err := cfg.Resolver.ResolveInterface(cfg.InterfaceName)
	if err != nil {
		endBringUp(err)
		return nil, err
	}

	u, err := umem.Create(cfg.Umem)
	if err != nil {
		endBringUp(err)
		return nil, err
	}

	s := &Socket{
		k:          k,
		state:      StateNew,
		ifaceName:  cfg.InterfaceName,
		ifaceIndex: ifaceIndex,
		queueID:    cfg.QueueID,
		bindFlags:  cfg.BindFlags,
		needWakeup: cfg.BindFlags&xdpabi.BindUseNeedWakeup != 0,
		umem:       u,
		logger:     cfg.Logger,
		clock:      cfg.clock,
	}

	fail := func(kind xdperr.Kind, stepName, msg string, cause error) (*Socket, error) {
		e := xdperr.Wrap(kind, msg, cause)
		cfg.Logger.LogBringUpStep(stepName, cfg.InterfaceName, int(cfg.QueueID), e)
		s.state = StateFailed
		endBringUp(e)
		s.Close()
		return nil, e
	}

	// Step 1: create the AF_XDP socket handle.
	stepEnd := step("socket_create")
	fd, err := k.socket()
	stepEnd(err)
	if err != nil {
		return fail(xdperr.KindSocketCreationFailed, "socket_create", "create af_xdp socket", err)
	}
	s.fd = fd
	cfg.Logger.LogBringUpStep("socket_create", cfg.InterfaceName, int(cfg.QueueID), nil)

	// Step 2: register the UMEM.
	stepEnd = step("umem_register")
	reg := xdpabi.UmemReg{
		Addr:      uint64(u.BaseAddr()),
		Len:       u.Len(),
		ChunkSize: u.FrameSize(),
		Headroom:  u.Headroom(),
	}
	err = k.setUmemReg(fd, reg)
	stepEnd(err)
	if err != nil {
		return fail(xdperr.KindUmemRegistrationFailed, "umem_register", "register umem", err)
	}
	s.state = StateRegistered
	cfg.Logger.LogBringUpStep("umem_register", cfg.InterfaceName, int(cfg.QueueID), nil)

	// Step 3: set ring capacities for Fill, Completion, RX, TX.
	stepEnd = step("ring_size")
	ringSizes := []struct {
		opt  int
		size uint32
	}{
		{xdpabi.OptUmemFillRing, u.FillSize()},
		{xdpabi.OptUmemCompletionRing, u.CompSize()},
		{xdpabi.OptRxRing, cfg.RXSize},
		{xdpabi.OptTxRing, cfg.TXSize},
	}
	for _, rs := range ringSizes {
		if err = k.setRingSize(fd, rs.opt, rs.size); err != nil {
			break
		}
	}
	stepEnd(err)
	if err != nil {
		return fail(xdperr.KindRingSizeSetFailed, "ring_size", "configure ring sizes", err)
	}
	cfg.Logger.LogBringUpStep("ring_size", cfg.InterfaceName, int(cfg.QueueID), nil)

	// Step 4: query the ring layout.
	stepEnd = step("mmap_offsets")
	offsets, err := k.mmapOffsets(fd)
	stepEnd(err)
	if err != nil {
		return fail(xdperr.KindMmapOffsetsFailed, "mmap_offsets", "query mmap offsets", err)
	}
	cfg.Logger.LogBringUpStep("mmap_offsets", cfg.InterfaceName, int(cfg.QueueID), nil)

	// Step 5: memory-map each ring's pages, and step 6: initialize
	// each ring's cached indices from the current shared values (done
	// implicitly by ring.Ring.Producer()/Consumer() below).
	stepEnd = step("ring_mmap")
	s.fillRegion, err = k.mmapRing(fd, xdpabi.PgoffUmemFillRing, ringRegionLen(offsets.Fill, u.FillSize(), xdpabi.AddrSize))
	if err == nil {
		s.compRegion, err = k.mmapRing(fd, xdpabi.PgoffUmemCompletionRing, ringRegionLen(offsets.Comp, u.CompSize(), xdpabi.AddrSize))
	}
	if err == nil {
		s.rxRegion, err = k.mmapRing(fd, xdpabi.PgoffRxRing, ringRegionLen(offsets.RX, cfg.RXSize, xdpabi.DescSize))
	}
	if err == nil {
		s.txRegion, err = k.mmapRing(fd, xdpabi.PgoffTxRing, ringRegionLen(offsets.TX, cfg.TXSize, xdpabi.DescSize))
	}
	stepEnd(err)
	if err != nil {
		return fail(xdperr.KindRingMapFailed, "ring_mmap", "mmap ring pages", err)
	}

	fillRing := mappedRing{region: s.fillRegion, off: offsets.Fill}
	compRing := mappedRing{region: s.compRegion, off: offsets.Comp}
	rxRing := mappedRing{region: s.rxRegion, off: offsets.RX}
	txRing := mappedRing{region: s.txRegion, off: offsets.TX}

	s.fillProd = ring.New[uint64](u.FillSize(), fillRing.prodCell(), fillRing.consCell(), fillRing.addrSlots(u.FillSize())).Producer()
	s.compCons = ring.New[uint64](u.CompSize(), compRing.prodCell(), compRing.consCell(), compRing.addrSlots(u.CompSize())).Consumer()
	s.rxCons = ring.New[xdpabi.Desc](cfg.RXSize, rxRing.prodCell(), rxRing.consCell(), rxRing.descSlots(cfg.RXSize)).Consumer()
	s.txProd = ring.New[xdpabi.Desc](cfg.TXSize, txRing.prodCell(), txRing.consCell(), txRing.descSlots(cfg.TXSize)).Producer()
	s.txFlags = txRing.flagsCell()

	s.state = StateMapped
	cfg.Logger.LogBringUpStep("ring_mmap", cfg.InterfaceName, int(cfg.QueueID), nil)

	// Step 7: bind.
	stepEnd = step("bind")
	err = k.bind(fd, xdpabi.SockaddrXDP{
		Family:  xdpabi.AFXDP,
		Flags:   cfg.BindFlags,
		Ifindex: uint32(ifaceIndex),
		QueueID: cfg.QueueID,
	})
	stepEnd(err)
	if err != nil {
		return fail(xdperr.KindBindFailed, "bind", "bind to interface/queue", err)
	}
	s.state = StateBound
	cfg.Logger.LogBringUpStep("bind", cfg.InterfaceName, int(cfg.QueueID), nil)

	// Step 8: populate the Fill ring with free frames.
	stepEnd = step("populate_fill")
	s.PopulateFill()
	stepEnd(nil)
	s.state = StateServing
	cfg.Logger.LogBringUpStep("populate_fill", cfg.InterfaceName, int(cfg.QueueID), nil)

	endBringUp(nil)
	return s, nil
}
