package xdpsock

import (
	"context"
	"os"
	"testing"

	"github.com/penguintechinc/xdpcore/internal/logging"
	"github.com/penguintechinc/xdpcore/packet"
	"github.com/penguintechinc/xdpcore/umem"
	"github.com/penguintechinc/xdpcore/xdpabi"
)

func skipIfHostTestsDisabled(t *testing.T) {
	t.Helper()
	if os.Getenv("XDPCORE_SKIP_HOST_TESTS") != "" {
		t.Skip("host networking tests disabled via XDPCORE_SKIP_HOST_TESTS")
	}
}

func testConfig() Config {
	return Config{
		InterfaceName: "lo",
		QueueID:       0,
		RXSize:        64,
		TXSize:        64,
		BindFlags:     xdpabi.BindCopy,
		Umem: umem.Config{
			Size:      64 * 4096,
			FrameSize: 4096,
			Headroom:  256,
			FillSize:  64,
			CompSize:  64,
		},
		Logger: logging.New("error"),
	}
}

func newTestSocket(t *testing.T, cfg Config, fk *fakeKernel) *Socket {
	t.Helper()
	s, err := newWithKernel(context.Background(), cfg, fk)
	if err != nil {
		t.Fatalf("newWithKernel: %v", err)
	}
	fk.u = s.umem
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBringUpReachesServing(t *testing.T) {
	skipIfHostTestsDisabled(t)

	fk := &fakeKernel{zeroCopyCapable: true}
	s := newTestSocket(t, testConfig(), fk)

	if s.State() != StateServing {
		t.Fatalf("State() = %v, want StateServing", s.State())
	}
	if s.umem.FreeCount() == int(s.umem.FrameCount()) {
		t.Fatal("expected populate_fill to have posted frames, free stack unexpectedly full")
	}
}

func TestBindZeroCopyUnsupportedFails(t *testing.T) {
	skipIfHostTestsDisabled(t)

	fk := &fakeKernel{zeroCopyCapable: false}
	cfg := testConfig()
	cfg.BindFlags = xdpabi.BindZeroCopy

	_, err := newWithKernel(context.Background(), cfg, fk)
	if err == nil {
		t.Fatal("expected bring-up to fail when zero-copy is unsupported")
	}
}

func TestBindCopySucceeds(t *testing.T) {
	skipIfHostTestsDisabled(t)

	fk := &fakeKernel{zeroCopyCapable: false}
	cfg := testConfig()
	cfg.BindFlags = xdpabi.BindCopy

	s := newTestSocket(t, cfg, fk)
	if s.State() != StateServing {
		t.Fatalf("State() = %v, want StateServing", s.State())
	}
}

func TestNeedWakeupOnlyKicksWhenFlagSet(t *testing.T) {
	skipIfHostTestsDisabled(t)

	fk := &fakeKernel{zeroCopyCapable: true}
	cfg := testConfig()
	cfg.BindFlags = xdpabi.BindCopy | xdpabi.BindUseNeedWakeup
	s := newTestSocket(t, cfg, fk)

	batch := packet.NewBatch(1)
	batch.Append([]byte("hello"), 0)

	// Flags word starts zero: no wakeup bit set, Send must not kick.
	s.Send(batch)
	if fk.kickCount != 0 {
		t.Fatalf("kickCount = %d, want 0 with need-wakeup unset", fk.kickCount)
	}

	*s.txFlags = xdpabi.RingFlagNeedWakeup
	batch.Reset()
	batch.Append([]byte("world"), 0)
	s.Send(batch)
	if fk.kickCount != 1 {
		t.Fatalf("kickCount = %d, want 1 with need-wakeup set", fk.kickCount)
	}
}

func TestFillUnderPressureSendReturnsShortCount(t *testing.T) {
	skipIfHostTestsDisabled(t)

	fk := &fakeKernel{zeroCopyCapable: true}
	s := newTestSocket(t, testConfig(), fk)

	// Drain the UMEM entirely by posting everything to Fill.
	for {
		half := s.fillProd.Reserve(1)
		if half == 0 {
			break
		}
		addr, ok := s.umem.AllocFrame()
		if !ok {
			break
		}
		*s.fillProd.Slot(0) = addr
		s.fillProd.Submit(1)
	}
	if _, ok := s.umem.AllocFrame(); ok {
		t.Fatal("expected UMEM to be fully drained")
	}

	batch := packet.NewBatch(4)
	batch.Append([]byte("a"), 0)
	batch.Append([]byte("b"), 0)

	n := s.Send(batch)
	if n != 0 {
		t.Fatalf("Send() = %d, want 0 when the free stack is empty", n)
	}
}

func TestEndToEndLoopback(t *testing.T) {
	skipIfHostTestsDisabled(t)

	fk := &fakeKernel{zeroCopyCapable: true}
	cfg := testConfig()
	cfg.RXSize, cfg.TXSize = 256, 256
	cfg.Umem.FillSize, cfg.Umem.CompSize = 256, 256
	cfg.Umem.Size = 1024 * 4096

	var clock int64
	cfg.clock = func() int64 {
		clock++
		return clock
	}

	s := newTestSocket(t, cfg, fk)

	const total = 1024
	sendBatch := packet.NewBatch(32)
	recvBatch := packet.NewBatch(32)

	var sent [][]byte
	var received [][]byte
	var timestamps []int64

	i := 0
	for iter := 0; (i < total || len(received) < total) && iter < 10*total; iter++ {
		progress := false

		sendBatch.Reset()
		for i < total && sendBatch.Remaining() > 0 {
			payload := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
			sendBatch.Append(payload, 0)
			sent = append(sent, append([]byte(nil), payload...))
			i++
		}
		if sendBatch.Len() > 0 {
			n := s.Send(sendBatch)
			if n != sendBatch.Len() {
				t.Fatalf("Send() = %d, want %d", n, sendBatch.Len())
			}
			progress = true
		}

		if fk.pumpTXToCompletion() > 0 {
			progress = true
		}
		s.CompleteTX()
		if fk.pumpFillToRX() > 0 {
			progress = true
		}

		recvBatch.Reset()
		n := s.Recv(recvBatch)
		for j := 0; j < n; j++ {
			p := recvBatch.Packets[j]
			received = append(received, append([]byte(nil), p.Data...))
			timestamps = append(timestamps, p.Timestamp)
			progress = true
		}

		if !progress {
			break
		}
	}

	if len(received) != total {
		t.Fatalf("received %d packets, want %d", len(received), total)
	}
	for idx := range sent {
		if string(sent[idx]) != string(received[idx]) {
			t.Fatalf("packet %d: payload mismatch: sent %v, received %v", idx, sent[idx], received[idx])
		}
	}
	for idx := 1; idx < len(timestamps); idx++ {
		if timestamps[idx] <= timestamps[idx-1] {
			t.Fatalf("timestamp at %d (%d) is not strictly greater than previous (%d)", idx, timestamps[idx], timestamps[idx-1])
		}
	}
}
