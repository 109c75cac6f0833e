// Command xdpengine brings up one AF_XDP socket and runs a minimal
// loopback dataplane: every received packet is echoed back out the
// same socket. It exists to exercise internal/config, internal/
// logging, internal/metrics, internal/tracing, and xdpsock together;
// real callers are expected to link xdpsock as a library and drive
// their own dataplane loop instead of running this binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penguintechinc/xdpcore/internal/config"
	"github.com/penguintechinc/xdpcore/internal/logging"
	"github.com/penguintechinc/xdpcore/internal/metrics"
	"github.com/penguintechinc/xdpcore/internal/tracing"
	"github.com/penguintechinc/xdpcore/packet"
	"github.com/penguintechinc/xdpcore/xdpsock"
)

var (
	version = "v0.1.0-dev"
	gitHash = "unknown"
)

func main() {
	v := viper.New()
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:     "xdpengine",
		Short:   "AF_XDP kernel-bypass packet loopback engine",
		Version: fmt.Sprintf("%s (commit: %s)", version, gitHash),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, cfgPath)
		},
	}
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "YAML configuration file path")
	if err := config.BindPFlags(v, rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "bind flags: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper, cfgPath string) error {
	cfg, err := config.Load(v, cfgPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(cfg.Observability.LogLevel)
	logger.Info("starting xdpengine", "version", version, "interface", cfg.Socket.InterfaceName, "queue_id", cfg.Socket.QueueID)

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: "xdpengine",
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := metrics.New(metrics.Config{Namespace: "xdpcore"})

	var adminServer *http.Server
	if cfg.Observability.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		adminServer = &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("serving metrics", "addr", cfg.Observability.MetricsAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = adminServer.Shutdown(shutdownCtx)
		}()
	}

	socket, err := xdpsock.New(ctx, xdpsock.Config{
		InterfaceName: cfg.Socket.InterfaceName,
		QueueID:       cfg.Socket.QueueID,
		RXSize:        cfg.Socket.RXRingSize,
		TXSize:        cfg.Socket.TXRingSize,
		BindFlags:     cfg.Socket.BindFlags(),
		Umem:          cfg.Umem.ToUmemConfig(),
		Logger:        logger,
		Tracer:        tracer,
	})
	if err != nil {
		reg.RecordBringUpFailure(cfg.Socket.InterfaceName, cfg.Socket.QueueID, err)
		return fmt.Errorf("bring up socket: %w", err)
	}
	defer socket.Close()

	logger.Info("socket serving", "state", socket.State().String())
	dataplaneLoop(ctx, socket, reg, cfg.Socket.InterfaceName, cfg.Socket.QueueID, logger)
	logger.Info("shutting down")
	return nil
}

// dataplaneLoop echoes every received packet back out the same
// socket, polling the kernel's XDP_STATISTICS once per tick and
// republishing it to metrics. It returns when ctx is cancelled.
func dataplaneLoop(ctx context.Context, s *xdpsock.Socket, reg *metrics.Metrics, ifaceName string, queueID uint32, logger *logging.Logger) {
	const batchSize = 64
	rx := packet.NewBatch(batchSize)
	statsTick := time.NewTicker(time.Second)
	defer statsTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTick.C:
			if snap, err := s.Snapshot(); err != nil {
				logger.Warn("snapshot fetch failed", "error", err)
			} else {
				reg.Observe(ifaceName, queueID, snap)
			}
		default:
		}

		rx.Reset()
		n := s.Recv(rx)
		s.CompleteTX()

		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		tx := packet.NewBatch(n)
		for i := 0; i < n; i++ {
			tx.Append(rx.Packets[i].Data, 0)
		}
		s.Send(tx)
	}
}
