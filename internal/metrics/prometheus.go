// Package metrics exposes per-socket Snapshot fields and bring-up
// failures as Prometheus collectors, adapted from the teacher's
// PrometheusMetrics wrapper. Unlike the teacher's package, this one
// never starts its own HTTP server: the core is a library, so the
// caller's mux mounts the Handler.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/penguintechinc/xdpcore/xdperr"
	"github.com/penguintechinc/xdpcore/xdpsock"
)

// Config names the registry namespace, mirroring the teacher's
// MetricsConfig.Namespace field.
type Config struct {
	Namespace string
}

// Metrics holds one gauge vector per xdpsock.Snapshot field, labeled
// by interface and queue id, plus a counter for bring-up failures by
// xdperr.Kind.
type Metrics struct {
	registry *prometheus.Registry

	rxPackets *prometheus.GaugeVec
	txPackets *prometheus.GaugeVec
	rxBytes   *prometheus.GaugeVec
	txBytes   *prometheus.GaugeVec
	rxDropped *prometheus.GaugeVec
	txErrors  *prometheus.GaugeVec

	kernelRxDropped            *prometheus.GaugeVec
	kernelRxInvalidDescs       *prometheus.GaugeVec
	kernelTxInvalidDescs       *prometheus.GaugeVec
	kernelRxRingFull           *prometheus.GaugeVec
	kernelRxFillRingEmptyDescs *prometheus.GaugeVec
	kernelTxRingEmptyDescs     *prometheus.GaugeVec

	bringUpFailures *prometheus.CounterVec
}

const labelInterface = "interface"
const labelQueue = "queue_id"

// New builds a Metrics registry. An empty config.Namespace defaults to
// "xdpcore".
func New(config Config) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "xdpcore"
	}

	labels := []string{labelInterface, labelQueue}
	gauge := func(subsystem, name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		rxPackets: gauge("socket", "rx_packets", "Packets received by this socket since bring-up."),
		txPackets: gauge("socket", "tx_packets", "Packets transmitted by this socket since bring-up."),
		rxBytes:   gauge("socket", "rx_bytes", "Bytes received by this socket since bring-up."),
		txBytes:   gauge("socket", "tx_bytes", "Bytes transmitted by this socket since bring-up."),
		rxDropped: gauge("socket", "rx_dropped", "Socket-local rx_dropped counter; Recv never takes more descriptors than the batch holds and does not increment it."),
		txErrors:  gauge("socket", "tx_errors", "TX kicks that failed with an errno other than EAGAIN or EBUSY."),

		kernelRxDropped:            gauge("kernel", "rx_dropped", "Kernel-reported XDP_STATISTICS rx_dropped."),
		kernelRxInvalidDescs:       gauge("kernel", "rx_invalid_descs", "Kernel-reported XDP_STATISTICS rx_invalid_descs."),
		kernelTxInvalidDescs:       gauge("kernel", "tx_invalid_descs", "Kernel-reported XDP_STATISTICS tx_invalid_descs."),
		kernelRxRingFull:           gauge("kernel", "rx_ring_full", "Kernel-reported XDP_STATISTICS rx_ring_full."),
		kernelRxFillRingEmptyDescs: gauge("kernel", "rx_fill_ring_empty_descs", "Kernel-reported XDP_STATISTICS rx_fill_ring_empty_descs."),
		kernelTxRingEmptyDescs:     gauge("kernel", "tx_ring_empty_descs", "Kernel-reported XDP_STATISTICS tx_ring_empty_descs."),

		bringUpFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "bring_up",
			Name:      "failures_total",
			Help:      "Bring-up failures, labeled by xdperr.Kind.",
		}, []string{labelInterface, labelQueue, "kind"}),
	}

	m.registerAll()
	return m
}

func (m *Metrics) registerAll() {
	m.registry.MustRegister(
		m.rxPackets, m.txPackets, m.rxBytes, m.txBytes, m.rxDropped, m.txErrors,
		m.kernelRxDropped, m.kernelRxInvalidDescs, m.kernelTxInvalidDescs,
		m.kernelRxRingFull, m.kernelRxFillRingEmptyDescs, m.kernelTxRingEmptyDescs,
		m.bringUpFailures,
	)
}

// Observe republishes one socket's Snapshot under the given interface
// and queue id labels. Call it on whatever interval the caller's
// polling loop chooses; Metrics itself has no timer and is safe for
// concurrent use since every method only touches prometheus's own
// internally-synchronized vectors.
func (m *Metrics) Observe(ifaceName string, queueID uint32, snap xdpsock.Snapshot) {
	labels := prometheus.Labels{labelInterface: ifaceName, labelQueue: queueIDLabel(queueID)}

	m.rxPackets.With(labels).Set(float64(snap.RxPackets))
	m.txPackets.With(labels).Set(float64(snap.TxPackets))
	m.rxBytes.With(labels).Set(float64(snap.RxBytes))
	m.txBytes.With(labels).Set(float64(snap.TxBytes))
	m.rxDropped.With(labels).Set(float64(snap.RxDropped))
	m.txErrors.With(labels).Set(float64(snap.TxErrors))

	m.kernelRxDropped.With(labels).Set(float64(snap.Kernel.RxDropped))
	m.kernelRxInvalidDescs.With(labels).Set(float64(snap.Kernel.RxInvalidDescs))
	m.kernelTxInvalidDescs.With(labels).Set(float64(snap.Kernel.TxInvalidDescs))
	m.kernelRxRingFull.With(labels).Set(float64(snap.Kernel.RxRingFull))
	m.kernelRxFillRingEmptyDescs.With(labels).Set(float64(snap.Kernel.RxFillRingEmptyDescs))
	m.kernelTxRingEmptyDescs.With(labels).Set(float64(snap.Kernel.TxRingEmptyDescs))
}

// RecordBringUpFailure increments the failure counter for err's kind.
// A cause that isn't an *xdperr.Error is recorded under kind
// "unknown".
func (m *Metrics) RecordBringUpFailure(ifaceName string, queueID uint32, err error) {
	kind := "unknown"
	var xerr *xdperr.Error
	if errors.As(err, &xerr) {
		kind = string(xerr.Kind)
	}
	m.bringUpFailures.WithLabelValues(ifaceName, queueIDLabel(queueID), kind).Inc()
}

// Handler returns an http.Handler serving this registry's metrics in
// the Prometheus exposition format. The caller mounts it; Metrics
// never listens on its own.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func queueIDLabel(queueID uint32) string {
	return strconv.FormatUint(uint64(queueID), 10)
}
