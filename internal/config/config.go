// Package config loads xdpcore's UMEM, socket, and observability
// settings from a YAML file, XDPCORE_-prefixed environment variables,
// and CLI flags, adapted from the teacher's Viper/Cobra configuration
// layer. The teacher's L7/threat/TLS/extauth/acceleration sections are
// gone — none of that surface exists in this module — but the
// file+env+flag precedence and the mapstructure-tagged struct shape
// are kept exactly as the teacher built them.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penguintechinc/xdpcore/umem"
	"github.com/penguintechinc/xdpcore/xdpabi"
)

// UmemConfig mirrors umem.Config with mapstructure tags for Viper.
type UmemConfig struct {
	Size      uint64 `mapstructure:"size"`
	FrameSize uint32 `mapstructure:"frame_size"`
	Headroom  uint32 `mapstructure:"headroom"`
	FillSize  uint32 `mapstructure:"fill_size"`
	CompSize  uint32 `mapstructure:"comp_size"`
}

// ToUmemConfig converts to the umem package's native Config type.
func (c UmemConfig) ToUmemConfig() umem.Config {
	return umem.Config{
		Size:      c.Size,
		FrameSize: c.FrameSize,
		Headroom:  c.Headroom,
		FillSize:  c.FillSize,
		CompSize:  c.CompSize,
	}
}

// SocketConfig selects the bind target and ring sizes for one
// xdpsock.Socket.
type SocketConfig struct {
	InterfaceName string `mapstructure:"interface_name"`
	QueueID       uint32 `mapstructure:"queue_id"`
	RXRingSize    uint32 `mapstructure:"rx_ring_size"`
	TXRingSize    uint32 `mapstructure:"tx_ring_size"`
	Copy          bool   `mapstructure:"copy"`
	ZeroCopy      bool   `mapstructure:"zero_copy"`
	UseNeedWakeup bool   `mapstructure:"use_need_wakeup"`
}

// BindFlags translates the boolean knobs into the xdpabi.Bind* bitset
// xdpsock.Config expects.
func (c SocketConfig) BindFlags() uint16 {
	var flags uint16
	if c.Copy {
		flags |= xdpabi.BindCopy
	}
	if c.ZeroCopy {
		flags |= xdpabi.BindZeroCopy
	}
	if c.UseNeedWakeup {
		flags |= xdpabi.BindUseNeedWakeup
	}
	return flags
}

// ObservabilityConfig controls the ambient logging, metrics, and
// tracing stack.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

// Config is the engine's full configuration tree.
type Config struct {
	Umem          UmemConfig          `mapstructure:"umem"`
	Socket        SocketConfig        `mapstructure:"socket"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

const envPrefix = "XDPCORE"

func defaults() Config {
	return Config{
		Umem: UmemConfig{
			Size:      umem.DefaultSize,
			FrameSize: umem.DefaultFrameSize,
			Headroom:  umem.DefaultHeadroom,
			FillSize:  umem.DefaultFillSize,
			CompSize:  umem.DefaultCompSize,
		},
		Socket: SocketConfig{
			QueueID:    0,
			RXRingSize: 2048,
			TXRingSize: 2048,
			Copy:       true,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

// BindPFlags registers cmd/xdpengine's CLI flags, mirroring every
// field Load can also source from file or environment, and binds v to
// them. Call before cmd.Execute(); a later Load on the same v sees the
// flag values.
func BindPFlags(v *viper.Viper, cmd *cobra.Command) error {
	d := defaults()
	flags := cmd.Flags()

	flags.String("interface", d.Socket.InterfaceName, "network interface to bind the AF_XDP socket to")
	flags.Uint32("queue-id", d.Socket.QueueID, "NIC queue id to bind to")
	flags.Uint32("rx-ring-size", d.Socket.RXRingSize, "RX ring capacity (power of two)")
	flags.Uint32("tx-ring-size", d.Socket.TXRingSize, "TX ring capacity (power of two)")
	flags.Bool("copy", d.Socket.Copy, "force copy mode")
	flags.Bool("zero-copy", d.Socket.ZeroCopy, "require driver zero-copy mode")
	flags.Bool("use-need-wakeup", d.Socket.UseNeedWakeup, "opt into the kernel wakeup-hint protocol")

	flags.Uint64("umem-size", d.Umem.Size, "total UMEM size in bytes")
	flags.Uint32("umem-frame-size", d.Umem.FrameSize, "UMEM frame size in bytes (power of two)")
	flags.Uint32("umem-headroom", d.Umem.Headroom, "per-frame headroom in bytes")
	flags.Uint32("umem-fill-size", d.Umem.FillSize, "Fill ring capacity")
	flags.Uint32("umem-comp-size", d.Umem.CompSize, "Completion ring capacity")

	flags.String("log-level", d.Observability.LogLevel, "log level: debug, info, warn, error")
	flags.String("metrics-addr", d.Observability.MetricsAddr, "address to serve /metrics on; empty disables metrics")
	flags.Bool("tracing-enabled", d.Observability.TracingEnabled, "export bring-up spans via stdouttrace")

	binds := map[string]string{
		"socket.interface_name":       "interface",
		"socket.queue_id":             "queue-id",
		"socket.rx_ring_size":         "rx-ring-size",
		"socket.tx_ring_size":         "tx-ring-size",
		"socket.copy":                 "copy",
		"socket.zero_copy":            "zero-copy",
		"socket.use_need_wakeup":      "use-need-wakeup",
		"umem.size":                   "umem-size",
		"umem.frame_size":             "umem-frame-size",
		"umem.headroom":               "umem-headroom",
		"umem.fill_size":              "umem-fill-size",
		"umem.comp_size":              "umem-comp-size",
		"observability.log_level":     "log-level",
		"observability.metrics_addr":  "metrics-addr",
		"observability.tracing_enabled": "tracing-enabled",
	}
	for key, flag := range binds {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load builds a Config from defaults, overridden by an optional YAML
// file at path (ignored if path is empty), then by XDPCORE_-prefixed
// environment variables, then by any flags bound via BindPFlags —
// each source overriding the previous one, in that order.
func Load(v *viper.Viper, path string) (*Config, error) {
	d := defaults()
	v.SetDefault("umem", d.Umem)
	v.SetDefault("socket", d.Socket)
	v.SetDefault("observability", d.Observability)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
