package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penguintechinc/xdpcore/umem"
	"github.com/penguintechinc/xdpcore/xdpabi"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Umem.FrameSize != umem.DefaultFrameSize {
		t.Fatalf("Umem.FrameSize = %d, want %d", cfg.Umem.FrameSize, umem.DefaultFrameSize)
	}
	if cfg.Socket.RXRingSize != 2048 {
		t.Fatalf("Socket.RXRingSize = %d, want 2048", cfg.Socket.RXRingSize)
	}
	if !cfg.Socket.Copy {
		t.Fatal("Socket.Copy should default to true")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Fatalf("Observability.LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xdpcore.yaml")
	content := []byte("socket:\n  interface_name: eth0\n  queue_id: 3\numem:\n  frame_size: 2048\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Socket.InterfaceName != "eth0" {
		t.Fatalf("Socket.InterfaceName = %q, want eth0", cfg.Socket.InterfaceName)
	}
	if cfg.Socket.QueueID != 3 {
		t.Fatalf("Socket.QueueID = %d, want 3", cfg.Socket.QueueID)
	}
	if cfg.Umem.FrameSize != 2048 {
		t.Fatalf("Umem.FrameSize = %d, want 2048", cfg.Umem.FrameSize)
	}
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("XDPCORE_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Fatalf("Observability.LogLevel = %q, want debug (from env)", cfg.Observability.LogLevel)
	}
}

func TestBindFlagsTranslatesToBitset(t *testing.T) {
	c := SocketConfig{Copy: true, UseNeedWakeup: true}
	got := c.BindFlags()
	want := xdpabi.BindCopy | xdpabi.BindUseNeedWakeup
	if got != want {
		t.Fatalf("BindFlags() = %#x, want %#x", got, want)
	}
}

func TestBindFlagsZeroCopyOnly(t *testing.T) {
	c := SocketConfig{ZeroCopy: true}
	if got, want := c.BindFlags(), xdpabi.BindZeroCopy; got != want {
		t.Fatalf("BindFlags() = %#x, want %#x", got, want)
	}
}

func TestToUmemConfigFieldMapping(t *testing.T) {
	c := UmemConfig{Size: 1 << 20, FrameSize: 2048, Headroom: 128, FillSize: 32, CompSize: 32}
	got := c.ToUmemConfig()
	want := umem.Config{Size: 1 << 20, FrameSize: 2048, Headroom: 128, FillSize: 32, CompSize: 32}
	if got != want {
		t.Fatalf("ToUmemConfig() = %+v, want %+v", got, want)
	}
}

func TestCLIFlagOverridesDefault(t *testing.T) {
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	if err := BindPFlags(v, cmd); err != nil {
		t.Fatalf("BindPFlags: %v", err)
	}
	if err := cmd.Flags().Set("interface", "eth1"); err != nil {
		t.Fatalf("Set flag: %v", err)
	}

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Socket.InterfaceName != "eth1" {
		t.Fatalf("Socket.InterfaceName = %q, want eth1", cfg.Socket.InterfaceName)
	}
}
