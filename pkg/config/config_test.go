package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() must validate: %v", err)
	}
	if cfg.Packet.Format != "<28f" {
		t.Errorf("packet format: %q", cfg.Packet.Format)
	}
	if len(cfg.Signals) != 26 {
		t.Errorf("%d signal mappings, want 26", len(cfg.Signals))
	}
	if cfg.Signals["pressure_1"] != 5 || cfg.Signals["pressure_8"] != 12 {
		t.Errorf("pressure mapping: %v %v", cfg.Signals["pressure_1"], cfg.Signals["pressure_8"])
	}
	if cfg.Signals["imu_1"] != 13 || cfg.Signals["imu_12"] != 24 {
		t.Errorf("imu mapping: %v %v", cfg.Signals["imu_1"], cfg.Signals["imu_12"])
	}
	if cfg.Signals["statusword"] != 25 {
		t.Errorf("statusword mapping: %v", cfg.Signals["statusword"])
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
source: fake
udp:
  listen_port: 26000
window_seconds: 2
control_min_interval: 25ms
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != SourceFake {
		t.Errorf("source: %q", cfg.Source)
	}
	if cfg.UDP.ListenPort != 26000 {
		t.Errorf("listen_port: %d", cfg.UDP.ListenPort)
	}
	if cfg.WindowSeconds != 2 {
		t.Errorf("window_seconds: %v", cfg.WindowSeconds)
	}
	if cfg.ControlMinInterval != 25*time.Millisecond {
		t.Errorf("control_min_interval: %v", cfg.ControlMinInterval)
	}
	// Untouched keys keep their defaults.
	if cfg.UDP.ListenHost != "0.0.0.0" || cfg.SampleRateHz != 100 {
		t.Errorf("defaults lost: %+v", cfg.UDP)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad source", func(c *Config) { c.Source = "serial" }, "source"},
		{"bad control transport", func(c *Config) { c.ControlTransport = "ipx" }, "control_transport"},
		{"empty format", func(c *Config) { c.Packet.Format = "" }, "packet.format"},
		{"no signals", func(c *Config) { c.Signals = nil }, "signals"},
		{"zero rate", func(c *Config) { c.SampleRateHz = 0 }, "sample_rate_hz"},
		{"zero window", func(c *Config) { c.WindowSeconds = 0 }, "window_seconds"},
		{"zero queue", func(c *Config) { c.QueueCapacity = 0 }, "queue_capacity"},
		{"zero batch", func(c *Config) { c.BatchMax = 0 }, "batch_max"},
		{"zero clients", func(c *Config) { c.MaxClients = 0 }, "max_clients"},
		{"negative flush", func(c *Config) { c.FlushInterval = -1 }, "intervals"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestAddrHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.UDPListenAddr(); got != "0.0.0.0:25000" {
		t.Errorf("UDPListenAddr()=%q", got)
	}
	if got := cfg.ControlAddr(); got != "192.168.7.5:5432" {
		t.Errorf("ControlAddr()=%q", got)
	}
	cfg.ControlTransport = "tcp"
	cfg.TCP = TCPConfig{Host: "10.0.0.1", Port: 6000}
	if got := cfg.ControlAddr(); got != "10.0.0.1:6000" {
		t.Errorf("tcp ControlAddr()=%q", got)
	}
	if got := cfg.TCPAddr(); got != "10.0.0.1:6000" {
		t.Errorf("TCPAddr()=%q", got)
	}
}
