// Package config loads the declarative YAML configuration: transport
// addresses, the inbound frame's binary layout, rate expectations and the
// delivery tunables.  Loaded once at startup, never hot-reloaded.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source modes for the ingest loop.
const (
	SourceAuto = "auto" // probe the simulation host, fall back to fake
	SourceUDP  = "udp"
	SourceTCP  = "tcp"
	SourceFake = "fake"
)

type UDPConfig struct {
	ListenHost string `yaml:"listen_host"`
	ListenPort int    `yaml:"listen_port"`
	SendHost   string `yaml:"send_host"`
	SendPort   int    `yaml:"send_port"`
}

type TCPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type PacketConfig struct {
	// Format is a struct-style format string, e.g. "<28f".
	Format string `yaml:"format"`
}

type Config struct {
	UDP    UDPConfig    `yaml:"udp"`
	TCP    TCPConfig    `yaml:"tcp"`
	Packet PacketConfig `yaml:"packet"`

	// Signals maps channel name -> field index within the frame.
	Signals map[string]int `yaml:"signals"`

	// Source selects the ingest variant: auto, udp, tcp or fake.
	Source string `yaml:"source"`

	// ControlTransport is "udp" or "tcp"; the control endpoint is the
	// matching send/host address above.
	ControlTransport   string        `yaml:"control_transport"`
	ControlMinInterval time.Duration `yaml:"control_min_interval"`

	SampleRateHz  float64 `yaml:"sample_rate_hz"`
	WindowSeconds float64 `yaml:"window_seconds"`

	QueueCapacity int           `yaml:"queue_capacity"`
	BatchMax      int           `yaml:"batch_max"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxClients    int           `yaml:"max_clients"`

	HTTPAddr string `yaml:"http_addr"`
	// WSAddr enables the WebSocket push twin when non-empty.
	WSAddr string `yaml:"ws_addr"`

	// CSVPath enables the rolling CSV log when non-empty.
	CSVPath    string `yaml:"csv_path"`
	CSVMaxRows int    `yaml:"csv_max_rows"`
}

// Default returns the configuration matching the simulation host's nominal
// setup: a 112-byte frame of 28 float32 fields at 100 Hz.
func Default() *Config {
	cfg := &Config{
		UDP: UDPConfig{
			ListenHost: "0.0.0.0",
			ListenPort: 25000,
			SendHost:   "192.168.7.5",
			SendPort:   5432,
		},
		TCP:    TCPConfig{Host: "192.168.7.5", Port: 5432},
		Packet: PacketConfig{Format: "<28f"},
		Signals: map[string]int{
			"time":            0,
			"ankle_angle":     1,
			"actual_torque":   2,
			"demand_torque":   3,
			"gait_percentage": 4,
			"statusword":      25,
		},
		Source:             SourceAuto,
		ControlTransport:   "udp",
		ControlMinInterval: 10 * time.Millisecond,
		SampleRateHz:       100,
		WindowSeconds:      10,
		QueueCapacity:      1,
		BatchMax:           50,
		FlushInterval:      10 * time.Millisecond,
		MaxClients:         5,
		HTTPAddr:           "0.0.0.0:8050",
		CSVMaxRows:         1000,
	}
	for i := 1; i <= 8; i++ {
		cfg.Signals[fmt.Sprintf("pressure_%d", i)] = 4 + i
	}
	for i := 1; i <= 12; i++ {
		cfg.Signals[fmt.Sprintf("imu_%d", i)] = 12 + i
	}
	return cfg
}

// Load reads path and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceAuto, SourceUDP, SourceTCP, SourceFake:
	default:
		return fmt.Errorf("config: unknown source %q", c.Source)
	}
	switch c.ControlTransport {
	case "udp", "tcp":
	default:
		return fmt.Errorf("config: unknown control_transport %q", c.ControlTransport)
	}
	if c.Packet.Format == "" {
		return fmt.Errorf("config: packet.format is required")
	}
	if len(c.Signals) == 0 {
		return fmt.Errorf("config: signals mapping is required")
	}
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("config: sample_rate_hz must be positive, got %v", c.SampleRateHz)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("config: window_seconds must be positive, got %v", c.WindowSeconds)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("config: queue_capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if c.BatchMax < 1 {
		return fmt.Errorf("config: batch_max must be at least 1, got %d", c.BatchMax)
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("config: max_clients must be at least 1, got %d", c.MaxClients)
	}
	if c.FlushInterval < 0 || c.ControlMinInterval < 0 {
		return fmt.Errorf("config: intervals must not be negative")
	}
	return nil
}

// UDPListenAddr returns the host:port the datagram ingest binds to.
func (c *Config) UDPListenAddr() string {
	return fmt.Sprintf("%s:%d", c.UDP.ListenHost, c.UDP.ListenPort)
}

// ControlAddr returns the endpoint control frames are sent to.
func (c *Config) ControlAddr() string {
	if c.ControlTransport == "tcp" {
		return fmt.Sprintf("%s:%d", c.TCP.Host, c.TCP.Port)
	}
	return fmt.Sprintf("%s:%d", c.UDP.SendHost, c.UDP.SendPort)
}

// TCPAddr returns the stream-transport endpoint of the simulation host.
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.TCP.Host, c.TCP.Port)
}
