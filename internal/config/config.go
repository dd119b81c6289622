// Package config loads the overdrive service configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/overdrive/internal/serialmux"
)

// DefaultConfigPath is the canonical defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/overdrive.defaults.json"

// Gateway link kinds.
const (
	GatewayTCP    = "tcp"
	GatewaySerial = "serial"
)

// Config is the root configuration. Every field is optional; the Get*
// accessors supply defaults for fields the file omits.
type Config struct {
	// HTTP API
	ListenAddr *string `json:"listen_addr,omitempty"`

	// Gateway link
	GatewayKind   *string                `json:"gateway_kind,omitempty"` // "tcp" or "serial"
	GatewayAddr   *string                `json:"gateway_addr,omitempty"` // host:port for tcp
	SerialPort    *string                `json:"serial_port,omitempty"`  // device path for serial
	SerialOptions *serialmux.PortOptions `json:"serial_options,omitempty"`

	// Vehicle session
	VehicleAddr     *string `json:"vehicle_addr,omitempty"` // empty picks the first discovered
	ConnectAttempts *int    `json:"connect_attempts,omitempty"`
	ResponseTimeout *string `json:"response_timeout,omitempty"` // duration string like "10s"
	ScanSpeed       *int    `json:"scan_speed,omitempty"`       // mm/s while scanning

	// Scanning
	ClosureTolerance *float64 `json:"closure_tolerance,omitempty"`
	ScanTimeout      *string  `json:"scan_timeout,omitempty"`

	// Storage
	DatabasePath *string `json:"database_path,omitempty"`
	PlotDir      *string `json:"plot_dir,omitempty"` // empty disables plot export
}

// LoadConfig reads a Config from a .json file of at most 1 MB and
// validates it.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *Config) Validate() error {
	if c.GatewayKind != nil && *c.GatewayKind != GatewayTCP && *c.GatewayKind != GatewaySerial {
		return fmt.Errorf("gateway_kind must be %q or %q, got %q", GatewayTCP, GatewaySerial, *c.GatewayKind)
	}
	if c.GetGatewayKind() == GatewaySerial && c.GetSerialPort() == "" {
		return fmt.Errorf("serial_port is required when gateway_kind is %q", GatewaySerial)
	}
	if c.SerialOptions != nil {
		if _, err := c.SerialOptions.Normalize(); err != nil {
			return fmt.Errorf("serial_options: %w", err)
		}
	}
	if c.ConnectAttempts != nil && *c.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1, got %d", *c.ConnectAttempts)
	}
	if c.ClosureTolerance != nil && *c.ClosureTolerance <= 0 {
		return fmt.Errorf("closure_tolerance must be positive, got %f", *c.ClosureTolerance)
	}
	if c.ScanSpeed != nil && (*c.ScanSpeed < 0 || *c.ScanSpeed > 1500) {
		return fmt.Errorf("scan_speed must be between 0 and 1500, got %d", *c.ScanSpeed)
	}
	for name, d := range map[string]*string{"response_timeout": c.ResponseTimeout, "scan_timeout": c.ScanTimeout} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.ParseDuration(*d); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
	}
	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

func (c *Config) GetListenAddr() string   { return stringOr(c.ListenAddr, ":8080") }
func (c *Config) GetGatewayKind() string  { return stringOr(c.GatewayKind, GatewayTCP) }
func (c *Config) GetGatewayAddr() string  { return stringOr(c.GatewayAddr, "localhost:5000") }
func (c *Config) GetSerialPort() string   { return stringOr(c.SerialPort, "") }
func (c *Config) GetVehicleAddr() string  { return stringOr(c.VehicleAddr, "") }
func (c *Config) GetDatabasePath() string { return stringOr(c.DatabasePath, "overdrive.db") }
func (c *Config) GetPlotDir() string      { return stringOr(c.PlotDir, "") }

// GetSerialOptions returns the serial options with defaults applied.
func (c *Config) GetSerialOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.SerialOptions != nil {
		opts = *c.SerialOptions
	}
	if n, err := opts.Normalize(); err == nil {
		return n
	}
	return opts
}

func (c *Config) GetConnectAttempts() int {
	if c.ConnectAttempts == nil {
		return 5
	}
	return *c.ConnectAttempts
}

func (c *Config) GetResponseTimeout() time.Duration {
	return durationOr(c.ResponseTimeout, 10*time.Second)
}

// GetScanSpeed is the speed the vehicle drives at while the track is
// scanned.
func (c *Config) GetScanSpeed() int {
	if c.ScanSpeed == nil {
		return 400
	}
	return *c.ScanSpeed
}

func (c *Config) GetClosureTolerance() float64 {
	if c.ClosureTolerance == nil {
		return 1.0
	}
	return *c.ClosureTolerance
}

// GetScanTimeout bounds a scan; zero means wait until stopped.
func (c *Config) GetScanTimeout() time.Duration {
	return durationOr(c.ScanTimeout, 2*time.Minute)
}
