// Package config defines the runtime configuration structs and parsing
// helpers shared across services.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. The upper-case keys mirror
// the config.yaml format the deployment tooling already ships.
type Config struct {
	UpstreamDNS              string          `yaml:"UPSTREAM_DNS"`
	SinkholeIP               string          `yaml:"SINKHOLE_IP"`
	BlocklistURL             string          `yaml:"BLOCKLIST_URL"`
	BlocklistRefreshInterval int             `yaml:"BLOCKLIST_REFRESH_INTERVAL"` // seconds
	WebDashboardPort         int             `yaml:"WEB_DASHBOARD_PORT"`
	DNSPort                  int             `yaml:"DNS_PORT"`
	DNSHost                  string          `yaml:"DNS_HOST"`
	Logging                  LoggingConfig   `yaml:"logging"`
	Telemetry                TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level    string `yaml:"level"`     // debug, info, warn, error
	Format   string `yaml:"format"`    // json, text
	Output   string `yaml:"output"`    // stdout, stderr, file
	FilePath string `yaml:"file_path"` // if output=file
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	ServiceName       string `yaml:"service_name"`
	ServiceVersion    string `yaml:"service_version"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	Enabled           bool   `yaml:"enabled"`
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
}

// Load loads the configuration from a YAML file
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by user via CLI flag, this is intentional
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults creates a configuration with sensible defaults. It is the
// fallback when the config file is missing or malformed.
func LoadWithDefaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults sets default values for unset configuration fields
func (c *Config) applyDefaults() {
	if c.UpstreamDNS == "" {
		c.UpstreamDNS = "8.8.8.8"
	}
	if c.SinkholeIP == "" {
		c.SinkholeIP = "0.0.0.0"
	}
	if c.BlocklistRefreshInterval == 0 {
		c.BlocklistRefreshInterval = 3600
	}
	if c.WebDashboardPort == 0 {
		c.WebDashboardPort = 8080
	}
	if c.DNSPort == 0 {
		c.DNSPort = 53
	}
	if c.DNSHost == "" {
		c.DNSHost = "0.0.0.0"
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	// Telemetry defaults
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "sink-hole"
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = "dev"
	}
	if c.Telemetry.PrometheusPort == 0 {
		c.Telemetry.PrometheusPort = 9090
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if ip := net.ParseIP(c.UpstreamDNS); ip == nil || ip.To4() == nil {
		return fmt.Errorf("UPSTREAM_DNS must be an IPv4 address, got %q", c.UpstreamDNS)
	}
	if ip := net.ParseIP(c.SinkholeIP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("SINKHOLE_IP must be an IPv4 address, got %q", c.SinkholeIP)
	}
	if c.BlocklistRefreshInterval < 0 {
		return fmt.Errorf("BLOCKLIST_REFRESH_INTERVAL must be >= 0, got %d", c.BlocklistRefreshInterval)
	}
	if c.DNSPort < 0 || c.DNSPort > 65535 {
		return fmt.Errorf("DNS_PORT out of range: %d", c.DNSPort)
	}
	if c.WebDashboardPort < 0 || c.WebDashboardPort > 65535 {
		return fmt.Errorf("WEB_DASHBOARD_PORT out of range: %d", c.WebDashboardPort)
	}
	if net.ParseIP(c.DNSHost) == nil {
		return fmt.Errorf("DNS_HOST must be an IP address, got %q", c.DNSHost)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging format: %s (must be json or text)", c.Logging.Format)
	}
	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid logging output: %s (must be stdout, stderr, or file)", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path must be set when output is 'file'")
	}

	return nil
}

// DNSListenAddr returns the host:port the UDP server binds to.
func (c *Config) DNSListenAddr() string {
	return net.JoinHostPort(c.DNSHost, strconv.Itoa(c.DNSPort))
}

// UpstreamAddr returns the upstream resolver address with the implied DNS port.
func (c *Config) UpstreamAddr() string {
	return net.JoinHostPort(c.UpstreamDNS, "53")
}

// DashboardAddr returns the listen address of the HTTP dashboard.
func (c *Config) DashboardAddr() string {
	return fmt.Sprintf(":%d", c.WebDashboardPort)
}

// RefreshInterval returns the blocklist refresh interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.BlocklistRefreshInterval) * time.Second
}
