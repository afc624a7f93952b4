// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"todoq/internal/notification"
	"todoq/internal/utils"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// EndpointConfig holds the collection endpoint settings
type EndpointConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"` // per-request timeout (e.g., "30s")
}

// ReconcileConfig holds reconciling cache settings
type ReconcileConfig struct {
	SpeculativeUpdates *bool `yaml:"speculative_updates"` // default: true
}

// UIConfig holds user interface settings
type UIConfig struct {
	NewestFirst *bool `yaml:"newest_first"` // default: true
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
}

// AnalyticsConfig holds analytics settings
type AnalyticsConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// NotificationConfig holds failure notice settings
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled"`
	ViewBuffer int  `yaml:"view_buffer"`
	OnSettled  bool `yaml:"on_settled"`
}

// ServeConfig holds settings for the development server
type ServeConfig struct {
	Addr    string `yaml:"addr"`
	Latency string `yaml:"latency"`
}

// Config represents the application configuration
type Config struct {
	Endpoint     EndpointConfig     `yaml:"endpoint"`
	OutputFormat string             `yaml:"output_format"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	UI           UIConfig           `yaml:"ui"`
	Logging      LoggingConfig      `yaml:"logging"`
	Analytics    AnalyticsConfig    `yaml:"analytics"`
	Notification NotificationConfig `yaml:"notification"`
	Serve        ServeConfig        `yaml:"serve"`
}

const (
	DefaultEndpoint      = "http://127.0.0.1:8080/api/items"
	DefaultServeAddr     = "127.0.0.1:8080"
	defaultTimeout       = 30 * time.Second
	defaultRetentionDays = 365
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			URL:     DefaultEndpoint,
			Timeout: "30s",
		},
		OutputFormat: "text",
		Logging: LoggingConfig{
			Format: "text",
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			RetentionDays: defaultRetentionDays,
		},
		Notification: NotificationConfig{
			Enabled:    true,
			ViewBuffer: notification.DefaultViewBuffer,
		},
		Serve: ServeConfig{
			Addr: DefaultServeAddr,
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the embedded sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes and fills unset fields with defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Endpoint.URL == "" {
		c.Endpoint.URL = DefaultEndpoint
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.File != "" {
		c.Logging.File = ExpandPath(c.Logging.File)
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
}

// save writes the embedded sample configuration to the specified path
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging.format: %q (must be 'text' or 'json')", c.Logging.Format)
	}

	if err := utils.ValidateEndpoint(c.Endpoint.URL); err != nil {
		return fmt.Errorf("invalid endpoint.url: %q: %w", c.Endpoint.URL, err)
	}

	if c.Endpoint.Timeout != "" {
		d, err := time.ParseDuration(c.Endpoint.Timeout)
		if err != nil {
			return fmt.Errorf("invalid duration for endpoint.timeout: %q", c.Endpoint.Timeout)
		}
		if d <= 0 {
			return fmt.Errorf("endpoint.timeout must be positive, got %q", c.Endpoint.Timeout)
		}
	}

	if c.Serve.Latency != "" {
		if _, err := time.ParseDuration(c.Serve.Latency); err != nil {
			return fmt.Errorf("invalid duration for serve.latency: %q", c.Serve.Latency)
		}
	}

	if c.Notification.ViewBuffer < 0 {
		return fmt.Errorf("notification.view_buffer must not be negative, got %d", c.Notification.ViewBuffer)
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(endpoint, outputFormat string) {
	if endpoint != "" {
		c.Endpoint.URL = endpoint
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// GetEndpointTimeout returns the per-request timeout.
// Returns 30 seconds if not configured or if parsing fails.
func (c *Config) GetEndpointTimeout() time.Duration {
	if c.Endpoint.Timeout == "" {
		return defaultTimeout
	}
	d, err := time.ParseDuration(c.Endpoint.Timeout)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

// IsSpeculativeUpdatesEnabled returns true unless reconcile.speculative_updates is explicitly false.
func (c *Config) IsSpeculativeUpdatesEnabled() bool {
	if c.Reconcile.SpeculativeUpdates == nil {
		return true
	}
	return *c.Reconcile.SpeculativeUpdates
}

// IsNewestFirst returns true unless ui.newest_first is explicitly false.
func (c *Config) IsNewestFirst() bool {
	if c.UI.NewestFirst == nil {
		return true
	}
	return *c.UI.NewestFirst
}

// IsAnalyticsEnabled returns true if analytics is enabled in config
func (c *Config) IsAnalyticsEnabled() bool {
	return c.Analytics.Enabled
}

// GetAnalyticsRetentionDays returns the analytics retention period in days.
// Returns 365 (default) if not configured.
func (c *Config) GetAnalyticsRetentionDays() int {
	if c.Analytics.RetentionDays <= 0 {
		return defaultRetentionDays
	}
	return c.Analytics.RetentionDays
}

// GetAnalyticsPath returns the path of the mutation journal database.
func (c *Config) GetAnalyticsPath() string {
	return filepath.Join(GetDataDir(), "analytics.db")
}

// GetServeLatency returns the artificial latency for the development server.
func (c *Config) GetServeLatency() time.Duration {
	if c.Serve.Latency == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Serve.Latency)
	if err != nil {
		return 0
	}
	return d
}

// NotificationSettings converts the notification section to the manager configuration.
func (c *Config) NotificationSettings() *notification.Config {
	nc := notification.DefaultConfig()
	nc.Enabled = c.Notification.Enabled
	if c.Notification.ViewBuffer > 0 {
		nc.ViewChannel.Buffer = c.Notification.ViewBuffer
	}
	nc.ViewChannel.OnSettled = c.Notification.OnSettled
	nc.LogNotification.OnSettled = c.Notification.OnSettled
	return nc
}

// DefaultPath returns the config file location under the XDG config directory.
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "todoq")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "todoq")
	}
	return filepath.Join(home, fallbackPath, "todoq")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
