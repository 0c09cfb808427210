package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for appmenud.
// Loaded from ~/.config/appmenu/appmenud.toml
type DaemonConfig struct {
	Heartbeat     HeartbeatConfig     `toml:"heartbeat"`
	Registry      RegistryConfig      `toml:"registry"`
	Log           LogConfig           `toml:"log"`
	Introspection IntrospectionConfig `toml:"introspection"`
	Bus           BusConfig           `toml:"bus"`
}

// HeartbeatConfig controls the periodic ServiceStarted signal.
type HeartbeatConfig struct {
	Interval Duration `toml:"interval"` // e.g. "5s"
	Status   string   `toml:"status"`   // Payload of ServiceStarted
}

// RegistryConfig controls registry housekeeping.
type RegistryConfig struct {
	CleanupOnDisconnect bool     `toml:"cleanup_on_disconnect"` // Drop windows of vanished clients
	ProbeMenus          bool     `toml:"probe_menus"`           // Query the client's dbusmenu after registering
	ProbeTimeout        Duration `toml:"probe_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level          string `toml:"level"`           // debug, info, warn, error
	ForwardSignals bool   `toml:"forward_signals"` // Mirror log records as Log signals
}

// IntrospectionConfig locates the introspection XML.
type IntrospectionConfig struct {
	XMLPath string `toml:"xml_path"` // Empty = embedded copy; relative to the executable
}

// BusConfig contains name ownership settings.
type BusConfig struct {
	Replace bool `toml:"replace"` // Take the name over from a running registrar
}

// LogLevel represents a configured log level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ValidLogLevels returns all valid log level values.
func ValidLogLevels() []LogLevel {
	return []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Heartbeat: HeartbeatConfig{
			Interval: Duration(5 * time.Second),
			Status:   "running",
		},
		Registry: RegistryConfig{
			CleanupOnDisconnect: true,
			ProbeMenus:          true,
			ProbeTimeout:        Duration(2 * time.Second),
		},
		Log: LogConfig{
			Level:          string(LogLevelInfo),
			ForwardSignals: true,
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() string {
	return filepath.Join(configHome(), "appmenu", "appmenud.toml")
}

// LoadDaemonConfig loads the daemon configuration from path, or from
// DaemonConfigPath when path is empty. A missing file yields the defaults.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		path = DaemonConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig writes config to path atomically.
func SaveDaemonConfig(path string, config *DaemonConfig) error {
	if path == "" {
		path = DaemonConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	interval := c.Heartbeat.Interval.Duration()
	if interval < 100*time.Millisecond || interval > time.Hour {
		return fmt.Errorf("heartbeat interval must be between 100ms and 1h, got %s", interval)
	}
	if strings.TrimSpace(c.Heartbeat.Status) == "" {
		return fmt.Errorf("heartbeat status must not be empty")
	}

	if c.Registry.ProbeTimeout.Duration() <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.Registry.ProbeTimeout.Duration())
	}

	validLevel := false
	for _, l := range ValidLogLevels() {
		if strings.EqualFold(c.Log.Level, string(l)) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.Log.Level, ValidLogLevels())
	}

	return nil
}

// IntrospectionPath returns the configured XML path with ~ expanded.
func (c *DaemonConfig) IntrospectionPath() string {
	return expandPath(c.Introspection.XMLPath)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
