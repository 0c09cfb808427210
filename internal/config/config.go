// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultOutputFormat  = "plain"
	DefaultClientTimeout = 5 * time.Second
)

// Config represents the appmenu CLI configuration.
type Config struct {
	Output    OutputConfig    `toml:"output"`
	Client    ClientConfig    `toml:"client"`
	Clipboard ClipboardConfig `toml:"clipboard"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format string `toml:"format"` // plain, ids, json, yaml
}

// ClientConfig holds D-Bus client options.
type ClientConfig struct {
	Timeout Duration `toml:"timeout"` // Per-call timeout
}

// ClipboardConfig holds clipboard settings (monitor TUI only).
type ClipboardConfig struct {
	Command string `toml:"command"` // Auto-detected if empty
}

// ValidOutputFormats returns the accepted output format names.
func ValidOutputFormats() []string {
	return []string{"plain", "ids", "json", "yaml"}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: DefaultOutputFormat,
		},
		Client: ClientConfig{
			Timeout: Duration(DefaultClientTimeout),
		},
		Clipboard: ClipboardConfig{
			Command: "", // Auto-detect
		},
	}
}

// configHome returns XDG_CONFIG_HOME, falling back to ~/.config.
func configHome() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return dir
}

// ConfigPath returns the path to the CLI config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	return filepath.Join(configHome(), "appmenu", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	valid := false
	for _, f := range ValidOutputFormats() {
		if c.Output.Format == f {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid output format %q, must be one of: %v", c.Output.Format, ValidOutputFormats())
	}

	if c.Client.Timeout.Duration() <= 0 {
		return fmt.Errorf("client timeout must be positive, got %s", c.Client.Timeout.Duration())
	}
	return nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
