package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/appmenu/internal/config"
	"github.com/jmylchreest/appmenu/internal/dbus"
	"github.com/jmylchreest/appmenu/internal/output"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		output     string
		timeout    time.Duration
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "appmenu",
	Short: "Client for the AppMenu registrar",
	Long: `appmenu talks to the com.canonical.AppMenu.Registrar service over the
session bus.

It lists and registers window menus, reports whether a registrar is
running, and follows the registrar's Log and ServiceStarted signals.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Flags override the config file
		if globalOpts.output != "" {
			cfg.Output.Format = globalOpts.output
		}
		if globalOpts.timeout > 0 {
			cfg.Client.Timeout = config.Duration(globalOpts.timeout)
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/appmenu/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.output, "output", "o", "",
		"Output format: plain, ids, json, yaml (default from config)")
	rootCmd.PersistentFlags().DurationVar(&globalOpts.timeout, "timeout", 0,
		"Per-call D-Bus timeout (default from config)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// getConfig returns the global config instance.
func getConfig() *config.Config {
	return cfg
}

// callContext bounds a single registrar call by the configured timeout.
func callContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, getConfig().Client.Timeout.Duration())
}

// registrarClient is the part of dbus.Client the commands use.
type registrarClient interface {
	RegisterWindow(ctx context.Context, windowID uint32, menuObjectPath string) error
	UnregisterWindow(ctx context.Context, windowID uint32) error
	GetMenuForWindow(ctx context.Context, windowID uint32) (string, string, error)
	GetWindowList(ctx context.Context) ([]uint32, error)
	Status(ctx context.Context) (*dbus.Status, error)
	Conn() *godbus.Conn
	Close() error
}

// connectClient is replaced in tests.
var connectClient = func() (registrarClient, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}
	return client, nil
}

// connect opens a private session bus connection for registrar calls.
func connect() (*dbus.Client, error) {
	client, err := dbus.ConnectClient()
	if err != nil {
		return nil, err
	}
	if names := client.Conn().Names(); len(names) > 0 {
		logger.Debug("connected to session bus", "unique_name", names[0])
	}
	return client, nil
}

// newFormatter builds the formatter for the effective output format.
func newFormatter(opts output.FormatterOptions) (output.Formatter, error) {
	return output.NewFormatter(output.FormatType(getConfig().Output.Format), opts)
}

// parseWindowID accepts decimal or 0x-prefixed hexadecimal ids. A leading
// zero does not select octal.
func parseWindowID(s string) (uint32, error) {
	base, digits := 10, s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}
	id, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: must be a 32-bit unsigned integer", s)
	}
	return uint32(id), nil
}
