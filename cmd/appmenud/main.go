// Package main is the entry point for the appmenud registrar daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/appmenu/internal/config"
	"github.com/jmylchreest/appmenu/internal/daemon"
	"github.com/jmylchreest/appmenu/internal/logging"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/appmenu/appmenud.toml)")
	debug := flag.Bool("debug", false, "Force debug logging regardless of the configured level")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("appmenud version", version)
		os.Exit(0)
	}

	// The level is adjusted on config reload.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == "" {
		path = config.DaemonConfigPath()
	}

	cfg, err := config.LoadDaemonConfig(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("starting appmenud", "version", version, "config", path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg, daemon.Options{
		ConfigPath: path,
		Logger:     logger,
		Level:      level,
		ForceDebug: *debug,
	})

	if err := d.Run(ctx); err != nil {
		var fatal *logging.FatalError
		if errors.As(err, &fatal) {
			logger.Error("registrar stopped on fatal error", "error", err)
		} else {
			logger.Error("registrar stopped", "error", err)
		}
		stop()
		os.Exit(1)
	}

	logger.Info("appmenud stopped")
}
