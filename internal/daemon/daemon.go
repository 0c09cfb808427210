package daemon

import (
	"context"
	"log/slog"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/appmenu/internal/config"
	"github.com/jmylchreest/appmenu/internal/dbus"
	"github.com/jmylchreest/appmenu/internal/logging"
	"github.com/jmylchreest/appmenu/internal/loop"
	"github.com/jmylchreest/appmenu/internal/registry"
)

// Options configures a Daemon.
type Options struct {
	// ConfigPath is watched for hot reload. Empty disables watching.
	ConfigPath string
	// Logger receives all records. Nil uses slog.Default().
	Logger *slog.Logger
	// Level is the logger's level variable, adjusted on reload. May be nil.
	Level *slog.LevelVar
	// ForceDebug pins the level to debug regardless of the config.
	ForceDebug bool
	// Dial overrides the bus connection used for the registrar.
	Dial dbus.DialFunc
	// Inspector overrides the dbusmenu probe. Nil probes over the shared
	// session bus when enabled.
	Inspector registry.MenuInspector
}

// Daemon wires the registrar, its bus lifecycle and the config watcher
// around a single event loop.
type Daemon struct {
	opts   Options
	cfg    *config.DaemonConfig
	logger *slog.Logger

	loop      *loop.Loop
	sink      *logging.Sink
	registrar *registry.Registrar
	server    *dbus.RegistrarServer
	bus       *dbus.BusManager
	watcher   *ConfigWatcher
	inspector registry.MenuInspector

	fatalOnce sync.Once
	fatalErr  error
	fatalCh   chan struct{}
}

// New builds a Daemon from cfg.
func New(cfg *config.DaemonConfig, opts Options) *Daemon {
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Daemon{
		opts:      opts,
		cfg:       cfg,
		logger:    opts.Logger,
		loop:      loop.New(),
		sink:      logging.New(opts.Logger),
		inspector: opts.Inspector,
		fatalCh:   make(chan struct{}),
	}

	d.registrar = registry.NewRegistrar(d.sink)
	d.server = dbus.NewRegistrarServer(d.loop, d.registrar, d.sink)
	d.server.SetFatalHandler(d.fail)

	d.bus = dbus.NewBusManager(d.loop, d.server, d.sink, dbus.BusOptions{
		Dial:              opts.Dial,
		IntrospectionPath: cfg.IntrospectionPath(),
		HeartbeatInterval: cfg.Heartbeat.Interval.Duration(),
		HeartbeatStatus:   cfg.Heartbeat.Status,
		ReplaceExisting:   cfg.Bus.Replace,
	})
	d.bus.SetClientVanishedHandler(d.clientVanished)

	if opts.ConfigPath != "" {
		d.watcher = NewConfigWatcher(opts.ConfigPath, opts.Logger)
		d.watcher.SetReloadCallback(func(newConfig *config.DaemonConfig) {
			d.loop.Post(func() { d.applyConfig(newConfig) })
		})
	}

	return d
}

// Run acquires the bus and serves until ctx is cancelled or a request
// fails fatally. The name is released before Run returns. The returned
// error is the fatal error, if any.
func (d *Daemon) Run(ctx context.Context) error {
	d.setupProbe()
	d.applyLevel(d.cfg)
	d.applyForwarding(d.cfg)

	if d.watcher != nil {
		if err := d.watcher.Start(d.cfg); err != nil {
			d.logger.Warn("config hot reload disabled", "path", d.opts.ConfigPath, "error", err)
		} else {
			defer d.watcher.Stop()
		}
	}

	d.loop.Post(func() {
		if err := d.bus.Acquire(); err != nil {
			d.fail(err)
		}
	})

	go func() {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
		case <-d.fatalCh:
			d.logger.Error("fatal error, shutting down", "error", d.fatalErr)
		}
		_ = d.loop.Do(d.bus.Release)
		d.loop.Quit()
	}()

	if err := d.loop.Run(context.Background()); err != nil {
		return err
	}
	d.registrar.WaitProbes()

	return d.fatalErr
}

// Reload applies newConfig as the watcher would.
func (d *Daemon) Reload(newConfig *config.DaemonConfig) error {
	return d.loop.Do(func() { d.applyConfig(newConfig) })
}

// Status reports the bus state and registered window count.
func (d *Daemon) Status() (dbus.BusState, int, error) {
	var state dbus.BusState
	var count int
	err := d.loop.Do(func() {
		state = d.bus.State()
		count = len(d.registrar.Registrations())
	})
	return state, count, err
}

// fail records the first fatal error and triggers shutdown.
func (d *Daemon) fail(err error) {
	d.fatalOnce.Do(func() {
		d.fatalErr = err
		close(d.fatalCh)
	})
}

func (d *Daemon) setupProbe() {
	if d.inspector == nil && d.cfg.Registry.ProbeMenus {
		conn, err := godbus.SessionBus()
		if err != nil {
			d.logger.Warn("menu probing disabled", "error", err)
		} else {
			// Shared connection; left open on exit.
			d.inspector = dbus.NewMenuProbe(conn)
		}
	}
	d.applyProbe(d.cfg)
}

// clientVanished runs on the loop.
func (d *Daemon) clientVanished(uniqueName string) {
	if !d.cfg.Registry.CleanupOnDisconnect {
		return
	}
	d.registrar.ForgetSender(uniqueName)
}

// applyConfig runs on the loop.
func (d *Daemon) applyConfig(newConfig *config.DaemonConfig) {
	old := d.cfg
	d.cfg = newConfig

	d.applyLevel(newConfig)
	d.applyForwarding(newConfig)
	d.applyProbe(newConfig)

	if old.Heartbeat != newConfig.Heartbeat {
		d.bus.SetHeartbeat(newConfig.Heartbeat.Interval.Duration(), newConfig.Heartbeat.Status)
	}

	if old.Introspection != newConfig.Introspection || old.Bus != newConfig.Bus {
		d.logger.Info("bus settings changed, restart appmenud to apply them")
	}
}

func (d *Daemon) applyLevel(cfg *config.DaemonConfig) {
	if d.opts.Level == nil {
		return
	}
	if d.opts.ForceDebug {
		d.opts.Level.Set(slog.LevelDebug)
		return
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		d.logger.Warn("invalid log level, keeping current", "level", cfg.Log.Level)
		return
	}
	d.opts.Level.Set(level.SlogLevel())
}

func (d *Daemon) applyForwarding(cfg *config.DaemonConfig) {
	if cfg.Log.ForwardSignals {
		d.sink.SetForwarder(d.bus)
	} else {
		d.sink.SetForwarder(nil)
	}
}

func (d *Daemon) applyProbe(cfg *config.DaemonConfig) {
	if cfg.Registry.ProbeMenus && d.inspector != nil {
		d.registrar.SetInspector(d.inspector, cfg.Registry.ProbeTimeout.Duration())
	} else {
		d.registrar.SetInspector(nil, 0)
	}
}
