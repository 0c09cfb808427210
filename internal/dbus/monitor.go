package dbus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// EventHandler is called for every registrar signal a Monitor sees.
type EventHandler func(event Event)

// Monitor passively observes the registrar's Log and ServiceStarted signals
// without claiming any name.
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onEvent EventHandler
	signals chan *dbus.Signal
	done    chan struct{}
	match   []dbus.MatchOption
}

// NewMonitor creates a monitor on conn.
func NewMonitor(conn *dbus.Conn, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		conn:   conn,
		logger: logger,
	}
}

// SetEventHandler sets the callback for received events.
func (m *Monitor) SetEventHandler(handler EventHandler) {
	m.onEvent = handler
}

// Start subscribes to the registrar's signals.
func (m *Monitor) Start() error {
	if m.done != nil {
		return fmt.Errorf("monitor already running")
	}

	m.match = []dbus.MatchOption{
		dbus.WithMatchObjectPath(RegistrarPath),
		dbus.WithMatchInterface(RegistrarInterface),
	}
	if err := m.conn.AddMatchSignal(m.match...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}

	m.signals = make(chan *dbus.Signal, 64)
	m.done = make(chan struct{})
	m.conn.Signal(m.signals)

	m.logger.Debug("started registrar monitor", "path", RegistrarPath)

	go m.processSignals(m.signals, m.done)
	return nil
}

func (m *Monitor) processSignals(signals <-chan *dbus.Signal, done <-chan struct{}) {
	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				return
			}
			event, ok := ParseSignal(sig)
			if !ok {
				continue
			}
			if m.onEvent != nil {
				m.onEvent(event)
			}
		case <-done:
			return
		}
	}
}

// ParseSignal decodes a registrar signal. It reports false for anything
// else, including malformed bodies.
func ParseSignal(sig *dbus.Signal) (Event, bool) {
	if sig == nil || sig.Path != RegistrarPath {
		return Event{}, false
	}

	event := Event{Sender: sig.Sender, Received: time.Now()}

	switch sig.Name {
	case RegistrarInterface + "." + SignalLog:
		if len(sig.Body) != 3 {
			return Event{}, false
		}
		var ok bool
		if event.Level, ok = sig.Body[0].(string); !ok {
			return Event{}, false
		}
		if event.Time, ok = sig.Body[1].(string); !ok {
			return Event{}, false
		}
		if event.Message, ok = sig.Body[2].(string); !ok {
			return Event{}, false
		}
		event.Kind = EventLog

	case RegistrarInterface + "." + SignalServiceStarted:
		if len(sig.Body) != 1 {
			return Event{}, false
		}
		status, ok := sig.Body[0].(string)
		if !ok {
			return Event{}, false
		}
		event.Kind = EventHeartbeat
		event.Status = status

	default:
		return Event{}, false
	}

	return event, true
}

// Stop unsubscribes. The connection stays open.
func (m *Monitor) Stop() error {
	if m.done == nil {
		return nil
	}
	close(m.done)
	m.done = nil

	m.conn.RemoveSignal(m.signals)
	if err := m.conn.RemoveMatchSignal(m.match...); err != nil {
		return fmt.Errorf("failed to remove match rule: %w", err)
	}
	return nil
}
