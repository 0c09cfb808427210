package dbus

import (
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/appmenu/internal/logging"
	"github.com/jmylchreest/appmenu/internal/loop"
)

// Bus is the subset of *dbus.Conn the lifecycle manager needs.
type Bus interface {
	Export(v any, path dbus.ObjectPath, iface string) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
	Emit(path dbus.ObjectPath, name string, values ...any) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Names() []string
	Close() error
}

var _ Bus = (*dbus.Conn)(nil)

// DialFunc opens a new bus connection with the given options.
type DialFunc func(opts ...dbus.ConnOption) (Bus, error)

// SessionDialer opens a private session bus connection, so closing it on
// release does not affect other users of the shared connection.
func SessionDialer(opts ...dbus.ConnOption) (Bus, error) {
	conn, err := dbus.ConnectSessionBus(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn, nil
}

// ClientVanishedHandler is called on the loop when a bus client disconnects.
type ClientVanishedHandler func(uniqueName string)

// BusOptions configures a BusManager.
type BusOptions struct {
	Dial              DialFunc
	IntrospectionPath string
	HeartbeatInterval time.Duration
	HeartbeatStatus   string
	ReplaceExisting   bool
}

// BusManager owns the registrar's well-known name. Every method except
// ForwardLog must be called on the event loop.
type BusManager struct {
	loop   *loop.Loop
	server *RegistrarServer
	log    *logging.Sink
	opts   BusOptions

	conn        Bus
	state       BusState
	busID       uint32
	lastBusID   uint32
	heartbeatID loop.TimerID
	session     string

	signals   chan *dbus.Signal
	stopPump  chan struct{}
	matches   [][]dbus.MatchOption
	onVanish  ClientVanishedHandler
	heartbeat time.Duration
	status    string
}

// NewBusManager creates a BusManager exporting server.
func NewBusManager(l *loop.Loop, server *RegistrarServer, log *logging.Sink, opts BusOptions) *BusManager {
	if log == nil {
		log = logging.New(nil)
	}
	if opts.Dial == nil {
		opts.Dial = SessionDialer
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.HeartbeatStatus == "" {
		opts.HeartbeatStatus = DefaultHeartbeatStatus
	}
	return &BusManager{
		loop:      l,
		server:    server,
		log:       log,
		opts:      opts,
		heartbeat: opts.HeartbeatInterval,
		status:    opts.HeartbeatStatus,
	}
}

// SetClientVanishedHandler sets the handler for disconnected clients. It
// takes effect on the next Acquire.
func (m *BusManager) SetClientVanishedHandler(handler ClientVanishedHandler) {
	m.onVanish = handler
}

// Acquire releases any previous ownership, connects to the bus, exports the
// registrar and requests its well-known name. Connection and export
// failures are logged and leave the manager unowned; only a THROW-level
// failure is returned.
func (m *BusManager) Acquire() error {
	m.Release()

	node, err := LoadIntrospection(ResolveIntrospectionPath(m.opts.IntrospectionPath))
	if err != nil {
		return m.log.Throw("failed to load introspection data", "error", err)
	}

	conn, err := m.opts.Dial(dbus.WithIncomingInterceptor(m.server.order.intercept))
	if err != nil {
		m.log.Error("bus connection failed", "error", err)
		return nil
	}

	m.conn = conn
	m.busID = m.nextBusID()
	m.session = ulid.Make().String()

	if err := m.export(node); err != nil {
		m.log.Error("failed to export registrar", "session", m.session, "error", err)
		m.Release()
		return nil
	}
	m.server.order.enable()
	m.state = StateExporting
	m.log.Info("bus acquired", "session", m.session, "bus_id", m.busID, "path", RegistrarPath)

	m.subscribe()

	flags := dbus.NameFlagDoNotQueue | dbus.NameFlagAllowReplacement
	if m.opts.ReplaceExisting {
		flags |= dbus.NameFlagReplaceExisting
	}
	reply, err := conn.RequestName(RegistrarBusName, flags)
	if err != nil {
		m.log.Error("failed to request bus name", "session", m.session, "name", RegistrarBusName, "error", err)
		m.nameLost()
		return nil
	}
	if reply != dbus.RequestNameReplyPrimaryOwner && reply != dbus.RequestNameReplyAlreadyOwner {
		m.nameLost()
		return nil
	}

	m.nameAcquired()
	return nil
}

// Release cancels the heartbeat, gives up the name and closes the
// connection. It is safe to call at any time, repeatedly.
func (m *BusManager) Release() {
	if m.busID == 0 && m.conn == nil {
		return
	}

	m.stopHeartbeat()
	m.unsubscribe()

	if m.conn != nil {
		if m.state == StateOwned {
			if _, err := m.conn.ReleaseName(RegistrarBusName); err != nil {
				m.log.Warn("failed to release bus name", "session", m.session, "error", err)
			}
		}
		m.unexport()
		if err := m.conn.Close(); err != nil {
			m.log.Debug("failed to close bus connection", "error", err)
		}
	}

	m.log.Info("bus released", "session", m.session, "bus_id", m.busID)

	m.conn = nil
	m.busID = 0
	m.session = ""
	m.state = StateUnowned
}

// IsAcquired reports whether the name is owned and the heartbeat running.
func (m *BusManager) IsAcquired() bool {
	return m.busID != 0 && m.heartbeatID != 0
}

// State returns the current ownership state.
func (m *BusManager) State() BusState {
	return m.state
}

// BusID returns the current ownership id, zero when unowned.
func (m *BusManager) BusID() uint32 {
	return m.busID
}

// HeartbeatID returns the heartbeat timer id, zero when not scheduled.
func (m *BusManager) HeartbeatID() loop.TimerID {
	return m.heartbeatID
}

// Session returns the ULID of the current acquisition.
func (m *BusManager) Session() string {
	return m.session
}

// SetHeartbeat changes the heartbeat period and status. A running heartbeat
// is rescheduled with the new period.
func (m *BusManager) SetHeartbeat(interval time.Duration, status string) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if status == "" {
		status = DefaultHeartbeatStatus
	}

	changed := interval != m.heartbeat
	m.heartbeat = interval
	m.status = status

	if changed && m.heartbeatID != 0 {
		m.stopHeartbeat()
		m.startHeartbeat()
		m.log.Info("heartbeat rescheduled", "interval", interval)
	}
}

// ForwardLog implements logging.Forwarder. It may be called from any
// goroutine; the Log signal is emitted from the loop and only while the
// name is owned.
func (m *BusManager) ForwardLog(level logging.Level, at time.Time, message string) {
	m.loop.Post(func() {
		if !m.IsAcquired() {
			return
		}
		if err := m.EmitLog(level, at, message); err != nil {
			// Not through the sink, which would forward this failure again.
			m.log.Logger().Debug("failed to forward log record", "error", err)
		}
	})
}

func (m *BusManager) nextBusID() uint32 {
	m.lastBusID++
	if m.lastBusID == 0 {
		m.lastBusID++
	}
	return m.lastBusID
}

func (m *BusManager) export(node *introspect.Node) error {
	if err := m.conn.Export(m.server, RegistrarPath, RegistrarInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}
	if err := m.conn.Export(introspect.NewIntrospectable(node), RegistrarPath, introspectableInterface); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}
	return nil
}

// unexport removes the registrar object so no method is reachable.
func (m *BusManager) unexport() {
	m.server.order.reset()
	_ = m.conn.Export(nil, RegistrarPath, RegistrarInterface)
	_ = m.conn.Export(nil, RegistrarPath, introspectableInterface)
}

func (m *BusManager) nameAcquired() {
	m.state = StateOwned
	m.startHeartbeat()
	m.log.Info("name acquired", "session", m.session, "name", RegistrarBusName, "unique_name", m.uniqueName())

	if err := m.EmitServiceStarted(); err != nil {
		m.log.Warn("failed to emit heartbeat", "error", err)
	}
}

// nameLost leaves the manager inert: the connection and busID stay until
// Release, but the object is no longer exported.
func (m *BusManager) nameLost() {
	m.stopHeartbeat()
	m.unexport()
	m.state = StateNameLost
	m.log.Error("name lost", "session", m.session, "name", RegistrarBusName)
}

func (m *BusManager) startHeartbeat() {
	m.heartbeatID = m.loop.AddTimeout(m.heartbeat, func() bool {
		if err := m.EmitServiceStarted(); err != nil {
			m.log.Warn("failed to emit heartbeat", "error", err)
		}
		return true
	})
}

func (m *BusManager) stopHeartbeat() {
	if m.heartbeatID != 0 {
		m.loop.RemoveTimeout(m.heartbeatID)
		m.heartbeatID = 0
	}
}

func (m *BusManager) uniqueName() string {
	if names := m.conn.Names(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// subscribe routes bus daemon signals into the loop. Signals queued before
// a later Acquire carry a stale bus id and are dropped.
func (m *BusManager) subscribe() {
	m.matches = [][]dbus.MatchOption{{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameLost"),
		dbus.WithMatchArg(0, RegistrarBusName),
	}}
	if m.onVanish != nil {
		m.matches = append(m.matches, []dbus.MatchOption{
			dbus.WithMatchSender("org.freedesktop.DBus"),
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
		})
	}
	for _, match := range m.matches {
		if err := m.conn.AddMatchSignal(match...); err != nil {
			m.log.Warn("failed to add signal match", "session", m.session, "error", err)
		}
	}

	m.signals = make(chan *dbus.Signal, 32)
	m.stopPump = make(chan struct{})
	m.conn.Signal(m.signals)

	busID := m.busID
	signals, stop := m.signals, m.stopPump
	go func() {
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				m.loop.Post(func() { m.handleSignal(busID, sig) })
			case <-stop:
				return
			}
		}
	}()
}

func (m *BusManager) unsubscribe() {
	if m.stopPump == nil {
		return
	}
	close(m.stopPump)
	m.stopPump = nil

	if m.conn != nil {
		m.conn.RemoveSignal(m.signals)
		for _, match := range m.matches {
			_ = m.conn.RemoveMatchSignal(match...)
		}
	}
	m.signals = nil
	m.matches = nil
}

func (m *BusManager) handleSignal(busID uint32, sig *dbus.Signal) {
	if busID != m.busID || sig == nil {
		return
	}

	switch sig.Name {
	case nameLostSignal:
		if len(sig.Body) < 1 {
			return
		}
		if name, _ := sig.Body[0].(string); name == RegistrarBusName && m.state == StateOwned {
			m.nameLost()
		}

	case nameOwnerChangedSignal:
		if m.onVanish == nil || len(sig.Body) < 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		newOwner, _ := sig.Body[2].(string)
		if strings.HasPrefix(name, ":") && newOwner == "" {
			m.onVanish(name)
		}
	}
}
