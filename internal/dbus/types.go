package dbus

import (
	"time"
)

const (
	// RegistrarInterface is the registrar interface name.
	RegistrarInterface = "com.canonical.AppMenu.Registrar"
	// RegistrarPath is the registrar object path.
	RegistrarPath = "/com/canonical/AppMenu/Registrar"
	// RegistrarBusName is the well-known bus name to claim.
	RegistrarBusName = "com.canonical.AppMenu.Registrar"

	// DBusMenuInterface is the interface clients export their menus on.
	DBusMenuInterface = "com.canonical.dbusmenu"

	introspectableInterface = "org.freedesktop.DBus.Introspectable"
)

// Signal member names.
const (
	SignalLog            = "Log"
	SignalServiceStarted = "ServiceStarted"
)

// Bus-daemon signals the lifecycle manager listens for.
const (
	nameLostSignal         = "org.freedesktop.DBus.NameLost"
	nameOwnerChangedSignal = "org.freedesktop.DBus.NameOwnerChanged"
)

// Defaults for the heartbeat signal.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHeartbeatStatus   = "running"
)

// BusState is the ownership state of the registrar's well-known name.
type BusState int

const (
	// StateUnowned means no connection is held.
	StateUnowned BusState = iota
	// StateExporting means the object is exported and the name is requested.
	StateExporting
	// StateOwned means the name is owned and the heartbeat is scheduled.
	StateOwned
	// StateNameLost means the name was refused or taken away.
	StateNameLost
)

// String returns the string representation of the state.
func (s BusState) String() string {
	switch s {
	case StateUnowned:
		return "unowned"
	case StateExporting:
		return "exporting"
	case StateOwned:
		return "owned"
	case StateNameLost:
		return "name-lost"
	default:
		return "unknown"
	}
}

// EventKind distinguishes registrar signals seen by a Monitor.
type EventKind int

const (
	// EventLog is a forwarded Log signal.
	EventLog EventKind = iota
	// EventHeartbeat is a ServiceStarted signal.
	EventHeartbeat
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventLog:
		return "log"
	case EventHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a decoded registrar signal.
type Event struct {
	Kind     EventKind `json:"kind" yaml:"kind"`
	Sender   string    `json:"sender" yaml:"sender"`
	Level    string    `json:"level,omitempty" yaml:"level,omitempty"`     // Log only
	Time     string    `json:"time,omitempty" yaml:"time,omitempty"`       // Log only, as sent by the registrar
	Message  string    `json:"message,omitempty" yaml:"message,omitempty"` // Log only
	Status   string    `json:"status,omitempty" yaml:"status,omitempty"`   // Heartbeat only
	Received time.Time `json:"received" yaml:"received"`
}

// Status describes the registrar as seen by a client.
type Status struct {
	Running     bool     `json:"running" yaml:"running"`
	Owner       string   `json:"owner,omitempty" yaml:"owner,omitempty"`
	WindowCount int      `json:"window_count" yaml:"window_count"`
	Windows     []uint32 `json:"windows,omitempty" yaml:"windows,omitempty"`

	// Set only when the caller waited for a ServiceStarted signal.
	Heartbeat   string     `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty" yaml:"heartbeat_at,omitempty"`
}
