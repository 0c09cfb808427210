package dbus

import (
	"fmt"
	"time"

	"github.com/jmylchreest/appmenu/internal/logging"
)

// EmitLog emits the Log signal with the record's level, RFC 3339 time and
// formatted message.
func (m *BusManager) EmitLog(level logging.Level, at time.Time, message string) error {
	if m.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := m.conn.Emit(RegistrarPath, RegistrarInterface+"."+SignalLog,
		level.String(), at.Format(time.RFC3339), message)
	if err != nil {
		return fmt.Errorf("failed to emit Log signal: %w", err)
	}
	return nil
}

// EmitServiceStarted emits the ServiceStarted heartbeat signal.
func (m *BusManager) EmitServiceStarted() error {
	if m.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := m.conn.Emit(RegistrarPath, RegistrarInterface+"."+SignalServiceStarted, m.status)
	if err != nil {
		return fmt.Errorf("failed to emit ServiceStarted signal: %w", err)
	}

	m.log.Logger().Debug("emitted ServiceStarted signal", "status", m.status)
	return nil
}
