package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/appmenu/internal/dbus"
)

// IDsFormatter outputs bare values, one per line.
// Useful for piping to other commands (e.g., xargs appmenu get).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// FormatWindows writes window ids, one per line.
func (f *IDsFormatter) FormatWindows(w io.Writer, windows WindowList) error {
	for _, id := range windows.Windows {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// FormatMenu writes the service and path separated by a space.
func (f *IDsFormatter) FormatMenu(w io.Writer, menu MenuInfo) error {
	_, err := fmt.Fprintf(w, "%s %s\n", menu.Service, menu.MenuObjectPath)
	return err
}

// FormatEvent writes the log message or the heartbeat status.
func (f *IDsFormatter) FormatEvent(w io.Writer, event dbus.Event) error {
	value := event.Message
	if event.Kind == dbus.EventHeartbeat {
		value = event.Status
	}
	_, err := fmt.Fprintln(w, value)
	return err
}

// FormatStatus writes the owner's unique name, or nothing when not running.
func (f *IDsFormatter) FormatStatus(w io.Writer, status *dbus.Status) error {
	if !status.Running {
		return nil
	}
	_, err := fmt.Fprintln(w, status.Owner)
	return err
}
