package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/appmenu/internal/dbus"
)

// PlainFormatter formats results as human-readable text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// templateData provides data for custom templates.
type templateData struct {
	Index    int
	WindowID uint32
}

// FormatWindows writes one line per window.
func (f *PlainFormatter) FormatWindows(w io.Writer, windows WindowList) error {
	if windows.Count == 0 {
		_, err := fmt.Fprintln(w, "no windows registered")
		return err
	}

	for i, id := range windows.Windows {
		if err := f.formatWindow(w, i+1, id); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatWindow(w io.Writer, index int, id uint32) error {
	if f.template != nil {
		var sb strings.Builder
		if err := f.template.Execute(&sb, templateData{Index: index, WindowID: id}); err == nil {
			_, err := fmt.Fprintln(w, sb.String())
			return err
		}
	}

	var sb strings.Builder
	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}
	sb.WriteString(fmt.Sprintf("window %d (0x%x)", id, id))

	_, err := fmt.Fprintln(w, sb.String())
	return err
}

// FormatMenu writes the service and path, showing "-" for empty values.
func (f *PlainFormatter) FormatMenu(w io.Writer, menu MenuInfo) error {
	_, err := fmt.Fprintf(w, "window %d: service=%s path=%s\n",
		menu.WindowID, orDash(menu.Service), orDash(menu.MenuObjectPath))
	return err
}

// FormatStatus writes a short status summary.
func (f *PlainFormatter) FormatStatus(w io.Writer, status *dbus.Status) error {
	if !status.Running {
		_, err := fmt.Fprintf(w, "%s is not running\n", dbus.RegistrarBusName)
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s is running (owner %s)\n", dbus.RegistrarBusName, status.Owner))
	sb.WriteString(fmt.Sprintf("  windows: %d\n", status.WindowCount))
	if status.HeartbeatAt != nil {
		sb.WriteString(fmt.Sprintf("  heartbeat: %s (%s)\n", status.Heartbeat, humanize.Time(*status.HeartbeatAt)))
	}
	_, err := w.Write([]byte(sb.String()))
	return err
}

// FormatEvent writes one line per signal.
func (f *PlainFormatter) FormatEvent(w io.Writer, event dbus.Event) error {
	var err error
	switch event.Kind {
	case dbus.EventHeartbeat:
		_, err = fmt.Fprintf(w, "%s heartbeat %s status=%s\n",
			event.Received.Local().Format(time.TimeOnly), orDash(event.Sender), event.Status)
	default:
		_, err = fmt.Fprintf(w, "%s %-5s %s\n", EventClock(event), event.Level, event.Message)
	}
	return err
}

// EventClock returns the wall-clock time of an event. Log signals carry
// the registrar's timestamp; anything unparsable falls back to the
// receive time.
func EventClock(event dbus.Event) string {
	if event.Time != "" {
		if t, err := time.Parse(time.RFC3339, event.Time); err == nil {
			return t.Local().Format(time.TimeOnly)
		}
	}
	return event.Received.Local().Format(time.TimeOnly)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
