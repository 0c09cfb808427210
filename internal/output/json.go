package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/appmenu/internal/dbus"
)

// JSONFormatter formats results as indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatWindows writes the window list as a JSON object.
func (f *JSONFormatter) FormatWindows(w io.Writer, windows WindowList) error {
	return f.encode(w, windows)
}

// FormatMenu writes the menu location as a JSON object.
func (f *JSONFormatter) FormatMenu(w io.Writer, menu MenuInfo) error {
	return f.encode(w, menu)
}

// FormatEvent writes the event as a single-line JSON object, so a stream
// of events is newline-delimited JSON.
func (f *JSONFormatter) FormatEvent(w io.Writer, event dbus.Event) error {
	return json.NewEncoder(w).Encode(event)
}

// FormatStatus writes the status as a JSON object.
func (f *JSONFormatter) FormatStatus(w io.Writer, status *dbus.Status) error {
	return f.encode(w, status)
}
