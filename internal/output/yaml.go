package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/appmenu/internal/dbus"
)

// YAMLFormatter formats results as YAML documents.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// FormatWindows writes the window list.
func (f *YAMLFormatter) FormatWindows(w io.Writer, windows WindowList) error {
	return f.encode(w, windows)
}

// FormatMenu writes the menu location.
func (f *YAMLFormatter) FormatMenu(w io.Writer, menu MenuInfo) error {
	return f.encode(w, menu)
}

// FormatEvent writes the event as its own YAML document.
func (f *YAMLFormatter) FormatEvent(w io.Writer, event dbus.Event) error {
	if _, err := fmt.Fprintln(w, "---"); err != nil {
		return err
	}
	return f.encode(w, event)
}

// FormatStatus writes the status.
func (f *YAMLFormatter) FormatStatus(w io.Writer, status *dbus.Status) error {
	return f.encode(w, status)
}
