// Package output provides output formatters for registrar query results.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/appmenu/internal/dbus"
)

// MenuInfo is the answer to a GetMenuForWindow query.
type MenuInfo struct {
	WindowID       uint32 `json:"window_id" yaml:"window_id"`
	Service        string `json:"service" yaml:"service"`
	MenuObjectPath string `json:"menu_object_path" yaml:"menu_object_path"`
}

// WindowList is the answer to a GetWindowList query.
type WindowList struct {
	Count   int      `json:"count" yaml:"count"`
	Windows []uint32 `json:"windows" yaml:"windows"`
}

// NewWindowList wraps ids, never with a nil slice.
func NewWindowList(ids []uint32) WindowList {
	if ids == nil {
		ids = []uint32{}
	}
	return WindowList{Count: len(ids), Windows: ids}
}

// Formatter formats registrar results for output.
type Formatter interface {
	// FormatWindows writes the registered window ids.
	FormatWindows(w io.Writer, windows WindowList) error
	// FormatMenu writes a window's menu location.
	FormatMenu(w io.Writer, menu MenuInfo) error
	// FormatStatus writes the registrar status.
	FormatStatus(w io.Writer, status *dbus.Status) error
	// FormatEvent writes one monitored registrar signal.
	FormatEvent(w io.Writer, event dbus.Event) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatIDs   FormatType = "ids"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatPlain, "":
		return NewPlainFormatter(opts), nil
	case FormatIDs:
		return NewIDsFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string // Custom per-window template for plain format
	ShowIndex bool   // Show 1-based index prefix
}

// DefaultFormatterOptions returns sensible defaults for plain output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: false,
	}
}
