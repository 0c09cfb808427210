package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/appmenu/internal/dbus"
)

func testWindows() WindowList {
	return NewWindowList([]uint32{42, 255})
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []FormatType{FormatPlain, FormatIDs, FormatJSON, FormatYAML, ""} {
		f, err := NewFormatter(format, DefaultFormatterOptions())
		require.NoError(t, err, format)
		assert.NotNil(t, f)
	}

	_, err := NewFormatter("xml", DefaultFormatterOptions())
	assert.Error(t, err)
}

func TestNewWindowListNeverNil(t *testing.T) {
	list := NewWindowList(nil)
	assert.NotNil(t, list.Windows)
	assert.Equal(t, 0, list.Count)
}

func TestPlainFormatter_Windows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).FormatWindows(&buf, testWindows()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "window 42 (0x2a)", lines[0])
	assert.Equal(t, "window 255 (0xff)", lines[1])
}

func TestPlainFormatter_Index(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultFormatterOptions()
	opts.ShowIndex = true
	require.NoError(t, NewPlainFormatter(opts).FormatWindows(&buf, testWindows()))

	assert.True(t, strings.HasPrefix(buf.String(), "[1] window 42"))
	assert.Contains(t, buf.String(), "[2] window 255")
}

func TestPlainFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).FormatWindows(&buf, NewWindowList(nil)))
	assert.Equal(t, "no windows registered\n", buf.String())
}

func TestPlainFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index}}:{{.WindowID}}"
	require.NoError(t, NewPlainFormatter(opts).FormatWindows(&buf, testWindows()))
	assert.Equal(t, "1:42\n2:255\n", buf.String())
}

func TestPlainFormatter_InvalidTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultFormatterOptions()
	opts.Template = "{{.Broken"
	require.NoError(t, NewPlainFormatter(opts).FormatWindows(&buf, testWindows()))
	assert.Contains(t, buf.String(), "window 42")
}

func TestPlainFormatter_Menu(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(DefaultFormatterOptions())

	require.NoError(t, f.FormatMenu(&buf, MenuInfo{WindowID: 7}))
	assert.Equal(t, "window 7: service=- path=-\n", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatMenu(&buf, MenuInfo{WindowID: 7, Service: ":1.2", MenuObjectPath: "/menu/7"}))
	assert.Equal(t, "window 7: service=:1.2 path=/menu/7\n", buf.String())
}

func TestPlainFormatter_Status(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(DefaultFormatterOptions())

	require.NoError(t, f.FormatStatus(&buf, &dbus.Status{}))
	assert.Contains(t, buf.String(), "is not running")

	buf.Reset()
	require.NoError(t, f.FormatStatus(&buf, &dbus.Status{Running: true, Owner: ":1.8", WindowCount: 3}))
	assert.Contains(t, buf.String(), "owner :1.8")
	assert.Contains(t, buf.String(), "windows: 3")
	assert.NotContains(t, buf.String(), "heartbeat")

	buf.Reset()
	at := time.Now().Add(-3 * time.Second)
	require.NoError(t, f.FormatStatus(&buf, &dbus.Status{Running: true, Owner: ":1.8", Heartbeat: "running", HeartbeatAt: &at}))
	assert.Contains(t, buf.String(), "heartbeat: running (3 seconds ago)")
}

func TestIDsFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewIDsFormatter()

	require.NoError(t, f.FormatWindows(&buf, testWindows()))
	assert.Equal(t, "42\n255\n", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatStatus(&buf, &dbus.Status{Running: false}))
	assert.Empty(t, buf.String())

	buf.Reset()
	require.NoError(t, f.FormatStatus(&buf, &dbus.Status{Running: true, Owner: ":1.8"}))
	assert.Equal(t, ":1.8\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter()

	require.NoError(t, f.FormatWindows(&buf, NewWindowList(nil)))
	assert.JSONEq(t, `{"count":0,"windows":[]}`, buf.String())

	buf.Reset()
	require.NoError(t, f.FormatStatus(&buf, &dbus.Status{Running: true, Owner: ":1.8", WindowCount: 1, Windows: []uint32{9}}))

	var decoded dbus.Status
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []uint32{9}, decoded.Windows)
	assert.Contains(t, buf.String(), `"window_count": 1`)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewYAMLFormatter()

	require.NoError(t, f.FormatWindows(&buf, testWindows()))

	var decoded WindowList
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, testWindows(), decoded)

	buf.Reset()
	require.NoError(t, f.FormatMenu(&buf, MenuInfo{WindowID: 3}))
	assert.Contains(t, buf.String(), "window_id: 3")
	assert.Contains(t, buf.String(), `service: ""`)
}

func testEvents() (dbus.Event, dbus.Event) {
	received := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	logEvent := dbus.Event{
		Kind:     dbus.EventLog,
		Sender:   ":1.4",
		Level:    "INFO",
		Time:     "not-a-time",
		Message:  "registered window 42",
		Received: received,
	}
	heartbeat := dbus.Event{
		Kind:     dbus.EventHeartbeat,
		Sender:   ":1.4",
		Status:   "running",
		Received: received,
	}
	return logEvent, heartbeat
}

func TestPlainFormatter_Event(t *testing.T) {
	logEvent, heartbeat := testEvents()
	f := NewPlainFormatter(DefaultFormatterOptions())
	clock := logEvent.Received.Local().Format(time.TimeOnly)

	var buf bytes.Buffer
	require.NoError(t, f.FormatEvent(&buf, logEvent))
	assert.Equal(t, clock+" INFO  registered window 42\n", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatEvent(&buf, heartbeat))
	assert.Equal(t, clock+" heartbeat :1.4 status=running\n", buf.String())
}

func TestEventClock_UsesRegistrarTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	event := dbus.Event{Time: at.Format(time.RFC3339), Received: at.Add(time.Hour)}
	assert.Equal(t, at.Local().Format(time.TimeOnly), EventClock(event))
}

func TestIDsFormatter_Event(t *testing.T) {
	logEvent, heartbeat := testEvents()
	f := NewIDsFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.FormatEvent(&buf, logEvent))
	require.NoError(t, f.FormatEvent(&buf, heartbeat))
	assert.Equal(t, "registered window 42\nrunning\n", buf.String())
}

func TestJSONFormatter_EventIsOneLine(t *testing.T) {
	logEvent, heartbeat := testEvents()
	f := NewJSONFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.FormatEvent(&buf, logEvent))
	require.NoError(t, f.FormatEvent(&buf, heartbeat))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"kind":"log"`)
	assert.Contains(t, lines[1], `"kind":"heartbeat"`)
	assert.NotContains(t, lines[1], `"message"`)
}

func TestYAMLFormatter_EventDocuments(t *testing.T) {
	logEvent, heartbeat := testEvents()
	f := NewYAMLFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.FormatEvent(&buf, logEvent))
	require.NoError(t, f.FormatEvent(&buf, heartbeat))

	assert.Equal(t, 2, strings.Count(buf.String(), "---\n"))
	assert.Contains(t, buf.String(), "kind: log")
	assert.Contains(t, buf.String(), "kind: heartbeat")
	assert.Contains(t, buf.String(), "status: running")
}
