package tui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/appmenu/internal/config"
	"github.com/jmylchreest/appmenu/internal/dbus"
)

type fakeSource struct {
	status    *dbus.Status
	statusErr error
	menuCalls []uint32
}

func (f *fakeSource) GetMenuForWindow(_ context.Context, windowID uint32) (string, string, error) {
	f.menuCalls = append(f.menuCalls, windowID)
	return "", "", nil
}

func (f *fakeSource) Status(context.Context) (*dbus.Status, error) {
	return f.status, f.statusErr
}

func runningStatus(ids ...uint32) *dbus.Status {
	return &dbus.Status{Running: true, Owner: ":1.4", WindowCount: len(ids), Windows: ids}
}

func newTestModel(t *testing.T, src *fakeSource) Model {
	t.Helper()
	m := New(config.DefaultConfig(), src, nil)
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_BeforeSize(t *testing.T) {
	m := New(nil, nil, nil)
	assert.Equal(t, "Initializing...", m.View())
}

func TestFetchStatus_PopulatesWindowList(t *testing.T) {
	src := &fakeSource{status: runningStatus(42, 255)}
	m := newTestModel(t, src)

	msg := m.fetchStatus()
	m = update(t, m, msg)

	assert.Len(t, m.list.Items(), 2)
	assert.Equal(t, "window 42 (0x2a)", m.list.Items()[0].(windowItem).Title())
	assert.Contains(t, m.View(), "registrar: running")
	assert.Contains(t, m.View(), "windows: 2")
}

func TestFetchStatus_NotRunning(t *testing.T) {
	m := newTestModel(t, &fakeSource{status: &dbus.Status{}})
	m = update(t, m, m.fetchStatus())

	assert.Empty(t, m.list.Items())
	assert.Contains(t, m.View(), "registrar: not running")
}

func TestFetchStatus_ErrorKeepsLastStatus(t *testing.T) {
	src := &fakeSource{status: runningStatus(7)}
	m := newTestModel(t, src)
	m = update(t, m, m.fetchStatus())

	src.statusErr = errors.New("bus gone")
	m = update(t, m, m.fetchStatus())

	assert.Len(t, m.list.Items(), 1)
	assert.Contains(t, m.View(), "registrar: bus gone")
}

func TestFetchStatus_NoSource(t *testing.T) {
	m := New(nil, nil, nil)
	msg, ok := m.fetchStatus().(registrarMsg)
	require.True(t, ok)
	assert.Error(t, msg.err)
}

func TestHeartbeatEvent(t *testing.T) {
	m := newTestModel(t, &fakeSource{status: runningStatus()})
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return received.Add(5 * time.Second) }

	assert.Contains(t, m.View(), "heartbeat: none seen")

	next, cmd := m.Update(eventMsg{event: dbus.Event{
		Kind:     dbus.EventHeartbeat,
		Sender:   ":1.4",
		Status:   "running",
		Received: received,
	}})
	m = next.(Model)

	assert.NotNil(t, cmd)
	assert.Equal(t, received, m.lastHeartbeat)
	assert.Empty(t, m.logLines, "heartbeats are not logged")
	assert.Contains(t, m.View(), `heartbeat: "running" from :1.4 5 seconds ago`)
}

func TestLogEventAppends(t *testing.T) {
	m := newTestModel(t, &fakeSource{status: runningStatus()})

	next, cmd := m.Update(eventMsg{event: dbus.Event{
		Kind:     dbus.EventLog,
		Level:    "WARN",
		Time:     time.Now().Format(time.RFC3339),
		Message:  "window 9 registered twice",
		Received: time.Now(),
	}})
	m = next.(Model)

	assert.NotNil(t, cmd)
	require.Len(t, m.logLines, 1)
	assert.Contains(t, stripANSI(m.logLines[0]), "WARN  window 9 registered twice")
	assert.Contains(t, m.View(), "window 9 registered twice")
}

func TestLogScrollbackBounded(t *testing.T) {
	m := newTestModel(t, &fakeSource{})
	for i := 0; i < maxLogLines+10; i++ {
		m.appendLog(fmt.Sprintf("line %d", i))
	}

	require.Len(t, m.logLines, maxLogLines)
	assert.Equal(t, "line 10", m.logLines[0])
}

func TestWaitForEvent(t *testing.T) {
	events := make(chan dbus.Event, 1)
	m := New(nil, nil, events)

	events <- dbus.Event{Kind: dbus.EventHeartbeat, Status: "running"}
	msg, ok := m.waitForEvent().(eventMsg)
	require.True(t, ok)
	assert.Equal(t, "running", msg.event.Status)

	close(events)
	assert.IsType(t, eventsClosedMsg{}, m.waitForEvent())

	assert.Nil(t, New(nil, nil, nil).waitForEvent())
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, &fakeSource{})
	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, &fakeSource{})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, ModeLog, m.mode)

	m = update(t, m, keyRunes("?"))
	assert.Equal(t, ModeHelp, m.mode)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeLog, m.mode, "help returns to the previous pane")
}

func TestFocusSwitch(t *testing.T) {
	m := newTestModel(t, &fakeSource{})
	assert.Equal(t, ModeWindows, m.mode)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ModeLog, m.mode)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ModeWindows, m.mode)
}

func TestEnterQueriesMenu(t *testing.T) {
	src := &fakeSource{status: runningStatus(42)}
	m := newTestModel(t, src)
	m = update(t, m, m.fetchStatus())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(menuMsg)
	require.True(t, ok)
	assert.Equal(t, []uint32{42}, src.menuCalls)

	_, cmd = m.Update(msg)
	require.NotNil(t, cmd)
	notice, ok := cmd().(noticeMsg)
	require.True(t, ok)
	assert.Equal(t, "window 42: service=- path=-", notice.text)
	assert.False(t, notice.isErr)
}

func TestEnterWithNoWindows(t *testing.T) {
	m := newTestModel(t, &fakeSource{status: runningStatus()})
	m = update(t, m, m.fetchStatus())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestClearAndFollowKeys(t *testing.T) {
	m := newTestModel(t, &fakeSource{})
	m.appendLog("one")
	m.appendLog("two")

	m = update(t, m, keyRunes("x"))
	assert.Empty(t, m.logLines)

	assert.True(t, m.follow)
	m = update(t, m, keyRunes("f"))
	assert.False(t, m.follow)
	assert.NotContains(t, m.View(), "(following)")
}

func TestNoticeLifecycle(t *testing.T) {
	m := newTestModel(t, &fakeSource{})

	next, cmd := m.Update(noticeMsg{text: "Copy failed: nope", isErr: true})
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Copy failed: nope")

	m = update(t, m, clearNoticeMsg{})
	assert.Empty(t, m.notice)
	assert.Contains(t, m.View(), "quit")
}

func TestEventsClosed(t *testing.T) {
	m := New(nil, nil, make(chan dbus.Event))
	next, cmd := m.Update(eventsClosedMsg{})
	m = next.(Model)

	assert.Nil(t, m.events)
	require.NotNil(t, cmd)
	notice := cmd().(noticeMsg)
	assert.True(t, notice.isErr)
}

func TestBuildKeybindBar_FitsWidth(t *testing.T) {
	m := New(nil, nil, nil)

	full := stripANSI(m.buildKeybindBar(0, "windows"))
	assert.Contains(t, full, "c copy id")

	narrow := stripANSI(m.buildKeybindBar(20, "windows"))
	assert.LessOrEqual(t, len(narrow), 20)
	assert.Contains(t, narrow, "q quit")
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "plain", stripANSI("\x1b[38;5;10mplain\x1b[0m"))
	assert.Equal(t, "text", stripANSI("text"))
}

func TestDetectClipboardCommand(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Clipboard.Command = "xclip -i"
	assert.Equal(t, "xclip -i", detectClipboardCommand(cfg))

	orig := lookPath
	defer func() { lookPath = orig }()

	lookPath = func(name string) (string, error) {
		if name == "xsel" {
			return "/usr/bin/xsel", nil
		}
		return "", errors.New("not found")
	}
	assert.Equal(t, "xsel --clipboard --input", detectClipboardCommand(nil))

	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	assert.Equal(t, "", detectClipboardCommand(nil))
	assert.Error(t, copyText("42", nil))
}
