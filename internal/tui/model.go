// Package tui provides the BubbleTea-based registrar monitor.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/appmenu/internal/config"
	"github.com/jmylchreest/appmenu/internal/dbus"
	"github.com/jmylchreest/appmenu/internal/output"
)

// maxLogLines bounds the log pane's scrollback.
const maxLogLines = 1000

// Source is the registrar as seen by the monitor.
type Source interface {
	GetMenuForWindow(ctx context.Context, windowID uint32) (string, string, error)
	Status(ctx context.Context) (*dbus.Status, error)
}

// Mode represents the focused pane.
type Mode int

const (
	ModeWindows Mode = iota
	ModeLog
	ModeHelp
)

// Model is the monitor TUI model.
type Model struct {
	cfg    *config.Config
	source Source
	events <-chan dbus.Event

	mode     Mode
	lastMode Mode

	// Components
	list     list.Model
	viewport viewport.Model
	help     help.Model

	// Registrar state
	status          *dbus.Status
	statusErr       error
	lastHeartbeat   time.Time
	heartbeatStatus string
	heartbeatSender string

	logLines []string
	follow   bool
	width    int
	height   int
	ready    bool

	keys KeyMap
	now  func() time.Time

	// Status bar message
	notice    string
	noticeErr bool
}

// windowItem wraps a window id for the list component.
type windowItem struct {
	id uint32
}

func (i windowItem) Title() string {
	return fmt.Sprintf("window %d (0x%x)", i.id, i.id)
}

func (i windowItem) Description() string { return "" }

func (i windowItem) FilterValue() string {
	return fmt.Sprintf("%d", i.id)
}

// New creates a monitor model. events may be nil.
func New(cfg *config.Config, source Source, events <-chan dbus.Event) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Registered Windows"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		cfg:      cfg,
		source:   source,
		events:   events,
		mode:     ModeWindows,
		list:     l,
		viewport: viewport.New(0, 0),
		help:     help.New(),
		follow:   true,
		keys:     DefaultKeyMap(),
		now:      time.Now,
	}
}

// Messages
type (
	registrarMsg struct {
		status *dbus.Status
		err    error
	}
	eventMsg struct {
		event dbus.Event
	}
	eventsClosedMsg struct{}
	menuMsg         struct {
		menu output.MenuInfo
		err  error
	}
	tickMsg   time.Time
	noticeMsg struct {
		text  string
		isErr bool
	}
	clearNoticeMsg struct{}
	copyResultMsg  struct {
		err error
	}
)

// Init starts polling, the event subscription and the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus,
		m.waitForEvent,
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.Client.Timeout.Duration())
}

// fetchStatus queries the registrar's owner and window list.
func (m Model) fetchStatus() tea.Msg {
	if m.source == nil {
		return registrarMsg{err: fmt.Errorf("no registrar connection")}
	}
	ctx, cancel := m.callContext()
	defer cancel()
	status, err := m.source.Status(ctx)
	return registrarMsg{status: status, err: err}
}

// waitForEvent blocks until the next registrar signal.
func (m Model) waitForEvent() tea.Msg {
	if m.events == nil {
		return nil
	}
	event, ok := <-m.events
	if !ok {
		return eventsClosedMsg{}
	}
	return eventMsg{event: event}
}

func (m Model) queryMenu(windowID uint32) tea.Cmd {
	return func() tea.Msg {
		if m.source == nil {
			return menuMsg{err: fmt.Errorf("no registrar connection")}
		}
		ctx, cancel := m.callContext()
		defer cancel()
		service, path, err := m.source.GetMenuForWindow(ctx, windowID)
		return menuMsg{menu: output.MenuInfo{WindowID: windowID, Service: service, MenuObjectPath: path}, err: err}
	}
}

func showNotice(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg{text: text, isErr: isErr}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case registrarMsg:
		m.statusErr = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.list.SetItems(windowItems(m.windows()))
		}
		return m, nil

	case eventMsg:
		return m.handleEvent(msg.event)

	case eventsClosedMsg:
		m.events = nil
		return m, showNotice("Signal subscription closed", true)

	case menuMsg:
		if msg.err != nil {
			return m, showNotice("GetMenuForWindow failed: "+msg.err.Error(), true)
		}
		var buf bytes.Buffer
		_ = output.NewPlainFormatter(output.DefaultFormatterOptions()).FormatMenu(&buf, msg.menu)
		return m, showNotice(strings.TrimSpace(buf.String()), false)

	case tickMsg:
		return m, tick()

	case noticeMsg:
		m.notice = msg.text
		m.noticeErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearNoticeMsg{}
		})

	case clearNoticeMsg:
		m.notice = ""
		m.noticeErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, showNotice("Copy failed: "+msg.err.Error(), true)
		}
		return m, showNotice("Copied to clipboard", false)
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeWindows:
		m.list, cmd = m.list.Update(msg)
	case ModeLog:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// handleEvent records a signal and refreshes the window list, since log
// lines usually follow a registration change.
func (m Model) handleEvent(event dbus.Event) (tea.Model, tea.Cmd) {
	switch event.Kind {
	case dbus.EventHeartbeat:
		m.lastHeartbeat = event.Received
		m.heartbeatStatus = event.Status
		m.heartbeatSender = event.Sender
	default:
		m.appendLog(renderEvent(event))
	}
	return m, tea.Batch(m.waitForEvent, m.fetchStatus)
}

func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if over := len(m.logLines) - maxLogLines; over > 0 {
		m.logLines = append([]string(nil), m.logLines[over:]...)
	}
	m.syncViewport()
}

func (m *Model) syncViewport() {
	m.viewport.SetContent(strings.Join(m.logLines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// layout sizes the panes: header, window list, log title, log, footer.
func (m *Model) layout() {
	body := m.height - 3
	if body < 4 {
		body = 4
	}
	listHeight := body / 3
	if listHeight < 3 {
		listHeight = 3
	}
	logHeight := body - listHeight - 1
	if logHeight < 1 {
		logHeight = 1
	}

	m.list.SetSize(m.width, listHeight)
	m.viewport = viewport.New(m.width, logHeight)
	m.help.Width = m.width
	m.syncViewport()
}

func (m Model) windows() []uint32 {
	if m.status == nil {
		return nil
	}
	return m.status.Windows
}

func windowItems(ids []uint32) []list.Item {
	items := make([]list.Item, len(ids))
	for i, id := range ids {
		items[i] = windowItem{id: id}
	}
	return items
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = m.lastMode
		} else {
			m.lastMode = m.mode
			m.mode = ModeHelp
		}
		return m, nil
	}

	if m.mode == ModeHelp {
		if key.Matches(msg, m.keys.Back) {
			m.mode = m.lastMode
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Focus):
		if m.mode == ModeWindows {
			m.mode = ModeLog
		} else {
			m.mode = ModeWindows
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.fetchStatus, showNotice("Refreshing", false))

	case key.Matches(msg, m.keys.Clear):
		m.logLines = nil
		m.syncViewport()
		return m, nil

	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyAllJSON):
		return m, m.copyWindows(output.NewJSONFormatter())

	case key.Matches(msg, m.keys.CopyAllYAML):
		return m, m.copyWindows(output.NewYAMLFormatter())
	}

	switch m.mode {
	case ModeWindows:
		return m.handleWindowsKey(msg)
	case ModeLog:
		return m.handleLogKey(msg)
	}
	return m, nil
}

// handleWindowsKey handles keys while the window list is focused.
func (m Model) handleWindowsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.list.SelectedItem().(windowItem); ok {
			return m, m.queryMenu(item.id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if item, ok := m.list.SelectedItem().(windowItem); ok {
			return m, m.copyToClipboard(fmt.Sprintf("%d", item.id))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleLogKey handles keys while the log pane is focused.
func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Home):
		m.follow = false
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.PageUp):
		m.follow = false
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) copyWindows(f output.Formatter) tea.Cmd {
	var buf bytes.Buffer
	if err := f.FormatWindows(&buf, output.NewWindowList(m.windows())); err != nil {
		return showNotice("Failed to format windows: "+err.Error(), true)
	}
	return m.copyToClipboard(buf.String())
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, m.cfg)}
	}
}

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	focusedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	levelStyles  = map[string]lipgloss.Style{
		"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		"THROW": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
	}
)

// renderEvent renders a log signal as a styled line.
func renderEvent(event dbus.Event) string {
	level := fmt.Sprintf("%-5s", event.Level)
	if style, ok := levelStyles[strings.ToUpper(event.Level)]; ok {
		level = style.Render(level)
	}
	return dimStyle.Render(output.EventClock(event)) + " " + level + " " + event.Message
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.mode == ModeHelp {
		return m.viewHelp()
	}

	logTitle := "Log"
	if m.follow {
		logTitle += " (following)"
	}
	if m.mode == ModeLog {
		logTitle = focusedStyle.Render(logTitle)
	} else {
		logTitle = dimStyle.Render(logTitle)
	}

	var s strings.Builder
	s.WriteString(m.viewHeader())
	s.WriteString("\n")
	s.WriteString(m.list.View())
	s.WriteString("\n")
	s.WriteString(logTitle)
	s.WriteString("\n")
	s.WriteString(m.viewport.View())
	s.WriteString("\n")
	s.WriteString(m.viewFooter())
	return s.String()
}

// viewHeader renders the registrar and heartbeat summary lines.
func (m Model) viewHeader() string {
	var registrar string
	switch {
	case m.statusErr != nil:
		registrar = errStyle.Render("registrar: " + m.statusErr.Error())
	case m.status == nil:
		registrar = dimStyle.Render("registrar: querying...")
	case !m.status.Running:
		registrar = errStyle.Render("registrar: not running")
	default:
		registrar = okStyle.Render("registrar: running") +
			dimStyle.Render(fmt.Sprintf(" owner %s | windows: %d", m.status.Owner, m.status.WindowCount))
	}

	heartbeat := "heartbeat: none seen"
	if !m.lastHeartbeat.IsZero() {
		heartbeat = fmt.Sprintf("heartbeat: %q from %s %s", m.heartbeatStatus, m.heartbeatSender,
			humanize.RelTime(m.lastHeartbeat, m.now(), "ago", "from now"))
	}

	return titleStyle.Render(dbus.RegistrarBusName) + "  " + registrar + "\n" + dimStyle.Render(heartbeat)
}

func (m Model) viewFooter() string {
	if m.notice != "" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.noticeErr {
			style = errStyle
		}
		return style.Render(m.notice)
	}
	if m.mode == ModeLog {
		return m.buildKeybindBar(m.width, "log")
	}
	return m.buildKeybindBar(m.width, "windows")
}

func (m Model) viewHelp() string {
	s := titleStyle.MarginBottom(1).Render("Keyboard Shortcuts") + "\n\n"
	s += m.help.FullHelpView(m.keys.FullHelp())
	s += "\n\n" + dimStyle.Render("Press ? or esc to return")
	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// mode is "windows" or "log".
func (m Model) buildKeybindBar(width int, mode string) string {
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind
	switch mode {
	case "windows":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "menu", 2},
			{"?", "help", 3},
			{"tab", "log", 4},
			{"r", "refresh", 5},
			{"c", "copy id", 6},
			{"C", "copy all", 7},
		}
	case "log":
		binds = []keybind{
			{"q", "quit", 1},
			{"tab", "windows", 2},
			{"?", "help", 3},
			{"f", "follow", 4},
			{"x", "clear", 5},
			{"j/k", "scroll", 6},
		}
	}

	const separator = "  "
	result := ""
	for _, b := range binds {
		item := keyStyle.Render(b.key) + " " + b.desc
		plainItem := b.key + " " + b.desc
		testLen := len(plainItem)
		if result != "" {
			testLen = len(stripANSI(result)) + len(separator) + len(plainItem)
		}

		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += item
	}

	return dimStyle.Render(result)
}

// stripANSI removes ANSI escape codes for length calculation.
func stripANSI(s string) string {
	result := make([]byte, 0, len(s))
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result = append(result, s[i])
	}
	return string(result)
}

// RunOptions configures the monitor.
type RunOptions struct {
	Config *config.Config
	Client *dbus.Client
	Logger *slog.Logger
}

// Run subscribes to the registrar's signals and starts the TUI.
func Run(opts RunOptions) error {
	if opts.Client == nil {
		return fmt.Errorf("no registrar client provided")
	}

	events := make(chan dbus.Event, 256)
	monitor := dbus.NewMonitor(opts.Client.Conn(), opts.Logger)
	monitor.SetEventHandler(func(event dbus.Event) {
		select {
		case events <- event:
		default:
			// The UI is behind; drop rather than stall the signal pump.
		}
	})
	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()

	m := New(opts.Config, opts.Client, events)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err := p.Run()
	return err
}
