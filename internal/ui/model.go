package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/roost/internal/engine"
	"github.com/five82/roost/internal/prefs"
	"github.com/five82/roost/internal/state"
)

const defaultNotifyTimeout = 4 * time.Second

// Controller is the part of the sync engine the dashboard drives.
type Controller interface {
	Toggle(ctx context.Context, t state.Target) (bool, error)
	PollOnce(ctx context.Context) error
	SetVisible(visible bool)
}

// Options configures the dashboard.
type Options struct {
	Context       context.Context
	Controller    Controller
	ControllerURL string // shown in the header
	ThemeName     string
	Selected      string // target name focused at startup
	PrefsPath     string // empty disables saving preferences
	NotifyTimeout time.Duration
}

// tile is the displayed state of one control.
type tile struct {
	target  state.Target
	on      bool
	known   bool
	pending bool
}

type notice struct {
	id       int
	text     string
	severity engine.Severity
}

// Model is the root dashboard state for Bubble Tea.
type Model struct {
	ctx           context.Context
	ctrl          Controller
	controllerURL string
	prefsPath     string
	notifyTimeout time.Duration

	theme   Theme
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	tiles    []tile
	selected int
	manual   bool

	online    bool
	reported  bool // a connection update has arrived
	lastSync  time.Time
	now       time.Time
	notice    notice
	noticeSeq int

	width    int
	height   int
	ready    bool
	showHelp bool
}

// New creates the dashboard model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := opts.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}

	targets := state.Targets()
	tiles := make([]tile, len(targets))
	for i, t := range targets {
		tiles[i] = tile{target: t}
	}

	selected := 0
	if t, err := state.ParseTarget(opts.Selected); err == nil {
		for i := range tiles {
			if tiles[i].target == t {
				selected = i
			}
		}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:           ctx,
		ctrl:          opts.Controller,
		controllerURL: opts.ControllerURL,
		prefsPath:     opts.PrefsPath,
		notifyTimeout: timeout,
		theme:         GetTheme(opts.ThemeName),
		keys:          DefaultKeyMap(),
		help:          help.New(),
		spinner:       s,
		tiles:         tiles,
		selected:      selected,
		manual:        true,
		now:           time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	// SetVisible runs inline so focus changes reach the poller in order.
	case tea.FocusMsg:
		m.setVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.setVisible(false)
		return m, nil

	case valueMsg:
		if i := m.indexOf(msg.target); i >= 0 {
			m.tiles[i].on = msg.on
			m.tiles[i].known = true
		}
		return m, nil

	case pendingMsg:
		if i := m.indexOf(msg.target); i >= 0 {
			m.tiles[i].pending = msg.pending
		}
		return m, nil

	case manualMsg:
		m.manual = bool(msg)
		return m, nil

	case connectionMsg:
		m.online = msg.online
		m.reported = true
		if !msg.lastSync.IsZero() {
			m.lastSync = msg.lastSync
		}
		return m, nil

	case noticeMsg:
		m.noticeSeq++
		m.notice = notice{id: m.noticeSeq, text: msg.text, severity: msg.severity}
		return m, expireNoticeCmd(m.noticeSeq, m.notifyTimeout)

	case noticeExpiredMsg:
		if msg.id == m.notice.id {
			m.notice = notice{}
		}
		return m, nil

	case commandDoneMsg, refreshDoneMsg:
		// Outcomes reach the operator through the engine's notifier.
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderDashboard()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	// Any key closes help
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.tiles)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Toggle):
		return m, m.toggleCmd(m.tiles[m.selected].target)

	case key.Matches(msg, m.keys.Automation):
		return m, m.toggleCmd(state.AutomationTarget)

	case key.Matches(msg, m.keys.Jump):
		// Tile 0 is automation, so digit n addresses tile n.
		n := int(msg.Runes[0] - '0')
		if n >= 1 && n < len(m.tiles) {
			m.selected = n
			return m, m.toggleCmd(m.tiles[n].target)
		}
	}
	return m, nil
}

func (m Model) toggleCmd(t state.Target) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		_, err := ctrl.Toggle(ctx, t)
		return commandDoneMsg{target: t, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		err := ctrl.PollOnce(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return refreshDoneMsg{err: err}
	}
}

func (m Model) setVisible(visible bool) {
	if m.ctrl != nil {
		m.ctrl.SetVisible(visible)
	}
}

func (m Model) indexOf(t state.Target) int {
	for i := range m.tiles {
		if m.tiles[i].target == t {
			return i
		}
	}
	return -1
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{
		Theme:    m.theme.Name,
		Selected: m.tiles[m.selected].target.String(),
	})
}
