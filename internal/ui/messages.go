package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/roost/internal/engine"
	"github.com/five82/roost/internal/state"
)

// Messages produced by the sync engine via Bridge.

type valueMsg struct {
	target state.Target
	on     bool
}

type manualMsg bool

type pendingMsg struct {
	target  state.Target
	pending bool
}

type connectionMsg struct {
	online   bool
	lastSync time.Time
}

type noticeMsg struct {
	text     string
	severity engine.Severity
}

// Messages produced by the model itself.

type tickMsg time.Time

type noticeExpiredMsg struct{ id int }

type commandDoneMsg struct {
	target state.Target
	err    error
}

type refreshDoneMsg struct{ err error }

// tickCmd refreshes relative timestamps once a second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func expireNoticeCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}
