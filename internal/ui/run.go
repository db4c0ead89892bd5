package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the dashboard and blocks until the operator quits or ctx is
// cancelled. Engine updates pushed into bridge are forwarded to the
// program while it runs.
func Run(ctx context.Context, opts Options, bridge *Bridge) error {
	if opts.Context == nil {
		opts.Context = ctx
	}
	m := New(opts)

	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if bridge != nil {
		go bridge.Forward(fwdCtx, p.Send)
	}

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.savePrefs()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
