package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"tools.zach/dev/badgecord/internal/presence"
)

// App runs the model in a Bubble Tea program and starts its widget.
type App struct {
	ctx   context.Context
	model Model
	prog  *tea.Program
}

// NewApp builds the program. Extra program options (e.g. input and output
// overrides) are applied after the defaults.
func NewApp(opts Options, progOpts ...tea.ProgramOption) *App {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	m := New(opts)
	all := append([]tea.ProgramOption{
		tea.WithContext(opts.Context),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	}, progOpts...)
	p := tea.NewProgram(m, all...)
	m.out.attach(p.Send)
	return &App{ctx: opts.Context, model: m, prog: p}
}

// Widget returns the widget driving the badge.
func (a *App) Widget() *presence.Widget { return a.model.widget }

// Run starts polling and blocks until the user quits or the context is
// cancelled. Cancellation is not an error.
func (a *App) Run() error {
	defer a.model.Close()
	a.model.widget.Start(a.ctx)
	defer a.model.widget.Stop()

	_, err := a.prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && a.ctx.Err() != nil {
		return nil
	}
	return err
}

// Reconfigure restarts the widget with new presence options and applies the
// display settings. It is safe to call from any goroutine while Run is active.
func (a *App) Reconfigure(opts Options) {
	wopts := opts.Presence
	wopts.OnChange = nil
	wopts.Clipboard = nil
	a.model.widget.Reconfigure(a.ctx, wopts)
	a.prog.Send(reconfigureMsg{theme: opts.Theme, doubleClick: opts.DoubleClick})
}
