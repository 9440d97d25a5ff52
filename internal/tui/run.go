package tui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spendwise/internal/ui"
)

// Run starts the gate and runs the TUI until the user quits or ctx ends.
func Run(ctx context.Context, deps Deps, opts ...Option) error {
	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Restore the terminal on any exit; best effort.
	cleanupTerminal := func() {
		_, _ = os.Stdout.Write([]byte("\033[?1049l")) // Exit alternate screen
		_, _ = os.Stdout.Write([]byte("\033[?25h"))   // Show cursor
		_, _ = os.Stdout.Write([]byte("\033[m"))      // Reset colors
		_, _ = os.Stdout.Write([]byte("\033[?1000l")) // Disable mouse
	}
	defer cleanupTerminal()

	go func() {
		select {
		case <-sigChan:
			cleanupTerminal()
			cancel()
		case <-ctx.Done():
		}
	}()

	m, err := New(ctx, deps, opts...)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if m.config.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if m.config.MouseSupport {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}

	// Observers run on whichever goroutine changed the state, which may be
	// the update loop itself, so they must not block on Send.
	var p *tea.Program
	send := func(msg tea.Msg) { go p.Send(msg) }
	m.send = send
	p = tea.NewProgram(m, programOpts...)

	unsubscribe := subscribe(m, send)
	defer unsubscribe()

	m.gate.Start(ctx)
	defer m.gate.Stop()

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		for _, stop := range fm.watches {
			stop()
		}
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// subscribe forwards every shared state machine's changes into the program.
func subscribe(m Model, send func(tea.Msg)) func() {
	stops := []func(){
		m.gate.Subscribe(func(ui.GateState) { send(gateChangedMsg{}) }),
		m.notifier.Subscribe(func([]ui.Toast) { send(toastsChangedMsg{}) }),
		m.connectivity.Subscribe(func(bool) { send(connectivityChangedMsg{}) }),
	}
	for screen, pull := range m.pulls {
		screen := screen
		stops = append(stops, pull.Subscribe(func(ui.PullState) { send(pullChangedMsg{screen: screen}) }))
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
