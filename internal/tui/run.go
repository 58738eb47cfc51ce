package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// RunTUI starts the bubbletea program in alt-screen mode and runs replFn
// concurrently. It blocks until either replFn returns or the user quits;
// quitting cancels the context handed to replFn.
func RunTUI(ctx context.Context, cfg TUIConfig, replFn func(ctx context.Context, io IO) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inputCh := make(chan inputResult, 1)
	model := NewModel(inputCh, cfg)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tuiIO := &TuiIO{
		program: p,
		inputCh: inputCh,
		done:    make(chan struct{}),
	}

	var (
		replErr error
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		replErr = replFn(ctx, tuiIO)
		// Signal the TUI that the REPL is done
		p.Send(replDoneMsg{err: replErr})
	}()

	_, runErr := p.Run()
	interrupted := ctx.Err() != nil
	close(tuiIO.done)
	cancel()

	// Wait for the REPL goroutine to finish after TUI exits
	wg.Wait()

	if runErr != nil && !interrupted {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return replErr
}
