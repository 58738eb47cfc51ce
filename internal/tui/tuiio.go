package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// TuiIO implements the IO interface by sending messages to a bubbletea Program.
// All methods are safe to call from any goroutine.
type TuiIO struct {
	program *tea.Program
	inputCh chan inputResult
	// done is closed when the program exits.
	done chan struct{}
}

var _ IO = (*TuiIO)(nil)

func (t *TuiIO) ReadInput() (string, error) {
	// Tell the TUI to activate the text input
	t.program.Send(readInputMsg{})

	// Block until the user submits or the TUI exits
	select {
	case res := <-t.inputCh:
		if res.err != nil {
			return "", io.EOF
		}
		return res.text, nil
	case <-t.done:
		return "", io.EOF
	}
}

func (t *TuiIO) UserMessage(text string) {
	t.program.Send(userMsg{text: text})
}

func (t *TuiIO) ThinkingStart() {
	t.program.Send(thinkingStartMsg{})
}

func (t *TuiIO) AssistantMessage(text string) {
	t.program.Send(assistantMsg{text: text})
}

func (t *TuiIO) SystemMessage(text string) {
	t.program.Send(systemMsg{text: text})
}

func (t *TuiIO) Error(msg string) {
	t.program.Send(errorMsg{text: msg})
}

func (t *TuiIO) SetStatus(s Status) {
	t.program.Send(statusMsg{status: s})
}
