package tui

import (
	"io"
	"strings"
	"sync"
)

// BufferIO is a silent IO implementation that replays scripted input and
// records every output event. Used by tests and by `chatctl chat` when
// input is piped.
type BufferIO struct {
	mu     sync.Mutex
	inputs []string
	events []string
	status Status
}

var _ IO = (*BufferIO)(nil)

// NewBufferIO creates a BufferIO that returns inputs in order, then io.EOF.
func NewBufferIO(inputs ...string) *BufferIO {
	return &BufferIO{inputs: inputs}
}

// Events returns the recorded events, each prefixed with its kind
// ("user: ", "assistant: ", "system: ", "error: ", "thinking").
func (b *BufferIO) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// Output returns all recorded events joined by newlines.
func (b *BufferIO) Output() string {
	return strings.Join(b.Events(), "\n")
}

// LastStatus returns the most recent status.
func (b *BufferIO) LastStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *BufferIO) ReadInput() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return "", io.EOF
	}
	next := b.inputs[0]
	b.inputs = b.inputs[1:]
	return strings.TrimSpace(next), nil
}

func (b *BufferIO) UserMessage(text string)      { b.record("user: " + text) }
func (b *BufferIO) ThinkingStart()               { b.record("thinking") }
func (b *BufferIO) AssistantMessage(text string) { b.record("assistant: " + text) }
func (b *BufferIO) SystemMessage(text string)    { b.record("system: " + text) }
func (b *BufferIO) Error(msg string)             { b.record("error: " + msg) }

func (b *BufferIO) SetStatus(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

func (b *BufferIO) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}
