// Package tui defines the IO interface between the chat REPL and the user
// interface layer, plus PlainIO (line-based terminal), TuiIO (bubbletea)
// and BufferIO (scripted, for tests and pipes).
package tui

// IO is the contract between the REPL and the UI layer.
// Every method maps to a distinct visual event, so the REPL never depends
// on a specific rendering implementation.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message.
	UserMessage(text string)

	// ThinkingStart signals that a question was sent and the reply is pending.
	ThinkingStart()

	// AssistantMessage displays a reply. Implementations may render it as
	// Markdown.
	AssistantMessage(text string)

	// SystemMessage displays a notice: command output, session lists, hints.
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetStatus updates the status area.
	SetStatus(s Status)
}

// Status is what the status bar shows.
type Status struct {
	// Mode is the conversation mode ("unsaved-new", "loading", "bound").
	Mode     string
	Title    string
	Sessions int
	// Pending is the number of questions awaiting a reply.
	Pending int
	Backend string
}
