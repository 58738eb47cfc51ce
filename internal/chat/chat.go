// Package chat defines the data model shared by the session gateway, the
// session registry, the active conversation state and the orchestrator.
package chat

import "time"

// DefaultTitle is the title requested when a chat is created without one.
const DefaultTitle = "New Chat"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionSummary is the registry's view of one persisted session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Exchange is one persisted question/answer pair. The server stores and
// returns pairs; the transcript shows them as two messages.
type Exchange struct {
	ID        string    `json:"id,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionDetail is a session summary plus its full exchange history,
// oldest first.
type SessionDetail struct {
	SessionSummary
	Exchanges []Exchange `json:"messages"`
}

// Message is one entry of the active transcript.
type Message struct {
	// ID is a client-side correlation id. Optimistic messages are rolled
	// back by this id, never by position.
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	// Pending is set on an optimistic user message until its reply arrives.
	Pending bool `json:"pending,omitempty"`
}

// Reply is the assistant's answer to one question.
type Reply struct {
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// StartResult is returned when a session is created together with its
// first exchange.
type StartResult struct {
	Session SessionSummary `json:"session"`
	Reply   Reply          `json:"message"`
}

// Mode is the conversation mode of the active conversation.
type Mode int

const (
	// ModeUnsavedNew: no backing session yet; the first send creates one.
	ModeUnsavedNew Mode = iota
	// ModeLoading: a session detail fetch is in flight.
	ModeLoading
	// ModeBound: the conversation is backed by a persisted session.
	ModeBound
)

func (m Mode) String() string {
	switch m {
	case ModeUnsavedNew:
		return "unsaved-new"
	case ModeLoading:
		return "loading"
	case ModeBound:
		return "bound"
	default:
		return "unknown"
	}
}

// CanSend reports whether a message may be sent in this mode.
func (m Mode) CanSend() bool {
	return m == ModeUnsavedNew || m == ModeBound
}
