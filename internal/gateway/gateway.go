// Package gateway is the typed facade over the chat-session network
// operations. It owns no conversation state: each call shapes a request,
// performs it and maps the outcome to chat types or chat errors.
package gateway

import (
	"context"
	"strings"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// Gateway is the remote session API consumed by the orchestrator.
// Every method may fail; failures are *chat.Error values.
type Gateway interface {
	ListSessions(ctx context.Context) ([]chat.SessionSummary, error)
	CreateSession(ctx context.Context, title string) (chat.SessionSummary, error)
	GetSessionDetail(ctx context.Context, id string) (chat.SessionDetail, error)
	RenameSession(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, sessionID, question string) (chat.Reply, error)
	StartSessionWithFirstMessage(ctx context.Context, question string) (chat.StartResult, error)
}

// Credentials supplies the bearer token for each request and is told when
// the server rejects it.
type Credentials interface {
	Token() string
	// Invalidate is called on a 401 response. Signing out is the
	// implementation's business, not the gateway's.
	Invalidate()
}

// StaticCredentials is a fixed token. OnInvalidate, if set, runs when the
// server rejects the token.
type StaticCredentials struct {
	Value        string
	OnInvalidate func()
}

func (c StaticCredentials) Token() string { return c.Value }

func (c StaticCredentials) Invalidate() {
	if c.OnInvalidate != nil {
		c.OnInvalidate()
	}
}

// normalizeTitle trims title and rejects blank titles.
func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", chat.ErrEmptyTitle
	}
	return title, nil
}

// normalizeQuestion trims question and rejects blank questions.
func normalizeQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", chat.ErrEmptyMessage
	}
	return question, nil
}
