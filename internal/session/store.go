// Package session persists chat sessions and their question/answer
// exchanges for offline use.
package session

import (
	"context"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// Store abstracts session persistence. Missing sessions are reported as
// chat.ErrNotFound.
type Store interface {
	Create(ctx context.Context, title string) (chat.SessionSummary, error)
	// CreateWithExchange creates a session and its first exchange atomically.
	CreateWithExchange(ctx context.Context, title, question, answer string) (chat.SessionSummary, chat.Exchange, error)
	// List returns all sessions, most recently updated first.
	List(ctx context.Context) ([]chat.SessionSummary, error)
	Get(ctx context.Context, id string) (chat.SessionDetail, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	// AppendExchange stores one exchange and bumps the session's updated_at.
	AppendExchange(ctx context.Context, sessionID, question, answer string) (chat.Exchange, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
