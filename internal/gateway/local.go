package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/provider"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/session"
)

const (
	// titleRunes is the length of a title derived from a first question.
	titleRunes = 50
	// historyExchanges is how many earlier exchanges are sent as context.
	historyExchanges = 20

	answerFailed = "I apologize, but I'm experiencing technical difficulties. Please try again."
)

// Local implements Gateway without a server: sessions live in a local
// store and answers come straight from an LLM provider.
type Local struct {
	store        session.Store
	provider     provider.Provider
	model        string
	systemPrompt string
	logger       *slog.Logger
}

var _ Gateway = (*Local)(nil)

// LocalOption configures a Local gateway.
type LocalOption func(*Local)

// WithModel overrides the provider's default model.
func WithModel(model string) LocalOption {
	return func(l *Local) { l.model = model }
}

// WithSystemPrompt sets the system prompt sent with every question.
func WithSystemPrompt(prompt string) LocalOption {
	return func(l *Local) { l.systemPrompt = prompt }
}

// WithLocalLogger sets the logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) { l.logger = logger }
}

func NewLocal(store session.Store, p provider.Provider, opts ...LocalOption) *Local {
	l := &Local{store: store, provider: p, logger: logging.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) ListSessions(ctx context.Context) ([]chat.SessionSummary, error) {
	sessions, err := l.store.List(ctx)
	if err != nil {
		return nil, storeError("list sessions", err)
	}
	return sessions, nil
}

// CreateSession names untitled sessions "Chat N", N being one more than
// the number of existing sessions.
func (l *Local) CreateSession(ctx context.Context, title string) (chat.SessionSummary, error) {
	const op = "create session"
	title = strings.TrimSpace(title)
	if title == "" || title == chat.DefaultTitle {
		n, err := l.store.Count(ctx)
		if err != nil {
			return chat.SessionSummary{}, storeError(op, err)
		}
		title = fmt.Sprintf("Chat %d", n+1)
	}
	s, err := l.store.Create(ctx, title)
	if err != nil {
		return chat.SessionSummary{}, storeError(op, err)
	}
	return s, nil
}

func (l *Local) GetSessionDetail(ctx context.Context, id string) (chat.SessionDetail, error) {
	if strings.TrimSpace(id) == "" {
		return chat.SessionDetail{}, chat.ErrEmptySessionID
	}
	d, err := l.store.Get(ctx, id)
	if err != nil {
		return chat.SessionDetail{}, storeError("get session", err)
	}
	return d, nil
}

func (l *Local) RenameSession(ctx context.Context, id, title string) error {
	title, err := normalizeTitle(title)
	if err != nil {
		return err
	}
	if err := l.store.Rename(ctx, id, title); err != nil {
		return storeError("rename session", err)
	}
	return nil
}

func (l *Local) DeleteSession(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return storeError("delete session", err)
	}
	return nil
}

func (l *Local) AppendMessage(ctx context.Context, sessionID, question string) (chat.Reply, error) {
	const op = "send message"
	question, err := normalizeQuestion(question)
	if err != nil {
		return chat.Reply{}, err
	}
	d, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return chat.Reply{}, storeError(op, err)
	}

	answer, err := l.answer(ctx, op, d.Exchanges, question)
	if err != nil {
		return chat.Reply{}, err
	}

	ex, err := l.store.AppendExchange(ctx, sessionID, question, answer)
	if err != nil {
		return chat.Reply{}, storeError(op, err)
	}
	return chat.Reply{Answer: ex.Answer, Timestamp: ex.Timestamp}, nil
}

// StartSessionWithFirstMessage answers first and only then stores the
// session together with its first exchange, so a failed answer leaves
// nothing behind.
func (l *Local) StartSessionWithFirstMessage(ctx context.Context, question string) (chat.StartResult, error) {
	const op = "start session"
	question, err := normalizeQuestion(question)
	if err != nil {
		return chat.StartResult{}, err
	}

	answer, err := l.answer(ctx, op, nil, question)
	if err != nil {
		return chat.StartResult{}, err
	}

	s, ex, err := l.store.CreateWithExchange(ctx, TitleFromQuestion(question), question, answer)
	if err != nil {
		return chat.StartResult{}, storeError(op, err)
	}
	return chat.StartResult{
		Session: s,
		Reply:   chat.Reply{Answer: ex.Answer, Timestamp: ex.Timestamp},
	}, nil
}

func (l *Local) answer(ctx context.Context, op string, history []chat.Exchange, question string) (string, error) {
	answer, err := l.provider.Answer(ctx, &provider.AnswerRequest{
		Model:        l.model,
		SystemPrompt: l.systemPrompt,
		History:      provider.HistoryFromExchanges(history, historyExchanges),
		Question:     question,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", chat.Transport(op, 0, ctxErr)
		}
		l.logger.WarnContext(ctx, "answer failed", "op", op, "provider", l.provider.Name(), "error", err)
		return "", chat.Domain(op, 0, answerFailed)
	}
	return answer, nil
}

// TitleFromQuestion derives a session title from its first question.
func TitleFromQuestion(question string) string {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) <= titleRunes {
		return question
	}
	return string([]rune(question)[:titleRunes]) + "..."
}

func storeError(op string, err error) error {
	var ce *chat.Error
	if errors.As(err, &ce) {
		return err
	}
	return chat.Transport(op, 0, err)
}
