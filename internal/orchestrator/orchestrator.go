// Package orchestrator is the control core of a chat client. It owns the
// session registry and the active conversation, applies optimistic updates
// before each gateway call and reconciles or rolls them back when the call
// resolves.
//
// All methods are safe for concurrent use. The lock is released for the
// duration of every gateway call, so operations interleave: a send may
// still be in flight when the user switches sessions, and its result is
// applied only if the conversation it targeted is still on screen.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/conversation"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/gateway"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging/correlation"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/registry"
)

// Error slot texts.
const (
	MsgLoadSessions  = "Failed to load chat sessions"
	MsgCreateSession = "Failed to create new chat"
	MsgSendMessage   = "Failed to send message"
	MsgLoadSession   = "Failed to load chat session"
	MsgRenameSession = "Failed to update chat title"
	MsgDeleteSession = "Failed to delete chat session"
)

// View is an immutable snapshot for presentation layers.
type View struct {
	Sessions   []chat.SessionSummary
	Mode       chat.Mode
	Active     *chat.SessionSummary
	Transcript []chat.Message
	Err        string
	// InFlight is the number of sends awaiting a reply.
	InFlight int
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	logger *slog.Logger
	clock  clockwork.Clock
	newID  func() string
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock for optimistic timestamps and registry patches.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the generator of transcript message ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// Orchestrator mediates between the registry, the active conversation and
// the gateway. The registry and conversation are never touched by anything
// else.
type Orchestrator struct {
	gw     gateway.Gateway
	logger *slog.Logger
	clock  clockwork.Clock

	mu        sync.Mutex
	registry  *registry.Registry
	conv      *conversation.State
	inFlight  int
	loadingID string

	refreshes singleflight.Group
	selects   singleflight.Group
}

// New returns an Orchestrator in unsaved-new mode with an empty registry.
func New(gw gateway.Gateway, opts ...Option) *Orchestrator {
	o := options{
		logger: logging.Discard(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	convOpts := []conversation.Option{conversation.WithClock(o.clock)}
	if o.newID != nil {
		convOpts = append(convOpts, conversation.WithIDGenerator(o.newID))
	}
	return &Orchestrator{
		gw:       gw,
		logger:   o.logger,
		clock:    o.clock,
		registry: registry.New(),
		conv:     conversation.New(convOpts...),
	}
}

// Snapshot returns the current view.
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := o.conv.Snapshot()
	return View{
		Sessions:   o.registry.Snapshot(),
		Mode:       snap.Mode,
		Active:     snap.Session,
		Transcript: snap.Transcript,
		Err:        snap.Err,
		InFlight:   o.inFlight,
	}
}

// ClearError empties the error slot.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conv.ClearError()
}

// StartNewChat resets the conversation to unsaved-new. The registry is
// untouched; the session is created by the first send.
func (o *Orchestrator) StartNewChat() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conv.ResetToUnsavedNew()
	o.loadingID = ""
}

// RefreshSessions replaces the registry with the server's session list.
// Concurrent refreshes share one request. A caller whose ctx ends while the
// shared request is running gets ctx.Err() and leaves state untouched; the
// request itself keeps going for the remaining callers.
func (o *Orchestrator) RefreshSessions(ctx context.Context) error {
	ctx = correlation.Ensure(ctx)
	v, err := shared(ctx, &o.refreshes, "sessions", func(ctx context.Context) (any, error) {
		return o.gw.ListSessions(ctx)
	})
	if err != nil && ctx.Err() != nil {
		o.logger.DebugContext(ctx, "session refresh abandoned", "error", err)
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail(ctx, "refresh sessions", err, MsgLoadSessions)
		return err
	}
	sessions := v.([]chat.SessionSummary)
	o.registry.ReplaceAll(sessions)
	o.conv.ClearError()
	if active, ok := o.registry.Get(o.conv.SessionID()); ok {
		o.conv.SyncSummary(active)
	}
	o.logger.DebugContext(ctx, "sessions refreshed", "count", len(sessions))
	return nil
}

// CreateSession creates an empty session and makes it the active
// conversation. A blank title asks the server for its default title.
func (o *Orchestrator) CreateSession(ctx context.Context, title string) (chat.SessionSummary, error) {
	ctx = correlation.Ensure(ctx)
	s, err := o.gw.CreateSession(ctx, title)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail(ctx, "create session", err, MsgCreateSession)
		return chat.SessionSummary{}, err
	}
	o.registry.UpsertFront(s)
	o.conv.BindToDetail(chat.SessionDetail{SessionSummary: s})
	o.loadingID = ""
	o.logger.InfoContext(ctx, "session created", "session_id", s.ID)
	return s, nil
}

// SelectSession loads a session and binds the conversation to it. While the
// fetch is in flight the conversation is in loading mode and sends are
// refused. Only the latest select is applied; a select overtaken by another
// select, a new chat or a delete returns nil without changing anything.
// On failure the previous conversation is kept.
func (o *Orchestrator) SelectSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return chat.ErrEmptySessionID
	}
	ctx = correlation.Ensure(ctx)

	o.mu.Lock()
	token := o.conv.BeginLoading()
	o.loadingID = id
	o.mu.Unlock()

	v, err := shared(ctx, &o.selects, id, func(ctx context.Context) (any, error) {
		return o.gw.GetSessionDetail(ctx, id)
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		if o.conv.FailLoading(token) {
			o.loadingID = ""
			if ctx.Err() != nil {
				o.logger.DebugContext(ctx, "session load abandoned", "session_id", id, "error", err)
				return err
			}
			o.fail(ctx, "select session", err, MsgLoadSession)
		}
		return err
	}
	detail := v.(chat.SessionDetail)
	if !o.conv.CompleteLoading(token, detail) {
		o.logger.DebugContext(ctx, "stale session load discarded", "session_id", id)
		return nil
	}
	o.loadingID = ""
	o.logger.DebugContext(ctx, "session selected", "session_id", id, "exchanges", len(detail.Exchanges))
	return nil
}

// SendMessage sends text in the active conversation. In unsaved-new mode the
// first send creates the session; in bound mode it appends to the session.
// The user message is shown immediately and removed again if the call
// fails. Blank text is rejected with chat.ErrEmptyMessage and a send while
// a session is loading with chat.ErrSessionLoading; neither touches state.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (chat.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Reply{}, chat.ErrEmptyMessage
	}
	ctx = correlation.Ensure(ctx)

	o.mu.Lock()
	mode := o.conv.Mode()
	if !mode.CanSend() {
		o.mu.Unlock()
		return chat.Reply{}, chat.ErrSessionLoading
	}
	o.conv.ClearError()
	h := o.conv.AppendOptimisticUserMessage(text)
	sessionID := o.conv.SessionID()
	o.inFlight++
	o.mu.Unlock()

	if mode == chat.ModeUnsavedNew {
		return o.startSession(ctx, h, text)
	}
	return o.appendMessage(ctx, h, sessionID, text)
}

func (o *Orchestrator) startSession(ctx context.Context, h conversation.Handle, text string) (chat.Reply, error) {
	res, err := o.gw.StartSessionWithFirstMessage(ctx, text)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	if err != nil {
		o.rollback(ctx, h, "start session", err)
		return chat.Reply{}, err
	}

	// The session exists server-side whatever happened locally meanwhile.
	o.registry.UpsertFront(res.Session)
	switch {
	case !o.conv.Contains(h):
		o.logger.DebugContext(ctx, "reply for abandoned conversation ignored", "session_id", res.Session.ID)
	case o.conv.Mode() == chat.ModeUnsavedNew:
		o.conv.Bind(res.Session)
		o.conv.ConfirmWithAssistantReply(h, res.Reply.Answer, res.Reply.Timestamp)
	default:
		// A concurrent first send already bound the conversation to another
		// session; this pair lives in its own session.
		o.conv.Rollback(h)
	}
	o.logger.InfoContext(ctx, "session started", "session_id", res.Session.ID)
	return res.Reply, nil
}

func (o *Orchestrator) appendMessage(ctx context.Context, h conversation.Handle, sessionID, text string) (chat.Reply, error) {
	reply, err := o.gw.AppendMessage(ctx, sessionID, text)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	if err != nil {
		o.rollback(ctx, h, "send message", err)
		return chat.Reply{}, err
	}

	updatedAt := reply.Timestamp
	if updatedAt.IsZero() {
		updatedAt = o.clock.Now()
	}
	if s, ok := o.registry.Get(sessionID); ok {
		count := s.MessageCount + 1
		o.registry.Patch(sessionID, registry.Patch{UpdatedAt: &updatedAt, MessageCount: &count})
		if patched, ok := o.registry.Get(sessionID); ok {
			o.conv.SyncSummary(patched)
		}
	}

	if o.conv.SessionID() == sessionID {
		// A reselect of this session while the send was in flight replaced
		// the transcript with a copy that may predate the exchange.
		if !o.conv.ConfirmWithAssistantReply(h, reply.Answer, reply.Timestamp) && o.conv.Mode() == chat.ModeBound {
			o.conv.AppendExchange(text, reply.Answer, reply.Timestamp)
		}
	} else if o.conv.Contains(h) {
		o.conv.Rollback(h)
	}
	o.logger.DebugContext(ctx, "message sent", "session_id", sessionID)
	return reply, nil
}

// RenameSession renames a session on the server, then in the registry and,
// if it is the active session, in the conversation.
func (o *Orchestrator) RenameSession(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return chat.ErrEmptyTitle
	}
	ctx = correlation.Ensure(ctx)
	err := o.gw.RenameSession(ctx, id, title)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail(ctx, "rename session", err, MsgRenameSession)
		return err
	}
	o.registry.Patch(id, registry.Patch{Title: &title})
	o.conv.SetTitle(id, title)
	o.conv.ClearError()
	o.logger.InfoContext(ctx, "session renamed", "session_id", id)
	return nil
}

// DeleteSession deletes a session. Deleting an already deleted session
// succeeds. If it was the active (or loading) session the conversation
// resets to unsaved-new.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return chat.ErrEmptySessionID
	}
	ctx = correlation.Ensure(ctx)
	err := o.gw.DeleteSession(ctx, id)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		o.fail(ctx, "delete session", err, MsgDeleteSession)
		return err
	}
	o.registry.Remove(id)
	o.conv.ClearError()
	if o.conv.SessionID() == id || (o.conv.Mode() == chat.ModeLoading && o.loadingID == id) {
		o.conv.ResetToUnsavedNew()
		o.loadingID = ""
	}
	o.logger.InfoContext(ctx, "session deleted", "session_id", id)
	return nil
}

// shared runs fn once per key across concurrent callers. fn gets a context
// that carries ctx's values but not its cancellation, so one caller giving
// up does not fail the call for the others; each caller still stops
// waiting when its own ctx ends.
func shared(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// rollback removes an optimistic message after a failed send. The error
// slot is only filled if the message was still on screen. Callers hold mu.
func (o *Orchestrator) rollback(ctx context.Context, h conversation.Handle, op string, err error) {
	if o.conv.Rollback(h) {
		o.fail(ctx, op, err, MsgSendMessage)
		return
	}
	o.logger.WarnContext(ctx, "send failed for abandoned conversation", "op", op, "error", err)
}

// fail logs err and fills the error slot. Callers hold mu.
func (o *Orchestrator) fail(ctx context.Context, op string, err error, fallback string) {
	o.logger.WarnContext(ctx, "operation failed", "op", op, "kind", chat.KindOf(err), "error", err)
	o.conv.SetError(chat.UserMessage(err, fallback))
}
