// Package conversation holds the active conversation: its mode, the session
// backing it (if any), the ordered transcript and the single error slot.
//
// The transcript is never spliced in place. Every mutation builds a new
// slice, so snapshots handed out earlier stay valid, and optimistic messages
// are removed by their correlation id rather than by position. A State is
// not safe for concurrent use; the orchestrator serializes access to it.
package conversation

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// Handle identifies an optimistic user message.
type Handle struct {
	ID string
}

// LoadToken identifies one BeginLoading call. Only the most recent token
// can complete or fail a load.
type LoadToken uint64

// Snapshot is an immutable copy of the state for presentation layers.
type Snapshot struct {
	Mode       chat.Mode
	Session    *chat.SessionSummary
	Transcript []chat.Message
	Err        string
}

// Option configures a State.
type Option func(*State)

// WithClock sets the clock used for optimistic message timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *State) { s.clock = c }
}

// WithIDGenerator sets the correlation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *State) { s.newID = fn }
}

// State is the active conversation.
type State struct {
	clock clockwork.Clock
	newID func() string

	mode       chat.Mode
	session    *chat.SessionSummary
	transcript []chat.Message
	err        string

	loadToken LoadToken
	priorMode chat.Mode
}

// New returns a State in unsaved-new mode.
func New(opts ...Option) *State {
	s := &State{
		clock: clockwork.NewRealClock(),
		newID: uuid.NewString,
		mode:  chat.ModeUnsavedNew,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResetToUnsavedNew clears the transcript and the error slot and detaches
// the session. Any load in flight is abandoned.
func (s *State) ResetToUnsavedNew() {
	s.mode = chat.ModeUnsavedNew
	s.session = nil
	s.transcript = nil
	s.err = ""
	s.loadToken++
}

// BindToDetail binds the conversation to detail's session and replaces the
// transcript with its exchanges, each expanded into a user message followed
// by an assistant message, in the order returned.
func (s *State) BindToDetail(detail chat.SessionDetail) {
	msgs := make([]chat.Message, 0, 2*len(detail.Exchanges))
	for _, ex := range detail.Exchanges {
		msgs = append(msgs,
			chat.Message{ID: s.newID(), Role: chat.RoleUser, Text: ex.Question, Timestamp: ex.Timestamp},
			chat.Message{ID: s.newID(), Role: chat.RoleAssistant, Text: ex.Answer, Timestamp: ex.Timestamp},
		)
	}
	summary := detail.SessionSummary
	s.mode = chat.ModeBound
	s.session = &summary
	s.transcript = msgs
	s.err = ""
}

// Bind attaches a freshly created session without touching the transcript.
// Used when the first send of an unsaved-new conversation succeeds.
func (s *State) Bind(summary chat.SessionSummary) {
	s.mode = chat.ModeBound
	s.session = &summary
}

// BeginLoading switches to loading mode and returns a token for the fetch.
// The mode before the first of a run of loads is remembered for FailLoading.
func (s *State) BeginLoading() LoadToken {
	if s.mode != chat.ModeLoading {
		s.priorMode = s.mode
	}
	s.mode = chat.ModeLoading
	s.loadToken++
	return s.loadToken
}

// CompleteLoading binds detail if token is still the current load. It
// reports whether the result was applied.
func (s *State) CompleteLoading(token LoadToken, detail chat.SessionDetail) bool {
	if token != s.loadToken || s.mode != chat.ModeLoading {
		return false
	}
	s.BindToDetail(detail)
	return true
}

// FailLoading restores the mode held before loading if token is still the
// current load. The previous session and transcript were never cleared.
func (s *State) FailLoading(token LoadToken) bool {
	if token != s.loadToken || s.mode != chat.ModeLoading {
		return false
	}
	s.mode = s.priorMode
	return true
}

// AppendOptimisticUserMessage appends a pending user message stamped with
// the current time and returns its handle.
func (s *State) AppendOptimisticUserMessage(text string) Handle {
	msg := chat.Message{
		ID:        s.newID(),
		Role:      chat.RoleUser,
		Text:      text,
		Timestamp: s.clock.Now(),
		Pending:   true,
	}
	s.transcript = append(slices.Clone(s.transcript), msg)
	return Handle{ID: msg.ID}
}

// ConfirmWithAssistantReply marks h's message as confirmed and appends the
// assistant reply. If h is no longer in the transcript (the conversation was
// reset or switched meanwhile) nothing is applied and false is returned.
func (s *State) ConfirmWithAssistantReply(h Handle, answer string, ts time.Time) bool {
	i := s.indexOf(h)
	if i < 0 {
		return false
	}
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	next := slices.Clone(s.transcript)
	next[i].Pending = false
	next = append(next, chat.Message{
		ID:        s.newID(),
		Role:      chat.RoleAssistant,
		Text:      answer,
		Timestamp: ts,
	})
	s.transcript = next
	return true
}

// AppendExchange appends a confirmed question and answer pair. It is a no-op
// returning false when the transcript already ends with that pair, as it
// does when a reload fetched the exchange from the server.
func (s *State) AppendExchange(question, answer string, ts time.Time) bool {
	if n := len(s.transcript); n >= 2 {
		q, a := s.transcript[n-2], s.transcript[n-1]
		if q.Role == chat.RoleUser && q.Text == question && a.Role == chat.RoleAssistant && a.Text == answer {
			return false
		}
	}
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	s.transcript = append(slices.Clone(s.transcript),
		chat.Message{ID: s.newID(), Role: chat.RoleUser, Text: question, Timestamp: ts},
		chat.Message{ID: s.newID(), Role: chat.RoleAssistant, Text: answer, Timestamp: ts},
	)
	return true
}

// Rollback removes h's message, wherever it now sits. It reports whether
// the message was still present.
func (s *State) Rollback(h Handle) bool {
	i := s.indexOf(h)
	if i < 0 {
		return false
	}
	s.transcript = slices.Delete(slices.Clone(s.transcript), i, i+1)
	return true
}

// Contains reports whether h's message is still in the transcript.
func (s *State) Contains(h Handle) bool {
	return s.indexOf(h) >= 0
}

// SetTitle updates the active session's title if id is the active session.
func (s *State) SetTitle(id, title string) bool {
	if s.session == nil || s.session.ID != id {
		return false
	}
	next := *s.session
	next.Title = title
	s.session = &next
	return true
}

// SyncSummary replaces the active session's summary if it has the same id.
func (s *State) SyncSummary(summary chat.SessionSummary) bool {
	if s.session == nil || s.session.ID != summary.ID {
		return false
	}
	s.session = &summary
	return true
}

// Mode returns the current conversation mode.
func (s *State) Mode() chat.Mode { return s.mode }

// SessionID returns the id of the backing session, or "" when none.
func (s *State) SessionID() string {
	if s.session == nil {
		return ""
	}
	return s.session.ID
}

// SetError fills the error slot.
func (s *State) SetError(msg string) { s.err = msg }

// ClearError empties the error slot.
func (s *State) ClearError() { s.err = "" }

// Error returns the error slot.
func (s *State) Error() string { return s.err }

// Len returns the transcript length.
func (s *State) Len() int { return len(s.transcript) }

// Snapshot returns an immutable copy of the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:       s.mode,
		Transcript: slices.Clone(s.transcript),
		Err:        s.err,
	}
	if s.session != nil {
		session := *s.session
		snap.Session = &session
	}
	return snap
}

func (s *State) indexOf(h Handle) int {
	if h.ID == "" {
		return -1
	}
	return slices.IndexFunc(s.transcript, func(m chat.Message) bool {
		return m.ID == h.ID
	})
}
