// Package registry keeps the ordered in-memory list of session summaries.
//
// After every mutation the list is sorted by UpdatedAt, newest first. Ties
// keep their relative order. A Registry is not safe for concurrent use; the
// orchestrator serializes access to it.
package registry

import (
	"slices"
	"time"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// Patch is a partial update of a summary. Nil fields are left unchanged.
type Patch struct {
	Title        *string
	UpdatedAt    *time.Time
	MessageCount *int
}

// Registry is an ordered collection of session summaries, at most one per id.
type Registry struct {
	sessions []chat.SessionSummary
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// ReplaceAll swaps the whole collection, typically after listing sessions.
// Duplicate ids keep their first occurrence.
func (r *Registry) ReplaceAll(sessions []chat.SessionSummary) {
	seen := make(map[string]bool, len(sessions))
	next := make([]chat.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		next = append(next, s)
	}
	r.sessions = next
	r.sort()
}

// UpsertFront inserts s (replacing any entry with the same id) at the front
// and re-sorts. A newly created session carries the newest timestamp and so
// stays first; an older one sorts into place.
func (r *Registry) UpsertFront(s chat.SessionSummary) {
	next := make([]chat.SessionSummary, 0, len(r.sessions)+1)
	next = append(next, s)
	for _, existing := range r.sessions {
		if existing.ID != s.ID {
			next = append(next, existing)
		}
	}
	r.sessions = next
	r.sort()
}

// Patch applies p to the session with the given id. It reports whether the
// session was found.
func (r *Registry) Patch(id string, p Patch) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	next := slices.Clone(r.sessions)
	s := &next[i]
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.UpdatedAt != nil {
		s.UpdatedAt = *p.UpdatedAt
	}
	if p.MessageCount != nil {
		s.MessageCount = *p.MessageCount
	}
	r.sessions = next
	r.sort()
	return true
}

// Remove deletes the session with the given id. It reports whether it
// was present.
func (r *Registry) Remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.sessions = slices.Delete(slices.Clone(r.sessions), i, i+1)
	return true
}

// Get returns the summary with the given id.
func (r *Registry) Get(id string) (chat.SessionSummary, bool) {
	i := r.index(id)
	if i < 0 {
		return chat.SessionSummary{}, false
	}
	return r.sessions[i], true
}

// Snapshot returns a copy of the ordered collection.
func (r *Registry) Snapshot() []chat.SessionSummary {
	return slices.Clone(r.sessions)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.sessions, func(s chat.SessionSummary) bool {
		return s.ID == id
	})
}

func (r *Registry) sort() {
	slices.SortStableFunc(r.sessions, func(a, b chat.SessionSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
