package conversation

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestState(t *testing.T) (*State, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	n := 0
	st := New(WithClock(clock), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}))
	return st, clock
}

func texts(msgs []chat.Message) []string {
	var out []string
	for _, m := range msgs {
		out = append(out, string(m.Role)+":"+m.Text)
	}
	return out
}

func detail(id string, pairs ...string) chat.SessionDetail {
	d := chat.SessionDetail{SessionSummary: chat.SessionSummary{ID: id, Title: "Chat " + id, UpdatedAt: t0}}
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Exchanges = append(d.Exchanges, chat.Exchange{
			Question:  pairs[i],
			Answer:    pairs[i+1],
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		})
	}
	return d
}

func TestNewStartsUnsaved(t *testing.T) {
	st, _ := newTestState(t)

	snap := st.Snapshot()
	assert.Equal(t, chat.ModeUnsavedNew, snap.Mode)
	assert.Nil(t, snap.Session)
	assert.Empty(t, snap.Transcript)
	assert.Empty(t, st.SessionID())
}

func TestBindToDetail_ExpandsPairs(t *testing.T) {
	st, _ := newTestState(t)

	st.BindToDetail(detail("s1", "What is an API?", "An interface.", "Example?", "REST."))

	snap := st.Snapshot()
	assert.Equal(t, chat.ModeBound, snap.Mode)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "s1", snap.Session.ID)
	assert.Equal(t, []string{
		"user:What is an API?", "assistant:An interface.",
		"user:Example?", "assistant:REST.",
	}, texts(snap.Transcript))
	assert.Equal(t, snap.Transcript[0].Timestamp, snap.Transcript[1].Timestamp)
}

func TestOptimisticConfirm(t *testing.T) {
	st, clock := newTestState(t)

	h := st.AppendOptimisticUserMessage("Hello")
	snap := st.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.True(t, snap.Transcript[0].Pending)
	assert.Equal(t, clock.Now(), snap.Transcript[0].Timestamp)

	replyAt := t0.Add(3 * time.Second)
	require.True(t, st.ConfirmWithAssistantReply(h, "Hi there", replyAt))

	snap = st.Snapshot()
	assert.Equal(t, []string{"user:Hello", "assistant:Hi there"}, texts(snap.Transcript))
	assert.False(t, snap.Transcript[0].Pending)
	assert.Equal(t, replyAt, snap.Transcript[1].Timestamp)
}

func TestConfirm_ZeroTimestampUsesClock(t *testing.T) {
	st, clock := newTestState(t)
	h := st.AppendOptimisticUserMessage("q")
	clock.Advance(time.Minute)

	st.ConfirmWithAssistantReply(h, "a", time.Time{})

	assert.Equal(t, t0.Add(time.Minute), st.Snapshot().Transcript[1].Timestamp)
}

func TestRollbackByIdentity(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1", "q0", "a0"))

	h1 := st.AppendOptimisticUserMessage("first")
	h2 := st.AppendOptimisticUserMessage("second")

	// The second send resolves first, then the first one fails.
	require.True(t, st.ConfirmWithAssistantReply(h2, "second answer", t0))
	require.True(t, st.Rollback(h1))

	assert.Equal(t, []string{
		"user:q0", "assistant:a0",
		"user:second", "assistant:second answer",
	}, texts(st.Snapshot().Transcript))
	assert.False(t, st.Rollback(h1), "second rollback is a no-op")
}

func TestRollbackRestoresLength(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1", "q0", "a0"))
	before := st.Snapshot().Transcript

	h := st.AppendOptimisticUserMessage("More")
	st.Rollback(h)

	assert.Equal(t, before, st.Snapshot().Transcript)
}

func TestAppendExchange(t *testing.T) {
	st, clock := newTestState(t)
	st.BindToDetail(detail("s1", "q0", "a0"))

	require.True(t, st.AppendExchange("More", "Sure", time.Time{}))
	snap := st.Snapshot()
	assert.Equal(t, []string{
		"user:q0", "assistant:a0",
		"user:More", "assistant:Sure",
	}, texts(snap.Transcript))
	assert.False(t, snap.Transcript[2].Pending)
	assert.Equal(t, clock.Now(), snap.Transcript[3].Timestamp)

	assert.False(t, st.AppendExchange("More", "Sure", t0), "pair already at the tail")
	assert.Equal(t, 4, st.Len())
}

func TestAppendExchange_AfterReloadWithExchange(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1", "q0", "a0", "More", "Sure"))

	assert.False(t, st.AppendExchange("More", "Sure", t0))
	assert.True(t, st.AppendExchange("Other", "Sure", t0))
	assert.Equal(t, 6, st.Len())
}

func TestSnapshotIsImmutable(t *testing.T) {
	st, _ := newTestState(t)
	h := st.AppendOptimisticUserMessage("q")
	snap := st.Snapshot()

	st.ConfirmWithAssistantReply(h, "a", t0)

	require.Len(t, snap.Transcript, 1)
	assert.True(t, snap.Transcript[0].Pending)
}

func TestConfirmAfterResetIsIgnored(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1"))
	h := st.AppendOptimisticUserMessage("q")

	st.ResetToUnsavedNew()

	assert.False(t, st.ConfirmWithAssistantReply(h, "a", t0))
	assert.False(t, st.Contains(h))
	assert.Empty(t, st.Snapshot().Transcript)
}

func TestResetClearsError(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1", "q", "a"))
	st.SetError("Failed to send message")

	st.ResetToUnsavedNew()

	snap := st.Snapshot()
	assert.Equal(t, chat.ModeUnsavedNew, snap.Mode)
	assert.Empty(t, snap.Err)
	assert.Empty(t, snap.Transcript)
	assert.Nil(t, snap.Session)
}

func TestLoading(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1", "q", "a"))

	tok := st.BeginLoading()
	assert.Equal(t, chat.ModeLoading, st.Mode())
	assert.Equal(t, "s1", st.SessionID(), "previous session kept while loading")

	require.True(t, st.FailLoading(tok))
	assert.Equal(t, chat.ModeBound, st.Mode())
	assert.Len(t, st.Snapshot().Transcript, 2)
}

func TestLoading_OnlyLatestTokenApplies(t *testing.T) {
	st, _ := newTestState(t)

	first := st.BeginLoading()
	second := st.BeginLoading()

	assert.False(t, st.CompleteLoading(first, detail("s1")))
	assert.False(t, st.FailLoading(first))
	assert.Equal(t, chat.ModeLoading, st.Mode())

	require.True(t, st.CompleteLoading(second, detail("s2", "q", "a")))
	assert.Equal(t, "s2", st.SessionID())
}

func TestLoading_FailRestoresModeBeforeFirstLoad(t *testing.T) {
	st, _ := newTestState(t)

	st.BeginLoading()
	tok := st.BeginLoading()
	require.True(t, st.FailLoading(tok))

	assert.Equal(t, chat.ModeUnsavedNew, st.Mode())
}

func TestLoading_ResetAbandonsLoad(t *testing.T) {
	st, _ := newTestState(t)
	tok := st.BeginLoading()

	st.ResetToUnsavedNew()

	assert.False(t, st.CompleteLoading(tok, detail("s1")))
	assert.Equal(t, chat.ModeUnsavedNew, st.Mode())
}

func TestSetTitleOnlyForActive(t *testing.T) {
	st, _ := newTestState(t)
	st.BindToDetail(detail("s1"))

	assert.False(t, st.SetTitle("s2", "other"))
	assert.Equal(t, "Chat s1", st.Snapshot().Session.Title)

	assert.True(t, st.SetTitle("s1", "Renamed"))
	assert.Equal(t, "Renamed", st.Snapshot().Session.Title)
}

func TestSyncSummary(t *testing.T) {
	st, _ := newTestState(t)
	st.Bind(chat.SessionSummary{ID: "s1", Title: "Hello"})

	ok := st.SyncSummary(chat.SessionSummary{ID: "s1", Title: "Hello", MessageCount: 2})
	require.True(t, ok)
	assert.Equal(t, 2, st.Snapshot().Session.MessageCount)
	assert.False(t, st.SyncSummary(chat.SessionSummary{ID: "s9"}))
}
