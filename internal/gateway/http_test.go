package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging/correlation"
)

type recordedRequest struct {
	method, path, auth, requestID string
	body                          map[string]string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*HTTPGateway, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method:    r.Method,
			path:      r.URL.EscapedPath(),
			auth:      r.Header.Get("Authorization"),
			requestID: r.Header.Get("X-Request-ID"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		reqs = append(reqs, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPGateway(srv.URL+"/api/", StaticCredentials{Value: "tok-123"}), &reqs
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListSessions(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"sessions":[
			{"id":7,"title":"Algebra","created_at":"2025-03-01T10:00:00","updated_at":"2025-03-01T11:30:00.123456","message_count":3},
			{"id":"abc","title":"Physics","created_at":"2025-03-01T09:00:00Z","updated_at":"2025-03-01T09:05:00+02:00"}
		]}`)
	})

	sessions, err := gw.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "7", sessions[0].ID)
	assert.Equal(t, "Algebra", sessions[0].Title)
	assert.Equal(t, 3, sessions[0].MessageCount)
	assert.Equal(t, time.Date(2025, 3, 1, 11, 30, 0, 123456000, time.UTC), sessions[0].UpdatedAt)
	assert.Equal(t, "abc", sessions[1].ID)
	assert.Equal(t, 0, sessions[1].MessageCount)
	assert.True(t, sessions[1].UpdatedAt.Equal(time.Date(2025, 3, 1, 7, 5, 0, 0, time.UTC)))

	require.Len(t, *reqs, 1)
	assert.Equal(t, "GET", (*reqs)[0].method)
	assert.Equal(t, "/api/chat-sessions", (*reqs)[0].path)
	assert.Equal(t, "Bearer tok-123", (*reqs)[0].auth)
}

func TestCreateSession_DefaultTitle(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"id":1,"title":"Chat 1","created_at":"2025-03-01T10:00:00","updated_at":"2025-03-01T10:00:00","message_count":0}`)
	})

	s, err := gw.CreateSession(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "1", s.ID)
	assert.Equal(t, "Chat 1", s.Title)
	assert.Equal(t, map[string]string{"title": chat.DefaultTitle}, (*reqs)[0].body)
	assert.Equal(t, "POST", (*reqs)[0].method)
}

func TestGetSessionDetail(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"id":5,"title":"Algebra","created_at":"2025-03-01T10:00:00","updated_at":"2025-03-01T10:02:00",
			"messages":[
				{"id":1,"question":"What is x?","answer":"A variable.","timestamp":"2025-03-01T10:01:00"},
				{"id":2,"question":"And y?","answer":"Another one.","timestamp":"2025-03-01T10:02:00"}
			]}`)
	})

	d, err := gw.GetSessionDetail(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "/api/chat-sessions/5", (*reqs)[0].path)
	assert.Equal(t, "Algebra", d.Title)
	require.Len(t, d.Exchanges, 2)
	assert.Equal(t, "What is x?", d.Exchanges[0].Question)
	assert.Equal(t, "Another one.", d.Exchanges[1].Answer)
	assert.Equal(t, 2, d.MessageCount, "count derived from messages when absent")
}

func TestGetSessionDetail_NotFound(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, `{"detail":"Chat session not found"}`)
	})

	_, err := gw.GetSessionDetail(context.Background(), "99")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chat.ErrNotFound))
	assert.Contains(t, err.Error(), "Chat session not found")
}

func TestRenameSession(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"id":5,"title":"Exam prep"}`)
	})

	require.NoError(t, gw.RenameSession(context.Background(), "5", "  Exam prep  "))
	require.Len(t, *reqs, 1)
	assert.Equal(t, "PUT", (*reqs)[0].method)
	assert.Equal(t, "/api/chat-sessions/5/title", (*reqs)[0].path)
	assert.Equal(t, map[string]string{"title": "Exam prep"}, (*reqs)[0].body)
}

func TestRenameSession_BlankTitleNeverSent(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{}`)
	})

	err := gw.RenameSession(context.Background(), "5", " \t ")
	assert.True(t, errors.Is(err, chat.ErrEmptyTitle))
	assert.Empty(t, *reqs)
}

func TestDeleteSession(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"message":"Chat session deleted successfully"}`)
	})

	require.NoError(t, gw.DeleteSession(context.Background(), "a/b"))
	assert.Equal(t, "DELETE", (*reqs)[0].method)
	assert.Equal(t, "/api/chat-sessions/a%2Fb", (*reqs)[0].path)
}

func TestAppendMessage(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"id":3,"question":"More","answer":"Sure.","timestamp":"2025-03-01T12:00:00"}`)
	})

	reply, err := gw.AppendMessage(context.Background(), "5", "More")
	require.NoError(t, err)
	assert.Equal(t, "Sure.", reply.Answer)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), reply.Timestamp)
	assert.Equal(t, "/api/chat-sessions/5/messages", (*reqs)[0].path)
	assert.Equal(t, map[string]string{"question": "More"}, (*reqs)[0].body)
}

func TestAppendMessage_DomainFailure(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, `{"detail":"The assistant could not find an answer"}`)
	})

	_, err := gw.AppendMessage(context.Background(), "5", "More")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chat.ErrDomain))
	assert.Equal(t, "The assistant could not find an answer", chat.UserMessage(err, "Failed to send message"))
}

func TestAppendMessage_TransportFailure(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := gw.AppendMessage(context.Background(), "5", "More")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chat.ErrTransport))
	assert.Equal(t, "Failed to send message", chat.UserMessage(err, "Failed to send message"))
}

func TestAppendMessage_EmptyQuestionNeverSent(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{}`)
	})

	_, err := gw.AppendMessage(context.Background(), "5", "   ")
	assert.True(t, errors.Is(err, chat.ErrEmptyMessage))
	assert.Empty(t, *reqs)
}

func TestStartSessionWithFirstMessage(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"session":{"id":"s1","title":"Hello","created_at":"2025-03-01T10:00:00Z","updated_at":"2025-03-01T10:00:00Z","message_count":1},
			"message":{"answer":"Hi there","timestamp":"2025-03-01T10:00:00Z"}}`)
	})

	res, err := gw.StartSessionWithFirstMessage(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "s1", res.Session.ID)
	assert.Equal(t, 1, res.Session.MessageCount)
	assert.Equal(t, "Hi there", res.Reply.Answer)
	assert.Equal(t, "/api/chat-sessions/start", (*reqs)[0].path)
}

func TestStartSession_MissingSessionIsTransportError(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"message":{"answer":"Hi","timestamp":"2025-03-01T10:00:00Z"}}`)
	})

	_, err := gw.StartSessionWithFirstMessage(context.Background(), "Hello")
	assert.True(t, errors.Is(err, chat.ErrTransport))
}

func TestUnauthorizedInvalidatesCredentials(t *testing.T) {
	var invalidated atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, `{"detail":"Could not validate credentials"}`)
	}))
	defer srv.Close()
	gw := NewHTTPGateway(srv.URL, StaticCredentials{Value: "expired", OnInvalidate: func() { invalidated.Add(1) }})

	_, err := gw.ListSessions(context.Background())
	assert.True(t, errors.Is(err, chat.ErrUnauthorized))
	assert.Equal(t, int32(1), invalidated.Load())
}

func TestMalformedBodyIsTransportError(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"sessions":`)
	})

	_, err := gw.ListSessions(context.Background())
	assert.True(t, errors.Is(err, chat.ErrTransport))
}

func TestValidationArrayDetailIsTransportError(t *testing.T) {
	gw, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 422, `{"detail":[{"loc":["body","question"],"msg":"field required"}]}`)
	})

	_, err := gw.AppendMessage(context.Background(), "5", "q")
	assert.True(t, errors.Is(err, chat.ErrTransport))
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	gw := NewHTTPGateway(srv.URL, nil, WithTimeout(50*time.Millisecond))
	_, err := gw.ListSessions(context.Background())
	assert.True(t, errors.Is(err, chat.ErrTransport))
}

func TestCorrelationIDForwarded(t *testing.T) {
	gw, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"sessions":[]}`)
	})

	ctx := correlation.WithID(context.Background(), "0badf00d")
	_, err := gw.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0badf00d", (*reqs)[0].requestID)
}

func TestNoTokenNoAuthorizationHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, 200, `{"sessions":[]}`)
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL, nil).ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}
