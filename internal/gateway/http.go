package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging"
	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/logging/correlation"
)

const (
	defaultTimeout  = 60 * time.Second
	maxResponseSize = 8 << 20
)

// HTTPGateway implements Gateway against the chat-sessions REST API.
type HTTPGateway struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	logger  *slog.Logger
}

var _ Gateway = (*HTTPGateway)(nil)

// Option configures an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient replaces the HTTP client (and its timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.client = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGateway) {
		if d > 0 {
			g.client = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *HTTPGateway) { g.logger = l }
}

// NewHTTPGateway returns a gateway for the API rooted at baseURL
// (e.g. "http://localhost:8000/api").
func NewHTTPGateway(baseURL string, creds Credentials, opts ...Option) *HTTPGateway {
	if creds == nil {
		creds = StaticCredentials{}
	}
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *HTTPGateway) ListSessions(ctx context.Context) ([]chat.SessionSummary, error) {
	var resp struct {
		Sessions []wireSession `json:"sessions"`
	}
	if err := g.do(ctx, "list sessions", http.MethodGet, "/chat-sessions", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]chat.SessionSummary, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		out = append(out, s.summary())
	}
	return out, nil
}

func (g *HTTPGateway) CreateSession(ctx context.Context, title string) (chat.SessionSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = chat.DefaultTitle
	}
	var resp wireSession
	body := map[string]string{"title": title}
	if err := g.do(ctx, "create session", http.MethodPost, "/chat-sessions", body, &resp); err != nil {
		return chat.SessionSummary{}, err
	}
	return resp.summary(), nil
}

func (g *HTTPGateway) GetSessionDetail(ctx context.Context, id string) (chat.SessionDetail, error) {
	if strings.TrimSpace(id) == "" {
		return chat.SessionDetail{}, chat.ErrEmptySessionID
	}
	var resp wireDetail
	if err := g.do(ctx, "get session", http.MethodGet, sessionPath(id), nil, &resp); err != nil {
		return chat.SessionDetail{}, err
	}
	return resp.detail(), nil
}

func (g *HTTPGateway) RenameSession(ctx context.Context, id, title string) error {
	title, err := normalizeTitle(title)
	if err != nil {
		return err
	}
	body := map[string]string{"title": title}
	return g.do(ctx, "rename session", http.MethodPut, sessionPath(id)+"/title", body, nil)
}

func (g *HTTPGateway) DeleteSession(ctx context.Context, id string) error {
	return g.do(ctx, "delete session", http.MethodDelete, sessionPath(id), nil, nil)
}

func (g *HTTPGateway) AppendMessage(ctx context.Context, sessionID, question string) (chat.Reply, error) {
	question, err := normalizeQuestion(question)
	if err != nil {
		return chat.Reply{}, err
	}
	var resp wireReply
	body := map[string]string{"question": question}
	if err := g.do(ctx, "send message", http.MethodPost, sessionPath(sessionID)+"/messages", body, &resp); err != nil {
		return chat.Reply{}, err
	}
	return resp.reply(), nil
}

func (g *HTTPGateway) StartSessionWithFirstMessage(ctx context.Context, question string) (chat.StartResult, error) {
	question, err := normalizeQuestion(question)
	if err != nil {
		return chat.StartResult{}, err
	}
	var resp struct {
		Session wireSession `json:"session"`
		Message wireReply   `json:"message"`
	}
	body := map[string]string{"question": question}
	if err := g.do(ctx, "start session", http.MethodPost, "/chat-sessions/start", body, &resp); err != nil {
		return chat.StartResult{}, err
	}
	if resp.Session.ID == "" {
		return chat.StartResult{}, chat.Transport("start session", http.StatusOK, errors.New("response carries no session"))
	}
	return chat.StartResult{Session: resp.Session.summary(), Reply: resp.Message.reply()}, nil
}

// do performs one JSON request. out may be nil when the response body is
// ignored.
func (g *HTTPGateway) do(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return chat.Transport(op, 0, fmt.Errorf("encode request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return chat.Transport(op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WarnContext(ctx, "request failed", "op", op, "method", method, "path", path, "error", err)
		return chat.Transport(op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return chat.Transport(op, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	g.logger.DebugContext(ctx, "request done",
		"op", op, "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return chat.Transport(op, resp.StatusCode, errors.New("empty response body"))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return chat.Transport(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	return g.statusError(op, resp.StatusCode, data)
}

func (g *HTTPGateway) statusError(op string, status int, body []byte) error {
	detail := parseDetail(body)
	switch status {
	case http.StatusUnauthorized:
		g.creds.Invalidate()
		return &chat.Error{Kind: chat.KindUnauthorized, Op: op, Message: detail, Status: status}
	case http.StatusNotFound:
		if detail == "" {
			detail = "not found"
		}
		return &chat.Error{Kind: chat.KindNotFound, Op: op, Message: detail, Status: status}
	}
	if detail != "" {
		return chat.Domain(op, status, detail)
	}
	return chat.Transport(op, status, fmt.Errorf("unexpected status %d", status))
}

// parseDetail extracts a string "detail" field from an error body. Other
// shapes (validation arrays, HTML error pages) yield "".
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func sessionPath(id string) string {
	return "/chat-sessions/" + url.PathEscape(id)
}
