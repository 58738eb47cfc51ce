package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

type capturedRequest struct {
	Path string
	Body map[string]any
}

func newLLMServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func sampleRequest() *AnswerRequest {
	return &AnswerRequest{
		History: []Message{
			{Role: chat.RoleUser, Text: "Who teaches OS?"},
			{Role: chat.RoleAssistant, Text: "Prof. Rao."},
		},
		Question: "And networks?",
	}
}

func TestHistoryFromExchanges(t *testing.T) {
	exchanges := []chat.Exchange{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
	}

	all := HistoryFromExchanges(exchanges, 0)
	require.Len(t, all, 6)
	assert.Equal(t, Message{Role: chat.RoleUser, Text: "q1"}, all[0])
	assert.Equal(t, Message{Role: chat.RoleAssistant, Text: "a3"}, all[5])

	last := HistoryFromExchanges(exchanges, 2)
	require.Len(t, last, 4)
	assert.Equal(t, "q2", last[0].Text)
}

func TestAnswerRequestDefaults(t *testing.T) {
	req := &AnswerRequest{}
	assert.Equal(t, DefaultSystemPrompt, req.systemPrompt())
	assert.Equal(t, int64(DefaultMaxTokens), req.maxTokens())

	req = &AnswerRequest{SystemPrompt: "Be brief.", MaxTokens: 100}
	assert.Equal(t, "Be brief.", req.systemPrompt())
	assert.Equal(t, int64(100), req.maxTokens())
}

func TestAnthropicAnswer(t *testing.T) {
	srv, captured := newLLMServer(t, 200, `{
		"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
		"content":[{"type":"text","text":"Prof. Iyer "},{"type":"text","text":"teaches networks."}],
		"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)

	p := NewAnthropicProvider("key", "claude-test",
		anthropicoption.WithBaseURL(srv.URL+"/"), anthropicoption.WithMaxRetries(0))
	answer, err := p.Answer(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Prof. Iyer teaches networks.", answer)

	assert.Equal(t, "/v1/messages", captured.Path)
	assert.Equal(t, "claude-test", captured.Body["model"])
	msgs, ok := captured.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[2].(map[string]any)["role"])
	assert.NotEmpty(t, captured.Body["system"])
}

func TestAnthropicEmptyAnswer(t *testing.T) {
	srv, _ := newLLMServer(t, 200, `{"id":"msg_1","type":"message","role":"assistant","content":[],"usage":{}}`)

	p := NewAnthropicProvider("key", "", anthropicoption.WithBaseURL(srv.URL+"/"), anthropicoption.WithMaxRetries(0))
	_, err := p.Answer(context.Background(), sampleRequest())
	assert.True(t, errors.Is(err, ErrEmptyAnswer))
}

func TestAnthropicAPIError(t *testing.T) {
	srv, _ := newLLMServer(t, 400, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)

	p := NewAnthropicProvider("key", "", anthropicoption.WithBaseURL(srv.URL+"/"), anthropicoption.WithMaxRetries(0))
	_, err := p.Answer(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestOpenAIAnswer(t *testing.T) {
	srv, captured := newLLMServer(t, 200, `{
		"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-test",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Prof. Iyer.  "}}],
		"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`)

	p := NewOpenAIProvider("key", srv.URL+"/", "gpt-test", option.WithMaxRetries(0))
	answer, err := p.Answer(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Prof. Iyer.", answer)

	assert.Equal(t, "/chat/completions", captured.Path)
	msgs, ok := captured.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "And networks?", msgs[3].(map[string]any)["content"])
}

func TestOpenAINoChoices(t *testing.T) {
	srv, _ := newLLMServer(t, 200, `{"id":"x","object":"chat.completion","choices":[]}`)

	p := NewOpenAIProvider("key", srv.URL+"/", "", option.WithMaxRetries(0))
	_, err := p.Answer(context.Background(), sampleRequest())
	assert.True(t, errors.Is(err, ErrEmptyAnswer))
}

func TestOpenAIContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key", srv.URL+"/", "", option.WithMaxRetries(0))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Answer(ctx, sampleRequest())
	require.Error(t, err)
}

func TestProviderNames(t *testing.T) {
	assert.Equal(t, "deepseek", NewOpenAIProvider("k", "https://api.deepseek.com", "").Name())
	assert.Equal(t, "openai", NewOpenAIProvider("k", "", "").Name())
	assert.Equal(t, "gpt-4o-mini", NewOpenAIProvider("k", "", "").DefaultModel())
	assert.Equal(t, "anthropic", NewAnthropicProvider("k", "").Name())
}
