// Package provider answers chat questions with an LLM. Each adapter
// (anthropic.go, openai.go) turns an AnswerRequest into one call to its API
// and returns the assistant's text.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful college assistant. Answer students' questions " +
	"clearly and conversationally, using the earlier messages of this chat as context. " +
	"If you do not know something, say so."

// DefaultMaxTokens caps the length of an answer.
const DefaultMaxTokens = 2048

// ErrEmptyAnswer is returned when the model replies without any text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Message is one prior turn sent as context.
type Message struct {
	Role chat.Role
	Text string
}

// AnswerRequest is the provider-neutral request for one answer.
type AnswerRequest struct {
	Model        string
	SystemPrompt string
	History      []Message
	Question     string
	MaxTokens    int
}

// Provider produces answers.
type Provider interface {
	// Answer returns the assistant's reply to req.Question.
	Answer(ctx context.Context, req *AnswerRequest) (string, error)

	// Name returns the provider identifier, e.g. "anthropic", "openai", "deepseek".
	Name() string

	DefaultModel() string
}

// HistoryFromExchanges turns the last max exchanges into alternating user
// and assistant messages. max <= 0 keeps all of them.
func HistoryFromExchanges(exchanges []chat.Exchange, max int) []Message {
	if max > 0 && len(exchanges) > max {
		exchanges = exchanges[len(exchanges)-max:]
	}
	out := make([]Message, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		out = append(out,
			Message{Role: chat.RoleUser, Text: ex.Question},
			Message{Role: chat.RoleAssistant, Text: ex.Answer},
		)
	}
	return out
}

func (r *AnswerRequest) systemPrompt() string {
	if strings.TrimSpace(r.SystemPrompt) == "" {
		return DefaultSystemPrompt
	}
	return r.SystemPrompt
}

func (r *AnswerRequest) maxTokens() int64 {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return int64(r.MaxTokens)
}
