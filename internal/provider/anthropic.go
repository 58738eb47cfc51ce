package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider returns a provider for apiKey. Extra request options
// (base URL, retries) are passed to the SDK client.
func NewAnthropicProvider(apiKey, model string, opts ...anthropicoption.RequestOption) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	opts = append([]anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) Answer(ctx context.Context, req *AnswerRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  p.buildMessages(req),
		MaxTokens: req.maxTokens(),
		System:    []anthropic.TextBlockParam{{Text: req.systemPrompt()}},
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// buildMessages converts history plus the question to Anthropic params.
func (p *AnthropicProvider) buildMessages(req *AnswerRequest) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case chat.RoleUser:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		case chat.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	return append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)))
}
