package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

// OpenAIProvider implements Provider for all OpenAI-compatible APIs,
// including OpenAI, DeepSeek, Kimi, Qwen, Groq, etc.
type OpenAIProvider struct {
	client openai.Client
	model  string
	name   string
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider returns a provider for the API at baseURL ("" means
// OpenAI itself).
func NewOpenAIProvider(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		model:  model,
		name:   nameFromBaseURL(baseURL),
	}
}

func nameFromBaseURL(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "deepseek"):
		return "deepseek"
	case strings.Contains(baseURL, "moonshot"):
		return "kimi"
	case strings.Contains(baseURL, "dashscope"):
		return "qwen"
	case strings.Contains(baseURL, "groq"):
		return "groq"
	}
	return "openai"
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) Answer(ctx context.Context, req *AnswerRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		Messages:  p.buildMessages(req),
		MaxTokens: openai.Int(req.maxTokens()),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// buildMessages converts the system prompt, history and question to
// OpenAI params.
func (p *OpenAIProvider) buildMessages(req *AnswerRequest) []openai.ChatCompletionMessageParamUnion {
	params := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.systemPrompt())}
	for _, m := range req.History {
		switch m.Role {
		case chat.RoleUser:
			params = append(params, openai.UserMessage(m.Text))
		case chat.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Text))
		}
	}
	return append(params, openai.UserMessage(req.Question))
}
