package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic requires max_tokens on every request.
const defaultAnthropicMaxTokens = 2048

type anthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
}

func newAnthropicClient(apiKey, model string, opts *clientOptions) (*anthropicClient, error) {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if opts.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.baseURL))
	}

	c := &anthropicClient{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		maxTokens:   defaultAnthropicMaxTokens,
		temperature: opts.temperature,
	}
	if opts.maxTokens > 0 {
		c.maxTokens = int64(opts.maxTokens)
	}
	return c, nil
}

// anthropicParams moves system messages into the top-level system field.
func (c *anthropicClient) anthropicParams(messages []Message) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	return params
}

func (c *anthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if !hasUserMessage(messages) {
		return "", fmt.Errorf("anthropic: %w", ErrNoUserMessage)
	}

	resp, err := c.client.Messages.New(ctx, c.anthropicParams(messages))
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var b strings.Builder
	for i := range resp.Content {
		if block := &resp.Content[i]; block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}
	return text, nil
}
