package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openaiClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature *float64
}

// newOpenAIClient also serves OpenAI-compatible routers (Hugging Face,
// OpenRouter, vLLM) through WithBaseURL.
func newOpenAIClient(apiKey, model string, opts *clientOptions) (*openaiClient, error) {
	config := openai.DefaultConfig(apiKey)
	if opts.baseURL != "" {
		config.BaseURL = opts.baseURL
	}
	return &openaiClient{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   opts.maxTokens,
		temperature: opts.temperature,
	}, nil
}

func openaiRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func (c *openaiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if !hasUserMessage(messages) {
		return "", fmt.Errorf("openai: %w", ErrNoUserMessage)
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openaiRole(m.Role), Content: m.Content})
	}
	if c.maxTokens > 0 {
		req.MaxCompletionTokens = c.maxTokens
	}
	if c.temperature != nil {
		req.Temperature = float32(*c.temperature)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices: %w", ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return content, nil
}
