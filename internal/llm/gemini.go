package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		cc.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g := &geminiClient{client: client, model: model}
	if opts.maxTokens > 0 {
		g.config.MaxOutputTokens = int32(opts.maxTokens)
	}
	if opts.temperature != nil {
		t := float32(*opts.temperature)
		g.config.Temperature = &t
	}
	return g, nil
}

// geminiContents splits out the system instruction. Gemini names the
// assistant role "model".
func geminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		part := &genai.Part{Text: m.Content}
		switch m.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, part)
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}

	return system, contents
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if !hasUserMessage(messages) {
		return "", fmt.Errorf("gemini: %w", ErrNoUserMessage)
	}

	system, contents := geminiContents(messages)
	config := c.config
	config.SystemInstruction = system

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text, nil
}
