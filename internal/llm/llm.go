// Package llm wraps hosted text-generation providers behind a single
// role-tagged chat completion call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client issues exactly one completion request per call. No retries.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

var (
	ErrNoUserMessage = errors.New("no user message provided")
	ErrEmptyResponse = errors.New("empty response")
)

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	maxTokens   int
	temperature *float64
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the completion length. Zero leaves the provider default,
// except for anthropic which requires a value and falls back to 8192.
func WithMaxTokens(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature pins the sampling temperature. Without it each provider
// samples at its own default.
func WithTemperature(t float64) Option {
	return func(o *clientOptions) {
		if t >= 0 {
			o.temperature = &t
		}
	}
}

// GenerationError reports a hosted generation call that failed or returned
// an unusable result.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func hasUserMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// KeyFunc resolves the API key for a provider name.
type KeyFunc func(provider string) string

// NewFromModel builds a client from a "provider/model" string, looking the
// key up through keys. The client is meant to be built once at startup and
// shared by every component that needs it.
func NewFromModel(model string, keys KeyFunc, opts ...Option) (Client, error) {
	provider, modelName, err := ParseModel(model)
	if err != nil {
		return nil, err
	}

	apiKey := ""
	if keys != nil {
		apiKey = keys(provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for LLM provider %q", provider)
	}

	return NewClient(provider, apiKey, modelName, opts...)
}
