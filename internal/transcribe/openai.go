package transcribe

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRecognizer calls the Whisper transcription endpoint. Temperature 0
// gives greedy single-path decoding.
type OpenAIRecognizer struct {
	client      *openai.Client
	model       string
	language    string
	temperature float32
}

type OpenAIOptions struct {
	Model       string
	Language    string
	Temperature float32
	BaseURL     string
}

func NewOpenAIRecognizer(apiKey string, opts OpenAIOptions) *OpenAIRecognizer {
	config := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIRecognizer{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		language:    opts.Language,
		temperature: opts.Temperature,
	}
}

func (r *OpenAIRecognizer) Recognize(ctx context.Context, audioPath string) (Result, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       r.model,
		FilePath:    audioPath,
		Format:      openai.AudioResponseFormatVerboseJSON,
		Temperature: r.temperature,
		Language:    r.language,
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	result := Result{Language: resp.Language}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, Segment{Text: s.Text, Start: s.Start, End: s.End})
	}
	if len(result.Segments) == 0 && resp.Text != "" {
		result.Segments = []Segment{{Text: resp.Text, End: resp.Duration}}
	}
	return result, nil
}
