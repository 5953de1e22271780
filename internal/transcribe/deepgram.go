package transcribe

import (
	"context"
	"encoding/json"
	"fmt"

	restapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const DefaultDeepgramModel = "base"

// DeepgramRecognizer uploads the file to Deepgram's prerecorded endpoint and
// uses utterances as segments.
type DeepgramRecognizer struct {
	api      *restapi.Client
	model    string
	language string
}

type DeepgramOptions struct {
	Model    string
	Language string
	Host     string
}

func NewDeepgramRecognizer(apiKey string, opts DeepgramOptions) *DeepgramRecognizer {
	model := opts.Model
	if model == "" {
		model = DefaultDeepgramModel
	}
	c := client.NewREST(apiKey, &interfaces.ClientOptions{Host: opts.Host})
	return &DeepgramRecognizer{api: restapi.New(c), model: model, language: opts.Language}
}

func (r *DeepgramRecognizer) Recognize(ctx context.Context, audioPath string) (Result, error) {
	resp, err := r.api.FromFile(ctx, audioPath, &interfaces.PreRecordedTranscriptionOptions{
		Model:      r.model,
		Language:   r.language,
		Punctuate:  true,
		Utterances: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("deepgram transcription: %w", err)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return Result{}, fmt.Errorf("deepgram response: %w", err)
	}
	return parseDeepgramResponse(data)
}

type deepgramResponse struct {
	Results struct {
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
}

// parseDeepgramResponse reads only the fields used here, so it does not
// depend on pointer layout of the SDK response types.
func parseDeepgramResponse(data []byte) (Result, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Result{}, fmt.Errorf("decode deepgram response: %w", err)
	}

	var result Result
	if len(resp.Results.Channels) > 0 {
		result.Language = resp.Results.Channels[0].DetectedLanguage
	}

	for _, u := range resp.Results.Utterances {
		result.Segments = append(result.Segments, Segment{Text: u.Transcript, Start: u.Start, End: u.End})
	}
	if len(result.Segments) > 0 {
		return result, nil
	}

	if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		if text := resp.Results.Channels[0].Alternatives[0].Transcript; text != "" {
			result.Segments = []Segment{{Text: text, End: resp.Metadata.Duration}}
		}
	}
	return result, nil
}
