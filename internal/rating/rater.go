// Package rating scores a transcribed interview answer with a hosted
// language model and normalizes whatever comes back into a Rating.
package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sjawhar/interview-practice/internal/llm"
)

const (
	MaxScore        = 10
	MaxListItems    = 6
	fallbackSummary = 500
)

const SystemPrompt = "You are a behavioral interview evaluator. Rate responses on overall thought process, clarity, " +
	"structure (STAR), relevance, self-awareness, and impact. Do NOT penalize minor grammar or " +
	"ASR transcription artifacts. Be concise and professional."

const Rubric = "Scoring rubric (0-10):\n" +
	"- 9-10: Exceptional structure (STAR), clear reasoning, strong impact, self-awareness.\n" +
	"- 7-8: Good structure and reasoning; mostly relevant with actionable examples.\n" +
	"- 5-6: Some structure; generic or partially relevant; limited depth.\n" +
	"- 3-4: Vague, little structure; weak linkage to the question.\n" +
	"- 0-2: Off-topic or incoherent.\n" +
	"Output strictly in compact JSON with keys: score (integer 0-10), summary (string)," +
	" strengths (array of strings), improvements (array of strings)."

// Rating is the normalized evaluation. Score is nil when the model gave no
// usable number.
type Rating struct {
	Score        *int     `json:"score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type Rater struct {
	client llm.Client
	logger *slog.Logger
}

func NewRater(client llm.Client, logger *slog.Logger) *Rater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rater{client: client, logger: logger.With(slog.String("component", "rating"))}
}

func UserPrompt(question, transcript string) string {
	return fmt.Sprintf("Behavioral interview question:\n%s\n\nCandidate transcript (ASR, may include minor errors):\n%s\n\n%s",
		question, transcript, Rubric)
}

// Rate sends one request. Only a failed hosted call is an error; an empty
// reply or one that is not valid JSON still yields a Rating.
func (r *Rater) Rate(ctx context.Context, question, transcript string) (Rating, error) {
	if r.client == nil {
		return Rating{}, &llm.GenerationError{Op: "rate response", Err: errors.New("no language model configured")}
	}

	reply, err := r.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: UserPrompt(question, transcript)},
	})
	if errors.Is(err, llm.ErrEmptyResponse) {
		reply, err = "", nil
	}
	if err != nil {
		return Rating{}, &llm.GenerationError{Op: "rate response", Err: err}
	}

	raw, ok := extractJSON(reply)
	if !ok {
		r.logger.Warn("rating reply was not JSON, using fallback", "reply_chars", len(reply))
	}
	return normalize(raw), nil
}

// Parse extracts and normalizes a raw model reply.
func Parse(reply string) Rating {
	raw, _ := extractJSON(reply)
	return normalize(raw)
}

// extractJSON tries the whole reply, then the span from the first "{" to
// the last "}". When both fail it returns a summary-only object and false.
func extractJSON(reply string) (map[string]any, bool) {
	if obj, ok := decodeObject(reply); ok {
		return obj, true
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		if obj, ok := decodeObject(reply[start : end+1]); ok {
			return obj, true
		}
	}

	return map[string]any{
		"score":        nil,
		"summary":      truncateRunes(strings.TrimSpace(reply), fallbackSummary),
		"strengths":    []any{},
		"improvements": []any{},
	}, false
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func normalize(raw map[string]any) Rating {
	summary, _ := raw["summary"].(string)
	return Rating{
		Score:        normalizeScore(raw["score"]),
		Summary:      summary,
		Strengths:    normalizeList(raw["strengths"]),
		Improvements: normalizeList(raw["improvements"]),
	}
}

// normalizeScore rounds half to even. Booleans count as 1 and 0.
func normalizeScore(v any) *int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case bool:
		if n {
			f = 1
		}
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	f = math.Max(0, math.Min(MaxScore, math.RoundToEven(f)))
	score := int(f)
	return &score
}

func normalizeList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, min(len(val), MaxListItems))
		for _, item := range val {
			if len(out) == MaxListItems {
				break
			}
			out = append(out, stringify(item))
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
