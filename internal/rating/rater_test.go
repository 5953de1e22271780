package rating

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/sjawhar/interview-practice/internal/llm"
)

type mockLLMClient struct {
	calls        int
	response     string
	err          error
	lastMessages []llm.Message
}

func (m *mockLLMClient) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.calls++
	m.lastMessages = append([]llm.Message(nil), messages...)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func intPtr(i int) *int { return &i }

func TestRateClampsScoreAndWrapsString(t *testing.T) {
	client := &mockLLMClient{response: `Here you go: {"score": 11.6, "summary": "ok", "strengths": "clear"} thanks`}
	r := NewRater(client, nil)

	got, err := r.Rate(context.Background(), "Tell me about a conflict?", "I talked to them.")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}

	want := Rating{Score: intPtr(10), Summary: "ok", Strengths: []string{"clear"}, Improvements: []string{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected rating:\n got %#v\nwant %#v", got, want)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 llm call, got %d", client.calls)
	}
}

func TestRateFallbackOnNonJSON(t *testing.T) {
	r := NewRater(&mockLLMClient{response: "Great answer!"}, nil)

	got, err := r.Rate(context.Background(), "q", "t")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}

	want := Rating{Score: nil, Summary: "Great answer!", Strengths: []string{}, Improvements: []string{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected rating:\n got %#v\nwant %#v", got, want)
	}
}

func TestRateTruncatesListsAndRounds(t *testing.T) {
	r := NewRater(&mockLLMClient{response: `{"score": 6.5, "summary": "fine", "strengths": ["a","b","c","d","e","f","g"], "improvements": [1, true, null]}`}, nil)

	got, err := r.Rate(context.Background(), "q", "t")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if got.Score == nil || *got.Score != 6 {
		t.Fatalf("expected score 6, got %v", got.Score)
	}
	if !reflect.DeepEqual(got.Strengths, []string{"a", "b", "c", "d", "e", "f"}) {
		t.Fatalf("expected 6 strengths, got %#v", got.Strengths)
	}
	if !reflect.DeepEqual(got.Improvements, []string{"1", "true", "null"}) {
		t.Fatalf("expected stringified improvements, got %#v", got.Improvements)
	}
}

func TestRateSendsSystemAndUserPrompt(t *testing.T) {
	client := &mockLLMClient{response: `{"score": 5}`}
	r := NewRater(client, nil)

	if _, err := r.Rate(context.Background(), "Why us?", "Because."); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}

	if len(client.lastMessages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.lastMessages))
	}
	if client.lastMessages[0].Role != llm.RoleSystem || client.lastMessages[0].Content != SystemPrompt {
		t.Fatalf("unexpected system message %#v", client.lastMessages[0])
	}
	user := client.lastMessages[1]
	if user.Role != llm.RoleUser {
		t.Fatalf("expected user role, got %q", user.Role)
	}
	for _, part := range []string{"Behavioral interview question:\nWhy us?", "Candidate transcript (ASR, may include minor errors):\nBecause.", "- 0-2: Off-topic or incoherent.", "compact JSON"} {
		if !strings.Contains(user.Content, part) {
			t.Fatalf("expected user prompt to contain %q, got %q", part, user.Content)
		}
	}
}

func TestRateWrapsClientError(t *testing.T) {
	cause := errors.New("timeout")
	_, err := NewRater(&mockLLMClient{err: cause}, nil).Rate(context.Background(), "q", "t")

	var genErr *llm.GenerationError
	if !errors.As(err, &genErr) || !errors.Is(err, cause) {
		t.Fatalf("expected GenerationError wrapping cause, got %v", err)
	}
}

func TestParse(t *testing.T) {
	long := strings.Repeat("x", 600)

	tests := []struct {
		name  string
		reply string
		want  Rating
	}{
		{
			name:  "direct json",
			reply: `{"score": 8, "summary": "good", "strengths": ["star"], "improvements": ["impact"]}`,
			want:  Rating{Score: intPtr(8), Summary: "good", Strengths: []string{"star"}, Improvements: []string{"impact"}},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"score\": 3, \"summary\": \"vague\"}\n```",
			want:  Rating{Score: intPtr(3), Summary: "vague", Strengths: []string{}, Improvements: []string{}},
		},
		{
			name:  "negative score clamps to zero",
			reply: `{"score": -4}`,
			want:  Rating{Score: intPtr(0), Strengths: []string{}, Improvements: []string{}},
		},
		{
			name:  "string score is dropped",
			reply: `{"score": "7", "summary": 42, "strengths": "  ", "improvements": {"a": 1}}`,
			want:  Rating{Score: nil, Summary: "", Strengths: []string{}, Improvements: []string{}},
		},
		{
			name:  "broken braces fall back",
			reply: "  score {7 out of 10}  ",
			want:  Rating{Score: nil, Summary: "score {7 out of 10}", Strengths: []string{}, Improvements: []string{}},
		},
		{
			name:  "json array is not an object",
			reply: `[1,2,3]`,
			want:  Rating{Score: nil, Summary: "[1,2,3]", Strengths: []string{}, Improvements: []string{}},
		},
		{
			name:  "fallback summary is truncated",
			reply: long,
			want:  Rating{Score: nil, Summary: long[:500], Strengths: []string{}, Improvements: []string{}},
		},
		{
			name:  "empty reply",
			reply: "",
			want:  Rating{Score: nil, Summary: "", Strengths: []string{}, Improvements: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.reply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse(%q):\n got %#v\nwant %#v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestScoreRoundsHalfToEven(t *testing.T) {
	for in, want := range map[float64]int{0.5: 0, 2.5: 2, 6.5: 6, 7.5: 8, 9.49: 9, 9.51: 10, 10.4: 10, 0.49: 0} {
		got := normalizeScore(in)
		if got == nil || *got != want {
			t.Fatalf("normalizeScore(%v) = %v, want %d", in, got, want)
		}
	}
}

func TestScoreBooleanCountsAsNumber(t *testing.T) {
	for reply, want := range map[string]int{`{"score": true}`: 1, `{"score": false}`: 0} {
		got := Parse(reply)
		if got.Score == nil || *got.Score != want {
			t.Fatalf("Parse(%s) score = %v, want %d", reply, got.Score, want)
		}
	}
}

func TestRateEmptyReplyFallsBack(t *testing.T) {
	client := &mockLLMClient{err: fmt.Errorf("openai: %w", llm.ErrEmptyResponse)}

	got, err := NewRater(client, nil).Rate(context.Background(), "q", "t")
	if err != nil {
		t.Fatalf("expected no error for empty reply, got %v", err)
	}
	want := Rating{Score: nil, Summary: "", Strengths: []string{}, Improvements: []string{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected fallback rating, got %#v", got)
	}
}
