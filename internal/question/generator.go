// Package question asks a hosted language model for one behavioral
// interview question at a time.
package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/sjawhar/interview-practice/internal/llm"
)

const minQuestionLength = 10

var Topics = []string{
	"leadership and teamwork",
	"problem solving skills",
	"career goals and motivation",
	"technical skills and experience",
	"communication and interpersonal skills",
	"work ethic and reliability",
	"adaptability and learning",
	"conflict resolution",
	"project management",
	"innovation and creativity",
}

var errTooShort = errors.New("generated question is too short or empty")

type Generator struct {
	client llm.Client
	pick   func(n int) int
	logger *slog.Logger
}

type Option func(*Generator)

// WithPicker replaces the uniform topic picker. pick must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(g *Generator) {
		if pick != nil {
			g.pick = pick
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGenerator(client llm.Client, opts ...Option) *Generator {
	g := &Generator{
		client: client,
		pick:   rand.IntN,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slog.String("component", "question"))
	return g
}

func Prompt(topic string) string {
	return fmt.Sprintf("Generate an interview question about %s. Make it a clear, professional question and generate only the question.", topic)
}

// Generate sends one request and returns a trimmed question ending in "?".
func (g *Generator) Generate(ctx context.Context) (string, error) {
	if g.client == nil {
		return "", &llm.GenerationError{Op: "generate question", Err: errors.New("no language model configured")}
	}

	topic := Topics[g.pick(len(Topics))]
	g.logger.Debug("generating question", "topic", topic)

	reply, err := g.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: Prompt(topic)},
	})
	if err != nil {
		return "", &llm.GenerationError{Op: "generate question", Err: err}
	}

	return Normalize(reply)
}

// Normalize trims reply and appends a question mark when missing. Replies
// shorter than ten characters are rejected.
func Normalize(reply string) (string, error) {
	q := strings.TrimSpace(reply)
	if len([]rune(q)) < minQuestionLength {
		return "", &llm.GenerationError{Op: "generate question", Err: errTooShort}
	}
	if !strings.HasSuffix(q, "?") {
		q += "?"
	}
	return q, nil
}
