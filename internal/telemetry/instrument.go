package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sjawhar/interview-practice/internal/rating"
	"github.com/sjawhar/interview-practice/internal/session"
	"github.com/sjawhar/interview-practice/internal/transcribe"
)

const (
	OpGenerateQuestion = "generate_question"
	OpTranscribe       = "transcribe"
	OpRate             = "rate"
)

// Instruments records one duration sample and one outcome count per hosted
// call, tagged with the operation name.
type Instruments struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
	scores   metric.Int64Histogram
}

func NewInstruments(meter metric.Meter) (*Instruments, error) {
	duration, err := meter.Float64Histogram("interview_practice.call.duration",
		metric.WithDescription("Hosted model call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	calls, err := meter.Int64Counter("interview_practice.calls",
		metric.WithDescription("Hosted model calls by operation and outcome"))
	if err != nil {
		return nil, err
	}
	scores, err := meter.Int64Histogram("interview_practice.rating.score",
		metric.WithDescription("Normalized rating scores"),
		metric.WithExplicitBucketBoundaries(0, 2, 4, 6, 8, 10))
	if err != nil {
		return nil, err
	}
	return &Instruments{duration: duration, calls: calls, scores: scores}, nil
}

func (in *Instruments) observe(ctx context.Context, op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	in.duration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(attribute.String("op", op)))
	in.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome)))
}

func (in *Instruments) Questions(next session.QuestionSource) session.QuestionSource {
	return questionSource{next: next, in: in}
}

func (in *Instruments) Transcriber(next session.Transcriber) session.Transcriber {
	return transcriber{next: next, in: in}
}

func (in *Instruments) Rater(next session.Rater) session.Rater {
	return rater{next: next, in: in}
}

type questionSource struct {
	next session.QuestionSource
	in   *Instruments
}

func (q questionSource) Generate(ctx context.Context) (string, error) {
	started := time.Now()
	question, err := q.next.Generate(ctx)
	q.in.observe(ctx, OpGenerateQuestion, started, err)
	return question, err
}

type transcriber struct {
	next session.Transcriber
	in   *Instruments
}

func (t transcriber) Transcribe(ctx context.Context, audioPath string, opts ...transcribe.Option) (string, string, error) {
	started := time.Now()
	text, textPath, err := t.next.Transcribe(ctx, audioPath, opts...)
	t.in.observe(ctx, OpTranscribe, started, err)
	return text, textPath, err
}

type rater struct {
	next session.Rater
	in   *Instruments
}

func (r rater) Rate(ctx context.Context, question, transcript string) (rating.Rating, error) {
	started := time.Now()
	result, err := r.next.Rate(ctx, question, transcript)
	r.in.observe(ctx, OpRate, started, err)
	if err == nil && result.Score != nil {
		r.in.scores.Record(ctx, int64(*result.Score))
	}
	return result, err
}
