// Package storage keeps the history of submitted practice attempts.
package storage

import (
	"errors"
	"time"

	"github.com/sjawhar/interview-practice/internal/rating"
)

// Attempt is one submitted answer: the question it answered, the audio and
// transcript if any, and the rating if the user asked for one.
type Attempt struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"user_id"`
	QuestionID  int            `json:"question_id"`
	ResponseID  int            `json:"response_id"`
	Question    string         `json:"question"`
	AudioPath   string         `json:"audio_path,omitempty"`
	Transcript  string         `json:"transcript"`
	Rating      *rating.Rating `json:"rating,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

type Recorder interface {
	RecordAttempt(a Attempt) error
}

type tee []Recorder

// Tee records each attempt with every recorder in order. All recorders run
// even if one fails; the errors are joined.
func Tee(recorders ...Recorder) Recorder {
	out := make(tee, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (t tee) RecordAttempt(a Attempt) error {
	var errs []error
	for _, r := range t {
		if err := r.RecordAttempt(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
