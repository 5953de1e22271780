// Package session drives one practice session: question, recording,
// transcript, rating and submit, one action at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/interview-practice/internal/rating"
	"github.com/sjawhar/interview-practice/internal/storage"
)

const archiveTimeout = 2 * time.Minute

// Deps are the controller's collaborators. Questions, Recordings,
// Transcriber and Rater are required; the rest may be nil.
type Deps struct {
	Questions   QuestionSource
	Recordings  RecordingSaver
	Transcriber Transcriber
	Rater       Rater
	History     History
	Archiver    Archiver
	Hub         EventBroadcaster
	Logger      *slog.Logger
}

type Controller struct {
	userID      string
	questions   QuestionSource
	recordings  RecordingSaver
	transcriber Transcriber
	rater       Rater
	history     History
	archiver    Archiver
	hub         EventBroadcaster
	logger      *slog.Logger
	now         func() time.Time

	archives sync.WaitGroup

	mu             sync.Mutex
	busy           string
	state          State
	questionID     int
	responseID     int
	question       string
	lastAudioPath  string
	pendingPath    string
	transcript     string
	transcriptPath string
	rating         *rating.Rating
	lastErr        string
}

func NewController(userID string, deps Deps) (*Controller, error) {
	switch {
	case deps.Questions == nil:
		return nil, errors.New("session: question source is required")
	case deps.Recordings == nil:
		return nil, errors.New("session: recording saver is required")
	case deps.Transcriber == nil:
		return nil, errors.New("session: transcriber is required")
	case deps.Rater == nil:
		return nil, errors.New("session: rater is required")
	}

	if strings.TrimSpace(userID) == "" {
		userID = NewUserID()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		userID:      userID,
		questions:   deps.Questions,
		recordings:  deps.Recordings,
		transcriber: deps.Transcriber,
		rater:       deps.Rater,
		history:     deps.History,
		archiver:    deps.Archiver,
		hub:         deps.Hub,
		logger:      logger.With(slog.String("component", "session"), slog.String("user_id", userID)),
		now:         time.Now,
		state:       Idle,
		questionID:  1,
		responseID:  1,
	}, nil
}

func (c *Controller) UserID() string {
	return c.userID
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		UserID:               c.userID,
		State:                c.state,
		QuestionID:           c.questionID,
		ResponseID:           c.responseID,
		Question:             c.question,
		LastAudioPath:        c.lastAudioPath,
		PendingTranscription: c.pendingPath != "",
		Transcript:           c.transcript,
		TranscriptPath:       c.transcriptPath,
		LastError:            c.lastErr,
		Busy:                 c.busy,
	}
	if c.rating != nil {
		r := *c.rating
		snap.Rating = &r
	}
	return snap
}

// Start requests a question and leaves Idle. Counters carry over from any
// earlier run of the session.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.acquire(ActionStart, Idle); err != nil {
		return err
	}
	defer c.release()

	q, err := c.generate(ctx, ActionStart)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.question = q
	c.clearResponseLocked()
	c.state = QuestionDisplayed
	qid, rid := c.questionID, c.responseID
	c.mu.Unlock()

	c.logger.Info("session started", "question_id", qid, "response_id", rid)
	if c.hub != nil {
		c.hub.BroadcastQuestionReady(qid, rid, q)
	}
	return nil
}

// NewQuestion replaces the question, moving to the next question id. A
// failed generation leaves everything as it was.
func (c *Controller) NewQuestion(ctx context.Context) error {
	if err := c.acquire(ActionNewQuestion, QuestionDisplayed, TranscriptionPending, TranscriptReady, Rated); err != nil {
		return err
	}
	defer c.release()

	return c.nextQuestion(ctx)
}

// nextQuestion assumes the caller holds the busy slot.
func (c *Controller) nextQuestion(ctx context.Context) error {
	q, err := c.generate(ctx, ActionNewQuestion)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.questionID++
	c.responseID = 1
	c.question = q
	c.clearResponseLocked()
	c.state = QuestionDisplayed
	qid, rid := c.questionID, c.responseID
	c.mu.Unlock()

	c.logger.Info("new question", "question_id", qid)
	if c.hub != nil {
		c.hub.BroadcastQuestionReady(qid, rid, q)
	}
	return nil
}

func (c *Controller) generate(ctx context.Context, action string) (string, error) {
	c.notifyBusy(action)
	q, err := c.questions.Generate(ctx)
	c.notifyIdle(action, err)
	if err != nil {
		c.setError(err)
		c.logger.Error("question generation failed", "error", err)
		return "", err
	}
	return q, nil
}

// AddRecording saves audio for the current question and response and marks
// it as awaiting transcription. A newer recording supersedes an older one.
func (c *Controller) AddRecording(audio []byte) error {
	if err := c.acquire(ActionRecord, QuestionDisplayed, TranscriptionPending, TranscriptReady, Rated); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	qid, rid, q := c.questionID, c.responseID, c.question
	c.mu.Unlock()

	path, rec, err := c.recordings.Save(audio, c.userID, qid, rid, q)
	if err != nil {
		c.setError(err)
		c.logger.Error("save recording failed", "error", err)
		return err
	}

	c.mu.Lock()
	c.lastAudioPath = path
	c.pendingPath = path
	c.transcript = ""
	c.transcriptPath = ""
	c.rating = nil
	c.lastErr = ""
	c.state = TranscriptionPending
	c.mu.Unlock()

	if c.hub != nil {
		c.hub.BroadcastRecordingSaved(rec)
	}
	c.archive(path, c.recordings.MetadataPath(c.userID))
	return nil
}

// TranscribePending transcribes the recording saved last, once. Calls with
// nothing pending, or while that transcription is already running, do
// nothing.
func (c *Controller) TranscribePending(ctx context.Context) error {
	c.mu.Lock()
	if c.busy == ActionTranscribe {
		c.mu.Unlock()
		return nil
	}
	if c.busy != "" {
		busy := c.busy
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, busy)
	}
	if c.state != TranscriptionPending || c.pendingPath == "" || c.pendingPath != c.lastAudioPath {
		c.mu.Unlock()
		return nil
	}
	c.busy = ActionTranscribe
	path := c.pendingPath
	c.mu.Unlock()
	defer c.release()

	c.notifyBusy(ActionTranscribe)
	text, textPath, err := c.transcriber.Transcribe(ctx, path)
	c.notifyIdle(ActionTranscribe, err)

	c.mu.Lock()
	c.pendingPath = ""
	c.transcript = text
	c.transcriptPath = textPath
	c.state = TranscriptReady
	if err != nil {
		c.transcript = ""
		c.transcriptPath = ""
		c.lastErr = err.Error()
	} else {
		c.lastErr = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("transcription failed", "file", path, "error", err)
	} else {
		c.logger.Info("transcript ready", "file", path, "chars", len(text))
	}
	if c.hub != nil {
		c.hub.BroadcastTranscriptReady(path, text, err)
	}
	return err
}

// SetTypedResponse uses typed text as the answer instead of a recording.
func (c *Controller) SetTypedResponse(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNoResponse
	}
	if err := c.acquire(ActionType, QuestionDisplayed, TranscriptionPending, TranscriptReady, Rated); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	c.lastAudioPath = ""
	c.pendingPath = ""
	c.transcript = text
	c.transcriptPath = ""
	c.rating = nil
	c.lastErr = ""
	c.state = TranscriptReady
	c.mu.Unlock()
	return nil
}

// Evaluate rates the current transcript. On failure the previous rating
// and state are kept.
func (c *Controller) Evaluate(ctx context.Context) error {
	if err := c.acquire(ActionEvaluate, TranscriptReady, Rated); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	q, transcript := c.question, c.transcript
	c.mu.Unlock()

	if strings.TrimSpace(transcript) == "" {
		return ErrNoTranscript
	}

	c.notifyBusy(ActionEvaluate)
	r, err := c.rater.Rate(ctx, q, transcript)
	c.notifyIdle(ActionEvaluate, err)
	if err != nil {
		c.setError(err)
		c.logger.Error("rating failed", "error", err)
		return err
	}

	c.mu.Lock()
	c.rating = &r
	c.lastErr = ""
	c.state = Rated
	c.mu.Unlock()

	if r.Score != nil {
		c.logger.Info("response rated", "score", *r.Score)
	} else {
		c.logger.Info("response rated without score")
	}
	if c.hub != nil {
		c.hub.BroadcastRatingReady(r)
	}
	return nil
}

// Submit closes the current response and moves to the next response id.
// With nextQuestion it then asks for a new question; if that fails the
// submit still stands.
func (c *Controller) Submit(ctx context.Context, nextQuestion bool) error {
	if err := c.acquire(ActionSubmit, QuestionDisplayed, TranscriptionPending, TranscriptReady, Rated); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.lastAudioPath == "" && strings.TrimSpace(c.transcript) == "" {
		c.mu.Unlock()
		return ErrNoResponse
	}
	attempt := storage.Attempt{
		UserID:      c.userID,
		QuestionID:  c.questionID,
		ResponseID:  c.responseID,
		Question:    c.question,
		AudioPath:   c.lastAudioPath,
		Transcript:  c.transcript,
		SubmittedAt: c.now(),
	}
	if c.rating != nil {
		r := *c.rating
		attempt.Rating = &r
	}
	c.responseID++
	c.clearResponseLocked()
	c.state = QuestionDisplayed
	qid, rid := c.questionID, c.responseID
	c.mu.Unlock()

	if c.history != nil {
		if err := c.history.RecordAttempt(attempt); err != nil {
			c.logger.Warn("failed to record attempt history", "error", err)
		}
	}

	c.logger.Info("response submitted", "question_id", attempt.QuestionID, "response_id", attempt.ResponseID)
	if c.hub != nil {
		c.hub.BroadcastResponseSubmitted(qid, rid)
	}

	if nextQuestion {
		return c.nextQuestion(ctx)
	}
	return nil
}

// Back returns to Idle. Question and response ids are kept.
func (c *Controller) Back() error {
	c.mu.Lock()
	if c.busy != "" {
		busy := c.busy
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, busy)
	}
	if c.state == Idle {
		c.mu.Unlock()
		return nil
	}
	c.state = Idle
	c.pendingPath = ""
	c.mu.Unlock()

	c.logger.Info("session ended")
	if c.hub != nil {
		c.hub.BroadcastSessionEnded(c.userID)
	}
	return nil
}

// Wait blocks until background archive uploads finish.
func (c *Controller) Wait() {
	c.archives.Wait()
}

func (c *Controller) acquire(action string, allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy != "" {
		return fmt.Errorf("%w: %s", ErrBusy, c.busy)
	}
	if !slices.Contains(allowed, c.state) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, c.state)
	}
	c.busy = action
	return nil
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = ""
	c.mu.Unlock()
}

func (c *Controller) clearResponseLocked() {
	c.lastAudioPath = ""
	c.pendingPath = ""
	c.transcript = ""
	c.transcriptPath = ""
	c.rating = nil
	c.lastErr = ""
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

func (c *Controller) notifyBusy(action string) {
	if c.hub != nil {
		c.hub.BroadcastBusy(action)
	}
}

func (c *Controller) notifyIdle(action string, err error) {
	if c.hub != nil {
		c.hub.BroadcastIdle(action, err)
	}
}

func (c *Controller) archive(paths ...string) {
	if c.archiver == nil {
		return
	}

	c.archives.Add(1)
	go func() {
		defer c.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		for _, p := range paths {
			if p == "" {
				continue
			}
			if err := c.archiver.Archive(ctx, p); err != nil {
				c.logger.Warn("archive failed", "file", p, "error", err)
			}
		}
	}()
}
