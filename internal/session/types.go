package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/rating"
	"github.com/sjawhar/interview-practice/internal/storage"
	"github.com/sjawhar/interview-practice/internal/transcribe"
)

type State int

const (
	Idle State = iota
	QuestionDisplayed
	TranscriptionPending
	TranscriptReady
	Rated
)

var stateNames = map[State]string{
	Idle:                 "idle",
	QuestionDisplayed:    "question_displayed",
	TranscriptionPending: "transcription_pending",
	TranscriptReady:      "transcript_ready",
	Rated:                "rated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action names reported in Snapshot.Busy and busy/idle events.
const (
	ActionStart       = "start"
	ActionNewQuestion = "new_question"
	ActionRecord      = "record"
	ActionTranscribe  = "transcribe"
	ActionType        = "type_response"
	ActionEvaluate    = "evaluate"
	ActionSubmit      = "submit"
	ActionBack        = "back"
)

type QuestionSource interface {
	Generate(ctx context.Context) (string, error)
}

type RecordingSaver interface {
	Save(audio []byte, userID string, questionID, responseID int, questionText string) (string, metadata.Record, error)
	MetadataPath(userID string) string
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts ...transcribe.Option) (string, string, error)
}

type Rater interface {
	Rate(ctx context.Context, question, transcript string) (rating.Rating, error)
}

type History interface {
	RecordAttempt(a storage.Attempt) error
}

// Archiver backs up a saved file somewhere off the machine.
type Archiver interface {
	Archive(ctx context.Context, path string) error
}

type EventBroadcaster interface {
	BroadcastBusy(action string)
	BroadcastIdle(action string, err error)
	BroadcastQuestionReady(questionID, responseID int, question string)
	BroadcastRecordingSaved(rec metadata.Record)
	BroadcastTranscriptReady(audioPath, transcript string, err error)
	BroadcastRatingReady(r rating.Rating)
	BroadcastResponseSubmitted(questionID, responseID int)
	BroadcastSessionEnded(userID string)
}

// Snapshot is a copy of the controller state for the presentation layer.
type Snapshot struct {
	UserID               string         `json:"user_id"`
	State                State          `json:"state"`
	QuestionID           int            `json:"question_id"`
	ResponseID           int            `json:"response_id"`
	Question             string         `json:"question"`
	LastAudioPath        string         `json:"last_audio_path"`
	PendingTranscription bool           `json:"pending_transcription"`
	Transcript           string         `json:"transcript"`
	TranscriptPath       string         `json:"transcript_path,omitempty"`
	Rating               *rating.Rating `json:"rating"`
	LastError            string         `json:"last_error,omitempty"`
	Busy                 string         `json:"busy,omitempty"`
}

// NewUserID returns a short random id for recording filenames.
func NewUserID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
