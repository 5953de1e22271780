package server

import (
	"time"

	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/rating"
	"github.com/sjawhar/interview-practice/internal/session"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type BusyEvent struct {
	Event
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

type QuestionReadyEvent struct {
	Event
	QuestionID int    `json:"question_id"`
	ResponseID int    `json:"response_id"`
	Question   string `json:"question"`
}

type RecordingSavedEvent struct {
	Event
	Recording metadata.Record `json:"recording"`
}

type TranscriptReadyEvent struct {
	Event
	AudioPath  string `json:"audio_path"`
	Transcript string `json:"transcript"`
	Error      string `json:"error,omitempty"`
}

type RatingReadyEvent struct {
	Event
	Rating rating.Rating `json:"rating"`
}

type ResponseSubmittedEvent struct {
	Event
	QuestionID int `json:"question_id"`
	ResponseID int `json:"response_id"`
}

type SessionEndedEvent struct {
	Event
	UserID string `json:"user_id"`
}

type SessionStateEvent struct {
	Event
	Session session.Snapshot `json:"session"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
