package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/rating"
)

// Hub fans session events out to websocket subscribers. Slow subscribers
// drop messages rather than block the session.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		logger:  logger.With(slog.String("component", "hub")),
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastBusy(action string) {
	h.broadcastEvent(BusyEvent{
		Event:  newEvent("busy", time.Now().UTC()),
		Action: action,
	})
}

func (h *Hub) BroadcastIdle(action string, err error) {
	h.broadcastEvent(BusyEvent{
		Event:  newEvent("idle", time.Now().UTC()),
		Action: action,
		Error:  errorText(err),
	})
}

func (h *Hub) BroadcastQuestionReady(questionID, responseID int, question string) {
	h.broadcastEvent(QuestionReadyEvent{
		Event:      newEvent("question_ready", time.Now().UTC()),
		QuestionID: questionID,
		ResponseID: responseID,
		Question:   question,
	})
}

func (h *Hub) BroadcastRecordingSaved(rec metadata.Record) {
	h.broadcastEvent(RecordingSavedEvent{
		Event:     newEvent("recording_saved", time.Now().UTC()),
		Recording: rec,
	})
}

func (h *Hub) BroadcastTranscriptReady(audioPath, transcript string, err error) {
	h.broadcastEvent(TranscriptReadyEvent{
		Event:      newEvent("transcript_ready", time.Now().UTC()),
		AudioPath:  audioPath,
		Transcript: transcript,
		Error:      errorText(err),
	})
}

func (h *Hub) BroadcastRatingReady(r rating.Rating) {
	h.broadcastEvent(RatingReadyEvent{
		Event:  newEvent("rating_ready", time.Now().UTC()),
		Rating: r,
	})
}

func (h *Hub) BroadcastResponseSubmitted(questionID, responseID int) {
	h.broadcastEvent(ResponseSubmittedEvent{
		Event:      newEvent("response_submitted", time.Now().UTC()),
		QuestionID: questionID,
		ResponseID: responseID,
	})
}

func (h *Hub) BroadcastSessionEnded(userID string) {
	h.broadcastEvent(SessionEndedEvent{
		Event:  newEvent("session_ended", time.Now().UTC()),
		UserID: userID,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event marshal error", "error", err)
		return
	}
	h.Broadcast(payload)
}
