// Package recording writes answer audio to disk and registers each file in
// the per-user metadata list.
package recording

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sjawhar/interview-practice/internal/metadata"
)

const (
	// TimestampLayout has second granularity: two saves for the same
	// user/question/response within one second share a filename.
	TimestampLayout = "20060102_150405"
	Extension       = ".wav"
)

var (
	ErrEmptyAudio   = errors.New("audio payload is empty")
	ErrInvalidName  = errors.New("invalid recording filename")
	ErrInvalidUser  = errors.New("user id is required")
	ErrInvalidIndex = errors.New("question and response ids must be positive")
)

type Manager struct {
	dir    string
	store  *metadata.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(dir string, store *metadata.Store, logger *slog.Logger) *Manager {
	if dir == "" {
		dir = "recordings"
	}
	if store == nil {
		store = metadata.NewStore(dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:    dir,
		store:  store,
		now:    time.Now,
		logger: logger.With(slog.String("component", "recording")),
	}
}

// Filename builds user_{user}_q{question}_r{response}_{timestamp}.wav.
func Filename(userID string, questionID, responseID int, timestamp string) string {
	return fmt.Sprintf("user_%s_q%d_r%d_%s%s", userID, questionID, responseID, timestamp, Extension)
}

// Save writes audio and appends its metadata record. The two writes are not
// atomic: if the metadata write fails the audio file stays on disk.
func (m *Manager) Save(audio []byte, userID string, questionID, responseID int, questionText string) (string, metadata.Record, error) {
	if len(audio) == 0 {
		return "", metadata.Record{}, ErrEmptyAudio
	}
	if strings.TrimSpace(userID) == "" {
		return "", metadata.Record{}, ErrInvalidUser
	}
	if questionID <= 0 || responseID <= 0 {
		return "", metadata.Record{}, ErrInvalidIndex
	}

	timestamp := m.now().Format(TimestampLayout)
	filename := Filename(userID, questionID, responseID, timestamp)
	filePath := filepath.Join(m.dir, filename)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", metadata.Record{}, fmt.Errorf("create recordings directory: %w", err)
	}

	if _, err := os.Stat(filePath); err == nil {
		m.logger.Warn("overwriting recording saved within the same second", "file", filename)
	}

	if err := os.WriteFile(filePath, audio, 0o644); err != nil {
		return "", metadata.Record{}, fmt.Errorf("write recording %s: %w", filePath, err)
	}

	rec := metadata.Record{
		UserID:       userID,
		QuestionID:   questionID,
		ResponseID:   responseID,
		QuestionText: questionText,
		Timestamp:    timestamp,
		Filename:     filename,
		FilePath:     filePath,
	}
	if err := m.store.Append(rec); err != nil {
		m.logger.Error("recording saved without metadata", "file", filePath, "error", err)
		return "", metadata.Record{}, fmt.Errorf("append metadata: %w", err)
	}

	m.logger.Info("recording saved", "file", filename, "bytes", len(audio))
	return filePath, rec, nil
}

// List returns the metadata records for userID in save order.
func (m *Manager) List(userID string) ([]metadata.Record, error) {
	return m.store.List(userID)
}

func (m *Manager) MetadataPath(userID string) string {
	return m.store.Path(userID)
}

// Path resolves a bare recording filename inside the recordings directory.
func (m *Manager) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	return filepath.Join(m.dir, filename), nil
}

// FileSize reports the size on disk of a saved recording, or -1 when the
// file is gone.
func (m *Manager) FileSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return -1
	}
	return info.Size()
}
