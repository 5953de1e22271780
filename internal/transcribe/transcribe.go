// Package transcribe turns a saved answer recording into text using a hosted
// speech-recognition backend.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrAudioNotFound = errors.New("audio file not found")

// TranscriptionError reports a missing audio file or a failed recognition
// call for Path.
type TranscriptionError struct {
	Path string
	Err  error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe %s: %v", e.Path, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// Recognizer makes one hosted speech-recognition call for a file on disk.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (Result, error)
}

type Service struct {
	recognizer Recognizer
	logger     *slog.Logger
}

func NewService(recognizer Recognizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{recognizer: recognizer, logger: logger.With(slog.String("component", "transcribe"))}
}

type Option func(*options)

type options struct {
	saveText bool
	textPath string
}

// WithSaveText controls whether the transcript is written next to the
// audio. Enabled by default.
func WithSaveText(save bool) Option {
	return func(o *options) {
		o.saveText = save
	}
}

// WithTextPath writes the transcript to path instead of the sibling .txt.
func WithTextPath(path string) Option {
	return func(o *options) {
		o.textPath = path
	}
}

// TextPath is the default transcript location for audioPath.
func TextPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
}

// Transcribe blocks for the length of the hosted call, which can take
// minutes for long recordings. textPath is empty when saving is disabled.
func (s *Service) Transcribe(ctx context.Context, audioPath string, opts ...Option) (string, string, error) {
	o := options{saveText: true}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := os.Stat(audioPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", &TranscriptionError{Path: audioPath, Err: fmt.Errorf("%w: %w", ErrAudioNotFound, err)}
		}
		return "", "", &TranscriptionError{Path: audioPath, Err: err}
	}

	if s.recognizer == nil {
		return "", "", &TranscriptionError{Path: audioPath, Err: errors.New("no speech recognizer configured")}
	}

	started := time.Now()
	result, err := s.recognizer.Recognize(ctx, audioPath)
	if err != nil {
		return "", "", &TranscriptionError{Path: audioPath, Err: err}
	}

	text := result.Text()
	s.logger.Info("transcription finished",
		"file", filepath.Base(audioPath),
		"segments", len(result.Segments),
		"language", result.Language,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if !o.saveText {
		return text, "", nil
	}

	textPath := o.textPath
	if textPath == "" {
		textPath = TextPath(audioPath)
	}
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		s.logger.Warn("transcript not saved", "path", textPath, "error", err)
		return text, "", nil
	}

	return text, textPath, nil
}
