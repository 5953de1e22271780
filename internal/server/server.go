// Package server exposes the practice session over a JSON API and a
// websocket event stream for whatever front end presents it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/session"
	"github.com/sjawhar/interview-practice/internal/storage"
)

const defaultMaxUploadBytes = 50 << 20

type Practice interface {
	UserID() string
	Snapshot() session.Snapshot
	Start(ctx context.Context) error
	Back() error
	NewQuestion(ctx context.Context) error
	AddRecording(audio []byte) error
	TranscribePending(ctx context.Context) error
	SetTypedResponse(text string) error
	Evaluate(ctx context.Context) error
	Submit(ctx context.Context, nextQuestion bool) error
}

type RecordingStore interface {
	List(userID string) ([]metadata.Record, error)
	Path(filename string) (string, error)
	FileSize(filePath string) int64
}

type HistoryStore interface {
	ListAttempts(userID string, limit int) ([]storage.Attempt, error)
	Stats(userID string) (storage.Stats, error)
}

// Options wires the API. History, Warnings and Metrics may be nil.
type Options struct {
	Practice       Practice
	Recordings     RecordingStore
	History        HistoryStore
	Warnings       func() []string
	Metrics        http.Handler
	MaxUploadBytes int64
	Logger         *slog.Logger
}

func Handler(hub *Hub, opts Options) (http.Handler, error) {
	if opts.Practice == nil {
		return nil, errors.New("server: practice session is required")
	}
	if opts.Recordings == nil {
		return nil, errors.New("server: recording store is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With(slog.String("component", "server"))

	mux := http.NewServeMux()
	registerWSRoute(mux, hub, opts.Practice, opts.Logger)
	registerAPIRoutes(mux, opts)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return logRequests(mux, opts.Logger), nil
}

func New(addr string, hub *Hub, opts Options) (*http.Server, error) {
	h, err := Handler(hub, opts)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func logRequests(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(started).Round(time.Millisecond))
	})
}
