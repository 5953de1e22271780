package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/interview-practice/internal/config"
	"github.com/sjawhar/interview-practice/internal/gdrive"
	"github.com/sjawhar/interview-practice/internal/llm"
	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/question"
	"github.com/sjawhar/interview-practice/internal/rating"
	"github.com/sjawhar/interview-practice/internal/recording"
	"github.com/sjawhar/interview-practice/internal/server"
	"github.com/sjawhar/interview-practice/internal/session"
	"github.com/sjawhar/interview-practice/internal/storage"
	"github.com/sjawhar/interview-practice/internal/telemetry"
	"github.com/sjawhar/interview-practice/internal/transcribe"
)

func main() {
	if err := run(); err != nil {
		slog.Error("interview-practice: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, warnings, err := config.Load(envOrDefault(config.EnvPrefix+"CONFIG", "config.yaml"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	questionClient, err := llm.NewFromModel(cfg.QuestionModel, cfg.APIKey, llm.WithBaseURL(cfg.LLMBaseURL))
	if err != nil {
		return fmt.Errorf("question model: %w", err)
	}
	ratingOpts := []llm.Option{llm.WithBaseURL(cfg.LLMBaseURL)}
	if cfg.RatingTemperature != nil {
		ratingOpts = append(ratingOpts, llm.WithTemperature(*cfg.RatingTemperature))
	}
	ratingClient, err := llm.NewFromModel(cfg.RatingModel, cfg.APIKey, ratingOpts...)
	if err != nil {
		return fmt.Errorf("rating model: %w", err)
	}

	recognizer, err := newRecognizer(cfg)
	if err != nil {
		return err
	}

	recordings := recording.NewManager(cfg.RecordingsDir, metadata.NewStore(cfg.RecordingsDir), logger)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() { _ = store.Close() }()
	journal := storage.NewWriter(filepath.Join(filepath.Dir(cfg.DBPath), "journal"))

	meterProvider, metricsHandler, err := telemetry.Setup(logger)
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()
	instruments, err := telemetry.NewInstruments(meterProvider.Meter(telemetry.ServiceName))
	if err != nil {
		return fmt.Errorf("telemetry instruments: %w", err)
	}

	hub := server.NewHub(logger)

	deps := session.Deps{
		Questions:   instruments.Questions(question.NewGenerator(questionClient, question.WithLogger(logger))),
		Recordings:  recordings,
		Transcriber: instruments.Transcriber(transcribe.NewService(recognizer, logger)),
		Rater:       instruments.Rater(rating.NewRater(ratingClient, logger)),
		History:     storage.Tee(store, journal),
		Hub:         hub,
		Logger:      logger,
	}
	if cfg.GDriveFolderID != "" {
		archiver, err := gdrive.NewArchiver(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID, logger)
		if err != nil {
			logger.Warn("gdrive backup disabled", "error", err)
		} else {
			deps.Archiver = archiver
		}
	}

	ctrl, err := session.NewController("", deps)
	if err != nil {
		return err
	}
	logger.Info("session ready", "user_id", ctrl.UserID())

	httpServer, err := server.New(cfg.ListenAddr, hub, server.Options{
		Practice:   ctrl,
		Recordings: recordings,
		History:    store,
		Warnings:   func() []string { return warnings },
		Metrics:    metricsHandler,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("interview-practice: listening", "addr", "http://"+cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("interview-practice: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	ctrl.Wait()
	return nil
}

func newRecognizer(cfg config.Config) (transcribe.Recognizer, error) {
	t := cfg.Transcription
	switch t.Provider {
	case "openai":
		return transcribe.NewOpenAIRecognizer(cfg.APIKey("openai"), transcribe.OpenAIOptions{
			Model:       t.Model,
			Language:    t.Language,
			Temperature: t.Temperature,
			BaseURL:     t.BaseURL,
		}), nil
	case "deepgram":
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
		return transcribe.NewDeepgramRecognizer(cfg.APIKey("deepgram"), transcribe.DeepgramOptions{
			Model:    t.Model,
			Language: t.Language,
			Host:     t.BaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", t.Provider)
	}
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
