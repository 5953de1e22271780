package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sjawhar/interview-practice/internal/audio"
	"github.com/sjawhar/interview-practice/internal/llm"
	"github.com/sjawhar/interview-practice/internal/metadata"
	"github.com/sjawhar/interview-practice/internal/recording"
	"github.com/sjawhar/interview-practice/internal/session"
	"github.com/sjawhar/interview-practice/internal/transcribe"
)

type recordingInfo struct {
	metadata.Record
	SizeBytes int64 `json:"size_bytes"`
}

func registerAPIRoutes(mux *http.ServeMux, opts Options) {
	practice := opts.Practice
	logger := opts.Logger

	respond := func(w http.ResponseWriter, err error) {
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
				logger.Error("action failed", "error", err)
			}
			writeJSON(w, status, map[string]any{"error": err.Error(), "session": practice.Snapshot()})
			return
		}
		writeJSON(w, http.StatusOK, practice.Snapshot())
	}

	mux.HandleFunc("GET /api/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, practice.Snapshot())
	})

	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		respond(w, practice.Start(r.Context()))
	})

	mux.HandleFunc("POST /api/session/back", func(w http.ResponseWriter, r *http.Request) {
		respond(w, practice.Back())
	})

	mux.HandleFunc("POST /api/question", func(w http.ResponseWriter, r *http.Request) {
		respond(w, practice.NewQuestion(r.Context()))
	})

	mux.HandleFunc("POST /api/recording", func(w http.ResponseWriter, r *http.Request) {
		payload, err := readAudio(w, r, opts.MaxUploadBytes)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := practice.AddRecording(payload); err != nil {
			respond(w, err)
			return
		}

		if r.URL.Query().Get("transcribe") != "false" {
			respond(w, practice.TranscribePending(r.Context()))
			return
		}
		respond(w, nil)
	})

	mux.HandleFunc("POST /api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		respond(w, practice.TranscribePending(r.Context()))
	})

	mux.HandleFunc("POST /api/response", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode response: %v", err))
			return
		}
		respond(w, practice.SetTypedResponse(body.Text))
	})

	mux.HandleFunc("POST /api/evaluate", func(w http.ResponseWriter, r *http.Request) {
		respond(w, practice.Evaluate(r.Context()))
	})

	mux.HandleFunc("POST /api/submit", func(w http.ResponseWriter, r *http.Request) {
		next, _ := strconv.ParseBool(r.URL.Query().Get("next"))
		respond(w, practice.Submit(r.Context(), next))
	})

	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		records, err := opts.Recordings.List(practice.UserID())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list recordings: %v", err))
			return
		}

		out := make([]recordingInfo, 0, len(records))
		for _, rec := range records {
			out = append(out, recordingInfo{Record: rec, SizeBytes: opts.Recordings.FileSize(rec.FilePath)})
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /api/recordings/{filename}/audio", func(w http.ResponseWriter, r *http.Request) {
		path, err := opts.Recordings.Path(r.PathValue("filename"))
		if err != nil {
			writeJSONError(w, http.StatusForbidden, "invalid recording filename")
			return
		}

		f, err := os.Open(path)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", contentTypeForAudio(path))
		http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		if opts.History == nil {
			writeJSONError(w, http.StatusNotFound, "history not enabled")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		userID := practice.UserID()
		attempts, err := opts.History.ListAttempts(userID, limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list attempts: %v", err))
			return
		}
		stats, err := opts.History.Stats(userID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("history stats: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts, "stats": stats})
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if opts.Warnings != nil {
			warnings = opts.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		snap := practice.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{"busy": snap.Busy, "state": snap.State, "warnings": warnings})
	})
}

// readAudio accepts a raw body, a multipart "audio" field, or raw 16-bit
// PCM declared as audio/L16 which is wrapped into WAV.
func readAudio(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	contentType := r.Header.Get("Content-Type")

	var (
		payload []byte
		err     error
	)
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("audio")
		if ferr != nil {
			return nil, fmt.Errorf("read audio field: %w", ferr)
		}
		defer func() { _ = file.Close() }()
		contentType = header.Header.Get("Content-Type")
		payload, err = io.ReadAll(file)
	} else {
		payload, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(payload) == 0 {
		return nil, recording.ErrEmptyAudio
	}

	if rate, ok := audio.PCMSampleRate(contentType); ok && !audio.IsWAV(payload) {
		return audio.WrapPCM(payload, rate)
	}
	return payload, nil
}

func statusFor(err error) int {
	var genErr *llm.GenerationError
	var transErr *transcribe.TranscriptionError
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoResponse), errors.Is(err, session.ErrNoTranscript),
		errors.Is(err, recording.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.As(err, &genErr), errors.As(err, &transErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func contentTypeForAudio(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
