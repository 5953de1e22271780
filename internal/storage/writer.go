package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Writer appends submitted attempts to a daily markdown practice journal.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) RecordAttempt(a Attempt) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	ts := a.SubmittedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path := w.PathFor(ts)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, FormatMarkdown(a, ts)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (w *Writer) PathFor(t time.Time) string {
	return filepath.Join(w.dir, t.Format("2006-01-02")+".md")
}

func FormatMarkdown(a Attempt, ts time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## [%s] Q%d R%d: %s\n\n", ts.Format("15:04:05"), a.QuestionID, a.ResponseID, strings.TrimSpace(a.Question))

	transcript := strings.TrimSpace(a.Transcript)
	if transcript == "" {
		transcript = "_no transcript_"
	}
	fmt.Fprintf(&b, "%s\n", transcript)

	if a.Rating != nil {
		score := "n/a"
		if a.Rating.Score != nil {
			score = fmt.Sprintf("%d/10", *a.Rating.Score)
		}
		fmt.Fprintf(&b, "\n**Score:** %s", score)
		if s := strings.TrimSpace(a.Rating.Summary); s != "" {
			fmt.Fprintf(&b, " %s", s)
		}
		b.WriteString("\n")
		for _, s := range a.Rating.Strengths {
			fmt.Fprintf(&b, "- + %s\n", s)
		}
		for _, s := range a.Rating.Improvements {
			fmt.Fprintf(&b, "- - %s\n", s)
		}
	}

	return b.String()
}
