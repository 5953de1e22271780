package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/interview-practice/internal/rating"
)

type SQLiteStore struct {
	db *sql.DB
}

// Stats summarizes a user's history. AverageScore only counts rated
// attempts and is nil when there are none.
type Stats struct {
	Attempts     int      `json:"attempts"`
	Questions    int      `json:"questions"`
	Rated        int      `json:"rated"`
	AverageScore *float64 `json:"average_score"`
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "interview-practice.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			question_id INTEGER NOT NULL,
			response_id INTEGER NOT NULL,
			question TEXT NOT NULL,
			audio_path TEXT NOT NULL DEFAULT '',
			transcript TEXT NOT NULL DEFAULT '',
			score INTEGER,
			rating TEXT,
			submitted_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create attempts table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_attempts_user ON attempts(user_id, id)"); err != nil {
		return fmt.Errorf("create attempts index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) RecordAttempt(a Attempt) error {
	_, err := s.InsertAttempt(a)
	return err
}

func (s *SQLiteStore) InsertAttempt(a Attempt) (int64, error) {
	if strings.TrimSpace(a.UserID) == "" {
		return 0, errors.New("user id is required")
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}

	var score sql.NullInt64
	var ratingJSON sql.NullString
	if a.Rating != nil {
		if a.Rating.Score != nil {
			score = sql.NullInt64{Int64: int64(*a.Rating.Score), Valid: true}
		}
		data, err := json.Marshal(a.Rating)
		if err != nil {
			return 0, fmt.Errorf("encode rating: %w", err)
		}
		ratingJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.Exec(
		`INSERT INTO attempts(user_id, question_id, response_id, question, audio_path, transcript, score, rating, submitted_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID,
		a.QuestionID,
		a.ResponseID,
		a.Question,
		a.AudioPath,
		a.Transcript,
		score,
		ratingJSON,
		a.SubmittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt for user %s: %w", a.UserID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("attempt insert id: %w", err)
	}
	return id, nil
}

// ListAttempts returns the most recent attempts first. limit <= 0 means all.
func (s *SQLiteStore) ListAttempts(userID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(
		`SELECT id, user_id, question_id, response_id, question, audio_path, transcript, rating, submitted_at
		 FROM attempts
		 WHERE user_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts for user %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	attempts := make([]Attempt, 0, 16)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}

	return attempts, nil
}

func (s *SQLiteStore) GetAttempt(id int64) (Attempt, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, question_id, response_id, question, audio_path, transcript, rating, submitted_at
		 FROM attempts WHERE id = ?`,
		id,
	)
	a, err := scanAttempt(row)
	if err != nil {
		return Attempt{}, fmt.Errorf("query attempt %d: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) Stats(userID string) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT question_id), COUNT(score), AVG(score)
		 FROM attempts WHERE user_id = ?`,
		userID,
	).Scan(&st.Attempts, &st.Questions, &st.Rated, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats for user %s: %w", userID, err)
	}
	if avg.Valid {
		st.AverageScore = &avg.Float64
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (Attempt, error) {
	var a Attempt
	var ratingJSON sql.NullString
	var submittedAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.ResponseID, &a.Question, &a.AudioPath, &a.Transcript, &ratingJSON, &submittedAt); err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, submittedAt)
	if err != nil {
		return Attempt{}, fmt.Errorf("parse attempt %d submitted_at: %w", a.ID, err)
	}
	a.SubmittedAt = parsed

	if ratingJSON.Valid {
		var r rating.Rating
		if err := json.Unmarshal([]byte(ratingJSON.String), &r); err != nil {
			return Attempt{}, fmt.Errorf("decode attempt %d rating: %w", a.ID, err)
		}
		a.Rating = &r
	}

	return a, nil
}
