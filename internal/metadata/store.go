// Package metadata persists one JSON array of recording records per user.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Record describes one saved recording. Records are immutable once written.
type Record struct {
	UserID       string `json:"user_id"`
	QuestionID   int    `json:"question_id"`
	ResponseID   int    `json:"response_id"`
	QuestionText string `json:"question_text"`
	Timestamp    string `json:"timestamp"`
	Filename     string `json:"filename"`
	FilePath     string `json:"file_path"`
}

// Store keeps metadata_{user_id}.json files in a single directory. Every
// Append rewrites the whole file, so only one writer per user id is safe.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = "recordings"
	}
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Path returns the metadata file for userID.
func (s *Store) Path(userID string) string {
	return filepath.Join(s.dir, "metadata_"+userID+".json")
}

// List returns the user's records in insertion order. A missing file yields
// an empty list; a malformed file is an error.
func (s *Store) List(userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(userID)
}

// Append adds rec to the end of its user's list and rewrites the file.
func (s *Store) Append(rec Record) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return errors.New("metadata record requires a user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	records, err := s.read(rec.UserID)
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata for user %s: %w", rec.UserID, err)
	}

	return writeFileAtomic(s.Path(rec.UserID), data)
}

// writeFileAtomic replaces path through a rename so concurrent readers, such
// as a backup upload, never observe a truncated file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (s *Store) read(userID string) ([]Record, error) {
	path := s.Path(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	records := []Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
