// Package fallback keeps goals that could not be written to the database in
// an append-only JSON Lines file until they are replayed into the database.
//
// The file assumes a single writing process. Appends within that process are
// serialized.
package fallback

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/stepwise-app/stepwise/internal/model"
)

var ErrNotFound = errors.New("fallback goal not found")

// Record is one line of the log: the full goal payload plus its steps.
type Record struct {
	Goal  model.Goal    `json:"goal"`
	Steps []*model.Step `json:"steps"`
	// Owner carries the identity claims needed to create a missing user row on replay.
	Owner   *model.User `json:"owner,omitempty"`
	SavedAt time.Time   `json:"savedAt"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save appends rec and syncs the file before returning.
func (s *Store) Save(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode fallback record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.MkdirAll(filepath.Dir(s.path), 0755)
	if err != nil {
		return fmt.Errorf("failed to create fallback directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open fallback log: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(line)
	if err != nil {
		return fmt.Errorf("failed to append fallback record: %w", err)
	}
	return f.Sync()
}

// Get returns the record for goalID owned by userID.
func (s *Store) Get(goalID, userID string) (*Record, error) {
	var found *Record
	err := s.scan(func(rec *Record) bool {
		if rec.Goal.ID == goalID && rec.Goal.UserID == userID {
			found = rec
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ByUser returns every record owned by userID in the order they were saved.
func (s *Store) ByUser(userID string) ([]*Record, error) {
	var records []*Record
	err := s.scan(func(rec *Record) bool {
		if rec.Goal.UserID == userID {
			records = append(records, rec)
		}
		return true
	})
	return records, err
}

// All returns every record in the log.
func (s *Store) All() ([]*Record, error) {
	var records []*Record
	err := s.scan(func(rec *Record) bool {
		records = append(records, rec)
		return true
	})
	return records, err
}

// Remove rewrites the log without the given goal ids. The replacement is
// atomic, so a crash leaves either the old or the new file.
func (s *Store) Remove(goalIDs ...string) error {
	drop := make(map[string]bool, len(goalIDs))
	for _, id := range goalIDs {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read fallback log: %w", err)
	}

	var kept bytes.Buffer
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if json.Unmarshal(line, &rec) == nil && drop[rec.Goal.ID] {
			continue
		}
		// Unreadable lines are kept for manual inspection.
		kept.Write(line)
		kept.WriteByte('\n')
	}

	err = atomic.WriteFile(s.path, &kept)
	if err != nil {
		return fmt.Errorf("failed to compact fallback log: %w", err)
	}
	return nil
}

// scan calls fn for each decodable record until fn returns false. Malformed
// lines are skipped.
func (s *Store) scan(fn func(*Record) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open fallback log: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			rec := &Record{}
			if jerr := json.Unmarshal(line, rec); jerr != nil {
				slog.Warn("skipping malformed fallback record", "path", s.path, "line", n, "error", jerr)
			} else if !fn(rec) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read fallback log: %w", err)
		}
	}
}
