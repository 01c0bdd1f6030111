// Package flatfile persists each entity type as a single JSONL record log
// under one directory. Every mutating call is a read-modify-write of the
// whole log, guarded by a per-log mutex, so concurrent runs inside one
// process are safe. Two processes sharing a directory are not; last writer
// wins. That limitation is accepted rather than papered over.
package flatfile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

type Store struct {
	dir string

	quizzesMu sync.Mutex
	runsMu    sync.Mutex
	resultsMu sync.Mutex
	assetsMu  sync.Mutex
}

var _ storage.Store = (*Store)(nil)

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create flatfile dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}

func (s *Store) quizzesPath() string { return filepath.Join(s.dir, "quizzes.jsonl") }
func (s *Store) runsPath() string    { return filepath.Join(s.dir, "runs.jsonl") }
func (s *Store) resultsPath() string { return filepath.Join(s.dir, "results.jsonl") }
func (s *Store) assetsPath() string  { return filepath.Join(s.dir, "assets.jsonl") }

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// readLines decodes every line of a record log into out, which must be a
// pointer to a slice. A missing file is an empty log.
func readLines[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

func writeLines[T any](path string, records []T) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			file.Close()
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func appendLine(path string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

type quizLine struct {
	QuizID     string         `json:"quiz_id"`
	Title      string         `json:"title"`
	Source     quizdef.Source `json:"source"`
	QuizJSON   string         `json:"quiz_json"`
	RawPayload map[string]any `json:"raw_payload"`
	CreatedAt  time.Time      `json:"created_at"`
}
