// Package sqlite is the embedded relational backend. It is also the read
// side of the one-time migration: the legacy database consumed by the
// selector is a file written by this same schema.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"quizbench/internal/storage"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	// No FK constraints; cascade deletes are driven by the application so
	// all three backends share identical delete semantics.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			quiz_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source_json TEXT NOT NULL,
			quiz_json TEXT NOT NULL,
			raw_payload_json TEXT NOT NULL DEFAULT '{}',
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			created_at_unix INTEGER NOT NULL,
			status TEXT NOT NULL,
			models_json TEXT NOT NULL,
			settings_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			quiz_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			choice TEXT NOT NULL,
			reason TEXT NOT NULL,
			additional_thoughts TEXT NOT NULL,
			refused INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			tokens_in INTEGER,
			tokens_out INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS assets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			path TEXT NOT NULL,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quizzes_created_at ON quizzes(created_at_unix DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at_unix DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_quiz ON runs(quiz_id);`,
		`CREATE INDEX IF NOT EXISTS idx_results_run_model ON results(run_id, model_id);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_run ON assets(run_id);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
