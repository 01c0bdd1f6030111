package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"quizbench/internal/storage"
)

// InsertRun fails on a duplicate run id; the primary key enforces
// uniqueness here, unlike the flat-file backend.
func (s *Store) InsertRun(ctx context.Context, runID, quizID, status string, models []string, settings map[string]string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	if err := storage.CheckID(quizID); err != nil {
		return err
	}
	if settings == nil {
		settings = map[string]string{}
	}

	modelsJSON, err := json.Marshal(models)
	if err != nil {
		return err
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (run_id, quiz_id, created_at_unix, status, models_json, settings_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		quizID,
		time.Now().UTC().UnixNano(),
		status,
		string(modelsJSON),
		string(settingsJSON),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", storage.ErrRunExists, runID)
	}
	return err
}

func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE run_id = ?`, status, runID)
	return err
}

func (s *Store) MarkStaleRunsFailed(ctx context.Context, statuses []string, newStatus string) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, 0, len(statuses)+1)
	for _, status := range statuses {
		args = append(args, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(
		ctx,
		`SELECT run_id FROM runs WHERE status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	runIDs := make([]string, 0)
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			rows.Close()
			return nil, err
		}
		runIDs = append(runIDs, runID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(runIDs) > 0 {
		updateArgs := append([]any{newStatus}, args...)
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE runs SET status = ? WHERE status IN (`+placeholders+`)`,
			updateArgs...,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return runIDs, nil
}

func (s *Store) FetchRuns(ctx context.Context) ([]storage.Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, quiz_id, created_at_unix, status, models_json, settings_json
		 FROM runs
		 ORDER BY created_at_unix DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]storage.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) FetchRun(ctx context.Context, runID string) (storage.Run, error) {
	if err := storage.CheckID(runID); err != nil {
		return storage.Run{}, err
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT run_id, quiz_id, created_at_unix, status, models_json, settings_json
		 FROM runs WHERE run_id = ?`,
		runID,
	)
	run, err := scanRun(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Run{}, storage.ErrRunNotFound
		}
		return storage.Run{}, err
	}
	return run, nil
}

func scanRun(scan func(...any) error) (storage.Run, error) {
	var (
		run           storage.Run
		createdAtUnix int64
		modelsJSON    string
		settingsJSON  string
	)
	if err := scan(&run.RunID, &run.QuizID, &createdAtUnix, &run.Status, &modelsJSON, &settingsJSON); err != nil {
		return storage.Run{}, err
	}
	run.CreatedAt = time.Unix(0, createdAtUnix).UTC()
	if err := json.Unmarshal([]byte(modelsJSON), &run.Models); err != nil {
		return storage.Run{}, err
	}
	if err := json.Unmarshal([]byte(settingsJSON), &run.Settings); err != nil {
		return storage.Run{}, err
	}
	return run, nil
}
