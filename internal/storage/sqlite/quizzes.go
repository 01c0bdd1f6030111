package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

func (s *Store) UpsertQuiz(ctx context.Context, def quizdef.Quiz, quizJSON string, rawPayload map[string]any) error {
	if err := storage.CheckID(def.ID); err != nil {
		return err
	}
	if rawPayload == nil {
		rawPayload = map[string]any{}
	}

	sourceJSON, err := json.Marshal(def.Source)
	if err != nil {
		return err
	}
	rawJSON, err := json.Marshal(rawPayload)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO quizzes (quiz_id, title, source_json, quiz_json, raw_payload_json, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(quiz_id) DO UPDATE SET
			title = excluded.title,
			source_json = excluded.source_json,
			quiz_json = excluded.quiz_json,
			raw_payload_json = excluded.raw_payload_json`,
		def.ID,
		def.Title,
		string(sourceJSON),
		quizJSON,
		string(rawJSON),
		time.Now().UTC().UnixNano(),
	)
	return err
}

func (s *Store) FetchQuizzes(ctx context.Context) ([]storage.QuizSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT quiz_id, title, source_json, raw_payload_json, created_at_unix
		 FROM quizzes
		 ORDER BY created_at_unix DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]storage.QuizSummary, 0)
	for rows.Next() {
		var (
			summary       storage.QuizSummary
			sourceJSON    string
			rawJSON       string
			createdAtUnix int64
		)
		if err := rows.Scan(&summary.QuizID, &summary.Title, &sourceJSON, &rawJSON, &createdAtUnix); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sourceJSON), &summary.Source); err != nil {
			return nil, err
		}
		summary.CreatedAt = time.Unix(0, createdAtUnix).UTC()
		summary.RawAvailable = rawPayloadPresent(rawJSON)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func rawPayloadPresent(rawJSON string) bool {
	var payload map[string]any
	if err := json.Unmarshal([]byte(rawJSON), &payload); err != nil {
		return false
	}
	return len(payload) > 0
}

func (s *Store) FetchQuizJSON(ctx context.Context, quizID string) (string, error) {
	if err := storage.CheckID(quizID); err != nil {
		return "", err
	}

	var quizJSON string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT quiz_json FROM quizzes WHERE quiz_id = ?`,
		quizID,
	).Scan(&quizJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrQuizNotFound
		}
		return "", err
	}
	return quizJSON, nil
}

func (s *Store) FetchQuizDef(ctx context.Context, quizID string) (quizdef.Quiz, error) {
	quizJSON, err := s.FetchQuizJSON(ctx, quizID)
	if err != nil {
		return quizdef.Quiz{}, err
	}

	var def quizdef.Quiz
	if err := json.Unmarshal([]byte(quizJSON), &def); err != nil {
		return quizdef.Quiz{}, err
	}
	return def, nil
}

func (s *Store) FetchQuizRecord(ctx context.Context, quizID string) (storage.QuizRecord, error) {
	if err := storage.CheckID(quizID); err != nil {
		return storage.QuizRecord{}, err
	}

	var quizJSON, rawJSON string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT quiz_json, raw_payload_json FROM quizzes WHERE quiz_id = ?`,
		quizID,
	).Scan(&quizJSON, &rawJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.QuizRecord{}, storage.ErrQuizNotFound
		}
		return storage.QuizRecord{}, err
	}

	record := storage.QuizRecord{JSON: quizJSON, RawPayload: map[string]any{}}
	if quizJSON != "" {
		if err := json.Unmarshal([]byte(quizJSON), &record.Def); err != nil {
			return storage.QuizRecord{}, err
		}
	}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &record.RawPayload); err != nil {
			return storage.QuizRecord{}, err
		}
	}
	return record, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) ([]string, error) {
	if err := storage.CheckID(quizID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT run_id FROM runs WHERE quiz_id = ?`, quizID)
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

	for _, runID := range runIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE run_id = ?`, runID); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE quiz_id = ?`, quizID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE quiz_id = ?`, quizID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return runIDs, nil
}
