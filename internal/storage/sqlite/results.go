package sqlite

import (
	"context"
	"database/sql"
	"time"

	"quizbench/internal/storage"
)

// InsertResults appends rows one statement at a time. Rows are not wrapped
// in a transaction on purpose: a failure partway through must not roll back
// rows already committed for this adapter.
func (s *Store) InsertResults(ctx context.Context, runID, quizID, modelID string, rows []storage.Result) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}

	for _, row := range rows {
		refused := 0
		if row.Refused {
			refused = 1
		}
		_, err := s.db.ExecContext(
			ctx,
			`INSERT INTO results (run_id, quiz_id, model_id, question_id, choice, reason, additional_thoughts, refused, latency_ms, tokens_in, tokens_out)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			quizID,
			modelID,
			row.QuestionID,
			row.Choice,
			row.Reason,
			row.AdditionalThoughts,
			refused,
			row.LatencyMS,
			nullableInt(row.TokensIn),
			nullableInt(row.TokensOut),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FetchResults(ctx context.Context, runID string) ([]storage.Result, error) {
	if err := storage.CheckID(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, quiz_id, model_id, question_id, choice, reason, additional_thoughts, refused, latency_ms, tokens_in, tokens_out
		 FROM results WHERE run_id = ?
		 ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]storage.Result, 0)
	for rows.Next() {
		var (
			row       storage.Result
			refused   int
			tokensIn  sql.NullInt64
			tokensOut sql.NullInt64
		)
		if err := rows.Scan(
			&row.RunID,
			&row.QuizID,
			&row.ModelID,
			&row.QuestionID,
			&row.Choice,
			&row.Reason,
			&row.AdditionalThoughts,
			&refused,
			&row.LatencyMS,
			&tokensIn,
			&tokensOut,
		); err != nil {
			return nil, err
		}
		row.Refused = refused != 0
		row.TokensIn = intPointer(tokensIn)
		row.TokensOut = intPointer(tokensOut)
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *Store) InsertAsset(ctx context.Context, runID, assetType, path string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assets (run_id, asset_type, path, created_at_unix) VALUES (?, ?, ?, ?)`,
		runID,
		assetType,
		path,
		time.Now().UTC().UnixNano(),
	)
	return err
}

func (s *Store) FetchAssets(ctx context.Context, runID string) ([]storage.Asset, error) {
	if err := storage.CheckID(runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, asset_type, path, created_at_unix
		 FROM assets WHERE run_id = ?
		 ORDER BY created_at_unix DESC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]storage.Asset, 0)
	for rows.Next() {
		var (
			asset         storage.Asset
			createdAtUnix int64
		)
		if err := rows.Scan(&asset.RunID, &asset.AssetType, &asset.Path, &createdAtUnix); err != nil {
			return nil, err
		}
		asset.CreatedAt = time.Unix(0, createdAtUnix).UTC()
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (s *Store) DeleteAssetsForRun(ctx context.Context, runID string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE run_id = ?`, runID)
	return err
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func intPointer(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	intValue := int(value.Int64)
	return &intValue
}
