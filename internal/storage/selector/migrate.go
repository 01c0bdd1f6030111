package selector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"quizbench/internal/config"
	"quizbench/internal/storage"
	"quizbench/internal/storage/sqlite"
)

// migrateLegacy copies every entity from the legacy sqlite database into
// the selected backend, then writes the marker and renames the legacy file
// to a backup suffix. The marker's existence suppresses all future
// attempts. Fail-loud: any error aborts before the marker is written, so a
// retried process redoes the whole migration. On the flat-file backend a
// crash between partial inserts and the marker write can therefore leave
// duplicate result rows behind; that is a known limitation of the append
// semantics, not something this code tries to hide.
func migrateLegacy(ctx context.Context, paths config.Paths, dest storage.Store, log *logrus.Logger) error {
	if _, err := os.Stat(paths.LegacyDB); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := os.Stat(paths.Marker); err == nil {
		return nil
	}

	log.WithField("path", paths.LegacyDB).Info("storage: migrating legacy sqlite database")

	source, err := sqlite.Open(paths.LegacyDB)
	if err != nil {
		return fmt.Errorf("open legacy database: %w", err)
	}
	defer source.Close()

	if err := copyAll(ctx, source, dest); err != nil {
		return fmt.Errorf("migrate legacy database: %w", err)
	}

	if err := os.WriteFile(paths.Marker, []byte("Migration completed\n"), 0o644); err != nil {
		return fmt.Errorf("write migration marker: %w", err)
	}
	// Keep the legacy file around under a backup name; it is never deleted.
	if err := os.Rename(paths.LegacyDB, paths.LegacyDB+".backup"); err != nil {
		return fmt.Errorf("rename legacy database: %w", err)
	}

	log.Info("storage: legacy migration complete")
	return nil
}

// copyAll replays the legacy contents through the destination's own write
// operations so migrated data passes the same invariants as live writes.
func copyAll(ctx context.Context, source, dest storage.Store) error {
	quizzes, err := source.FetchQuizzes(ctx)
	if err != nil {
		return err
	}
	for _, quiz := range quizzes {
		record, err := source.FetchQuizRecord(ctx, quiz.QuizID)
		if err != nil {
			return err
		}
		if err := dest.UpsertQuiz(ctx, record.Def, record.JSON, record.RawPayload); err != nil {
			return err
		}
	}

	runs, err := source.FetchRuns(ctx)
	if err != nil {
		return err
	}
	for _, run := range runs {
		err := dest.InsertRun(ctx, run.RunID, run.QuizID, run.Status, run.Models, run.Settings)
		if errors.Is(err, storage.ErrRunExists) {
			// Left over from an aborted earlier attempt; refresh the
			// status and keep going.
			err = dest.UpdateRunStatus(ctx, run.RunID, run.Status)
		}
		if err != nil {
			return err
		}
	}

	for _, run := range runs {
		results, err := source.FetchResults(ctx, run.RunID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			continue
		}
		// Group rows per model, preserving their stored order.
		var modelOrder []string
		byModel := make(map[string][]storage.Result)
		for _, row := range results {
			if _, seen := byModel[row.ModelID]; !seen {
				modelOrder = append(modelOrder, row.ModelID)
			}
			byModel[row.ModelID] = append(byModel[row.ModelID], row)
		}
		for _, modelID := range modelOrder {
			if err := dest.InsertResults(ctx, run.RunID, run.QuizID, modelID, byModel[modelID]); err != nil {
				return err
			}
		}
	}

	for _, run := range runs {
		assets, err := source.FetchAssets(ctx, run.RunID)
		if err != nil {
			return err
		}
		for _, asset := range assets {
			if err := dest.InsertAsset(ctx, asset.RunID, asset.AssetType, asset.Path); err != nil {
				return err
			}
		}
	}
	return nil
}
