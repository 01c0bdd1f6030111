package runner

import (
	"context"

	"github.com/sirupsen/logrus"

	"quizbench/internal/runlog"
	"quizbench/internal/storage"
)

// RecoverStaleRuns is called once at process startup, before any new work
// is accepted. Every run left in a non-terminal status by an unclean
// shutdown is forced to failed and gets one line in its own log saying so.
// Slow-but-alive runs from a previous process do not exist by design; a
// single process owns a run.
func RecoverStaleRuns(ctx context.Context, store storage.Store, logsDir string, log *logrus.Logger) ([]string, error) {
	runIDs, err := store.MarkStaleRunsFailed(ctx, storage.StaleStatuses(), storage.StatusFailed)
	if err != nil {
		return nil, err
	}
	for _, runID := range runIDs {
		rlog := runlog.Open(logsDir, runID)
		if err := rlog.Append("Server restarted; run marked as failed."); err != nil {
			log.WithError(err).WithField("run_id", runID).Warn("could not write recovery note to run log")
		}
	}
	if len(runIDs) > 0 {
		log.WithField("count", len(runIDs)).Warn("marked stale runs as failed after restart")
	}
	return runIDs, nil
}
