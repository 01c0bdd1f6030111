package runner

import (
	"context"
	"fmt"

	"quizbench/internal/adapter"
	"quizbench/internal/storage"
)

// Reporter generates derived assets for a finished run. The concrete
// implementation lives in internal/report; the orchestrator only cares
// about the lifecycle around it.
type Reporter interface {
	Generate(ctx context.Context, runID string) error
}

// RunAndReport executes the quiz and then drives the reporting phase of the
// run lifecycle: reporting -> completed, or failed when the reporter
// errors. A reporting failure is surfaced to the caller; the run's stored
// results stay intact and the report can be re-run later. With a nil
// reporter the completed status set by RunQuiz stands.
func (o *Orchestrator) RunAndReport(ctx context.Context, quizPath string, adapters []adapter.Adapter, runID string, reporter Reporter) error {
	if err := o.RunQuiz(ctx, quizPath, adapters, runID); err != nil {
		return err
	}
	if reporter == nil {
		return nil
	}
	return o.Report(ctx, runID, reporter)
}

// Report runs only the reporting phase for a run that already has results.
func (o *Orchestrator) Report(ctx context.Context, runID string, reporter Reporter) error {
	if err := o.store.UpdateRunStatus(ctx, runID, storage.StatusReporting); err != nil {
		return fmt.Errorf("mark run reporting: %w", err)
	}
	if err := reporter.Generate(ctx, runID); err != nil {
		if statusErr := o.store.UpdateRunStatus(ctx, runID, storage.StatusFailed); statusErr != nil {
			o.log.WithError(statusErr).WithField("run_id", runID).Error("failed to mark run failed")
		}
		return fmt.Errorf("generate report: %w", err)
	}
	return o.store.UpdateRunStatus(ctx, runID, storage.StatusCompleted)
}
