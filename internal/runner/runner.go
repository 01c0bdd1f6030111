// Package runner is the run orchestrator: it executes a quiz against every
// adapter in order, isolating failures at question and adapter granularity,
// and records results and a per-run text log as it goes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quizbench/internal/adapter"
	"quizbench/internal/quizdef"
	"quizbench/internal/runlog"
	"quizbench/internal/storage"
)

const summaryRule = "============================================================"

type Orchestrator struct {
	store   storage.Store
	logsDir string
	log     *logrus.Logger
}

func New(store storage.Store, logsDir string, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{store: store, logsDir: logsDir, log: log}
}

// RunQuiz executes the quiz file against every adapter sequentially and
// leaves the run in completed status. A failure of one question or one
// adapter never surfaces to the caller; an unsupported quiz file or a
// storage write failure does.
func (o *Orchestrator) RunQuiz(ctx context.Context, quizPath string, adapters []adapter.Adapter, runID string) error {
	quiz, quizJSON, err := quizdef.ParseFile(quizPath)
	if err != nil {
		return fmt.Errorf("load quiz: %w", err)
	}

	rlog := runlog.Open(o.logsDir, runID)

	if err := o.store.UpsertQuiz(ctx, quiz, quizJSON, nil); err != nil {
		return fmt.Errorf("record quiz: %w", err)
	}

	modelIDs := make([]string, 0, len(adapters))
	for _, ad := range adapters {
		modelIDs = append(modelIDs, ad.ID())
	}
	if err := o.ensureRunning(ctx, runID, quiz.ID, modelIDs); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	o.logLine(rlog, runID, fmt.Sprintf("Run %s started for quiz %s.", runID, quiz.ID))

	var successful []string
	var failed []adapterFailure

	for _, ad := range adapters {
		o.logLine(rlog, runID, "Testing model: "+ad.ID())

		records, fatal := o.runAdapter(ctx, rlog, runID, ad, quiz)
		if fatal != nil {
			cause := rootCause(fatal)
			o.logLine(rlog, runID, fmt.Sprintf("Model %s failed completely: %s", ad.ID(), cause))
			failed = append(failed, adapterFailure{modelID: ad.ID(), reason: cause})
			continue
		}

		o.logLine(rlog, runID, fmt.Sprintf("Model %s completed successfully", ad.ID()))
		successful = append(successful, ad.ID())

		if err := o.store.InsertResults(ctx, runID, quiz.ID, ad.ID(), records); err != nil {
			return fmt.Errorf("persist results for %s: %w", ad.ID(), err)
		}
	}

	o.writeSummary(rlog, runID, successful, failed)

	if err := o.store.UpdateRunStatus(ctx, runID, storage.StatusCompleted); err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	return nil
}

type adapterFailure struct {
	modelID string
	reason  string
}

// ensureRunning marks an already-queued run as running, or creates the run
// directly in running status when the orchestrator is the first writer
// (the CLI path).
func (o *Orchestrator) ensureRunning(ctx context.Context, runID, quizID string, modelIDs []string) error {
	_, err := o.store.FetchRun(ctx, runID)
	if err == nil {
		return o.store.UpdateRunStatus(ctx, runID, storage.StatusRunning)
	}
	if !errors.Is(err, storage.ErrRunNotFound) {
		return err
	}
	return o.store.InsertRun(ctx, runID, quizID, storage.StatusRunning, modelIDs, nil)
}

// runAdapter walks every question in order and always produces one record
// per question. Anything that escapes the per-question isolation, a panic
// or a cancelled context, fails the whole adapter: fatal != nil and no
// records are kept.
func (o *Orchestrator) runAdapter(ctx context.Context, rlog *runlog.Log, runID string, ad adapter.Adapter, quiz quizdef.Quiz) (records []storage.Result, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			fatal = fmt.Errorf("adapter panicked: %v", r)
		}
	}()

	for idx, question := range quiz.Questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := o.askQuestion(ctx, ad, quiz, idx+1, question)
		if err != nil {
			cause := truncate(rootCause(err), 150)
			o.logLine(rlog, runID, fmt.Sprintf("Question %d failed for %s: %s", idx+1, ad.ID(), cause))
			zero := 0
			record = storage.Result{
				QuestionID: question.ID,
				Choice:     "",
				Reason:     "Error: " + cause,
				Refused:    true,
				LatencyMS:  0,
				TokensIn:   &zero,
				TokensOut:  &zero,
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (o *Orchestrator) askQuestion(ctx context.Context, ad adapter.Adapter, quiz quizdef.Quiz, num int, question quizdef.Question) (storage.Result, error) {
	prompt := renderPrompt(quiz.Title, num, len(quiz.Questions), question)
	messages := []adapter.Message{{Role: "user", Content: prompt}}

	start := time.Now()
	resp, err := ad.Send(ctx, messages, ad.DefaultParams())
	if err != nil {
		return storage.Result{}, err
	}
	latencyMS := time.Since(start).Milliseconds()

	answer, ok := parseChoice(resp.Text)
	if !ok {
		answer = choiceAnswer{Refused: true}
	}
	return storage.Result{
		QuestionID:         question.ID,
		Choice:             answer.Choice,
		Reason:             answer.Reason,
		AdditionalThoughts: answer.AdditionalThoughts,
		Refused:            answer.Refused,
		LatencyMS:          latencyMS,
		TokensIn:           resp.TokensIn,
		TokensOut:          resp.TokensOut,
	}, nil
}

func (o *Orchestrator) writeSummary(rlog *runlog.Log, runID string, successful []string, failed []adapterFailure) {
	o.logLine(rlog, runID, summaryRule)
	o.logLine(rlog, runID, "BENCHMARK SUMMARY")
	o.logLine(rlog, runID, summaryRule)

	if len(successful) > 0 {
		o.logLine(rlog, runID, fmt.Sprintf("Successful models (%d):", len(successful)))
		for _, modelID := range successful {
			o.logLine(rlog, runID, " - "+modelID)
		}
	}
	if len(failed) > 0 {
		o.logLine(rlog, runID, fmt.Sprintf("Failed models (%d):", len(failed)))
		for _, failure := range failed {
			o.logLine(rlog, runID, fmt.Sprintf(" - %s: %s...", failure.modelID, truncate(failure.reason, 80)))
		}
	}
	if len(successful) == 0 {
		o.logLine(rlog, runID, "WARNING: No models completed successfully!")
		o.logLine(rlog, runID, "Check your API keys and model access permissions.")
	} else {
		o.logLine(rlog, runID, fmt.Sprintf("Results saved for %d working model(s)", len(successful)))
	}
	o.logLine(rlog, runID, summaryRule)
	o.logLine(rlog, runID, "Run complete. Waiting on reports if enabled.")
}

func (o *Orchestrator) logLine(rlog *runlog.Log, runID, message string) {
	if err := rlog.Append(message); err != nil {
		o.log.WithError(err).WithField("run_id", runID).Warn("run log append failed")
	}
	o.log.WithField("run_id", runID).Info(message)
}

// rootCause unwraps nested error wrappers down to the innermost cause, so
// log lines show the provider's actual failure instead of retry wrapping.
func rootCause(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return strings.TrimSpace(text[:limit])
}
