package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "quizbench.sqlite3"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func sampleQuiz(id string) quizdef.Quiz {
	return quizdef.Quiz{
		ID:     id,
		Title:  "Sample Quiz",
		Source: quizdef.Source{Publication: "Example", URL: "https://example.test/quiz"},
		Questions: []quizdef.Question{
			{
				ID:   "Q1",
				Text: "Pick a letter:",
				Options: []quizdef.Option{
					{ID: "A", Text: "First"},
					{ID: "B", Text: "Second"},
				},
			},
			{
				ID:   "Q2",
				Text: "Pick another:",
				Options: []quizdef.Option{
					{ID: "A", Text: "Left"},
					{ID: "B", Text: "Right"},
				},
			},
		},
	}
}

func sampleQuizJSON(id string) string {
	return `{"id":"` + id + `","title":"Sample Quiz","source":{"publication":"Example","url":"https://example.test/quiz"},"questions":[{"id":"Q1","text":"Pick a letter:","options":[{"id":"A","text":"First"},{"id":"B","text":"Second"}]},{"id":"Q2","text":"Pick another:","options":[{"id":"A","text":"Left"},{"id":"B","text":"Right"}]}]}`
}

func TestUpsertQuizRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	quiz := sampleQuiz("quiz-a")
	raw := map[string]any{"origin": "upload"}
	if err := store.UpsertQuiz(ctx, quiz, sampleQuizJSON("quiz-a"), raw); err != nil {
		t.Fatalf("upsert quiz: %v", err)
	}

	def, err := store.FetchQuizDef(ctx, "quiz-a")
	if err != nil {
		t.Fatalf("fetch quiz def: %v", err)
	}
	if def.ID != quiz.ID || def.Title != quiz.Title || def.Source.URL != quiz.Source.URL {
		t.Fatalf("unexpected quiz def: %+v", def)
	}
	if len(def.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(def.Questions))
	}
	if def.Questions[1].Options[1].Text != "Right" {
		t.Fatalf("question structure not preserved: %+v", def.Questions[1])
	}

	record, err := store.FetchQuizRecord(ctx, "quiz-a")
	if err != nil {
		t.Fatalf("fetch quiz record: %v", err)
	}
	if record.RawPayload["origin"] != "upload" {
		t.Fatalf("raw payload not preserved: %+v", record.RawPayload)
	}
	if record.JSON != sampleQuizJSON("quiz-a") {
		t.Fatalf("stored quiz json drifted")
	}
}

func TestUpsertQuizKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertQuiz(ctx, sampleQuiz("quiz-a"), sampleQuizJSON("quiz-a"), nil); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	before, err := store.FetchQuizzes(ctx)
	if err != nil {
		t.Fatalf("fetch quizzes: %v", err)
	}

	renamed := sampleQuiz("quiz-a")
	renamed.Title = "Renamed Quiz"
	if err := store.UpsertQuiz(ctx, renamed, sampleQuizJSON("quiz-a"), nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	after, err := store.FetchQuizzes(ctx)
	if err != nil {
		t.Fatalf("fetch quizzes after update: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("upsert duplicated the quiz: %d rows", len(after))
	}
	if after[0].Title != "Renamed Quiz" {
		t.Fatalf("title not updated: %q", after[0].Title)
	}
	if !after[0].CreatedAt.Equal(before[0].CreatedAt) {
		t.Fatalf("created_at changed on re-upsert")
	}
}

func TestInsertRunDuplicateFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertRun(ctx, "run-1", "quiz-a", storage.StatusQueued, []string{"m"}, nil); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	err := store.InsertRun(ctx, "run-1", "quiz-a", storage.StatusRunning, []string{"m"}, nil)
	if !errors.Is(err, storage.ErrRunExists) {
		t.Fatalf("expected ErrRunExists on duplicate, got %v", err)
	}

	run, err := store.FetchRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("fetch run: %v", err)
	}
	if run.Status != storage.StatusQueued {
		t.Fatalf("failed insert mutated the run: %q", run.Status)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings := map[string]string{"temperature": "0.2"}
	if err := store.InsertRun(ctx, "run-1", "quiz-a", storage.StatusQueued, []string{"model-x", "model-y"}, settings); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := store.UpdateRunStatus(ctx, "run-1", storage.StatusRunning); err != nil {
		t.Fatalf("update status: %v", err)
	}

	run, err := store.FetchRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("fetch run: %v", err)
	}
	if run.Status != storage.StatusRunning {
		t.Fatalf("status not updated: %q", run.Status)
	}
	if len(run.Models) != 2 || run.Models[0] != "model-x" {
		t.Fatalf("models not preserved: %v", run.Models)
	}
	if run.Settings["temperature"] != "0.2" {
		t.Fatalf("settings not preserved: %v", run.Settings)
	}
	if run.CreatedAt.IsZero() {
		t.Fatal("created_at not populated")
	}

	if _, err := store.FetchRun(ctx, "ghost"); !errors.Is(err, storage.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := store.FetchRun(ctx, ""); !errors.Is(err, storage.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID for blank id, got %v", err)
	}
}

func TestMarkStaleRunsFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []struct {
		runID  string
		status string
	}{
		{"run-queued", storage.StatusQueued},
		{"run-running", storage.StatusRunning},
		{"run-reporting", storage.StatusReporting},
		{"run-done", storage.StatusCompleted},
		{"run-failed", storage.StatusFailed},
	}
	for _, row := range seed {
		if err := store.InsertRun(ctx, row.runID, "quiz-a", row.status, []string{"m"}, nil); err != nil {
			t.Fatalf("insert %s: %v", row.runID, err)
		}
	}

	marked, err := store.MarkStaleRunsFailed(ctx, storage.StaleStatuses(), storage.StatusFailed)
	if err != nil {
		t.Fatalf("mark stale runs: %v", err)
	}
	if len(marked) != 3 {
		t.Fatalf("expected 3 marked runs, got %v", marked)
	}
	for _, runID := range marked {
		run, err := store.FetchRun(ctx, runID)
		if err != nil {
			t.Fatalf("fetch %s: %v", runID, err)
		}
		if run.Status != storage.StatusFailed {
			t.Fatalf("%s not failed: %q", runID, run.Status)
		}
	}

	again, err := store.MarkStaleRunsFailed(ctx, storage.StaleStatuses(), storage.StatusFailed)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep marked runs: %v", again)
	}
}

func TestInsertResultsIsAdditive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tokensIn, tokensOut := 200, 35
	rows := []storage.Result{
		{RunID: "run-1", QuizID: "quiz-a", ModelID: "model-x", QuestionID: "Q1", Choice: "A", Reason: "because", LatencyMS: 412, TokensIn: &tokensIn, TokensOut: &tokensOut},
		{RunID: "run-1", QuizID: "quiz-a", ModelID: "model-x", QuestionID: "Q2", Refused: true, Reason: "Error: upstream timeout"},
	}
	if err := store.InsertResults(ctx, "run-1", "quiz-a", "model-x", rows); err != nil {
		t.Fatalf("insert results: %v", err)
	}
	if err := store.InsertResults(ctx, "run-1", "quiz-a", "model-x", rows); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	got, err := store.FetchResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("fetch results: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 rows after two inserts, got %d", len(got))
	}
	if got[0].TokensIn == nil || *got[0].TokensIn != 200 {
		t.Fatalf("tokens_in lost: %+v", got[0])
	}
	if got[1].TokensIn != nil {
		t.Fatalf("absent tokens_in should scan as nil: %+v", got[1])
	}
	if !got[1].Refused {
		t.Fatalf("refused flag lost: %+v", got[1])
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertQuiz(ctx, sampleQuiz("quiz-a"), sampleQuizJSON("quiz-a"), nil); err != nil {
		t.Fatalf("upsert quiz: %v", err)
	}
	if err := store.UpsertQuiz(ctx, sampleQuiz("quiz-b"), sampleQuizJSON("quiz-b"), nil); err != nil {
		t.Fatalf("upsert quiz-b: %v", err)
	}

	for _, runID := range []string{"run-1", "run-2"} {
		if err := store.InsertRun(ctx, runID, "quiz-a", storage.StatusCompleted, []string{"m"}, nil); err != nil {
			t.Fatalf("insert %s: %v", runID, err)
		}
		if err := store.InsertResults(ctx, runID, "quiz-a", "m", []storage.Result{
			{RunID: runID, QuizID: "quiz-a", ModelID: "m", QuestionID: "Q1", Choice: "A"},
		}); err != nil {
			t.Fatalf("insert results: %v", err)
		}
		if err := store.InsertAsset(ctx, runID, "report_markdown", "/tmp/"+runID+".md"); err != nil {
			t.Fatalf("insert asset: %v", err)
		}
	}
	if err := store.InsertRun(ctx, "run-other", "quiz-b", storage.StatusCompleted, []string{"m"}, nil); err != nil {
		t.Fatalf("insert unrelated run: %v", err)
	}

	deleted, err := store.DeleteQuiz(ctx, "quiz-a")
	if err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted run ids, got %v", deleted)
	}

	if _, err := store.FetchQuizJSON(ctx, "quiz-a"); !errors.Is(err, storage.ErrQuizNotFound) {
		t.Fatalf("quiz should be gone, got %v", err)
	}
	for _, runID := range deleted {
		if _, err := store.FetchRun(ctx, runID); !errors.Is(err, storage.ErrRunNotFound) {
			t.Fatalf("run %s should be gone, got %v", runID, err)
		}
		results, err := store.FetchResults(ctx, runID)
		if err != nil {
			t.Fatalf("fetch results: %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("results for %s not cascaded", runID)
		}
		assets, err := store.FetchAssets(ctx, runID)
		if err != nil {
			t.Fatalf("fetch assets: %v", err)
		}
		if len(assets) != 0 {
			t.Fatalf("assets for %s not cascaded", runID)
		}
	}

	if _, err := store.FetchRun(ctx, "run-other"); err != nil {
		t.Fatalf("unrelated run was deleted: %v", err)
	}
}

func TestFetchRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, runID := range []string{"run-older", "run-newer"} {
		if err := store.InsertRun(ctx, runID, "quiz-a", storage.StatusQueued, []string{"m"}, nil); err != nil {
			t.Fatalf("insert %s: %v", runID, err)
		}
	}

	runs, err := store.FetchRuns(ctx)
	if err != nil {
		t.Fatalf("fetch runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-newer" {
		t.Fatalf("not newest-first: %s first", runs[0].RunID)
	}
}
