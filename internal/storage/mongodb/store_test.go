package mongodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

// newTestStore connects to the server named by MONGODB_TEST_URI and works
// in a throwaway database. Without that variable the tests are skipped;
// the document backend needs a real server.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	dbName := fmt.Sprintf("quizbench_test_%d", time.Now().UnixNano())
	store, err := New(ctx, client, dbName)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(cleanupCtx)
		_ = store.Close()
	})
	return store
}

func sampleQuiz(id string) quizdef.Quiz {
	return quizdef.Quiz{
		ID:     id,
		Title:  "Sample Quiz",
		Source: quizdef.Source{URL: "https://example.test/quiz"},
		Questions: []quizdef.Question{
			{ID: "Q1", Text: "Pick one:", Options: []quizdef.Option{{ID: "A", Text: "First"}, {ID: "B", Text: "Second"}}},
		},
	}
}

func TestQuizRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	quiz := sampleQuiz("quiz-a")
	if err := store.UpsertQuiz(ctx, quiz, `{"id":"quiz-a","title":"Sample Quiz","source":{"url":"https://example.test/quiz"},"questions":[{"id":"Q1","text":"Pick one:","options":[{"id":"A","text":"First"},{"id":"B","text":"Second"}]}]}`, map[string]any{"origin": "upload"}); err != nil {
		t.Fatalf("upsert quiz: %v", err)
	}

	def, err := store.FetchQuizDef(ctx, "quiz-a")
	if err != nil {
		t.Fatalf("fetch quiz def: %v", err)
	}
	if def.ID != "quiz-a" || len(def.Questions) != 1 {
		t.Fatalf("unexpected quiz def: %+v", def)
	}

	if _, err := store.FetchQuizDef(ctx, "ghost"); !errors.Is(err, storage.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestRunUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertRun(ctx, "run-1", "quiz-a", storage.StatusQueued, []string{"m"}, nil); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	err := store.InsertRun(ctx, "run-1", "quiz-a", storage.StatusRunning, []string{"m"}, nil)
	if !errors.Is(err, storage.ErrRunExists) {
		t.Fatalf("expected ErrRunExists on duplicate, got %v", err)
	}
}

func TestStaleSweepAndCascade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertQuiz(ctx, sampleQuiz("quiz-a"), `{"id":"quiz-a"}`, nil); err != nil {
		t.Fatalf("upsert quiz: %v", err)
	}
	if err := store.InsertRun(ctx, "run-1", "quiz-a", storage.StatusRunning, []string{"m"}, nil); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := store.InsertResults(ctx, "run-1", "quiz-a", "m", []storage.Result{
		{RunID: "run-1", QuizID: "quiz-a", ModelID: "m", QuestionID: "Q1", Choice: "A"},
	}); err != nil {
		t.Fatalf("insert results: %v", err)
	}

	marked, err := store.MarkStaleRunsFailed(ctx, storage.StaleStatuses(), storage.StatusFailed)
	if err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if len(marked) != 1 || marked[0] != "run-1" {
		t.Fatalf("unexpected sweep result: %v", marked)
	}

	deleted, err := store.DeleteQuiz(ctx, "quiz-a")
	if err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("expected one cascaded run, got %v", deleted)
	}
	if _, err := store.FetchRun(ctx, "run-1"); !errors.Is(err, storage.ErrRunNotFound) {
		t.Fatalf("run should be gone, got %v", err)
	}
}
