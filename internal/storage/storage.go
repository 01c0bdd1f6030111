package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"quizbench/internal/quizdef"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrRunNotFound  = errors.New("run not found")
	// ErrRunExists is returned by InsertRun for a duplicate run id on the
	// backends that enforce uniqueness. The flat-file backend overwrites
	// instead.
	ErrRunExists = errors.New("run already exists")
	ErrInvalidID = errors.New("invalid identifier")
)

// QuizSummary is the listing view of a stored quiz. RawAvailable reports
// whether the original raw input payload was kept alongside the definition.
type QuizSummary struct {
	QuizID       string
	Title        string
	Source       quizdef.Source
	CreatedAt    time.Time
	RawAvailable bool
}

// QuizRecord is the full stored quiz including the raw serialized definition
// and the optional raw input payload it was produced from.
type QuizRecord struct {
	Def        quizdef.Quiz
	JSON       string
	RawPayload map[string]any
}

type Run struct {
	RunID     string            `json:"run_id"`
	QuizID    string            `json:"quiz_id"`
	CreatedAt time.Time         `json:"created_at"`
	Status    string            `json:"status"`
	Models    []string          `json:"models"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// Result is one answer row for a (run, model, question) triple. Inserts are
// additive; the store never de-duplicates repeated rows for the same triple.
type Result struct {
	RunID              string `json:"run_id"`
	QuizID             string `json:"quiz_id"`
	ModelID            string `json:"model_id"`
	QuestionID         string `json:"question_id"`
	Choice             string `json:"choice"`
	Reason             string `json:"reason"`
	AdditionalThoughts string `json:"additional_thoughts"`
	Refused            bool   `json:"refused"`
	LatencyMS          int64  `json:"latency_ms"`
	TokensIn           *int   `json:"tokens_in"`
	TokensOut          *int   `json:"tokens_out"`
}

// Asset points at a generated artifact on disk. The store only keeps the
// metadata; the file bytes are owned by whoever wrote them.
type Asset struct {
	RunID     string    `json:"run_id"`
	AssetType string    `json:"asset_type"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract shared by the sqlite, mongodb and
// flatfile backends. Every backend must satisfy it identically; callers
// never touch a backend's internals.
type Store interface {
	UpsertQuiz(ctx context.Context, def quizdef.Quiz, quizJSON string, rawPayload map[string]any) error
	InsertRun(ctx context.Context, runID, quizID, status string, models []string, settings map[string]string) error
	UpdateRunStatus(ctx context.Context, runID, status string) error
	MarkStaleRunsFailed(ctx context.Context, statuses []string, newStatus string) ([]string, error)
	InsertResults(ctx context.Context, runID, quizID, modelID string, rows []Result) error
	InsertAsset(ctx context.Context, runID, assetType, path string) error

	FetchResults(ctx context.Context, runID string) ([]Result, error)
	FetchRuns(ctx context.Context) ([]Run, error)
	FetchRun(ctx context.Context, runID string) (Run, error)
	FetchAssets(ctx context.Context, runID string) ([]Asset, error)
	FetchQuizzes(ctx context.Context) ([]QuizSummary, error)
	FetchQuizJSON(ctx context.Context, quizID string) (string, error)
	FetchQuizDef(ctx context.Context, quizID string) (quizdef.Quiz, error)
	FetchQuizRecord(ctx context.Context, quizID string) (QuizRecord, error)

	DeleteAssetsForRun(ctx context.Context, runID string) error
	DeleteQuiz(ctx context.Context, quizID string) ([]string, error)

	Close() error
}

// CheckID rejects blank identifiers before they reach a backend query. A
// malformed id is a caller bug and is reported distinctly from "not found".
func CheckID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}
