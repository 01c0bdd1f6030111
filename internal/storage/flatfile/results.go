package flatfile

import (
	"context"

	"quizbench/internal/storage"
)

// InsertResults appends one line per row. Rows already on disk are never
// touched, so a failure partway through leaves earlier rows intact.
func (s *Store) InsertResults(_ context.Context, runID, quizID, modelID string, rows []storage.Result) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}

	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()

	for _, row := range rows {
		row.RunID = runID
		row.QuizID = quizID
		row.ModelID = modelID
		if err := appendLine(s.resultsPath(), row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FetchResults(_ context.Context, runID string) ([]storage.Result, error) {
	if err := storage.CheckID(runID); err != nil {
		return nil, err
	}

	s.resultsMu.Lock()
	rows, err := readLines[storage.Result](s.resultsPath())
	s.resultsMu.Unlock()
	if err != nil {
		return nil, err
	}

	matched := make([]storage.Result, 0)
	for _, row := range rows {
		if row.RunID == runID {
			matched = append(matched, row)
		}
	}
	return matched, nil
}
