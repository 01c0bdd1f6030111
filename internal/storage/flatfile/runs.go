package flatfile

import (
	"context"
	"sort"

	"quizbench/internal/storage"
)

func (s *Store) loadRuns() ([]storage.Run, error) {
	return readLines[storage.Run](s.runsPath())
}

// InsertRun overwrites any existing run with the same id. Uniqueness is
// enforced by the relational and document backends, not here.
func (s *Store) InsertRun(_ context.Context, runID, quizID, status string, models []string, settings map[string]string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	if err := storage.CheckID(quizID); err != nil {
		return err
	}
	if settings == nil {
		settings = map[string]string{}
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	runs, err := s.loadRuns()
	if err != nil {
		return err
	}

	run := storage.Run{
		RunID:     runID,
		QuizID:    quizID,
		CreatedAt: now(),
		Status:    status,
		Models:    models,
		Settings:  settings,
	}

	replaced := false
	for idx := range runs {
		if runs[idx].RunID == runID {
			run.CreatedAt = runs[idx].CreatedAt
			runs[idx] = run
			replaced = true
			break
		}
	}
	if !replaced {
		runs = append(runs, run)
	}

	return writeLines(s.runsPath(), runs)
}

// UpdateRunStatus is a no-op for an unknown run id.
func (s *Store) UpdateRunStatus(_ context.Context, runID, status string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	runs, err := s.loadRuns()
	if err != nil {
		return err
	}
	for idx := range runs {
		if runs[idx].RunID == runID {
			runs[idx].Status = status
			return writeLines(s.runsPath(), runs)
		}
	}
	return nil
}

func (s *Store) MarkStaleRunsFailed(_ context.Context, statuses []string, newStatus string) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	stale := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		stale[status] = true
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	runs, err := s.loadRuns()
	if err != nil {
		return nil, err
	}

	var marked []string
	for idx := range runs {
		if stale[runs[idx].Status] {
			runs[idx].Status = newStatus
			marked = append(marked, runs[idx].RunID)
		}
	}
	if len(marked) == 0 {
		return []string{}, nil
	}
	if err := writeLines(s.runsPath(), runs); err != nil {
		return nil, err
	}
	return marked, nil
}

func (s *Store) FetchRuns(_ context.Context) ([]storage.Run, error) {
	s.runsMu.Lock()
	runs, err := s.loadRuns()
	s.runsMu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *Store) FetchRun(_ context.Context, runID string) (storage.Run, error) {
	if err := storage.CheckID(runID); err != nil {
		return storage.Run{}, err
	}

	s.runsMu.Lock()
	runs, err := s.loadRuns()
	s.runsMu.Unlock()
	if err != nil {
		return storage.Run{}, err
	}
	for _, run := range runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return storage.Run{}, storage.ErrRunNotFound
}
