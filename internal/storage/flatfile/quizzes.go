package flatfile

import (
	"context"
	"encoding/json"
	"sort"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

func (s *Store) loadQuizzes() ([]quizLine, error) {
	return readLines[quizLine](s.quizzesPath())
}

func (s *Store) UpsertQuiz(_ context.Context, def quizdef.Quiz, quizJSON string, rawPayload map[string]any) error {
	if err := storage.CheckID(def.ID); err != nil {
		return err
	}
	if rawPayload == nil {
		rawPayload = map[string]any{}
	}

	s.quizzesMu.Lock()
	defer s.quizzesMu.Unlock()

	quizzes, err := s.loadQuizzes()
	if err != nil {
		return err
	}

	line := quizLine{
		QuizID:     def.ID,
		Title:      def.Title,
		Source:     def.Source,
		QuizJSON:   quizJSON,
		RawPayload: rawPayload,
		CreatedAt:  now(),
	}

	replaced := false
	for idx := range quizzes {
		if quizzes[idx].QuizID == def.ID {
			// Re-upsert keeps the original creation time; only the
			// definition itself is replaced.
			line.CreatedAt = quizzes[idx].CreatedAt
			quizzes[idx] = line
			replaced = true
			break
		}
	}
	if !replaced {
		quizzes = append(quizzes, line)
	}

	return writeLines(s.quizzesPath(), quizzes)
}

func (s *Store) findQuiz(quizID string) (quizLine, bool, error) {
	quizzes, err := s.loadQuizzes()
	if err != nil {
		return quizLine{}, false, err
	}
	for _, quiz := range quizzes {
		if quiz.QuizID == quizID {
			return quiz, true, nil
		}
	}
	return quizLine{}, false, nil
}

func (s *Store) FetchQuizzes(_ context.Context) ([]storage.QuizSummary, error) {
	s.quizzesMu.Lock()
	quizzes, err := s.loadQuizzes()
	s.quizzesMu.Unlock()
	if err != nil {
		return nil, err
	}

	summaries := make([]storage.QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		summaries = append(summaries, storage.QuizSummary{
			QuizID:       quiz.QuizID,
			Title:        quiz.Title,
			Source:       quiz.Source,
			CreatedAt:    quiz.CreatedAt,
			RawAvailable: len(quiz.RawPayload) > 0,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *Store) FetchQuizJSON(ctx context.Context, quizID string) (string, error) {
	record, err := s.FetchQuizRecord(ctx, quizID)
	if err != nil {
		return "", err
	}
	return record.JSON, nil
}

func (s *Store) FetchQuizDef(ctx context.Context, quizID string) (quizdef.Quiz, error) {
	record, err := s.FetchQuizRecord(ctx, quizID)
	if err != nil {
		return quizdef.Quiz{}, err
	}
	return record.Def, nil
}

func (s *Store) FetchQuizRecord(_ context.Context, quizID string) (storage.QuizRecord, error) {
	if err := storage.CheckID(quizID); err != nil {
		return storage.QuizRecord{}, err
	}

	s.quizzesMu.Lock()
	quiz, found, err := s.findQuiz(quizID)
	s.quizzesMu.Unlock()
	if err != nil {
		return storage.QuizRecord{}, err
	}
	if !found {
		return storage.QuizRecord{}, storage.ErrQuizNotFound
	}

	var def quizdef.Quiz
	if quiz.QuizJSON != "" {
		if err := json.Unmarshal([]byte(quiz.QuizJSON), &def); err != nil {
			return storage.QuizRecord{}, err
		}
	}
	return storage.QuizRecord{
		Def:        def,
		JSON:       quiz.QuizJSON,
		RawPayload: quiz.RawPayload,
	}, nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) ([]string, error) {
	if err := storage.CheckID(quizID); err != nil {
		return nil, err
	}

	// Locks are taken one entity log at a time; there is no transaction
	// across logs.
	s.runsMu.Lock()
	runs, err := s.loadRuns()
	if err != nil {
		s.runsMu.Unlock()
		return nil, err
	}
	deletedRuns := make([]string, 0)
	kept := runs[:0]
	for _, run := range runs {
		if run.QuizID == quizID {
			deletedRuns = append(deletedRuns, run.RunID)
			continue
		}
		kept = append(kept, run)
	}
	if len(deletedRuns) > 0 {
		if err := writeLines(s.runsPath(), kept); err != nil {
			s.runsMu.Unlock()
			return nil, err
		}
	}
	s.runsMu.Unlock()

	if len(deletedRuns) > 0 {
		deleted := make(map[string]bool, len(deletedRuns))
		for _, runID := range deletedRuns {
			deleted[runID] = true
		}

		s.resultsMu.Lock()
		results, err := readLines[storage.Result](s.resultsPath())
		if err == nil {
			keptResults := results[:0]
			for _, row := range results {
				if !deleted[row.RunID] {
					keptResults = append(keptResults, row)
				}
			}
			err = writeLines(s.resultsPath(), keptResults)
		}
		s.resultsMu.Unlock()
		if err != nil {
			return nil, err
		}

		s.assetsMu.Lock()
		assets, err := readLines[storage.Asset](s.assetsPath())
		if err == nil {
			keptAssets := assets[:0]
			for _, asset := range assets {
				if !deleted[asset.RunID] {
					keptAssets = append(keptAssets, asset)
				}
			}
			err = writeLines(s.assetsPath(), keptAssets)
		}
		s.assetsMu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	s.quizzesMu.Lock()
	defer s.quizzesMu.Unlock()
	quizzes, err := s.loadQuizzes()
	if err != nil {
		return nil, err
	}
	keptQuizzes := quizzes[:0]
	removed := false
	for _, quiz := range quizzes {
		if quiz.QuizID == quizID {
			removed = true
			continue
		}
		keptQuizzes = append(keptQuizzes, quiz)
	}
	if removed {
		if err := writeLines(s.quizzesPath(), keptQuizzes); err != nil {
			return nil, err
		}
	}

	return deletedRuns, nil
}
