package quizdef

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrLegacyFormat = errors.New("legacy YAML quizzes are not supported; use a JSON quiz file")
	ErrInvalidQuiz  = errors.New("invalid quiz definition")
)

// Option is a single answer choice within a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

type Source struct {
	Publication string `json:"publication,omitempty"`
	URL         string `json:"url"`
}

// Outcome is an optional personality-quiz style result bucket.
type Outcome struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Quiz is the parsed quiz definition consumed by the run orchestrator.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Source    Source     `json:"source"`
	Questions []Question `json:"questions"`
	Outcomes  []Outcome  `json:"outcomes,omitempty"`
}

// Parse decodes and validates a quiz definition from JSON text.
func Parse(data []byte) (Quiz, error) {
	var quiz Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return Quiz{}, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if err := quiz.Validate(); err != nil {
		return Quiz{}, err
	}
	return quiz, nil
}

// ParseFile reads a quiz file from disk. Legacy YAML quiz files are rejected
// outright; this is a configuration error, not something to retry.
func ParseFile(path string) (Quiz, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Quiz{}, "", ErrLegacyFormat
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Quiz{}, "", err
	}

	quiz, err := Parse(data)
	if err != nil {
		return Quiz{}, "", err
	}
	return quiz, string(data), nil
}

func (q Quiz) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuiz)
	}
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidQuiz)
	}
	if strings.TrimSpace(q.Source.URL) == "" {
		return fmt.Errorf("%w: missing source.url", ErrInvalidQuiz)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", ErrInvalidQuiz)
	}
	for idx, question := range q.Questions {
		if strings.TrimSpace(question.ID) == "" {
			return fmt.Errorf("%w: question %d is missing id", ErrInvalidQuiz, idx+1)
		}
		if strings.TrimSpace(question.Text) == "" {
			return fmt.Errorf("%w: question %q is missing text", ErrInvalidQuiz, question.ID)
		}
		if len(question.Options) == 0 {
			return fmt.Errorf("%w: question %q has no options", ErrInvalidQuiz, question.ID)
		}
		for optIdx, option := range question.Options {
			if strings.TrimSpace(option.ID) == "" {
				return fmt.Errorf("%w: question %q option %d is missing id", ErrInvalidQuiz, question.ID, optIdx+1)
			}
		}
	}
	return nil
}
