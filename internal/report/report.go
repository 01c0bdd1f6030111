// Package report renders the derived artifacts for a finished run: a
// Markdown summary and a raw-choices CSV, both recorded as assets. The
// backend only keeps the paths; the files live under the run's asset
// directory.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

type Generator struct {
	store     storage.Store
	assetsDir string
}

func New(store storage.Store, assetsDir string) *Generator {
	return &Generator{store: store, assetsDir: assetsDir}
}

func (g *Generator) Generate(ctx context.Context, runID string) error {
	run, err := g.store.FetchRun(ctx, runID)
	if err != nil {
		return err
	}
	results, err := g.store.FetchResults(ctx, runID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("run %s has no results to analyze", runID)
	}

	// The quiz may have been deleted since the run finished; the report
	// then falls back to bare ids.
	quiz, err := g.store.FetchQuizDef(ctx, run.QuizID)
	if err != nil && !errors.Is(err, storage.ErrQuizNotFound) {
		return err
	}

	reportsDir := filepath.Join(g.assetsDir, runID, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return err
	}

	csvPath := filepath.Join(reportsDir, "raw_choices.csv")
	if err := writeRawChoices(csvPath, results); err != nil {
		return err
	}
	if err := g.store.InsertAsset(ctx, runID, "csv_raw_choices", csvPath); err != nil {
		return err
	}

	mdPath := filepath.Join(reportsDir, "report.md")
	if err := writeMarkdown(mdPath, run, quiz, results); err != nil {
		return err
	}
	return g.store.InsertAsset(ctx, runID, "report_markdown", mdPath)
}

func writeRawChoices(path string, results []storage.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"model_id", "question_id", "choice", "refused", "latency_ms", "tokens_in", "tokens_out"}); err != nil {
		return err
	}
	for _, row := range results {
		record := []string{
			row.ModelID,
			row.QuestionID,
			row.Choice,
			strconv.FormatBool(row.Refused),
			strconv.FormatInt(row.LatencyMS, 10),
			formatTokens(row.TokensIn),
			formatTokens(row.TokensOut),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatTokens(tokens *int) string {
	if tokens == nil {
		return ""
	}
	return strconv.Itoa(*tokens)
}

type modelStats struct {
	modelID   string
	answered  int
	refused   int
	latencyMS int64
	tokensIn  int
	tokensOut int
}

func writeMarkdown(path string, run storage.Run, quiz quizdef.Quiz, results []storage.Result) error {
	title := quiz.Title
	if title == "" {
		title = run.QuizID
	}

	byModel := make(map[string]*modelStats)
	var order []string
	for _, row := range results {
		stats, ok := byModel[row.ModelID]
		if !ok {
			stats = &modelStats{modelID: row.ModelID}
			byModel[row.ModelID] = stats
			order = append(order, row.ModelID)
		}
		if row.Refused {
			stats.refused++
		} else {
			stats.answered++
		}
		stats.latencyMS += row.LatencyMS
		if row.TokensIn != nil {
			stats.tokensIn += *row.TokensIn
		}
		if row.TokensOut != nil {
			stats.tokensOut += *row.TokensOut
		}
	}
	sort.Strings(order)

	var b strings.Builder
	fmt.Fprintf(&b, "# Benchmark report: %s\n\n", title)
	fmt.Fprintf(&b, "Run `%s`, quiz `%s`, %d models, %d result rows.\n\n", run.RunID, run.QuizID, len(byModel), len(results))

	b.WriteString("| Model | Answered | Refused | Avg latency (ms) | Tokens in | Tokens out |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, modelID := range order {
		stats := byModel[modelID]
		total := stats.answered + stats.refused
		avgLatency := int64(0)
		if total > 0 {
			avgLatency = stats.latencyMS / int64(total)
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d |\n",
			stats.modelID, stats.answered, stats.refused, avgLatency, stats.tokensIn, stats.tokensOut)
	}

	if len(quiz.Questions) > 0 {
		b.WriteString("\n## Choices by question\n")
		for _, question := range quiz.Questions {
			fmt.Fprintf(&b, "\n### %s: %s\n\n", question.ID, question.Text)
			for _, row := range results {
				if row.QuestionID != question.ID {
					continue
				}
				choice := row.Choice
				if row.Refused {
					choice = "(refused)"
				}
				fmt.Fprintf(&b, "- **%s**: %s\n", row.ModelID, choice)
			}
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}
