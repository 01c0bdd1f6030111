package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quizbench/internal/quizdef"
	"quizbench/internal/runlog"
	"quizbench/internal/storage"
)

const maxQuizBodyBytes = 4 << 20

func (a *API) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) HandleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.store.FetchQuizzes(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	items := make([]quizSummaryResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		items = append(items, quizSummaryResponse{
			QuizID:       quiz.QuizID,
			Title:        quiz.Title,
			SourceURL:    quiz.Source.URL,
			CreatedAt:    quiz.CreatedAt,
			RawAvailable: quiz.RawAvailable,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": items})
}

// HandleUploadQuiz accepts a quiz definition as the request body, validates
// it, and upserts it under its own id.
func (a *API) HandleUploadQuiz(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxQuizBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read request body"})
		return
	}
	quiz, err := quizdef.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := a.store.UpsertQuiz(r.Context(), quiz, string(data), nil); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"quiz_id": quiz.ID})
}

func (a *API) HandleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	record, err := a.store.FetchQuizRecord(r.Context(), quizID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quiz":        record.Def,
		"quiz_json":   record.JSON,
		"raw_payload": record.RawPayload,
	})
}

// HandleDeleteQuiz cascades to the quiz's runs and cleans up their
// out-of-band files (asset directories and run logs).
func (a *API) HandleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	runIDs, err := a.store.DeleteQuiz(r.Context(), quizID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	for _, runID := range runIDs {
		if err := os.RemoveAll(a.paths.RunAssetsDir(runID)); err != nil {
			a.log.WithError(err).WithField("run_id", runID).Warn("could not remove run assets")
		}
		_ = os.Remove(a.paths.RunLogPath(runID))
		_ = os.Remove(a.paths.RunLogPath(runID) + ".1")
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted_runs": runIDs})
}

func (a *API) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.FetchRuns(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *API) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	quizJSON, err := a.store.FetchQuizJSON(r.Context(), req.QuizID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(req.Models) == 0 && req.Group == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "select at least one model or group"})
		return
	}
	if !a.cfg.MockAdapters && a.cfg.OpenRouterKey == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "OPENROUTER_API_KEY is required"})
		return
	}

	modelIDs := req.Models
	if len(modelIDs) == 0 {
		modelIDs, err = a.models.GroupModels(req.Group)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	adapters := a.models.Adapters(modelIDs, a.cfg.MockAdapters, a.cfg.OpenRouterKey)
	if len(adapters) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no available models to run"})
		return
	}

	// The orchestrator reads the quiz from a file; materialize the stored
	// definition next to the other runtime data.
	quizPath := filepath.Join(a.paths.QuizzesDir, req.QuizID+".json")
	if err := os.WriteFile(quizPath, []byte(quizJSON), 0o644); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not stage quiz file"})
		return
	}

	var settings map[string]string
	if req.Group != "" {
		settings = map[string]string{"group": req.Group}
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := a.store.InsertRun(r.Context(), runID, req.QuizID, storage.StatusQueued, adapterIDs(adapters), settings); err != nil {
		writeStoreError(w, err)
		return
	}

	reporter := a.rep
	if req.GenerateReport != nil && !*req.GenerateReport {
		reporter = nil
	}

	// The run outlives the request; it is owned by the process, and crash
	// recovery reconciles it if the process dies.
	go func() {
		if err := a.orch.RunAndReport(context.Background(), quizPath, adapters, runID, reporter); err != nil {
			a.log.WithError(err).WithField("run_id", runID).Error("run failed")
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"run_id": runID})
}

func (a *API) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := a.store.FetchRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	assets, err := a.store.FetchAssets(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	results, err := a.store.FetchResults(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDetailResponse{
		Run:     run,
		Assets:  toAssetResponses(runID, a.paths.RunAssetsDir(runID), assets),
		Results: results,
	})
}

func (a *API) HandleRerunReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := a.store.FetchRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !storage.IsTerminalStatus(run.Status) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "run is still in progress"})
		return
	}
	results, err := a.store.FetchResults(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(results) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "run has no results to analyze"})
		return
	}

	if err := a.store.DeleteAssetsForRun(r.Context(), runID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := os.RemoveAll(filepath.Join(a.paths.RunAssetsDir(runID), "reports")); err != nil {
		a.log.WithError(err).WithField("run_id", runID).Warn("could not clear old report files")
	}

	if err := runlog.Open(a.paths.LogsDir, runID).Append("Re-running report analysis."); err != nil {
		a.log.WithError(err).WithField("run_id", runID).Warn("run log append failed")
	}

	go func() {
		if err := a.orch.Report(context.Background(), runID, a.rep); err != nil {
			a.log.WithError(err).WithField("run_id", runID).Error("report re-run failed")
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "queued", "run_id": runID})
}

// HandleGetAsset serves a generated file from the run's asset directory.
// The path is confined to that directory.
func (a *API) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rel := chi.URLParam(r, "*")

	base, err := filepath.Abs(a.paths.RunAssetsDir(runID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid asset path"})
		return
	}
	full, err := filepath.Abs(filepath.Join(base, filepath.FromSlash(rel)))
	if err != nil || full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid asset path"})
		return
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "asset not found"})
		return
	}
	http.ServeFile(w, r, full)
}
