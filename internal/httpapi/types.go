package httpapi

import (
	"time"

	"quizbench/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type quizSummaryResponse struct {
	QuizID       string    `json:"quiz_id"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	RawAvailable bool      `json:"raw_available"`
}

type createRunRequest struct {
	QuizID string   `json:"quiz_id"`
	Models []string `json:"models,omitempty"`
	Group  string   `json:"group,omitempty"`
	// GenerateReport defaults to true when omitted.
	GenerateReport *bool `json:"generate_report,omitempty"`
}

type assetResponse struct {
	AssetType string    `json:"asset_type"`
	Path      string    `json:"path"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type runDetailResponse struct {
	Run     storage.Run      `json:"run"`
	Assets  []assetResponse  `json:"assets"`
	Results []storage.Result `json:"results,omitempty"`
}
