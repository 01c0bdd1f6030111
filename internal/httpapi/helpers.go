package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"quizbench/internal/adapter"
	"quizbench/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid identifier"})
	case errors.Is(err, storage.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "quiz not found"})
	case errors.Is(err, storage.ErrRunNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run not found"})
	case errors.Is(err, storage.ErrRunExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "run already exists"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

func adapterIDs(adapters []adapter.Adapter) []string {
	ids := make([]string, 0, len(adapters))
	for _, ad := range adapters {
		ids = append(ids, ad.ID())
	}
	return ids
}

// toAssetResponses attaches a download URL to every asset stored inside the
// run's own asset directory; anything outside it gets no URL.
func toAssetResponses(runID, runAssetsDir string, assets []storage.Asset) []assetResponse {
	items := make([]assetResponse, 0, len(assets))
	for _, asset := range assets {
		item := assetResponse{
			AssetType: asset.AssetType,
			Path:      asset.Path,
			CreatedAt: asset.CreatedAt,
		}
		if rel, err := filepath.Rel(runAssetsDir, asset.Path); err == nil && rel != "." && !pathEscapes(rel) {
			item.URL = "/api/assets/" + runID + "/" + filepath.ToSlash(rel)
		}
		items = append(items, item)
	}
	return items
}

func pathEscapes(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
