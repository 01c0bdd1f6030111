package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", api.HandleHealth)

	r.Route("/api/quizzes", func(r chi.Router) {
		r.Get("/", api.HandleListQuizzes)
		r.Post("/", api.HandleUploadQuiz)
		r.Get("/{quizID}", api.HandleGetQuiz)
		r.Delete("/{quizID}", api.HandleDeleteQuiz)
	})

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", api.HandleListRuns)
		r.Post("/", api.HandleCreateRun)
		r.Get("/{runID}", api.HandleGetRun)
		r.Post("/{runID}/report", api.HandleRerunReport)
	})

	r.Get("/api/assets/{runID}/*", api.HandleGetAsset)

	return r
}
