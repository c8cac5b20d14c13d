package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Analysis AnalysisService
	Logger   *slog.Logger
}

// NewRouter creates and configures the API router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	analysisHandlers := &AnalysisHandlers{Svc: services.Analysis}
	registerAnalysisRoutes(mux, analysisHandlers)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerAnalysisRoutes(mux *http.ServeMux, h *AnalysisHandlers) {
	mux.HandleFunc("POST /api/analyses", h.Submit)
	mux.HandleFunc("GET /api/analyses", h.List)
	mux.HandleFunc("GET /api/analyses/{id}/status", h.Status)
	mux.HandleFunc("GET /api/analyses/{id}/report", h.Report)
	mux.HandleFunc("GET /api/leaderboard", h.Leaderboard)
}
