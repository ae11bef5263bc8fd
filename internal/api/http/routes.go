package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veranemoloko/fetchd/internal/config"
	"github.com/veranemoloko/fetchd/internal/repository"
	"github.com/veranemoloko/fetchd/internal/storage"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up job routes, the event stream, artifact retrieval, health check, and Prometheus metrics endpoint.
func NewRouter(
	engine EngineI,
	history *repository.HistoryStore,
	filer *storage.FileStorage,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	jobHandler := NewJobHandler(engine, history, filer, cfg, logger)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", jobHandler.SubmitJob)
		r.Get("/", jobHandler.ListJobs)
		r.Delete("/", jobHandler.CancelAllJobs)
		r.Get("/{jobID}", jobHandler.GetJob)
		r.Delete("/{jobID}", jobHandler.CancelJob)
	})

	r.Get("/history", jobHandler.GetHistory)
	r.Get("/config", jobHandler.GetConfig)
	r.Get("/events", jobHandler.StreamEvents)
	r.Get("/files/{jobID}", jobHandler.GetArtifact)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
