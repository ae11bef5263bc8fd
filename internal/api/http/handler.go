package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/fetchd/internal/config"
	"github.com/veranemoloko/fetchd/internal/domain"
	errpkg "github.com/veranemoloko/fetchd/internal/errors"
	"github.com/veranemoloko/fetchd/internal/repository"
	"github.com/veranemoloko/fetchd/internal/storage"
)

// EngineI defines the interface for the job orchestration engine.
type EngineI interface {
	Submit(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error)
	Cancel(id string) (int, error)
	CancelAll() (int, error)
	GetJob(id string) (*domain.Job, error)
	ListJobs() ([]*domain.Job, error)
	Subscribe() (<-chan domain.Event, func(), error)
}

// JobHandler handles HTTP requests for jobs, history, and artifacts.
type JobHandler struct {
	engine    EngineI
	history   *repository.HistoryStore
	filer     *storage.FileStorage
	cfg       *config.Config
	validator *validator.Validate
	logger    *slog.Logger
}

// NewJobHandler creates a new JobHandler with the provided collaborators.
func NewJobHandler(
	engine EngineI,
	history *repository.HistoryStore,
	filer *storage.FileStorage,
	cfg *config.Config,
	logger *slog.Logger,
) *JobHandler {
	return &JobHandler{
		engine:    engine,
		history:   history,
		filer:     filer,
		cfg:       cfg,
		validator: validator.New(),
		logger:    logger,
	}
}

// SubmitJob handles the HTTP POST /jobs request to submit a new transfer.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.engine.Submit(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, errpkg.ErrDomainNotAllowed):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, errpkg.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.logger.Warn("submission rejected", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// CancelJob handles the HTTP DELETE /jobs/{jobID} request.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	n, err := h.engine.Cancel(id)
	if err != nil {
		if errors.Is(err, errpkg.ErrJobNotFound) || errors.Is(err, errpkg.ErrJobNotActive) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to cancel job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, domain.CancelResponse{Cancelled: n})
}

// CancelAllJobs handles the HTTP DELETE /jobs request.
func (h *JobHandler) CancelAllJobs(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.CancelAll()
	if err != nil {
		h.logger.Error("failed to cancel jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, domain.CancelResponse{Cancelled: n})
}

// ListJobs handles the HTTP GET /jobs request.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.engine.ListJobs()
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

// GetJob handles the HTTP GET /jobs/{jobID} request.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	job, err := h.engine.GetJob(id)
	if err != nil {
		if errors.Is(err, errpkg.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// GetHistory handles the HTTP GET /history request.
func (h *JobHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.history.List())
}

// GetConfig handles the HTTP GET /config request.
func (h *JobHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.ConfigResponse{
		MaxConcurrent:  h.cfg.MaxConcurrent,
		MaxRetries:     h.cfg.MaxRetries,
		JobTimeout:     h.cfg.JobTimeout,
		AllowedDomains: h.cfg.AllowedDomains,
	})
}

// GetArtifact handles the HTTP GET /files/{jobID} request. The artifact
// is deleted from server-side storage once fully delivered, so a second
// retrieval of the same id fails.
func (h *JobHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	rec, err := h.history.Get(id)
	if err != nil || rec.Retrieved {
		writeError(w, http.StatusNotFound, errpkg.ErrArtifactNotFound.Error())
		return
	}

	f, err := h.filer.Open(rec.Filename)
	if err != nil {
		writeError(w, http.StatusNotFound, errpkg.ErrArtifactNotFound.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	// The stored filename may carry a routing subdirectory; the client
	// only gets the base name.
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(rec.Filename)+`"`)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}

	if _, err := io.Copy(w, f); err != nil {
		// Client went away mid-stream; keep the artifact retrievable.
		h.logger.Warn("artifact delivery interrupted", "job_id", id, "error", err)
		return
	}

	if err := h.history.MarkRetrieved(id); err != nil {
		h.logger.Error("failed to mark artifact retrieved", "job_id", id, "error", err)
	}
	if err := h.filer.Remove(rec.Filename); err != nil {
		h.logger.Error("failed to delete delivered artifact", "job_id", id, "error", err)
	}

	h.logger.Info("artifact delivered and deleted", "job_id", id, "filename", rec.Filename)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
