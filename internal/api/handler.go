// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-sync-engine/internal/database"
	apperrors "github-sync-engine/internal/errors"
	"github-sync-engine/internal/model"
)

// SyncRunner is the manual-sync surface the scheduler provides.
type SyncRunner interface {
	RunPeriodicSync(ctx context.Context) (*model.SyncResult, error)
	SyncRepositoryByID(ctx context.Context, id int64) (*model.RepoSyncResult, error)
	ImportRepositories(ctx context.Context, fullNames []string) (map[string]any, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db      database.Querier
	syncer  SyncRunner
	webhook http.Handler
	logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db database.Querier, syncer SyncRunner, webhook http.Handler, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:      db,
		syncer:  syncer,
		webhook: webhook,
		logger:  logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Method(http.MethodPost, "/webhooks/github", h.webhook)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sync", h.triggerSync)
		r.Post("/repositories/import", h.importRepositories)
		r.Post("/repositories/{id}/sync", h.syncRepository)
		r.Get("/sync-jobs", h.listSyncJobs)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// triggerSync runs a full reconciliation sweep on demand.
// POST /v1/sync
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.RunPeriodicSync(r.Context())
	if err != nil {
		h.logger.Error("Manual sync failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// syncRepository syncs one repository on demand, bypassing the staleness check.
// POST /v1/repositories/{id}/sync
func (h *Handler) syncRepository(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	result, err := h.syncer.SyncRepositoryByID(r.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		if errors.Is(err, apperrors.ErrNoFallbackToken) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("Repository sync failed", "repository_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

type importRequest struct {
	Repositories []string `json:"repositories"`
}

// importRepositories imports a list of "owner/name" repositories using the
// configured fallback token.
// POST /v1/repositories/import
func (h *Handler) importRepositories(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Repositories) == 0 {
		respondWithError(w, http.StatusBadRequest, "'repositories' must be a non-empty list of 'owner/name' strings")
		return
	}

	result, err := h.syncer.ImportRepositories(r.Context(), req.Repositories)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoFallbackToken) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("Manual import failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// listSyncJobs returns audit records, newest first.
// GET /v1/sync-jobs?type=periodic&status=completed&installation_id=1&limit=20&offset=0
func (h *Handler) listSyncJobs(w http.ResponseWriter, r *http.Request) {
	params := database.ListSyncJobsParams{
		JobType: r.URL.Query().Get("type"),
		Status:  r.URL.Query().Get("status"),
		Limit:   20,
	}

	if v := r.URL.Query().Get("installation_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'installation_id' parameter")
			return
		}
		params.InstallationID = &id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 100 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
			return
		}
		params.Limit = int32(limit)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'offset' parameter")
			return
		}
		params.Offset = int32(offset)
	}

	jobs, err := h.db.ListSyncJobs(r.Context(), params)
	if err != nil {
		h.logger.Error("Failed to list sync jobs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	items := make([]syncJobResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toSyncJobResponse(j))
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"sync_jobs": items})
}

// syncJobResponse is the wire form of a ledger record; Details is inlined as
// raw JSON instead of a base64 byte blob.
type syncJobResponse struct {
	ID                    int64           `json:"id"`
	InstallationID        *int64          `json:"installation_id,omitempty"`
	JobType               string          `json:"job_type"`
	Status                string          `json:"status"`
	RepositoriesProcessed int32           `json:"repositories_processed"`
	ErrorsCount           int32           `json:"errors_count"`
	Details               json.RawMessage `json:"details"`
	StartedAt             time.Time       `json:"started_at"`
	CompletedAt           time.Time       `json:"completed_at"`
}

func toSyncJobResponse(j database.SyncJob) syncJobResponse {
	details := json.RawMessage(j.Details)
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return syncJobResponse{
		ID:                    j.ID,
		InstallationID:        j.InstallationID,
		JobType:               j.JobType,
		Status:                j.Status,
		RepositoriesProcessed: j.RepositoriesProcessed,
		ErrorsCount:           j.ErrorsCount,
		Details:               details,
		StartedAt:             j.StartedAt,
		CompletedAt:           j.CompletedAt,
	}
}

// respondWithJSON writes a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError writes a JSON error response.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
