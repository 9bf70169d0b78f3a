package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/index"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
)

// SearchHandler serves full-text file search across indexed snapshots.
type SearchHandler struct {
	store       *jobstore.Store
	coordinator *coordinator.Coordinator
	logger      *zap.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(store *jobstore.Store, c *coordinator.Coordinator, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{store: store, coordinator: c, logger: logger.Named("search_handler")}
}

// Search handles GET /api/v1/search?q=...&jobId=...&limit=...
//
// When jobId is given, the search is scoped to that job's own catalog
// (destination-resident if one exists there, otherwise the app-local
// catalog) and restricted to that job's snapshots. When jobId is omitted,
// the search runs against the app-local catalog only — destination-resident
// catalogs for other jobs are not consulted, since each lives on storage
// that may not currently be mounted.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		ErrBadRequest(w, "q is required")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	jobID := r.URL.Query().Get("jobId")

	store, err := h.storeFor(r, jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return
		}
		h.logger.Error("failed to resolve search catalog", zap.String("job_id", jobID), zap.Error(err))
		ErrInternal(w)
		return
	}

	results, err := store.SearchFilesGlobal(q, jobID, limit)
	if err != nil {
		h.logger.Error("search failed", zap.String("q", q), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, results)
}

func (h *SearchHandler) storeFor(r *http.Request, jobID string) (*index.Store, error) {
	if jobID == "" {
		return h.coordinator.Local(), nil
	}
	job, err := h.store.GetByID(r.Context(), jobID)
	if err != nil {
		return nil, err
	}
	return h.coordinator.StoreFor(job.DestPath)
}
