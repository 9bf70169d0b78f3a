package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/index"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/manifest"
	"github.com/amber-sync/amber-sub000/internal/pathvalidator"
	"github.com/amber-sync/amber-sub000/internal/transfer"
)

// snapshotResponse adds a human-readable size alongside the manifest's raw
// byte count, so a GUI doesn't need its own byte-formatting logic.
type snapshotResponse struct {
	manifest.SnapshotEntry
	SizeHuman string `json:"sizeHuman"`
}

// SnapshotHandler serves the snapshot history for a job (from its
// destination manifest) and the indexed directory tree for one snapshot
// (from the catalog).
type SnapshotHandler struct {
	store       *jobstore.Store
	coordinator *coordinator.Coordinator
	validator   *pathvalidator.Validator
	logger      *zap.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(store *jobstore.Store, c *coordinator.Coordinator, validator *pathvalidator.Validator, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{store: store, coordinator: c, validator: validator, logger: logger.Named("snapshot_handler")}
}

// List handles GET /api/v1/jobs/{id}/snapshots. Returns the job's manifest
// snapshot entries, newest first.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return
		}
		h.logger.Error("failed to get job", zap.String("id", id), zap.Error(err))
		ErrInternal(w)
		return
	}

	m, err := manifest.Read(job.DestPath)
	if err != nil {
		h.logger.Error("failed to read manifest", zap.String("dest", job.DestPath), zap.Error(err))
		ErrInternal(w)
		return
	}
	if m == nil {
		Ok(w, []snapshotResponse{})
		return
	}

	entries := make([]snapshotResponse, len(m.Snapshots))
	for i, s := range m.Snapshots {
		entries[len(m.Snapshots)-1-i] = snapshotResponse{
			SnapshotEntry: s,
			SizeHuman:     humanize.Bytes(s.TotalSize),
		}
	}
	Ok(w, entries)
}

// directoryResponse is the payload for GET /jobs/{id}/snapshots/{ts}/tree.
type directoryResponse struct {
	Path  string       `json:"path"`
	Files []index.File `json:"files"`
	Total int64        `json:"total"`
}

// Tree handles GET /api/v1/jobs/{id}/snapshots/{ts}/tree. Lists the
// contents of one directory inside the indexed snapshot, optionally paged
// and scoped to a parent path via the "path" query parameter.
func (h *SnapshotHandler) Tree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ts, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		ErrBadRequest(w, "ts must be a unix millisecond timestamp")
		return
	}

	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return
		}
		h.logger.Error("failed to get job", zap.String("id", id), zap.Error(err))
		ErrInternal(w)
		return
	}

	catalog, err := h.coordinator.StoreFor(job.DestPath)
	if err != nil {
		h.logger.Error("failed to resolve catalog", zap.String("dest", job.DestPath), zap.Error(err))
		ErrInternal(w)
		return
	}

	parentPath := r.URL.Query().Get("path")
	limit, offset := paginationParams(r)

	files, total, err := catalog.DirectoryContentsPage(id, ts, parentPath, limit, offset)
	if err != nil {
		h.logger.Error("failed to list directory contents",
			zap.String("job_id", id), zap.Int64("ts", ts), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, directoryResponse{Path: parentPath, Files: files, Total: total})
}

// Delete handles DELETE /api/v1/jobs/{id}/snapshots/{ts}. Removes the
// catalog entry for one snapshot and its manifest entry; the backup data
// itself is left untouched and must be deleted separately.
func (h *SnapshotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ts, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		ErrBadRequest(w, "ts must be a unix millisecond timestamp")
		return
	}

	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return
		}
		ErrInternal(w)
		return
	}

	catalog, err := h.coordinator.StoreFor(job.DestPath)
	if err != nil {
		ErrInternal(w)
		return
	}

	if err := catalog.DeleteSnapshot(id, ts); err != nil {
		h.logger.Error("failed to delete snapshot", zap.String("job_id", id), zap.Int64("ts", ts), zap.Error(err))
		ErrInternal(w)
		return
	}

	if _, _, err := manifest.RemoveSnapshotAndSave(job.DestPath, strconv.FormatInt(ts, 10)); err != nil {
		h.logger.Error("failed to prune manifest entry", zap.String("job_id", id), zap.Int64("ts", ts), zap.Error(err))
		ErrInternal(w)
		return
	}

	NoContent(w)
}

// restoreRequest is the body accepted by POST
// /api/v1/jobs/{id}/snapshots/{ts}/restore. When Files is empty the whole
// snapshot folder is restored; otherwise only the listed files are.
type restoreRequest struct {
	TargetPath string   `json:"targetPath"`
	Files      []string `json:"files,omitempty"`
	Mirror     bool     `json:"mirror,omitempty"`
}

// Restore handles POST /api/v1/jobs/{id}/snapshots/{ts}/restore.
func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ts, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		ErrBadRequest(w, "ts must be a unix millisecond timestamp")
		return
	}

	var req restoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetPath == "" {
		ErrBadRequest(w, "targetPath is required")
		return
	}

	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return
		}
		ErrInternal(w)
		return
	}

	m, err := manifest.Read(job.DestPath)
	if err != nil {
		h.logger.Error("failed to read manifest", zap.String("dest", job.DestPath), zap.Error(err))
		ErrInternal(w)
		return
	}
	if m == nil {
		ErrNotFound(w, "no manifest recorded for this job")
		return
	}
	entry, ok := m.Snapshot(strconv.FormatInt(ts, 10))
	if !ok {
		ErrNotFound(w, "snapshot not recorded in manifest")
		return
	}

	snapshotPath, err := h.validator.Validate(filepath.Join(job.DestPath, entry.FolderName))
	if err != nil {
		ErrUnprocessable(w, "snapshot path is not inside an allowed root")
		return
	}
	targetPath, err := h.validator.ValidateForCreate(req.TargetPath)
	if err != nil {
		ErrUnprocessable(w, "restore target is not inside an allowed root")
		return
	}

	if len(req.Files) > 0 {
		err = transfer.RestoreFiles(r.Context(), snapshotPath, targetPath, req.Files)
	} else {
		err = transfer.RestoreSnapshot(r.Context(), snapshotPath, targetPath, req.Mirror)
	}
	if err != nil {
		h.logger.Error("restore failed", zap.String("job_id", id), zap.Int64("ts", ts), zap.Error(err))
		WriteError(w, err)
		return
	}

	Ok(w, envelope{"restored": true})
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 200
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
