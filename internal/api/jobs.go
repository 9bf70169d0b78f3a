package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/metrics"
	"github.com/amber-sync/amber-sub000/internal/progress"
	"github.com/amber-sync/amber-sub000/internal/snapshot"
	"github.com/amber-sync/amber-sub000/internal/transfer"
)

// JobHandler groups all job-related HTTP handlers: CRUD over the Job Store
// plus run/kill control against the live SnapshotRunner.
type JobHandler struct {
	store       *jobstore.Store
	runner      *snapshot.Runner
	coordinator *coordinator.Coordinator
	hub         *progress.Hub
	metrics     *metrics.Metrics

	machineID   string
	machineName string

	logger *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(store *jobstore.Store, runner *snapshot.Runner, c *coordinator.Coordinator, hub *progress.Hub, m *metrics.Metrics, machineID, machineName string, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		store:       store,
		runner:      runner,
		coordinator: c,
		hub:         hub,
		metrics:     m,
		machineID:   machineID,
		machineName: machineName,
		logger:      logger.Named("job_handler"),
	}
}

// jobRequest is the body accepted by POST /jobs.
type jobRequest struct {
	Name        string                `json:"name"`
	SourcePath  string                `json:"sourcePath"`
	DestPath    string                `json:"destPath"`
	Mode        string                `json:"mode"`
	RsyncConfig transfer.RsyncConfig  `json:"rsyncConfig"`
	SSHConfig   *transfer.SSHConfig   `json:"sshConfig,omitempty"`
	CloudConfig *transfer.CloudConfig `json:"cloudConfig,omitempty"`
	Schedule    jobstore.JobSchedule  `json:"schedule"`
}

// jobResponse is the JSON representation of a configured job.
type jobResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	SourcePath  string                `json:"sourcePath"`
	DestPath    string                `json:"destPath"`
	Mode        string                `json:"mode"`
	RsyncConfig transfer.RsyncConfig  `json:"rsyncConfig"`
	SSHConfig   *transfer.SSHConfig   `json:"sshConfig,omitempty"`
	CloudConfig *transfer.CloudConfig `json:"cloudConfig,omitempty"`
	Schedule    jobstore.JobSchedule  `json:"schedule"`
	MachineID   string                `json:"machineId"`
	MachineName string                `json:"machineName"`
	LastRunAt   *time.Time            `json:"lastRunAt,omitempty"`
	LastStatus  string                `json:"lastStatus"`
	Running     bool                  `json:"running"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

func (h *JobHandler) toResponse(j *jobstore.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		Name:        j.Name,
		SourcePath:  j.SourcePath,
		DestPath:    j.DestPath,
		Mode:        j.Mode,
		RsyncConfig: j.RsyncConfig.Value,
		SSHConfig:   j.SSHConfig.Value,
		CloudConfig: j.CloudConfig.Value,
		Schedule:    j.Schedule.Value,
		MachineID:   j.MachineID,
		MachineName: j.MachineName,
		LastRunAt:   j.LastRunAt,
		LastStatus:  j.LastStatus,
		Running:     h.runner.IsRunning(j.ID),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		ErrInternal(w)
		return
	}
	items := make([]jobResponse, len(jobs))
	for i := range jobs {
		items[i] = h.toResponse(&jobs[i])
	}
	Ok(w, items)
}

// Create handles POST /api/v1/jobs.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.SourcePath == "" || req.DestPath == "" {
		ErrBadRequest(w, "name, sourcePath and destPath are required")
		return
	}
	if req.Mode == "" {
		req.Mode = string(transfer.ModeTimeMachine)
	}

	job := &jobstore.Job{
		Name:        req.Name,
		SourcePath:  req.SourcePath,
		DestPath:    req.DestPath,
		Mode:        req.Mode,
		RsyncConfig: jobstore.JSONColumn[transfer.RsyncConfig]{Value: req.RsyncConfig},
		SSHConfig:   jobstore.JSONColumn[*transfer.SSHConfig]{Value: req.SSHConfig},
		CloudConfig: jobstore.JSONColumn[*transfer.CloudConfig]{Value: req.CloudConfig},
		Schedule:    jobstore.JSONColumn[jobstore.JobSchedule]{Value: req.Schedule},
		MachineID:   h.machineID,
		MachineName: h.machineName,
	}

	if err := h.store.Create(r.Context(), job); err != nil {
		if errors.Is(err, jobstore.ErrDestinationConflict) {
			ErrConflict(w, err.Error())
			return
		}
		h.logger.Error("failed to create job", zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, h.toResponse(job))
}

// GetByID handles GET /api/v1/jobs/{id}.
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	Ok(w, h.toResponse(job))
}

// Delete handles DELETE /api/v1/jobs/{id}. Destroying a job also cascades
// deletion of its indexed snapshot catalog entries; the backup data itself
// is left on disk for the user to remove separately.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return
		}
		h.logger.Error("failed to delete job", zap.String("id", id), zap.Error(err))
		ErrInternal(w)
		return
	}

	catalog, err := h.coordinator.StoreFor(job.DestPath)
	if err != nil {
		h.logger.Warn("failed to resolve catalog for snapshot-index cascade", zap.String("id", id), zap.Error(err))
	} else if err := catalog.DeleteJobSnapshots(id); err != nil {
		h.logger.Warn("failed to cascade snapshot-index deletion", zap.String("id", id), zap.Error(err))
	}

	NoContent(w)
}

// Run handles POST /api/v1/jobs/{id}/run. It starts the backup in the
// background and returns immediately; progress is delivered over the
// job's websocket topic.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if h.runner.IsRunning(job.ID) {
		ErrConflict(w, "job is already running")
		return
	}

	runJob := snapshot.Job{
		ID:          job.ID,
		Name:        job.Name,
		SourcePath:  job.SourcePath,
		DestPath:    job.DestPath,
		Mode:        transfer.Mode(job.Mode),
		Rsync:       job.RsyncConfig.Value,
		SSH:         job.SSHConfig.Value,
		MachineID:   job.MachineID,
		MachineName: job.MachineName,
	}

	go h.runInBackground(runJob)

	Ok(w, envelope{"started": true})
}

// runInBackground executes one run to completion, detached from the
// triggering request's context, and records the outcome back into the
// Job Store and metrics once it finishes.
func (h *JobHandler) runInBackground(job snapshot.Job) {
	start := time.Now()
	result, err := h.runner.Run(context.Background(), job, h.hub)

	status := string(snapshot.StatusCompleted)
	if err != nil {
		status = string(snapshot.StatusFailed)
		h.logger.Warn("job run failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	if updateErr := h.store.UpdateRunResult(context.Background(), job.ID, status, sql.NullTime{Time: start, Valid: true}); updateErr != nil {
		h.logger.Error("failed to record run result", zap.String("job_id", job.ID), zap.Error(updateErr))
	}

	if h.metrics != nil {
		h.metrics.ObserveSnapshot(status, time.Since(start).Seconds(), int64(result.Entry.FileCount), int64(result.Entry.TotalSize))
	}
}

// Kill handles POST /api/v1/jobs/{id}/kill.
func (h *JobHandler) Kill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.runner.Kill(id); err != nil {
		WriteError(w, err)
		return
	}
	Ok(w, envelope{"killed": true})
}

func (h *JobHandler) lookup(w http.ResponseWriter, r *http.Request) (*jobstore.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			ErrNotFound(w, "job not found")
			return nil, false
		}
		h.logger.Error("failed to get job", zap.String("id", id), zap.Error(err))
		ErrInternal(w)
		return nil, false
	}
	return job, true
}
