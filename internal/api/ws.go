package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/progress"
)

// WSHandler handles the websocket upgrade endpoint GET /api/v1/ws.
//
// Topic subscription is declared at connection time via the "jobId" query
// parameter — one connection watches one job's progress. There is no
// authentication: the server only ever binds to loopback.
//
// Example connection URL:
//
//	ws://127.0.0.1:8787/api/v1/ws?jobId=<id>
type WSHandler struct {
	hub    *progress.Hub
	logger *zap.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *progress.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger.Named("ws_handler")}
}

// ServeWS handles GET /api/v1/ws. It upgrades the connection and blocks
// until the client disconnects — this is expected for websocket handlers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		ErrBadRequest(w, "jobId query parameter is required")
		return
	}

	client, err := progress.NewClient(h.hub, w, r, []string{progress.JobTopic(jobID)}, h.logger)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	h.logger.Info("ws: client connected", zap.String("job_id", jobID), zap.String("remote_addr", r.RemoteAddr))
	client.Run()
	h.logger.Info("ws: client disconnected", zap.String("job_id", jobID), zap.String("remote_addr", r.RemoteAddr))
}
