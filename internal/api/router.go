package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/coordinator"
	"github.com/amber-sync/amber-sub000/internal/jobstore"
	"github.com/amber-sync/amber-sub000/internal/metrics"
	"github.com/amber-sync/amber-sub000/internal/pathvalidator"
	"github.com/amber-sync/amber-sub000/internal/progress"
	"github.com/amber-sync/amber-sub000/internal/snapshot"
)

// RouterConfig holds all dependencies needed to build the HTTP router. It is
// populated in cmd/amberd after every component is initialized and passed to
// NewRouter as a single struct to keep the constructor signature manageable
// as the number of dependencies grows.
type RouterConfig struct {
	Jobs        *jobstore.Store
	Runner      *snapshot.Runner
	Coordinator *coordinator.Coordinator
	Validator   *pathvalidator.Validator
	Hub         *progress.Hub
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	MachineID   string
	MachineName string
}

// NewRouter builds and returns the fully configured Chi router. Every
// resource route and the /ws websocket stream are registered under
// /api/v1; /healthz and /metrics sit at the root since they are
// operational rather than resource endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	// --- Initialize handlers ---
	jobHandler := NewJobHandler(cfg.Jobs, cfg.Runner, cfg.Coordinator, cfg.Hub, cfg.Metrics, cfg.MachineID, cfg.MachineName, cfg.Logger)
	snapshotHandler := NewSnapshotHandler(cfg.Jobs, cfg.Coordinator, cfg.Validator, cfg.Logger)
	searchHandler := NewSearchHandler(cfg.Jobs, cfg.Coordinator, cfg.Logger)
	volumeHandler := NewVolumeHandler()
	wsHandler := NewWSHandler(cfg.Hub, cfg.Logger)

	r.Get("/healthz", healthz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Handler().ServeHTTP)
	}
	r.Get("/api/v1/ws", wsHandler.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.List)
			r.Post("/", jobHandler.Create)
			r.Get("/{id}", jobHandler.GetByID)
			r.Delete("/{id}", jobHandler.Delete)
			r.Post("/{id}/run", jobHandler.Run)
			r.Post("/{id}/kill", jobHandler.Kill)
			r.Get("/{id}/snapshots", snapshotHandler.List)
			r.Get("/{id}/snapshots/{ts}/tree", snapshotHandler.Tree)
			r.Delete("/{id}/snapshots/{ts}", snapshotHandler.Delete)
			r.Post("/{id}/snapshots/{ts}/restore", snapshotHandler.Restore)
		})

		r.Get("/search", searchHandler.Search)
		r.Get("/volumes", volumeHandler.List)
	})

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	Ok(w, envelope{"status": "ok"})
}
