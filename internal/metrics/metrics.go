// Package metrics exposes Prometheus metrics for snapshot runs and the
// progress hub, served at GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is a dedicated registry rather than the global default, so tests
// can construct an isolated Metrics instance without colliding on
// already-registered collector names.
type Metrics struct {
	registry *prometheus.Registry

	SnapshotsTotal           *prometheus.CounterVec
	SnapshotDuration         prometheus.Histogram
	SnapshotFilesIndexed     prometheus.Counter
	SnapshotBytesTransferred prometheus.Counter
	ConnectedClients         prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SnapshotsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "amber_snapshots_total",
			Help: "Total number of completed snapshot runs, by terminal status.",
		}, []string{"status"}),
		SnapshotDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "amber_snapshot_duration_seconds",
			Help:    "Duration of snapshot runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SnapshotFilesIndexed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "amber_snapshot_files_indexed_total",
			Help: "Total number of files indexed across all completed snapshots.",
		}),
		SnapshotBytesTransferred: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "amber_snapshot_bytes_transferred_total",
			Help: "Total logical bytes recorded across all completed snapshots.",
		}),
		ConnectedClients: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "amber_progress_connected_clients",
			Help: "Number of websocket clients currently connected to the progress hub.",
		}),
	}
	return m
}

// Handler returns the HTTP handler to mount at GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot records the outcome of one completed snapshot run.
func (m *Metrics) ObserveSnapshot(status string, durationSeconds float64, fileCount, totalBytes int64) {
	m.SnapshotsTotal.WithLabelValues(status).Inc()
	m.SnapshotDuration.Observe(durationSeconds)
	if fileCount > 0 {
		m.SnapshotFilesIndexed.Add(float64(fileCount))
	}
	if totalBytes > 0 {
		m.SnapshotBytesTransferred.Add(float64(totalBytes))
	}
}
