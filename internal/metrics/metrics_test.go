package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserveSnapshot_AppearsInHandlerOutput(t *testing.T) {
	m := New()
	m.ObserveSnapshot("complete", 12.5, 42, 1024)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`amber_snapshots_total{status="complete"} 1`,
		"amber_snapshot_files_indexed_total 42",
		"amber_snapshot_bytes_transferred_total 1024",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q\n---\n%s", want, body)
		}
	}
}

func TestConnectedClients_Gauge(t *testing.T) {
	m := New()
	m.ConnectedClients.Set(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "amber_progress_connected_clients 3") {
		t.Errorf("expected connected clients gauge in output:\n%s", rec.Body.String())
	}
}
