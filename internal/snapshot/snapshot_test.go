package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/index"
	"github.com/amber-sync/amber-sub000/internal/pathvalidator"
	"github.com/amber-sync/amber-sub000/internal/transfer"
)

type recordingReporter struct {
	statuses []Status
	lines    []string
}

func (r *recordingReporter) ReportStatus(jobID string, status Status, message string) {
	r.statuses = append(r.statuses, status)
}

func (r *recordingReporter) SendLog(jobID, level, line string) {
	r.lines = append(r.lines, line)
}

func newTestRunner(t *testing.T, sourceDir, destDir string) *Runner {
	t.Helper()
	v := pathvalidator.New()
	if err := v.AddRoot(sourceDir); err != nil {
		t.Fatalf("AddRoot(source): %v", err)
	}
	if err := v.AddRoot(destDir); err != nil {
		t.Fatalf("AddRoot(dest): %v", err)
	}

	store, err := index.Open(filepath.Join(t.TempDir(), "index.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(v, store, zap.NewNop())
}

func TestRun_CompletesAndRecordsManifestEntry(t *testing.T) {
	sourceDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("A"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(t, sourceDir, destDir)
	job := Job{
		ID:         "job-1",
		Name:       "Test Job",
		SourcePath: sourceDir,
		DestPath:   destDir,
		Mode:       transfer.ModeMirror,
		Rsync:      transfer.RsyncConfig{CustomCommand: "true"},
	}

	reporter := &recordingReporter{}
	result, err := r.Run(context.Background(), job, reporter)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Entry.Status != "Complete" {
		t.Fatalf("Entry.Status = %q, want Complete", result.Entry.Status)
	}
	if reporter.statuses[0] != StatusRunning || reporter.statuses[len(reporter.statuses)-1] != StatusCompleted {
		t.Fatalf("unexpected status sequence: %v", reporter.statuses)
	}
	if r.IsRunning(job.ID) {
		t.Fatal("expected job to be unregistered after completion")
	}
}

func TestRun_RejectsPathOutsideAllowedRoots(t *testing.T) {
	destDir := t.TempDir()
	r := newTestRunner(t, t.TempDir(), destDir)

	job := Job{
		ID:         "job-2",
		SourcePath: "/etc",
		DestPath:   destDir,
		Mode:       transfer.ModeMirror,
		Rsync:      transfer.RsyncConfig{CustomCommand: "true"},
	}

	reporter := &recordingReporter{}
	if _, err := r.Run(context.Background(), job, reporter); err == nil {
		t.Fatal("expected rejection of out-of-root source path")
	}
}

func TestRegisterUnregister_RejectsConcurrentSameJob(t *testing.T) {
	r := newTestRunner(t, t.TempDir(), t.TempDir())
	if err := r.register("job-x"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.register("job-x"); err == nil {
		t.Fatal("expected rejection of a second concurrent run for the same job")
	}
	r.unregister("job-x")
	if err := r.register("job-x"); err != nil {
		t.Fatalf("register after unregister: %v", err)
	}
}

func TestKill_ReturnsNotFoundWhenNotRunning(t *testing.T) {
	r := newTestRunner(t, t.TempDir(), t.TempDir())
	if err := r.Kill("no-such-job"); err == nil {
		t.Fatal("expected not-found error killing an unregistered job")
	}
}

func TestSourceBasename(t *testing.T) {
	cases := map[string]string{
		"/Users/me/Documents":      "Documents",
		"/Users/me/Documents/":     "Documents",
		"user@host:/remote/photos": "photos",
		"/":                        "backup",
	}
	for in, want := range cases {
		if got := sourceBasename(in); got != want {
			t.Errorf("sourceBasename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLatestBackupDir_FallsBackToLexicographicGreatest(t *testing.T) {
	baseDir := t.TempDir()
	for _, name := range []string{"2024-01-01-120000", "2024-02-01-120000", "2023-12-01-120000"} {
		if err := os.Mkdir(filepath.Join(baseDir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	got, ok := latestBackupDir(baseDir)
	if !ok {
		t.Fatal("expected a latest backup dir")
	}
	if filepath.Base(got) != "2024-02-01-120000" {
		t.Fatalf("latestBackupDir = %q, want 2024-02-01-120000", got)
	}
}

func TestUpdateLatestSymlink(t *testing.T) {
	baseDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(baseDir, "2024-01-01-120000"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := updateLatestSymlink(baseDir, "2024-01-01-120000"); err != nil {
		t.Fatalf("updateLatestSymlink: %v", err)
	}

	got, found := latestBackupDir(baseDir)
	if !found || filepath.Base(got) != "2024-01-01-120000" {
		t.Fatalf("latestBackupDir after update = (%q, %v)", got, found)
	}
}
