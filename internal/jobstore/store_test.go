package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/transfer"
)

func sqlNullTimeNow() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &Job{
		Name:        "Photos",
		SourcePath:  "/Users/me/Photos",
		DestPath:    "/Volumes/Backup/photos",
		Mode:        "time_machine",
		RsyncConfig: JSONColumn[transfer.RsyncConfig]{Value: transfer.RsyncConfig{Archive: true}},
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected Create to assign an ID")
	}

	got, err := s.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Photos" || !got.RsyncConfig.Value.Archive {
		t.Fatalf("GetByID returned unexpected job: %+v", got)
	}

	got.Name = "Photos Renamed"
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, err := s.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if reloaded.Name != "Photos Renamed" {
		t.Fatalf("Name = %q, want Photos Renamed", reloaded.Name)
	}

	if err := s.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete: err = %v, want ErrNotFound", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetByID(context.Background(), "no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreate_RejectsNestedDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Job{Name: "A", SourcePath: "/src/a", DestPath: "/Volumes/Backup/a"}
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	nested := &Job{Name: "B", SourcePath: "/src/b", DestPath: "/Volumes/Backup/a/nested"}
	if err := s.Create(ctx, nested); !errors.Is(err, ErrDestinationConflict) {
		t.Fatalf("Create nested: err = %v, want ErrDestinationConflict", err)
	}

	ancestor := &Job{Name: "C", SourcePath: "/src/c", DestPath: "/Volumes/Backup"}
	if err := s.Create(ctx, ancestor); !errors.Is(err, ErrDestinationConflict) {
		t.Fatalf("Create ancestor: err = %v, want ErrDestinationConflict", err)
	}
}

func TestList_OrdersByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	names := []string{"One", "Two", "Three"}
	for i, name := range names {
		job := &Job{Name: name, SourcePath: "/src", DestPath: "/dest-" + name, Mode: "mirror"}
		if err := s.Create(ctx, job); err != nil {
			t.Fatalf("Create job %d: %v", i, err)
		}
	}

	jobs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != len(names) {
		t.Fatalf("List returned %d jobs, want %d", len(jobs), len(names))
	}
	for i, name := range names {
		if jobs[i].Name != name {
			t.Fatalf("List()[%d].Name = %q, want %q", i, jobs[i].Name, name)
		}
	}
}

func TestUpdateRunResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &Job{Name: "Docs", SourcePath: "/src", DestPath: "/dest"}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateRunResult(ctx, job.ID, "completed", sqlNullTimeNow()); err != nil {
		t.Fatalf("UpdateRunResult: %v", err)
	}

	got, err := s.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastStatus != "completed" || got.LastRunAt == nil {
		t.Fatalf("unexpected job after UpdateRunResult: %+v", got)
	}
}
