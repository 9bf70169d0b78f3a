package manifest

import (
	"testing"
)

func TestNew_StartsEmpty(t *testing.T) {
	m := New("job-123", "Documents", "/Users/me/Documents", "MacBook-abc123", "")
	if m.SchemaVersion != Version {
		t.Fatalf("SchemaVersion = %d, want %d", m.SchemaVersion, Version)
	}
	if m.JobID != "job-123" {
		t.Fatalf("JobID = %q, want job-123", m.JobID)
	}
	if len(m.Snapshots) != 0 {
		t.Fatal("expected no snapshots on a fresh manifest")
	}
}

func TestAddSnapshot_UpdatesCounts(t *testing.T) {
	m := New("job-123", "Documents", "/Users/me/Documents", "MacBook-abc123", "")
	dur := uint64(5000)
	entry := NewSnapshotEntry("2024-01-01-120000", 1000, 1024*1024*100, StatusComplete, &dur)
	m.AddSnapshot(entry)

	if len(m.Snapshots) != 1 {
		t.Fatalf("len(Snapshots) = %d, want 1", len(m.Snapshots))
	}
	if m.TotalFileCount() != 1000 {
		t.Fatalf("TotalFileCount = %d, want 1000", m.TotalFileCount())
	}
}

func TestLatestSnapshot_PicksGreatestTimestamp(t *testing.T) {
	m := New("job-123", "Documents", "/Users/me/Documents", "MacBook-abc123", "")

	older := SnapshotEntry{
		ID: "1704067200000", Timestamp: 1704067200000,
		FolderName: "2024-01-01-120000", FileCount: 100, TotalSize: 1024,
		Status: StatusComplete,
	}
	newer := SnapshotEntry{
		ID: "1704153600000", Timestamp: 1704153600000,
		FolderName: "2024-01-02-120000", FileCount: 150, TotalSize: 2048,
		Status: StatusComplete,
	}
	m.AddSnapshot(older)
	m.AddSnapshot(newer)

	latest, ok := m.LatestSnapshot()
	if !ok {
		t.Fatal("expected a latest snapshot")
	}
	if latest.FolderName != "2024-01-02-120000" {
		t.Fatalf("LatestSnapshot = %q, want 2024-01-02-120000", latest.FolderName)
	}
}

func TestWriteAndRead_RoundTrips(t *testing.T) {
	dest := t.TempDir()
	m := New("job-123", "Test Job", "/source/path", "test-machine", "")

	if err := Write(dest, m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !Exists(dest) {
		t.Fatal("expected manifest file to exist after Write")
	}

	read, err := Read(dest)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read == nil {
		t.Fatal("expected a manifest, got nil")
	}
	if read.JobID != "job-123" || read.JobName != "Test Job" {
		t.Fatalf("unexpected manifest: %+v", read)
	}
}

func TestRead_MissingManifestReturnsNil(t *testing.T) {
	dest := t.TempDir()
	m, err := Read(dest)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil manifest when none exists")
	}
}

func TestAddSnapshotAndSave_PersistsEntry(t *testing.T) {
	dest := t.TempDir()
	m := New("job-123", "Test Job", "/source/path", "test-machine", "")
	if err := Write(dest, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entry := NewSnapshotEntry("2024-01-01-120000", 500, 1024*1024, StatusComplete, nil)
	updated, err := AddSnapshotAndSave(dest, entry)
	if err != nil {
		t.Fatalf("AddSnapshotAndSave: %v", err)
	}
	if len(updated.Snapshots) != 1 {
		t.Fatalf("len(Snapshots) = %d, want 1", len(updated.Snapshots))
	}

	reread, err := Read(dest)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(reread.Snapshots) != 1 || reread.Snapshots[0].FileCount != 500 {
		t.Fatalf("unexpected reread: %+v", reread)
	}
}

func TestGetOrCreate_RejectsJobMismatch(t *testing.T) {
	dest := t.TempDir()
	if _, err := GetOrCreate(dest, "job-456", "My Backup", "/Users/me/docs", "machine-1", ""); err != nil {
		t.Fatalf("GetOrCreate (create): %v", err)
	}

	if _, err := GetOrCreate(dest, "job-999", "Other", "/other", "machine-1", ""); err == nil {
		t.Fatal("expected job mismatch error, got nil")
	}
}

func TestGetOrCreate_ReturnsExistingOnSecondCall(t *testing.T) {
	dest := t.TempDir()
	first, err := GetOrCreate(dest, "job-456", "My Backup", "/Users/me/docs", "machine-1", "")
	if err != nil {
		t.Fatalf("GetOrCreate (first): %v", err)
	}

	second, err := GetOrCreate(dest, "job-456", "My Backup", "/Users/me/docs", "machine-1", "")
	if err != nil {
		t.Fatalf("GetOrCreate (second): %v", err)
	}
	if first.CreatedAt != second.CreatedAt {
		t.Fatal("expected CreatedAt to be stable across GetOrCreate calls")
	}
}

func TestRead_RejectsNewerVersion(t *testing.T) {
	dest := t.TempDir()
	m := New("job-123", "Test Job", "/source/path", "test-machine", "")
	m.SchemaVersion = Version + 1
	if err := Write(dest, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := Read(dest); err == nil {
		t.Fatal("expected version mismatch error, got nil")
	}
}
