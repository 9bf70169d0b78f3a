// Package manifest implements the per-destination backup manifest: a JSON
// document listing every snapshot taken into a given destination, written
// atomically so a crash mid-write never corrupts the prior contents.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// Version is the current manifest schema version. A manifest read from disk
// with a greater version is rejected as a version mismatch.
const Version = 1

const (
	metaDirName  = ".amber-meta"
	manifestFile = "manifest.json"
)

// Status classifies a snapshot entry's outcome.
type Status string

const (
	StatusComplete Status = "Complete"
	StatusPartial  Status = "Partial"
	StatusFailed   Status = "Failed"
)

// SnapshotEntry is one immutable-after-write record of a completed (or
// failed) backup run.
type SnapshotEntry struct {
	ID          string  `json:"id"`
	Timestamp   int64   `json:"timestamp"`
	FolderName  string  `json:"folderName"`
	FileCount   uint64  `json:"fileCount"`
	TotalSize   uint64  `json:"totalSize"`
	Status      Status  `json:"status"`
	DurationMS  *uint64 `json:"durationMs,omitempty"`
	ChangeCount *uint64 `json:"changesCount,omitempty"`
}

// NewSnapshotEntry builds a SnapshotEntry stamped with the current time as
// both its id and timestamp.
func NewSnapshotEntry(folderName string, fileCount, totalSize uint64, status Status, durationMS *uint64) SnapshotEntry {
	ts := time.Now().UTC().UnixMilli()
	return SnapshotEntry{
		ID:         fmt.Sprintf("%d", ts),
		Timestamp:  ts,
		FolderName: folderName,
		FileCount:  fileCount,
		TotalSize:  totalSize,
		Status:     status,
		DurationMS: durationMS,
	}
}

// Manifest is the document stored at <dest>/.amber-meta/manifest.json.
type Manifest struct {
	SchemaVersion int             `json:"version"`
	MachineID     string          `json:"machineId"`
	MachineName   string          `json:"machineName,omitempty"`
	JobID         string          `json:"jobId"`
	JobName       string          `json:"jobName"`
	SourcePath    string          `json:"sourcePath"`
	CreatedAt     int64           `json:"createdAt"`
	UpdatedAt     int64           `json:"updatedAt"`
	Snapshots     []SnapshotEntry `json:"snapshots"`
}

// New builds a fresh, empty manifest for jobID stamped with the current
// time as both created/updated.
func New(jobID, jobName, sourcePath, machineID, machineName string) *Manifest {
	now := time.Now().UTC().UnixMilli()
	return &Manifest{
		SchemaVersion: Version,
		MachineID:     machineID,
		MachineName:   machineName,
		JobID:         jobID,
		JobName:       jobName,
		SourcePath:    sourcePath,
		CreatedAt:     now,
		UpdatedAt:     now,
		Snapshots:     []SnapshotEntry{},
	}
}

// AddSnapshot appends entry and refreshes UpdatedAt.
func (m *Manifest) AddSnapshot(entry SnapshotEntry) {
	m.Snapshots = append(m.Snapshots, entry)
	m.UpdatedAt = time.Now().UTC().UnixMilli()
}

// RemoveSnapshot removes the entry with the given id, if present, and
// refreshes UpdatedAt when it does. Reports whether anything was removed.
func (m *Manifest) RemoveSnapshot(id string) (SnapshotEntry, bool) {
	for i, s := range m.Snapshots {
		if s.ID == id {
			removed := s
			m.Snapshots = append(m.Snapshots[:i], m.Snapshots[i+1:]...)
			m.UpdatedAt = time.Now().UTC().UnixMilli()
			return removed, true
		}
	}
	return SnapshotEntry{}, false
}

// Snapshot looks up an entry by id.
func (m *Manifest) Snapshot(id string) (SnapshotEntry, bool) {
	for _, s := range m.Snapshots {
		if s.ID == id {
			return s, true
		}
	}
	return SnapshotEntry{}, false
}

// LatestSnapshot returns the entry with the greatest timestamp, if any.
func (m *Manifest) LatestSnapshot() (SnapshotEntry, bool) {
	if len(m.Snapshots) == 0 {
		return SnapshotEntry{}, false
	}
	latest := m.Snapshots[0]
	for _, s := range m.Snapshots[1:] {
		if s.Timestamp > latest.Timestamp {
			latest = s
		}
	}
	return latest, true
}

// TotalLogicalSize sums total_size across every snapshot. This overcounts
// due to hard links between snapshots (TimeMachine mode); actual disk usage
// on the destination is smaller.
func (m *Manifest) TotalLogicalSize() uint64 {
	var total uint64
	for _, s := range m.Snapshots {
		total += s.TotalSize
	}
	return total
}

// TotalFileCount sums file_count across every snapshot.
func (m *Manifest) TotalFileCount() uint64 {
	var total uint64
	for _, s := range m.Snapshots {
		total += s.FileCount
	}
	return total
}

// MetaDir returns the .amber-meta directory path for a destination.
func MetaDir(destPath string) string {
	return filepath.Join(destPath, metaDirName)
}

// Path returns the manifest.json path for a destination.
func Path(destPath string) string {
	return filepath.Join(MetaDir(destPath), manifestFile)
}

// Exists reports whether a manifest file is present at destPath.
func Exists(destPath string) bool {
	_, err := os.Stat(Path(destPath))
	return err == nil
}

// Read loads the manifest at destPath. Returns (nil, nil) if no manifest
// exists there yet. Returns a Migration-kind error if the stored version
// is newer than this binary's Version.
func Read(destPath string) (*Manifest, error) {
	data, err := os.ReadFile(Path(destPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIO, "failed to read manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, amberr.Wrap(amberr.KindSerialization, "failed to parse manifest", err)
	}

	if m.SchemaVersion > Version {
		return nil, amberr.New(amberr.KindMigration, fmt.Sprintf(
			"manifest version mismatch: found v%d, expected v%d", m.SchemaVersion, Version))
	}
	return &m, nil
}

// Write atomically persists m to destPath: data is written to a temp file
// named after the manifest with a pid+nanosecond suffix, fsynced, then
// renamed over the final path. The suffix keeps concurrent writers (which
// should not happen under normal operation, but a killed-and-relaunched
// process can race its predecessor's in-flight write) from colliding on
// the same temp name.
func Write(destPath string, m *Manifest) error {
	info, err := os.Stat(destPath)
	if err != nil || !info.IsDir() {
		return amberr.New(amberr.KindFilesystem, fmt.Sprintf("destination is not accessible: %s", destPath))
	}

	metaDir := MetaDir(destPath)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return amberr.Wrap(amberr.KindIO, "failed to create meta directory", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return amberr.Wrap(amberr.KindSerialization, "failed to serialize manifest", err)
	}

	finalPath := Path(destPath)
	tempPath := fmt.Sprintf("%s.%d.%d.tmp", finalPath, os.Getpid(), time.Now().UnixNano())

	f, err := os.Create(tempPath)
	if err != nil {
		return amberr.Wrap(amberr.KindIO, "failed to create temp manifest file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return amberr.Wrap(amberr.KindIO, "failed to write manifest", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return amberr.Wrap(amberr.KindIO, "failed to sync manifest", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return amberr.Wrap(amberr.KindIO, "failed to close manifest temp file", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return amberr.Wrap(amberr.KindIO, "failed to rename manifest into place", err)
	}
	return nil
}

// GetOrCreate returns the manifest at destPath, creating and persisting a
// fresh one if none exists. Returns a validation error if an existing
// manifest belongs to a different job.
func GetOrCreate(destPath, jobID, jobName, sourcePath, machineID, machineName string) (*Manifest, error) {
	existing, err := Read(destPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.JobID != jobID {
			return nil, amberr.New(amberr.KindValidationError, fmt.Sprintf(
				"manifest at destination belongs to job %q, not %q", existing.JobID, jobID))
		}
		return existing, nil
	}

	m := New(jobID, jobName, sourcePath, machineID, machineName)
	if err := Write(destPath, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddSnapshotAndSave reads the manifest at destPath, appends entry, and
// persists the result.
func AddSnapshotAndSave(destPath string, entry SnapshotEntry) (*Manifest, error) {
	m, err := Read(destPath)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, amberr.New(amberr.KindNotFound, fmt.Sprintf("no manifest at %s", destPath))
	}
	m.AddSnapshot(entry)
	if err := Write(destPath, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveSnapshotAndSave reads the manifest at destPath, removes the entry
// with the given id if present, and persists the result. Reports whether
// anything was removed.
func RemoveSnapshotAndSave(destPath, id string) (SnapshotEntry, bool, error) {
	m, err := Read(destPath)
	if err != nil {
		return SnapshotEntry{}, false, err
	}
	if m == nil {
		return SnapshotEntry{}, false, amberr.New(amberr.KindNotFound, fmt.Sprintf("no manifest at %s", destPath))
	}
	removed, ok := m.RemoveSnapshot(id)
	if !ok {
		return SnapshotEntry{}, false, nil
	}
	if err := Write(destPath, m); err != nil {
		return SnapshotEntry{}, false, err
	}
	return removed, true, nil
}
