// Package index implements the catalog of indexed snapshots: a single
// embedded SQLite database with a full-text search virtual table kept in
// sync by triggers. It is deliberately not built on GORM — the FTS5 virtual
// table, its triggers, and the BM25 ranking query do not map onto GORM's
// model layer — so it talks to modernc.org/sqlite directly through
// database/sql, the same pure-Go driver the Job Store registers under the
// "sqlite" name.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/amber-sync/amber-sub000/internal/amberr"
	"github.com/amber-sync/amber-sub000/internal/walker"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// schemaVersion is the current PRAGMA user_version this package expects.
const schemaVersion = 2

// batchSize bounds how many file rows are inserted per prepared-statement
// batch during indexing.
const batchSize = 1000

// FileType mirrors walker.EntryType at the storage layer.
type FileType string

const (
	FileTypeFile      FileType = "file"
	FileTypeDirectory FileType = "dir"
	FileTypeSymlink   FileType = "symlink"
)

// Snapshot is a catalog row describing one indexed snapshot.
type Snapshot struct {
	ID        int64
	JobID     string
	Timestamp int64
	RootPath  string
	FileCount int64
	TotalSize int64
}

// File is a catalog row for one filesystem entry inside a snapshot.
type File struct {
	Path       string
	Name       string
	ParentPath string
	Size       int64
	MTime      int64
	Inode      *int64
	Type       FileType
}

// SearchResult is one hit from a global full-text search, with its owning
// snapshot's context attached.
type SearchResult struct {
	File         File
	JobID        string
	SnapshotTime int64
	Rank         float64
}

// TypeStat is one row of a file-type (extension) breakdown.
type TypeStat struct {
	Extension string
	Count     int64
	TotalSize int64
}

// DiffEntry describes one file's status when comparing two snapshots.
type DiffEntry struct {
	Path string
	Kind DiffKind
}

// DiffKind classifies a DiffEntry.
type DiffKind string

const (
	DiffDifferent DiffKind = "different"
	DiffOnlyInB   DiffKind = "only_in_b"
	DiffIdentical DiffKind = "identical"
)

// Store is a single embedded catalog database. All reads and writes
// serialize behind mu — SQLite allows only one writer at a time and the
// query sizes this store serves (directory listings, bounded searches) do
// not justify a more granular locking scheme.
type Store struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
	log    *zap.Logger
}

// Open creates or opens the catalog database at dbPath, running any
// pending migrations and validating the resulting schema.
func Open(dbPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to create index directory", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to open index database", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{dbPath: dbPath, db: db, log: log.Named("index")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the catalog database's file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return amberr.Wrap(amberr.KindIndex, "failed to set WAL mode", err)
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return amberr.Wrap(amberr.KindMigration, "failed to read schema version", err)
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}
	return s.validateSchemaLocked()
}

func (s *Store) runMigrations(from int) error {
	if from < 1 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return amberr.Wrap(amberr.KindMigration, "migration v1 failed", err)
		}
	}
	if from < 2 {
		if _, err := s.db.Exec(schemaV2FTS); err != nil {
			return amberr.Wrap(amberr.KindMigration, "migration v2 (fts5) failed", err)
		}
		if _, err := s.db.Exec("INSERT INTO files_fts(files_fts) VALUES('rebuild');"); err != nil {
			return amberr.Wrap(amberr.KindMigration, "failed to rebuild fts index", err)
		}
	}
	return nil
}

// validateSchemaLocked verifies user_version and required columns are
// present, matching what's expected. Called with mu held.
func (s *Store) validateSchemaLocked() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return amberr.Wrap(amberr.KindMigration, "failed to read schema version", err)
	}
	if version != schemaVersion {
		return amberr.New(amberr.KindMigration, fmt.Sprintf(
			"schema version mismatch: found v%d, expected v%d", version, schemaVersion))
	}

	required := map[string][]string{
		"snapshots": {"id", "job_id", "timestamp", "root_path", "file_count", "total_size"},
		"files":     {"id", "snapshot_id", "path", "name", "parent_path", "size", "mtime", "file_type"},
	}
	for table, cols := range required {
		for _, col := range cols {
			var present bool
			err := s.db.QueryRow(
				"SELECT COUNT(*) > 0 FROM pragma_table_info(?) WHERE name = ?", table, col,
			).Scan(&present)
			if err != nil || !present {
				return amberr.New(amberr.KindMigration, fmt.Sprintf("missing column %q in table %q", col, table))
			}
		}
	}
	return nil
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY,
	job_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	root_path TEXT NOT NULL,
	file_count INTEGER DEFAULT 0,
	total_size INTEGER DEFAULT 0,
	created_at INTEGER DEFAULT (strftime('%s', 'now')),
	UNIQUE(job_id, timestamp)
);

CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY,
	snapshot_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	parent_path TEXT NOT NULL,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	inode INTEGER,
	file_type TEXT NOT NULL,
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_job ON snapshots(job_id);
CREATE INDEX IF NOT EXISTS idx_files_snapshot_parent ON files(snapshot_id, parent_path);
CREATE INDEX IF NOT EXISTS idx_files_path ON files(snapshot_id, path);
CREATE INDEX IF NOT EXISTS idx_files_name ON files(name);

PRAGMA user_version = 1;
`

const schemaV2FTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
	name,
	path,
	content=files,
	content_rowid=id,
	tokenize='unicode61 remove_diacritics 1'
);

CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
	INSERT INTO files_fts(rowid, name, path) VALUES (new.id, new.name, new.path);
END;

CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
	INSERT INTO files_fts(files_fts, rowid, name, path) VALUES('delete', old.id, old.name, old.path);
END;

CREATE TRIGGER IF NOT EXISTS files_au AFTER UPDATE ON files BEGIN
	INSERT INTO files_fts(files_fts, rowid, name, path) VALUES('delete', old.id, old.name, old.path);
	INSERT INTO files_fts(rowid, name, path) VALUES (new.id, new.name, new.path);
END;

PRAGMA user_version = 2;
`

// IndexSnapshot walks snapshotPath and records it under (jobID, timestampMS),
// replacing any prior row for the same pair. Returns the resulting Snapshot.
func (s *Store) IndexSnapshot(jobID string, timestampMS int64, snapshotPath string) (Snapshot, error) {
	if _, err := os.Stat(snapshotPath); err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "snapshot path does not exist", err)
	}

	walked, err := walker.Walk(snapshotPath)
	if err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "failed to walk snapshot directory", err)
	}
	if walked.Skipped > 0 {
		s.log.Warn("skipped unreadable entries while indexing",
			zap.String("job_id", jobID), zap.Int("skipped", walked.Skipped))
	}

	var fileCount, totalSize int64
	for _, e := range walked.Entries {
		if e.Type != walker.TypeDirectory {
			fileCount++
			totalSize += e.Size
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "failed to start transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM snapshots WHERE job_id = ? AND timestamp = ?", jobID, timestampMS); err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "failed to delete existing snapshot", err)
	}

	res, err := tx.Exec(
		"INSERT INTO snapshots (job_id, timestamp, root_path, file_count, total_size) VALUES (?, ?, ?, ?, ?)",
		jobID, timestampMS, snapshotPath, fileCount, totalSize)
	if err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "failed to insert snapshot", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "failed to read new snapshot id", err)
	}

	if err := batchInsertFiles(tx, snapshotID, walked.Entries); err != nil {
		return Snapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, amberr.Wrap(amberr.KindIndex, "failed to commit transaction", err)
	}

	return Snapshot{
		ID: snapshotID, JobID: jobID, Timestamp: timestampMS,
		RootPath: snapshotPath, FileCount: fileCount, TotalSize: totalSize,
	}, nil
}

func batchInsertFiles(tx *sql.Tx, snapshotID int64, entries []walker.Entry) error {
	stmt, err := tx.Prepare(
		"INSERT INTO files (snapshot_id, path, name, parent_path, size, mtime, inode, file_type) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return amberr.Wrap(amberr.KindIndex, "failed to prepare insert statement", err)
	}
	defer stmt.Close()

	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		for _, e := range entries[start:end] {
			var inode any
			if e.HasInode {
				inode = int64(e.Inode)
			}
			if _, err := stmt.Exec(snapshotID, e.Path, e.Name, e.ParentPath, e.Size,
				e.ModTime.Unix(), inode, string(entryFileType(e.Type))); err != nil {
				return amberr.Wrap(amberr.KindIndex, "failed to insert file", err)
			}
		}
	}
	return nil
}

func entryFileType(t walker.EntryType) FileType {
	switch t {
	case walker.TypeDirectory:
		return FileTypeDirectory
	case walker.TypeSymlink:
		return FileTypeSymlink
	default:
		return FileTypeFile
	}
}

// DirectoryContents returns the files directly under parentPath within the
// given (jobID, timestampMS) snapshot, directories first then by name.
func (s *Store) DirectoryContents(jobID string, timestampMS int64, parentPath string) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotID, err := s.snapshotIDLocked(jobID, timestampMS)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT path, name, parent_path, size, mtime, inode, file_type
		 FROM files WHERE snapshot_id = ? AND parent_path = ?
		 ORDER BY CASE WHEN file_type = 'dir' THEN 0 ELSE 1 END, name ASC`, snapshotID, parentPath)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to query directory contents", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// DirectoryContentsPage is DirectoryContents with limit/offset pagination
// and a total row count.
func (s *Store) DirectoryContentsPage(jobID string, timestampMS int64, parentPath string, limit, offset int) ([]File, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotID, err := s.snapshotIDLocked(jobID, timestampMS)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM files WHERE snapshot_id = ? AND parent_path = ?", snapshotID, parentPath,
	).Scan(&total); err != nil {
		return nil, 0, amberr.Wrap(amberr.KindIndex, "failed to count directory contents", err)
	}

	rows, err := s.db.Query(
		`SELECT path, name, parent_path, size, mtime, inode, file_type
		 FROM files WHERE snapshot_id = ? AND parent_path = ?
		 ORDER BY CASE WHEN file_type = 'dir' THEN 0 ELSE 1 END, name ASC LIMIT ? OFFSET ?`,
		snapshotID, parentPath, limit, offset)
	if err != nil {
		return nil, 0, amberr.Wrap(amberr.KindIndex, "failed to query directory contents", err)
	}
	defer rows.Close()
	files, err := scanFiles(rows)
	return files, total, err
}

// IsIndexed reports whether (jobID, timestampMS) has a catalog entry.
func (s *Store) IsIndexed(jobID string, timestampMS int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM snapshots WHERE job_id = ? AND timestamp = ?", jobID, timestampMS,
	).Scan(&count)
	if err != nil {
		return false, amberr.Wrap(amberr.KindIndex, "failed to check index state", err)
	}
	return count > 0, nil
}

// SearchFiles performs a substring LIKE match on name within one snapshot.
func (s *Store) SearchFiles(jobID string, timestampMS int64, pattern string, limit int) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotID, err := s.snapshotIDLocked(jobID, timestampMS)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT path, name, parent_path, size, mtime, inode, file_type
		 FROM files WHERE snapshot_id = ? AND name LIKE ?
		 ORDER BY name ASC LIMIT ?`, snapshotID, "%"+pattern+"%", limit)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to search files", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// SearchFilesGlobal runs a BM25-ranked full-text search over every indexed
// snapshot (or one job's snapshots, if jobID is non-empty). A bare pattern
// is treated as a prefix match; user-supplied FTS syntax (wildcards,
// quoting) passes through untouched.
func (s *Store) SearchFilesGlobal(pattern, jobID string, limit int) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ftsPattern := pattern
	if !strings.ContainsAny(pattern, "*\"") {
		ftsPattern = pattern + "*"
	}

	query := `
		SELECT f.path, f.name, f.parent_path, f.size, f.mtime, f.inode, f.file_type,
		       s.job_id, s.timestamp,
		       bm25(files_fts, 10.0, 1.0) as rank
		FROM files_fts fts
		JOIN files f ON fts.rowid = f.id
		JOIN snapshots s ON f.snapshot_id = s.id
		WHERE files_fts MATCH ?`
	args := []any{ftsPattern}
	if jobID != "" {
		query += " AND s.job_id = ?"
		args = append(args, jobID)
	}
	query += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "full-text search failed", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var f File
		var inode sql.NullInt64
		var fileType string
		var jID string
		var ts int64
		var rank float64
		if err := rows.Scan(&f.Path, &f.Name, &f.ParentPath, &f.Size, &f.MTime, &inode, &fileType, &jID, &ts, &rank); err != nil {
			return nil, amberr.Wrap(amberr.KindIndex, "failed to scan search row", err)
		}
		f.Type = FileType(fileType)
		if inode.Valid {
			v := inode.Int64
			f.Inode = &v
		}
		results = append(results, SearchResult{
			File: f, JobID: jID, SnapshotTime: ts, Rank: -rank,
		})
	}
	return results, rows.Err()
}

// AggregateStats returns (file_count, total_size) for a snapshot.
func (s *Store) AggregateStats(jobID string, timestampMS int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fileCount, totalSize int64
	err := s.db.QueryRow(
		"SELECT file_count, total_size FROM snapshots WHERE job_id = ? AND timestamp = ?",
		jobID, timestampMS,
	).Scan(&fileCount, &totalSize)
	if err != nil {
		return 0, 0, amberr.New(amberr.KindIndex, "snapshot not found")
	}
	return fileCount, totalSize, nil
}

// FileTypeBreakdown groups files in a snapshot by lowercased
// everything-after-the-first-dot of their name, ordered by total size
// descending.
func (s *Store) FileTypeBreakdown(jobID string, timestampMS int64, limit int) ([]TypeStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotID, err := s.snapshotIDLocked(jobID, timestampMS)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT
			CASE WHEN INSTR(name, '.') > 0
			     THEN LOWER(SUBSTR(name, INSTR(name, '.') + 1))
			     ELSE '' END as ext,
			COUNT(*) as count,
			SUM(size) as total_size
		FROM files
		WHERE snapshot_id = ? AND file_type = 'file'
		GROUP BY ext
		ORDER BY total_size DESC
		LIMIT ?`, snapshotID, limit)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to query file type breakdown", err)
	}
	defer rows.Close()

	var out []TypeStat
	for rows.Next() {
		var t TypeStat
		if err := rows.Scan(&t.Extension, &t.Count, &t.TotalSize); err != nil {
			return nil, amberr.Wrap(amberr.KindIndex, "failed to scan file type row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LargestFiles returns the largest non-directory entries in a snapshot,
// ordered by size descending.
func (s *Store) LargestFiles(jobID string, timestampMS int64, limit int) ([]File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotID, err := s.snapshotIDLocked(jobID, timestampMS)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT path, name, parent_path, size, mtime, inode, file_type
		 FROM files WHERE snapshot_id = ? AND file_type = 'file'
		 ORDER BY size DESC LIMIT ?`, snapshotID, limit)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to query largest files", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// SnapshotsInRange returns every indexed snapshot for jobID with a
// timestamp between fromMS and toMS inclusive, ordered oldest first.
func (s *Store) SnapshotsInRange(jobID string, fromMS, toMS int64) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, job_id, timestamp, root_path, file_count, total_size
		 FROM snapshots WHERE job_id = ? AND timestamp BETWEEN ? AND ?
		 ORDER BY timestamp ASC`, jobID, fromMS, toMS)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to query snapshots in range", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.JobID, &sn.Timestamp, &sn.RootPath, &sn.FileCount, &sn.TotalSize); err != nil {
			return nil, amberr.Wrap(amberr.KindIndex, "failed to scan snapshot row", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// JobAggregate sums file_count and total_size across every indexed
// snapshot for jobID, and reports how many snapshots contributed.
func (s *Store) JobAggregate(jobID string) (fileCount, totalSize, snapshotCount int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(file_count), 0), COALESCE(SUM(total_size), 0), COUNT(*)
		 FROM snapshots WHERE job_id = ?`, jobID,
	).Scan(&fileCount, &totalSize, &snapshotCount)
	if err != nil {
		return 0, 0, 0, amberr.Wrap(amberr.KindIndex, "failed to aggregate job snapshots", err)
	}
	return fileCount, totalSize, snapshotCount, nil
}

// PeriodStat is one bucket of DensityByPeriod.
type PeriodStat struct {
	Period        string
	SnapshotCount int64
	TotalSize     int64
}

// DensityByPeriod groups jobID's snapshots into calendar buckets (day,
// week, or month) and reports a snapshot count and total size per bucket,
// oldest first. An unrecognized granularity falls back to "day".
func (s *Store) DensityByPeriod(jobID string, granularity string) ([]PeriodStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`
		SELECT strftime('%s', timestamp / 1000, 'unixepoch') as period,
		       COUNT(*), SUM(total_size)
		FROM snapshots
		WHERE job_id = ?
		GROUP BY period
		ORDER BY period ASC`, periodFormat(granularity))

	rows, err := s.db.Query(query, jobID)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to query snapshot density", err)
	}
	defer rows.Close()

	var out []PeriodStat
	for rows.Next() {
		var p PeriodStat
		if err := rows.Scan(&p.Period, &p.SnapshotCount, &p.TotalSize); err != nil {
			return nil, amberr.Wrap(amberr.KindIndex, "failed to scan density row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func periodFormat(granularity string) string {
	switch granularity {
	case "week":
		return "%Y-W%W"
	case "month":
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

// PreviousSnapshotTimestamp returns the timestamp of the most recent indexed
// snapshot for jobID strictly before beforeMS, if any. Used to find the
// comparison point for a newly completed snapshot's change count.
func (s *Store) PreviousSnapshotTimestamp(jobID string, beforeMS int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ts int64
	err := s.db.QueryRow(
		"SELECT timestamp FROM snapshots WHERE job_id = ? AND timestamp < ? ORDER BY timestamp DESC LIMIT 1",
		jobID, beforeMS,
	).Scan(&ts)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// DeleteSnapshot removes (jobID, timestampMS) and its files (cascade).
func (s *Store) DeleteSnapshot(jobID string, timestampMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM snapshots WHERE job_id = ? AND timestamp = ?", jobID, timestampMS); err != nil {
		return amberr.Wrap(amberr.KindIndex, "failed to delete snapshot", err)
	}
	return nil
}

// DeleteJobSnapshots removes every snapshot (and cascading files) for jobID.
func (s *Store) DeleteJobSnapshots(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM snapshots WHERE job_id = ?", jobID); err != nil {
		return amberr.Wrap(amberr.KindIndex, "failed to delete job snapshots", err)
	}
	return nil
}

// CompareDirectories matches the file rows of two snapshots by their path
// relative to the snapshot root, under a common relative path ("" for the
// whole snapshot), classifying each path as different (same
// path, different size or mtime), only_in_b, or identical. Paths only in A
// are omitted deliberately: the scenario this supports browses "what did B
// add or change relative to A", not a full symmetric diff.
func (s *Store) CompareDirectories(jobID string, timestampA, timestampB int64, path string) ([]DiffEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotA, err := s.snapshotIDLocked(jobID, timestampA)
	if err != nil {
		return nil, err
	}
	snapshotB, err := s.snapshotIDLocked(jobID, timestampB)
	if err != nil {
		return nil, err
	}

	aFiles, err := s.filesUnderLocked(snapshotA, path)
	if err != nil {
		return nil, err
	}
	bFiles, err := s.filesUnderLocked(snapshotB, path)
	if err != nil {
		return nil, err
	}

	relPath := func(f File) string {
		if f.ParentPath == "" {
			return f.Name
		}
		return f.ParentPath + "/" + f.Name
	}

	aByPath := make(map[string]File, len(aFiles))
	for _, f := range aFiles {
		aByPath[relPath(f)] = f
	}

	var out []DiffEntry
	for _, bf := range bFiles {
		af, ok := aByPath[relPath(bf)]
		switch {
		case !ok:
			out = append(out, DiffEntry{Path: bf.Path, Kind: DiffOnlyInB})
		case af.Size != bf.Size || af.MTime != bf.MTime:
			out = append(out, DiffEntry{Path: bf.Path, Kind: DiffDifferent})
		default:
			out = append(out, DiffEntry{Path: bf.Path, Kind: DiffIdentical})
		}
	}
	return out, nil
}

func (s *Store) filesUnderLocked(snapshotID int64, path string) ([]File, error) {
	pattern := path + "/%"
	if path == "" {
		pattern = "%"
	}
	rows, err := s.db.Query(
		`SELECT path, name, parent_path, size, mtime, inode, file_type
		 FROM files WHERE snapshot_id = ? AND (parent_path = ? OR parent_path LIKE ?)`,
		snapshotID, path, pattern)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindIndex, "failed to query files for comparison", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// Compact runs VACUUM to reclaim space after large deletions.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return amberr.Wrap(amberr.KindIndex, "failed to vacuum database", err)
	}
	return nil
}

// snapshotIDLocked resolves the surrogate snapshot id for (jobID,
// timestampMS). Caller must hold mu.
func (s *Store) snapshotIDLocked(jobID string, timestampMS int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		"SELECT id FROM snapshots WHERE job_id = ? AND timestamp = ?", jobID, timestampMS,
	).Scan(&id)
	if err != nil {
		return 0, amberr.New(amberr.KindIndex, "snapshot not found in index")
	}
	return id, nil
}

func scanFiles(rows *sql.Rows) ([]File, error) {
	var out []File
	for rows.Next() {
		var f File
		var inode sql.NullInt64
		var fileType string
		if err := rows.Scan(&f.Path, &f.Name, &f.ParentPath, &f.Size, &f.MTime, &inode, &fileType); err != nil {
			return nil, amberr.Wrap(amberr.KindIndex, "failed to scan file row", err)
		}
		f.Type = FileType(fileType)
		if inode.Valid {
			v := inode.Int64
			f.Inode = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
