// Package coordinator implements the IndexCoordinator: routing between the
// app-local catalog and a destination-resident catalog, so a catalog can
// travel with its backup data onto removable or networked storage.
package coordinator

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/amber-sync/amber-sub000/internal/amberr"
	"github.com/amber-sync/amber-sub000/internal/index"
	"github.com/amber-sync/amber-sub000/internal/manifest"
)

const destIndexFile = "index.db"

// Coordinator owns the app-local catalog and a cache of destination-resident
// catalog handles, opened lazily as destinations are queried or indexed
// into.
type Coordinator struct {
	local  *index.Store
	logger *zap.Logger

	mu   sync.Mutex
	dest map[string]*index.Store // destPath -> open store
}

// New opens (creating if absent) the app-local catalog at
// <localDir>/index.db.
func New(localDir string, logger *zap.Logger) (*Coordinator, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return nil, amberr.Wrap(amberr.KindIO, "failed to create local catalog directory", err)
	}
	local, err := index.Open(filepath.Join(localDir, destIndexFile), logger)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		local:  local,
		logger: logger.Named("coordinator"),
		dest:   make(map[string]*index.Store),
	}, nil
}

// Local returns the app-local catalog, used for searches and lookups not
// scoped to any one destination.
func (c *Coordinator) Local() *index.Store {
	return c.local
}

// Close closes the local catalog and every cached destination-resident
// catalog.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, s := range c.dest {
		if err := s.Close(); err != nil {
			c.logger.Warn("failed to close destination catalog", zap.String("dest", path), zap.Error(err))
		}
	}
	c.dest = make(map[string]*index.Store)
	return c.local.Close()
}

func destIndexPath(destPath string) string {
	return filepath.Join(manifest.MetaDir(destPath), destIndexFile)
}

// StoreFor returns the catalog to query for destPath: the destination-
// resident catalog if one exists there and the destination is currently
// reachable, otherwise the app-local catalog.
func (c *Coordinator) StoreFor(destPath string) (*index.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeForLocked(destPath, false)
}

// storeForLocked resolves the catalog for destPath. If create is true and no
// destination-resident catalog exists yet, one is created there (used by
// IndexSnapshot, which always targets the destination).
func (c *Coordinator) storeForLocked(destPath string, create bool) (*index.Store, error) {
	if s, ok := c.dest[destPath]; ok {
		return s, nil
	}

	dbPath := destIndexPath(destPath)
	_, statErr := os.Stat(dbPath)
	if statErr != nil && !create {
		return c.local, nil
	}
	if statErr != nil && os.IsNotExist(statErr) {
		if err := os.MkdirAll(manifest.MetaDir(destPath), 0o755); err != nil {
			return nil, amberr.Wrap(amberr.KindIO, "failed to create destination meta directory", err)
		}
	}

	s, err := index.Open(dbPath, c.logger)
	if err != nil {
		return nil, err
	}
	c.dest[destPath] = s
	return s, nil
}

// IndexSnapshot indexes snapshotPath into destPath's destination-resident
// catalog, creating it if this is the first snapshot indexed there.
func (c *Coordinator) IndexSnapshot(jobID string, timestampMS int64, destPath, snapshotPath string) (index.Snapshot, error) {
	c.mu.Lock()
	s, err := c.storeForLocked(destPath, true)
	c.mu.Unlock()
	if err != nil {
		return index.Snapshot{}, err
	}
	return s.IndexSnapshot(jobID, timestampMS, snapshotPath)
}

// Export copies the app-local catalog file to destPath, establishing
// co-location for a destination that has never had its own catalog. Any
// cached handle for destPath is closed first so the copy is not clobbered
// by a concurrently open connection.
func (c *Coordinator) Export(destPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.dest[destPath]; ok {
		if err := s.Close(); err != nil {
			return amberr.Wrap(amberr.KindIndex, "failed to close cached destination catalog before export", err)
		}
		delete(c.dest, destPath)
	}

	if err := c.local.Compact(); err != nil {
		return err
	}

	if err := os.MkdirAll(manifest.MetaDir(destPath), 0o755); err != nil {
		return amberr.Wrap(amberr.KindIO, "failed to create destination meta directory", err)
	}

	return copyFile(c.local.Path(), destIndexPath(destPath))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return amberr.Wrap(amberr.KindIO, "failed to open local catalog for export", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return amberr.Wrap(amberr.KindIO, "failed to create destination catalog file", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return amberr.Wrap(amberr.KindIO, "failed to copy catalog", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return amberr.Wrap(amberr.KindIO, "failed to sync exported catalog", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return amberr.Wrap(amberr.KindIO, "failed to close exported catalog", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return amberr.Wrap(amberr.KindIO, "failed to rename exported catalog into place", err)
	}
	return nil
}
