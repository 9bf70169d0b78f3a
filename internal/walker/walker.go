// Package walker performs the parallel filesystem walk that feeds both the
// index (internal/index) and the snapshot runner's file-count estimates.
// It fans out one worker per top-level subdirectory, bounded by NumCPU,
// and swallows per-entry IO errors so a single unreadable file never aborts
// an entire backup — but it counts what it skipped.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// EntryType classifies a walked filesystem entry. Symlinks are recorded,
// never followed.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "dir"
	TypeSymlink   EntryType = "symlink"
)

// Entry is one file, directory, or symlink discovered during a walk.
type Entry struct {
	Path       string
	Name       string
	ParentPath string
	Size       int64
	ModTime    time.Time
	Inode      uint64
	HasInode   bool
	Type       EntryType
}

// Result is the outcome of a full walk: the discovered entries plus a count
// of entries that were skipped due to a stat/read error.
type Result struct {
	Entries []Entry
	Skipped int
}

// Walk walks root recursively, fanning work out across a worker pool sized
// to the number of available CPUs. Hidden files are included. The root
// directory itself is not included as an entry.
func Walk(root string) (Result, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return Result{}, err
	}
	if !info.IsDir() {
		return Result{}, &fs.PathError{Op: "walk", Path: root, Err: os.ErrInvalid}
	}

	topLevel, err := os.ReadDir(root)
	if err != nil {
		return Result{}, err
	}

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string, len(topLevel))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var entries []Entry
	var skipped int

	collect := func(sub string) {
		subEntries, subSkipped := walkSubtree(root, sub)
		mu.Lock()
		entries = append(entries, subEntries...)
		skipped += subSkipped
		mu.Unlock()
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				collect(sub)
			}
		}()
	}

	for _, d := range topLevel {
		full := filepath.Join(root, d.Name())
		e, ok := entryFor(root, full, d)
		if !ok {
			mu.Lock()
			skipped++
			mu.Unlock()
			continue
		}
		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()

		if d.IsDir() && e.Type == TypeDirectory {
			jobs <- full
		}
	}
	close(jobs)
	wg.Wait()

	return Result{Entries: entries, Skipped: skipped}, nil
}

// walkSubtree walks everything under sub (inclusive of nested directories),
// relative to root for ParentPath computation.
func walkSubtree(root, sub string) ([]Entry, int) {
	var entries []Entry
	skipped := 0

	err := filepath.WalkDir(sub, func(path string, d fs.DirEntry, err error) error {
		if path == sub {
			return nil
		}
		if err != nil {
			skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		e, ok := entryFor(root, path, d)
		if !ok {
			skipped++
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		skipped++
	}
	return entries, skipped
}

// entryFor stats a single directory entry and converts it into an Entry.
// Returns ok=false if the entry could not be stat'd (vanished, permission
// denied, etc).
func entryFor(root, path string, d fs.DirEntry) (Entry, bool) {
	info, err := d.Info()
	if err != nil {
		return Entry{}, false
	}

	entryType := TypeFile
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		entryType = TypeSymlink
	case info.IsDir():
		entryType = TypeDirectory
	}

	parent := filepath.Dir(path)
	rel, err := filepath.Rel(root, parent)
	if err != nil {
		rel = parent
	}
	if rel == "." {
		rel = ""
	}

	e := Entry{
		Path:       path,
		Name:       filepath.Base(path),
		ParentPath: rel,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Type:       entryType,
	}
	if ino, ok := inodeOf(info); ok {
		e.Inode = ino
		e.HasInode = true
	}
	return e, true
}
