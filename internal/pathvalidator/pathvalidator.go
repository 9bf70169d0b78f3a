// Package pathvalidator implements path traversal protection for every
// user-supplied filesystem path that reaches the core. It prevents:
//   - path traversal via "." / ".." components,
//   - URL-encoded traversal (percent-escapes decoded before checking),
//   - null-byte injection,
//   - symlink escapes out of an allowed root.
package pathvalidator

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// Validator holds the set of canonical absolute directories a path must
// descend from to be considered safe. It is not safe to mutate (AddRoot)
// concurrently with Validate calls from other goroutines.
type Validator struct {
	roots map[string]struct{}
}

// New returns a Validator with no allowed roots.
func New() *Validator {
	return &Validator{roots: make(map[string]struct{})}
}

// AddRoot canonicalises path and adds it to the allowed set. It fails with
// InvalidPath if path cannot be resolved on the real filesystem.
func (v *Validator) AddRoot(path string) error {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return amberr.InvalidPath(path, fmt.Errorf("cannot canonicalize root: %w", err))
	}
	v.roots[canonical] = struct{}{}
	return nil
}

// Roots returns the canonical allowed roots, for diagnostics/tests.
func (v *Validator) Roots() []string {
	out := make([]string, 0, len(v.roots))
	for r := range v.roots {
		out = append(out, r)
	}
	return out
}

// WithStandardRoots builds a Validator seeded with the user's home directory,
// the platform's external-volume mount roots, and the application data
// directory. Roots that cannot be resolved (e.g. home dir missing) are
// skipped rather than failing the whole construction.
func WithStandardRoots(appDataDir string, mountRoots []string) (*Validator, error) {
	v := New()

	if home, err := os.UserHomeDir(); err == nil {
		_ = v.AddRoot(home)
	}
	for _, m := range mountRoots {
		_ = v.AddRoot(m)
	}
	if err := v.AddRoot(appDataDir); err != nil {
		return nil, err
	}
	return v, nil
}

// JobRoot describes one job's local source/destination paths for
// WithJobRoots. SSH remote paths must be omitted by the caller (their local
// half cannot be canonicalised).
type JobRoot struct {
	SourcePath string
	DestPath   string
}

// WithJobRoots builds on WithStandardRoots, additionally trusting every
// registered job's local source and destination directories. Paths that
// fail to canonicalise (not yet created, for instance) are skipped.
func WithJobRoots(appDataDir string, mountRoots []string, jobs []JobRoot) (*Validator, error) {
	v, err := WithStandardRoots(appDataDir, mountRoots)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.SourcePath != "" {
			_ = v.AddRoot(j.SourcePath)
		}
		if j.DestPath != "" {
			_ = v.AddRoot(j.DestPath)
		}
	}
	return v, nil
}

// Validate resolves raw to a canonical absolute path and verifies it
// descends from an allowed root. It returns InvalidPath for malformed input
// or unresolvable paths, and PermissionDenied if the path is well-formed
// but outside every allowed root.
func (v *Validator) Validate(raw string) (string, error) {
	decoded, err := decodePath(raw)
	if err != nil {
		return "", err
	}
	if err := ensureAbsoluteAndClean(decoded); err != nil {
		return "", err
	}

	canonical, err := filepath.EvalSymlinks(decoded)
	if err != nil {
		return "", amberr.InvalidPath(raw, fmt.Errorf("cannot access path: %w", err))
	}

	if err := v.ensureAllowed(canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

// ValidateForCreate validates a path that may not yet exist — used for
// restore targets. It walks up from raw until it finds an existing
// ancestor, canonicalises and bound-checks that ancestor, then re-appends
// the missing tail components onto the canonical ancestor.
func (v *Validator) ValidateForCreate(raw string) (string, error) {
	decoded, err := decodePath(raw)
	if err != nil {
		return "", err
	}
	if err := ensureAbsoluteAndClean(decoded); err != nil {
		return "", err
	}

	if _, err := os.Lstat(decoded); err == nil {
		return v.Validate(raw)
	}

	current := decoded
	var missing []string
	for {
		if _, err := os.Lstat(current); err == nil {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", amberr.New(amberr.KindInvalidPath, "no existing parent directory for path")
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}

	canonicalParent, err := filepath.EvalSymlinks(current)
	if err != nil {
		return "", amberr.InvalidPath(raw, fmt.Errorf("cannot access parent path: %w", err))
	}
	if err := v.ensureAllowed(canonicalParent); err != nil {
		return "", err
	}

	rebuilt := canonicalParent
	for i := len(missing) - 1; i >= 0; i-- {
		rebuilt = filepath.Join(rebuilt, missing[i])
	}
	return rebuilt, nil
}

func decodePath(raw string) (string, error) {
	if strings.ContainsRune(raw, 0) {
		return "", amberr.New(amberr.KindInvalidPath, "path contains null byte")
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", amberr.InvalidPath(raw, fmt.Errorf("invalid URL encoding: %w", err))
	}
	return decoded, nil
}

func ensureAbsoluteAndClean(path string) error {
	if !filepath.IsAbs(path) {
		return amberr.New(amberr.KindInvalidPath, "path must be absolute")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." || part == "." {
			return amberr.New(amberr.KindInvalidPath, "path contains relative components")
		}
	}
	return nil
}

func (v *Validator) ensureAllowed(canonical string) error {
	for root := range v.roots {
		if isWithin(canonical, root) {
			return nil
		}
	}
	return amberr.PermissionDenied(canonical)
}

// isWithin reports whether candidate is root itself or a descendant of root.
func isWithin(candidate, root string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}
