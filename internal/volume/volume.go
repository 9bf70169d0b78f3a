// Package volume resolves removable/networked mount points across macOS and
// Linux, and guards against destructive operations aimed too close to a
// volume's root.
package volume

import (
	"os"
	"path/filepath"
	"strings"
)

// MinDeleteDepth is the minimum number of path components, counted from "/"
// with "/" and the mount root (e.g. "/Volumes") as the first two, a path
// under a mount root must have before destructive operations (snapshot
// deletion, manifest removal) are permitted against it. Below this depth the path is
// indistinguishable from the volume's root directory itself — deleting it
// would delete the whole drive's contents, not a backup job's subtree.
const MinDeleteDepth = 4

// Info describes one detected external volume.
type Info struct {
	Name string
	Path string
}

// MountRoots returns the platform's external-volume mount directories that
// currently exist on disk.
func MountRoots() []string {
	return mountRoots()
}

// SystemVolumeNames lists volume names under a mount root that are part of
// the OS itself and must never be treated as backup destinations.
func SystemVolumeNames() []string {
	return systemVolumeNames()
}

// IsExternal reports whether path lives under one of MountRoots, and is not
// one of SystemVolumeNames.
func IsExternal(path string) bool {
	for _, root := range MountRoots() {
		prefix := root + "/"
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		for _, sv := range SystemVolumeNames() {
			if strings.HasPrefix(path, prefix+sv) {
				return false
			}
		}
		return true
	}
	return false
}

// IsSystem reports whether path is on the system volume rather than an
// external one — the complement of IsExternal, kept as its own function
// because "not external" reads more naturally at call sites guarding
// destructive operations.
func IsSystem(path string) bool {
	return !IsExternal(path)
}

// NameFromPath extracts the volume name component from an external path,
// e.g. "/Volumes/Backup/photos" -> "Backup". Returns false if path is not
// under a known mount root.
func NameFromPath(path string) (string, bool) {
	for _, root := range MountRoots() {
		prefix := root + "/"
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "/")
		if name == "" {
			return "", false
		}
		return name, true
	}
	return "", false
}

// ListMounted returns the full paths of every entry directly under root.
// Unreadable roots (not mounted, permission denied) return an empty slice
// rather than an error — a missing mount root is a normal state, not a
// failure.
func ListMounted(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, filepath.Join(root, e.Name()))
	}
	return paths
}

// DepthBelowRoot returns how many path components path has below whichever
// mount root it lives under, or -1 if path is not under any mount root.
func DepthBelowRoot(path string) int {
	for _, root := range MountRoots() {
		prefix := root + "/"
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			if path != root {
				continue
			}
			rest = ""
		}
		rest = strings.Trim(rest, "/")
		if rest == "" {
			return 0
		}
		return len(strings.Split(rest, "/"))
	}
	return -1
}

// SafeToDelete reports whether path is deep enough under its mount root
// (or is not on a removable volume at all, in which case the platform's own
// filesystem boundaries apply) to be safely deleted without risking the
// whole volume's contents.
func SafeToDelete(path string) bool {
	depth := DepthBelowRoot(path)
	if depth < 0 {
		return true
	}
	// "/" and the mount root itself (e.g. "/Volumes") already account for
	// two of MinDeleteDepth's components; depth counts only what's below
	// the mount root, so a volume's immediate child directory (the drive
	// itself) sits at depth 1 and must still be rejected.
	return depth >= MinDeleteDepth-2
}
