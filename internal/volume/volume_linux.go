//go:build linux

package volume

import (
	"os"
	"path/filepath"
)

// mountRoots returns /mnt unconditionally (it is the conventional manual
// mount point and need not exist to be worth checking against), plus
// /media/$USER and /run/media/$USER when they exist, falling back to
// /media directly when USER is unset.
func mountRoots() []string {
	roots := []string{"/mnt"}

	user := os.Getenv("USER")
	if user != "" {
		mediaUser := filepath.Join("/media", user)
		if dirExists(mediaUser) {
			roots = append(roots, mediaUser)
		}
		runMediaUser := filepath.Join("/run/media", user)
		if dirExists(runMediaUser) {
			roots = append(roots, runMediaUser)
		}
	} else if dirExists("/media") {
		roots = append(roots, "/media")
	}

	return roots
}

func systemVolumeNames() []string {
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
