//go:build !unix

package walker

import "io/fs"

func inodeOf(info fs.FileInfo) (uint64, bool) {
	return 0, false
}
