package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// ValidateRestoreFileList checks that every entry is a non-empty, relative,
// null-byte-free path with no "." or ".." components, returning the trimmed
// list. This list is destined for rsync's --files-from=- stdin, so a
// malformed entry here would otherwise be interpreted by rsync itself.
func ValidateRestoreFileList(files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, amberr.New(amberr.KindValidationError, "no files provided for restore")
	}

	validated := make([]string, 0, len(files))
	for _, f := range files {
		trimmed := strings.TrimSpace(f)
		if trimmed == "" {
			return nil, amberr.New(amberr.KindValidationError, "file list contains an empty path")
		}
		if strings.ContainsRune(trimmed, 0) {
			return nil, amberr.New(amberr.KindValidationError, "file list contains null bytes")
		}
		if filepath.IsAbs(trimmed) {
			return nil, amberr.New(amberr.KindValidationError, "file paths must be relative to snapshot root")
		}
		for _, part := range strings.Split(filepath.ToSlash(trimmed), "/") {
			if part == "." || part == ".." {
				return nil, amberr.New(amberr.KindValidationError, "file paths cannot contain relative components")
			}
		}
		validated = append(validated, trimmed)
	}
	return validated, nil
}

// RestoreFiles runs "rsync -av --progress --files-from=- --from0 -- <snapshot> <target>",
// piping the validated file list on stdin separated by NUL bytes. snapshotPath
// and targetPath must already have passed the caller's path validation
// (job-destination containment, create-mode ancestor check).
func RestoreFiles(ctx context.Context, snapshotPath, targetPath string, files []string) error {
	validated, err := ValidateRestoreFileList(files)
	if err != nil {
		return err
	}

	args := []string{"-av", "--progress", "--files-from=-", "--from0", "--", snapshotPath, targetPath}
	cmd := exec.CommandContext(ctx, "rsync", args...)
	cmd.Stdin = bytes.NewBufferString(strings.Join(validated, "\x00"))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return amberr.Wrap(amberr.KindRsync, fmt.Sprintf("restore failed: %s", stderr.String()), err)
	}
	return nil
}

// RestoreSnapshot runs "rsync -av --progress [--delete] -- <snapshot>/ <target>",
// copying a whole snapshot folder into target. mirror selects whether
// extraneous files at the target are deleted to match the snapshot exactly.
func RestoreSnapshot(ctx context.Context, snapshotPath, targetPath string, mirror bool) error {
	src := snapshotPath
	if !strings.HasSuffix(src, "/") {
		src += "/"
	}

	args := []string{"-av", "--progress"}
	if mirror {
		args = append(args, "--delete")
	}
	args = append(args, "--", src, targetPath)

	cmd := exec.CommandContext(ctx, "rsync", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return amberr.Wrap(amberr.KindRsync, fmt.Sprintf("restore failed: %s", stderr.String()), err)
	}
	return nil
}
