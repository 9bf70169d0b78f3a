package transfer

import (
	"context"
	"os/exec"
	"strings"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// RcloneStatus reports whether the rclone binary is reachable and, if so,
// its reported version.
type RcloneStatus struct {
	Installed bool
	Version   string
}

// CheckRcloneInstallation runs "rclone version" and reports the result.
// A missing binary or non-zero exit is reported as Installed=false, not an
// error: the caller is expected to surface this as a configuration check,
// not a hard failure.
func CheckRcloneInstallation(ctx context.Context) RcloneStatus {
	out, err := exec.CommandContext(ctx, "rclone", "version").Output()
	if err != nil {
		return RcloneStatus{Installed: false}
	}
	lines := strings.SplitN(string(out), "\n", 2)
	version := ""
	if len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}
	return RcloneStatus{Installed: true, Version: version}
}

// RcloneRemote is one configured rclone remote.
type RcloneRemote struct {
	Name string
	Type string
}

// ListRcloneRemotes runs "rclone listremotes --long" and parses its output.
func ListRcloneRemotes(ctx context.Context) ([]RcloneRemote, error) {
	out, err := exec.CommandContext(ctx, "rclone", "listremotes", "--long").Output()
	if err != nil {
		return nil, amberr.Wrap(amberr.KindRclone, "failed to list remotes", err)
	}

	var remotes []RcloneRemote
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		name := strings.TrimSpace(parts[0])
		remoteType := "unknown"
		if len(parts) > 1 {
			remoteType = strings.TrimSpace(parts[1])
		}
		remotes = append(remotes, RcloneRemote{Name: name, Type: remoteType})
	}
	return remotes, nil
}
