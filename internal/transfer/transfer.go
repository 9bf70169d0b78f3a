// Package transfer builds and spawns the external rsync/rclone processes
// that actually move bytes. It never touches a shell: every invocation is
// built as an argv vector and exec'd in list form, so the only injection
// surface is whatever argsanitize already vets.
package transfer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amber-sync/amber-sub000/internal/argsanitize"
)

// Mode selects how a job relates successive runs to each other.
type Mode string

const (
	ModeMirror      Mode = "mirror"
	ModeArchive     Mode = "archive"
	ModeTimeMachine Mode = "time_machine"
)

// RsyncConfig mirrors the user-configurable rsync flags for one job.
type RsyncConfig struct {
	Archive         bool
	Recursive       bool
	Compress        bool
	Verbose         bool
	Delete          bool
	ExcludePatterns []string
	CustomFlags     string
	CustomCommand   string
}

// SSHConfig carries the optional SSH transport overrides for one job.
type SSHConfig struct {
	Enabled                bool
	Port                   string
	IdentityFile           string
	ConfigFile             string
	ProxyJump              string
	CustomSSHOptions       string
	DisableHostKeyChecking bool
}

// CloudConfig carries the rclone-specific destination settings for one job.
type CloudConfig struct {
	RemoteName string
	RemotePath string
	Bandwidth  string
	Encrypt    bool
}

var sshRemotePattern = regexp.MustCompile(`^(?:([A-Za-z0-9_.\-]+)@)?([^/@:\s]{2,}):(.+)$`)

// IsSSHRemote reports whether path looks like "[user@]host:/path" rather
// than a local filesystem path. The host part must be at least two
// characters so a Windows drive letter like "C:\" is never mistaken for a
// remote host.
func IsSSHRemote(path string) bool {
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return false
	}
	return sshRemotePattern.MatchString(path)
}

// SSHLocalPart returns the path component of an SSH remote spec, i.e. the
// part after the colon. Returns ("", false) if path is not an SSH remote.
func SSHLocalPart(path string) (string, bool) {
	if !IsSSHRemote(path) {
		return "", false
	}
	idx := strings.Index(path, ":")
	if idx < 0 {
		return "", false
	}
	return path[idx+1:], true
}

// ensureTrailingSlash appends "/" to path unless it already ends with one,
// matching rsync's "copy contents of" convention for the source argument.
func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// buildSSHCommand assembles the "ssh <opts>" string passed to rsync's -e
// flag. Fragments that fail validation are dropped and reported via warn,
// never inserted raw.
func buildSSHCommand(cfg *SSHConfig, warn func(field, value string, err error)) string {
	var b strings.Builder
	b.WriteString("ssh")
	if cfg == nil {
		return b.String()
	}

	if p := strings.TrimSpace(cfg.Port); p != "" {
		if port, err := argsanitize.ValidateSSHPort(p); err != nil {
			warn("ssh port", p, err)
		} else {
			b.WriteString(" -p ")
			b.WriteString(strconv.FormatUint(uint64(port), 10))
		}
	}
	if id := strings.TrimSpace(cfg.IdentityFile); id != "" {
		if v, err := argsanitize.ValidateFilePath(id); err != nil {
			warn("identity file", id, err)
		} else {
			b.WriteString(" -i ")
			b.WriteString(v)
		}
	}
	if cf := strings.TrimSpace(cfg.ConfigFile); cf != "" {
		if v, err := argsanitize.ValidateFilePath(cf); err != nil {
			warn("ssh config file", cf, err)
		} else {
			b.WriteString(" -F ")
			b.WriteString(v)
		}
	}
	if pj := strings.TrimSpace(cfg.ProxyJump); pj != "" {
		if v, err := argsanitize.ValidateProxyJump(pj); err != nil {
			warn("proxy jump", pj, err)
		} else {
			b.WriteString(" -J ")
			b.WriteString(v)
		}
	}
	if opts := strings.TrimSpace(cfg.CustomSSHOptions); opts != "" {
		if v, err := argsanitize.SanitizeSSHOption(opts); err != nil {
			warn("custom ssh options", opts, err)
		} else {
			b.WriteString(" ")
			b.WriteString(v)
		}
	}
	if cfg.DisableHostKeyChecking {
		b.WriteString(" -o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null")
	}
	return b.String()
}

// BuildRsyncArgs builds the rsync argv (everything after "rsync" itself) for
// one run. sourcePath is the job's configured source (local or SSH remote);
// finalDest is the destination snapshot folder; linkDest, when non-empty and
// mode is TimeMachine, becomes a --link-dest. warn is called for every
// dropped SSH fragment (may be nil).
func BuildRsyncArgs(sourcePath string, mode Mode, conf RsyncConfig, ssh *SSHConfig, finalDest, linkDest string, warn func(field, value string, err error)) []string {
	if warn == nil {
		warn = func(string, string, error) {}
	}

	args := []string{
		"-D", "--numeric-ids", "--links", "--hard-links", "--one-file-system",
		"--itemize-changes", "--stats", "--human-readable", "--progress",
	}

	if conf.Archive {
		args = append(args, "-a")
	} else {
		if conf.Recursive {
			args = append(args, "--recursive")
		}
		args = append(args, "--times", "--perms", "--owner", "--group")
	}
	if conf.Compress {
		args = append(args, "-z")
	}
	if conf.Verbose {
		args = append(args, "-v")
	}
	if conf.Delete {
		args = append(args, "--delete")
	}

	sshEnabled := ssh != nil && ssh.Enabled
	if sshEnabled || IsSSHRemote(sourcePath) {
		args = append(args, "-e", buildSSHCommand(ssh, warn))
	}

	if mode == ModeTimeMachine && linkDest != "" {
		args = append(args, "--link-dest="+linkDest)
	}

	for _, pat := range conf.ExcludePatterns {
		if p := strings.TrimSpace(pat); p != "" {
			args = append(args, "--exclude="+p)
		}
	}

	if cf := strings.TrimSpace(conf.CustomFlags); cf != "" {
		extra, err := argsanitize.CustomCommandArgs(cf, "", "", "")
		if err != nil {
			warn("custom flags", cf, err)
		} else {
			args = append(args, extra...)
		}
	}

	args = append(args, ensureTrailingSlash(sourcePath), finalDest)
	return args
}

// Command is a fully-built, ready-to-exec invocation.
type Command struct {
	Program string
	Args    []string
}

// BuildCommand returns the command to spawn for a job: the custom-command
// template if one is set, otherwise the stock rsync invocation.
func BuildCommand(sourcePath string, mode Mode, conf RsyncConfig, ssh *SSHConfig, finalDest, linkDest string, warn func(field, value string, err error)) (Command, error) {
	if cc := strings.TrimSpace(conf.CustomCommand); cc != "" {
		parts, err := argsanitize.CustomCommandArgs(cc, ensureTrailingSlash(sourcePath), finalDest, linkDest)
		if err != nil {
			return Command{}, err
		}
		if len(parts) == 0 {
			return Command{Program: "rsync"}, nil
		}
		return Command{Program: parts[0], Args: parts[1:]}, nil
	}

	return Command{
		Program: "rsync",
		Args:    BuildRsyncArgs(sourcePath, mode, conf, ssh, finalDest, linkDest, warn),
	}, nil
}

// BuildRcloneSyncArgs builds the argv for "rclone sync <source> <remote>:<path> ...".
func BuildRcloneSyncArgs(sourcePath string, cloud CloudConfig) []string {
	dest := cloud.RemoteName + ":"
	if strings.TrimSpace(cloud.RemotePath) != "" {
		dest = cloud.RemoteName + ":" + cloud.RemotePath
	}

	args := []string{"sync", sourcePath, dest, "--progress", "--stats-one-line", "--stats=1s", "-v"}
	if bw := strings.TrimSpace(cloud.Bandwidth); bw != "" {
		args = append(args, "--bwlimit", bw)
	}
	return args
}
