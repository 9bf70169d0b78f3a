package transfer

import (
	"strings"
	"testing"
)

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestBuildRsyncArgs_BaseFlags(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{}, nil, "/dest", "", nil)
	for _, want := range []string{"-D", "--numeric-ids", "--links", "--hard-links", "--one-file-system", "--itemize-changes", "--stats", "--human-readable", "--progress"} {
		if !hasArg(args, want) {
			t.Fatalf("missing base flag %q in %v", want, args)
		}
	}
}

func TestBuildRsyncArgs_ArchiveMode(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{Archive: true}, nil, "/dest", "", nil)
	if !hasArg(args, "-a") {
		t.Fatalf("expected -a, got %v", args)
	}
}

func TestBuildRsyncArgs_CompressVerboseDelete(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{Compress: true, Verbose: true, Delete: true}, nil, "/dest", "", nil)
	for _, want := range []string{"-z", "-v", "--delete"} {
		if !hasArg(args, want) {
			t.Fatalf("missing %q in %v", want, args)
		}
	}
}

func TestBuildRsyncArgs_NoDeleteByDefault(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{}, nil, "/dest", "", nil)
	if hasArg(args, "--delete") {
		t.Fatalf("did not expect --delete in %v", args)
	}
}

func TestBuildRsyncArgs_TimeMachineLinkDest(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeTimeMachine, RsyncConfig{}, nil, "/dest/new", "/dest/previous", nil)
	if !hasArg(args, "--link-dest=/dest/previous") {
		t.Fatalf("expected link-dest flag in %v", args)
	}
}

func TestBuildRsyncArgs_TimeMachineNoLinkDest(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeTimeMachine, RsyncConfig{}, nil, "/dest/new", "", nil)
	for _, a := range args {
		if strings.HasPrefix(a, "--link-dest") {
			t.Fatalf("did not expect link-dest in %v", args)
		}
	}
}

func TestBuildRsyncArgs_ExcludePatterns(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{ExcludePatterns: []string{"*.log", "temp/"}}, nil, "/dest", "", nil)
	if !hasArg(args, "--exclude=*.log") || !hasArg(args, "--exclude=temp/") {
		t.Fatalf("missing exclude flags in %v", args)
	}
}

func TestBuildRsyncArgs_TrailingSlashOnSource(t *testing.T) {
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{}, nil, "/dest", "", nil)
	if args[len(args)-2] != "/src/" {
		t.Fatalf("expected trailing slash on source, got %q", args[len(args)-2])
	}
	if args[len(args)-1] != "/dest" {
		t.Fatalf("expected dest as last arg, got %q", args[len(args)-1])
	}
}

func TestBuildRsyncArgs_SSHConfig(t *testing.T) {
	ssh := &SSHConfig{Enabled: true, Port: "2222", IdentityFile: "/key", ConfigFile: "/config"}
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{}, ssh, "/dest", "", nil)

	idx := -1
	for i, a := range args {
		if a == "-e" {
			idx = i
		}
	}
	if idx < 0 || idx+1 >= len(args) {
		t.Fatalf("expected -e flag in %v", args)
	}
	sshCmd := args[idx+1]
	for _, want := range []string{"ssh", "-p 2222", "-i /key", "-F /config"} {
		if !strings.Contains(sshCmd, want) {
			t.Fatalf("ssh command %q missing %q", sshCmd, want)
		}
	}
}

func TestBuildRsyncArgs_SSHAutoDetectFromRemoteSource(t *testing.T) {
	args := BuildRsyncArgs("user@host:/remote/path", ModeMirror, RsyncConfig{}, nil, "/dest", "", nil)
	if !hasArg(args, "-e") {
		t.Fatalf("expected auto-detected ssh transport in %v", args)
	}
}

func TestBuildRsyncArgs_StrictHostKeyDisable(t *testing.T) {
	ssh := &SSHConfig{Enabled: true, DisableHostKeyChecking: true}
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{}, ssh, "/dest", "", nil)
	idx := -1
	for i, a := range args {
		if a == "-e" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatal("expected -e flag")
	}
	if !strings.Contains(args[idx+1], "StrictHostKeyChecking=no") {
		t.Fatalf("expected StrictHostKeyChecking=no in %q", args[idx+1])
	}
}

func TestBuildRsyncArgs_InvalidSSHFragmentDropped(t *testing.T) {
	var warned []string
	ssh := &SSHConfig{Enabled: true, Port: "not-a-port"}
	args := BuildRsyncArgs("/src", ModeMirror, RsyncConfig{}, ssh, "/dest", "", func(field, value string, err error) {
		warned = append(warned, field)
	})
	idx := -1
	for i, a := range args {
		if a == "-e" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatal("expected -e flag even with a dropped fragment")
	}
	if strings.Contains(args[idx+1], "-p") {
		t.Fatalf("expected invalid port to be dropped, got %q", args[idx+1])
	}
	if len(warned) != 1 || warned[0] != "ssh port" {
		t.Fatalf("expected one warning for ssh port, got %v", warned)
	}
}

func TestBuildCommand_CustomCommandOverridesRsync(t *testing.T) {
	conf := RsyncConfig{CustomCommand: "restic backup --repo {dest} {source}"}
	cmd, err := BuildCommand("/src", ModeMirror, conf, nil, "/dest", "", nil)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	if cmd.Program != "restic" {
		t.Fatalf("Program = %q, want restic", cmd.Program)
	}
	if !hasArg(cmd.Args, "/dest") {
		t.Fatalf("expected {dest} substitution in %v", cmd.Args)
	}
}

func TestBuildCommand_RejectsTransportOverride(t *testing.T) {
	conf := RsyncConfig{CustomCommand: "rsync -e malicious {source} {dest}"}
	if _, err := BuildCommand("/src", ModeMirror, conf, nil, "/dest", "", nil); err == nil {
		t.Fatal("expected transport-override rejection")
	}
}

func TestIsSSHRemote(t *testing.T) {
	cases := map[string]bool{
		"user@host:/path":  true,
		"host:/path":       true,
		"/local/path":      false,
		"./relative":       false,
		"C:\\Windows\\foo": false,
	}
	for in, want := range cases {
		if got := IsSSHRemote(in); got != want {
			t.Errorf("IsSSHRemote(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSSHLocalPart(t *testing.T) {
	local, ok := SSHLocalPart("user@host:/remote/dir")
	if !ok || local != "/remote/dir" {
		t.Fatalf("SSHLocalPart = (%q, %v), want (/remote/dir, true)", local, ok)
	}
	if _, ok := SSHLocalPart("/local/path"); ok {
		t.Fatal("expected false for a local path")
	}
}

func TestBuildRcloneSyncArgs(t *testing.T) {
	args := BuildRcloneSyncArgs("/src", CloudConfig{RemoteName: "remote1", RemotePath: "backups", Bandwidth: "10M"})
	if !hasArg(args, "sync") || !hasArg(args, "/src") || !hasArg(args, "remote1:backups") {
		t.Fatalf("unexpected args: %v", args)
	}
	if !hasArg(args, "--bwlimit") || !hasArg(args, "10M") {
		t.Fatalf("expected bandwidth limit flags in %v", args)
	}
}

func TestBuildRcloneSyncArgs_NoRemotePath(t *testing.T) {
	args := BuildRcloneSyncArgs("/src", CloudConfig{RemoteName: "remote1"})
	if !hasArg(args, "remote1:") {
		t.Fatalf("expected bare remote dest in %v", args)
	}
}

func TestValidateRestoreFileList_RejectsAbsoluteAndTraversal(t *testing.T) {
	if _, err := ValidateRestoreFileList([]string{"/abs/path"}); err == nil {
		t.Fatal("expected rejection of absolute path")
	}
	if _, err := ValidateRestoreFileList([]string{"../escape"}); err == nil {
		t.Fatal("expected rejection of parent-dir component")
	}
	if _, err := ValidateRestoreFileList(nil); err == nil {
		t.Fatal("expected rejection of empty list")
	}
}

func TestValidateRestoreFileList_AcceptsRelativePaths(t *testing.T) {
	got, err := ValidateRestoreFileList([]string{" docs/report.pdf ", "photos/a.jpg"})
	if err != nil {
		t.Fatalf("ValidateRestoreFileList: %v", err)
	}
	if len(got) != 2 || got[0] != "docs/report.pdf" {
		t.Fatalf("unexpected result: %v", got)
	}
}
