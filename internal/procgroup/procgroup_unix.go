//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Setup puts cmd in a new process group led by the child itself, so Kill can
// later signal the whole group with a single negative-pid SIGKILL.
func Setup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// kill sends SIGKILL to the process group rooted at cmd's pid, then falls
// back to killing the pid directly in case the group kill did not reach it
// (e.g. the child exited before the group could be signalled).
func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid

	pgid, err := unix.Getpgid(pid)
	if err == nil {
		_ = unix.Kill(-pgid, syscall.SIGKILL)
	}
	return cmd.Process.Kill()
}
