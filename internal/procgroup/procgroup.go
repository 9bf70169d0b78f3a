// Package procgroup starts spawned transfer processes in their own process
// group and kills that whole group on cancellation, so a killed rsync/rclone
// invocation cannot leave orphaned children behind.
package procgroup

import "os/exec"

// Kill terminates cmd and everything in its process group. It is safe to
// call on a cmd that has already exited.
func Kill(cmd *exec.Cmd) error {
	return kill(cmd)
}
