//go:build unix

package stream

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd as the leader of a new process group so the
// whole tree (ffmpeg helpers included) can be signalled at once.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGKILL to the group led by pid. A group that is
// already gone counts as success.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	// Setpgid makes the leader's pid the pgid; the negative pid targets the group.
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
