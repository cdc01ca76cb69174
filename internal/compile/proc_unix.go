//go:build unix

package compile

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// isolate starts cmd in its own process group and kills the whole group on
// cancellation, so engines spawned by latexmk die with it.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
