//go:build unix

package evaluator

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the engine in its own process group and kills the
// whole group on cancel, so workers it spawned release the output pipes.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
