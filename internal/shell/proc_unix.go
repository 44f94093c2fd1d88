//go:build unix

package shell

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// killGroup puts the shell in its own process group so cancellation reaches
// every process the line started, not only the shell.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
