//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// isolate starts the child in its own process group.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree kills the child and everything it spawned.
func killTree(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}
