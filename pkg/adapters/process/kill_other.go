//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func isolate(cmd *exec.Cmd) {}

func killTree(p *os.Process) error {
	return p.Kill()
}
