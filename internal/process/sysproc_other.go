//go:build !unix && !windows

package process

import (
	"os"
	"os/exec"
)

func configure(*exec.Cmd, Command) {}

func killTree(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}
	return p.Kill()
}
