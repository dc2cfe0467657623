//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func configure(cmd *exec.Cmd, c Command) {
	attrs := &syscall.SysProcAttr{CmdLine: c.CmdLine}
	if c.Visible {
		attrs.CreationFlags = windows.CREATE_NEW_CONSOLE
	} else {
		attrs.CreationFlags = windows.CREATE_NO_WINDOW
		attrs.HideWindow = true
	}
	cmd.SysProcAttr = attrs
}

// killTree terminates the process tree with taskkill, falling back to
// TerminateProcess on the child alone.
func killTree(p *os.Process) error {
	if p == nil {
		return os.ErrProcessDone
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid))
	kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	if err := kill.Run(); err == nil {
		return nil
	}
	return p.Kill()
}
