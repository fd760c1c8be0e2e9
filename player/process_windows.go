//go:build windows

package player

import (
	"os/exec"
	"syscall"
)

func detachedAttr() *syscall.SysProcAttr {
	return nil
}

func kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
