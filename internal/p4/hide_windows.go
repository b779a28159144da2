//go:build windows

package p4

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// hideWindow stops p4.exe from flashing a console window when launched from a GUI parent.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
