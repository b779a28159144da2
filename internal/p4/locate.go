package p4

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// DownloadURL points at the Helix command-line client installer.
const DownloadURL = "https://cdist2.perforce.com/perforce/r24.2/bin.ntx64/helix-p4-x64.exe"

// windowsInstallPaths are checked when p4 is not on PATH.
var windowsInstallPaths = []string{
	`C:\Program Files\Perforce\p4.exe`,
	`C:\Program Files (x86)\Perforce\p4.exe`,
}

// Locate resolves the p4 executable. An explicit path is checked as is;
// a bare name is looked up on PATH and then in the default install folders.
func Locate(binary string) (string, error) {
	if binary == "" {
		binary = "p4"
	}

	if filepath.IsAbs(binary) {
		if _, err := os.Stat(binary); err != nil {
			return "", &ProcessError{Args: []string{"-V"}, Err: exec.ErrNotFound}
		}
		return binary, nil
	}

	if path, err := exec.LookPath(binary); err == nil {
		return path, nil
	}

	if runtime.GOOS == "windows" {
		for _, candidate := range windowsInstallPaths {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	return "", &ProcessError{Args: []string{"-V"}, Err: exec.ErrNotFound}
}
