//go:build windows

package process

import (
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

const showNormal = 1

func ClientProcessName() string {
	return "steam.exe"
}

// ClientExecutable is the client binary inside the install directory.
func ClientExecutable(installPath string) string {
	return filepath.Join(installPath, "steam.exe")
}

// SystemLauncher starts processes directly, or through the "runas" shell
// verb when elevation is requested.
type SystemLauncher struct{}

func (SystemLauncher) Launch(path string, args []string, elevated bool) error {
	if elevated {
		return shellRunAs(path, args)
	}
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func shellRunAs(path string, args []string) error {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = syscall.EscapeArg(arg)
	}

	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	params, err := windows.UTF16PtrFromString(strings.Join(quoted, " "))
	if err != nil {
		return err
	}
	dir, err := windows.UTF16PtrFromString(filepath.Dir(path))
	if err != nil {
		return err
	}
	return windows.ShellExecute(0, verb, file, params, dir, showNormal)
}
