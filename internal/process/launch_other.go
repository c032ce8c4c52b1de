//go:build !windows

package process

import (
	"os/exec"
	"path/filepath"
	"runtime"
)

const macClientExecutable = "/Applications/Steam.app/Contents/MacOS/steam_osx"

func ClientProcessName() string {
	if runtime.GOOS == "darwin" {
		return "steam_osx"
	}
	return "steam"
}

// ClientExecutable is the script or binary that starts the client.
func ClientExecutable(installPath string) string {
	if runtime.GOOS == "darwin" {
		return macClientExecutable
	}
	return filepath.Join(installPath, "steam.sh")
}

// SystemLauncher starts processes directly, or through pkexec when
// elevation is requested.
type SystemLauncher struct{}

func (SystemLauncher) Launch(path string, args []string, elevated bool) error {
	cmd := launchCommand(path, args, elevated)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func launchCommand(path string, args []string, elevated bool) *exec.Cmd {
	if elevated {
		return exec.Command("pkexec", append([]string{path}, args...)...)
	}
	return exec.Command(path, args...)
}
