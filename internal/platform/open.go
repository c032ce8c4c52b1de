package platform

import (
	"os/exec"
	"runtime"
)

// OpenFolder shows dir in the desktop file browser without waiting for it.
func OpenFolder(dir string) error {
	cmd := folderCommand(runtime.GOOS, dir)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func folderCommand(goos, dir string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("explorer", dir)
	case "darwin":
		return exec.Command("open", dir)
	default:
		return exec.Command("xdg-open", dir)
	}
}
