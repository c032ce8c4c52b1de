//go:build !windows

package identity

import (
	"os"
	"path/filepath"
	"runtime"
)

func NewDefaultStore() Store {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if runtime.GOOS == "darwin" {
		install := filepath.Join(home, "Library", "Application Support", "Steam")
		return NewVDFStore(filepath.Join(install, "registry.vdf"), []string{install})
	}

	candidates := []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, "snap", "steam", "common", ".local", "share", "Steam"),
		filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"),
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "Steam"))
	}
	return NewVDFStore(filepath.Join(home, ".steam", "registry.vdf"), candidates)
}
