package platform

import (
	"path/filepath"
	"testing"
)

func TestPreferencesPathUnderConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if filepath.Base(dir) != appDirName {
		t.Fatalf("unexpected config dir: %s", dir)
	}
	path, err := PreferencesPath()
	if err != nil {
		t.Fatalf("PreferencesPath: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Base(path) != "preferences.yaml" {
		t.Fatalf("unexpected preferences path: %s", path)
	}
}

func TestFolderCommand(t *testing.T) {
	tests := map[string]string{
		"windows": "explorer",
		"darwin":  "open",
		"linux":   "xdg-open",
	}
	for goos, want := range tests {
		cmd := folderCommand(goos, "/tmp/x")
		if filepath.Base(cmd.Args[0]) != want || cmd.Args[1] != "/tmp/x" {
			t.Fatalf("%s: unexpected command %v", goos, cmd.Args)
		}
	}
}
