//go:build !windows

package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"steamswitch/internal/platform"
)

// FileStore keeps each secret in its own owner-only file.
type FileStore struct {
	baseDir string
}

func NewDefaultStore() Store {
	dir, err := platform.ConfigDir()
	if err != nil {
		dir = "."
	}
	return NewFileStore(filepath.Join(dir, "secrets"))
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.baseDir, name+".secret")
}

func (s *FileStore) Put(name, value string) error {
	if err := os.MkdirAll(s.baseDir, 0o700); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	return os.WriteFile(s.path(name), []byte(value), 0o600)
}

func (s *FileStore) Get(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *FileStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
