//go:build windows

package secrets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"

	"steamswitch/internal/platform"
)

// DPAPIStore encrypts each secret for the current Windows user.
type DPAPIStore struct {
	baseDir string
}

func NewDefaultStore() Store {
	dir, err := platform.ConfigDir()
	if err != nil {
		dir = "."
	}
	return &DPAPIStore{baseDir: filepath.Join(dir, "secrets")}
}

func (s *DPAPIStore) path(name string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	return filepath.Join(s.baseDir, encoded+".bin")
}

func (s *DPAPIStore) Put(name, value string) error {
	protected, err := dpapiProtect([]byte(value))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.baseDir, 0o700); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	return os.WriteFile(s.path(name), protected, 0o600)
}

func (s *DPAPIStore) Get(name string) (string, error) {
	protected, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	plain, err := dpapiUnprotect(protected)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *DPAPIStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func dpapiProtect(plain []byte) ([]byte, error) {
	in := bytesToBlob(plain)
	var out windows.DataBlob
	if err := windows.CryptProtectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out); err != nil {
		return nil, fmt.Errorf("dpapi protect: %w", err)
	}
	defer func() {
		_, _ = windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))
	}()
	return blobToBytes(out), nil
}

func dpapiUnprotect(protected []byte) ([]byte, error) {
	in := bytesToBlob(protected)
	var out windows.DataBlob
	if err := windows.CryptUnprotectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out); err != nil {
		return nil, fmt.Errorf("dpapi unprotect: %w", err)
	}
	defer func() {
		_, _ = windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))
	}()
	return blobToBytes(out), nil
}

func bytesToBlob(data []byte) windows.DataBlob {
	if len(data) == 0 {
		return windows.DataBlob{}
	}
	return windows.DataBlob{
		Size: uint32(len(data)),
		Data: &data[0],
	}
}

func blobToBytes(blob windows.DataBlob) []byte {
	if blob.Data == nil || blob.Size == 0 {
		return nil
	}
	size := int(blob.Size)
	src := unsafe.Slice(blob.Data, size)
	out := make([]byte, size)
	copy(out, src)
	return out
}
