// Package identity reads and writes the per-user Steam settings that decide
// where the client is installed and which account it logs into next.
package identity

import (
	"errors"
	"strings"
)

var (
	ErrStoreOpen  = errors.New("steam settings store is not accessible")
	ErrStoreRead  = errors.New("failed to read steam settings")
	ErrStoreWrite = errors.New("failed to write steam settings")
)

// Store is the OS-level settings store the Steam client consults at launch.
type Store interface {
	InstallPath() (string, error)
	// AutoLoginUser returns "" when no target is set.
	AutoLoginUser() (string, error)
	// SetAutoLoginUser also turns on the remember-credentials flag.
	SetAutoLoginUser(name string) error
	ClearAutoLoginUser() error
}

// ResolveInstallPath returns override when it is set and otherwise asks the
// store.
func ResolveInstallPath(s Store, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}
	return s.InstallPath()
}
