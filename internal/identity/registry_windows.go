//go:build windows

package identity

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const steamKeyPath = `Software\Valve\Steam`

// RegistryStore keeps the settings under HKCU\Software\Valve\Steam.
type RegistryStore struct{}

func NewDefaultStore() Store {
	return RegistryStore{}
}

func (RegistryStore) InstallPath() (string, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, steamKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreOpen, err)
	}
	defer k.Close()

	steamPath, _, err := k.GetStringValue("SteamPath")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	return strings.ReplaceAll(steamPath, "/", `\`), nil
}

func (RegistryStore) AutoLoginUser() (string, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, steamKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreOpen, err)
	}
	defer k.Close()

	name, _, err := k.GetStringValue("AutoLoginUser")
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	return name, nil
}

func (RegistryStore) SetAutoLoginUser(name string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, steamKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	defer k.Close()

	if err := k.SetStringValue("AutoLoginUser", name); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := k.SetDWordValue("RememberPassword", 1); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func (RegistryStore) ClearAutoLoginUser() error {
	k, err := registry.OpenKey(registry.CURRENT_USER, steamKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	defer k.Close()

	if err := k.SetStringValue("AutoLoginUser", ""); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}
