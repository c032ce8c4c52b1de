// Package accounts reads the client's login history and maps accounts to
// their per-user data folders.
package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"steamswitch/internal/model"
	"steamswitch/internal/steamid"
	"steamswitch/internal/vdftext"
)

var (
	ErrFileRead  = errors.New("failed to read login history")
	ErrFileWrite = errors.New("failed to write login history")
)

// Directory is rooted at one Steam install.
type Directory struct {
	installPath string
}

func NewDirectory(installPath string) *Directory {
	return &Directory{installPath: installPath}
}

func (d *Directory) InstallPath() string {
	return d.installPath
}

func (d *Directory) LoginUsersPath() string {
	return filepath.Join(d.installPath, "config", "loginusers.vdf")
}

// List returns every remembered account sorted by account name.
func (d *Directory) List() ([]model.Account, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Accounts, nil
}

func (d *Directory) ResolveCurrentAccountName() (string, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return "", err
	}
	return snap.CurrentAccountName, nil
}

// Snapshot parses the login history once and returns both the sorted
// account list and the current account name.
func (d *Directory) Snapshot() (model.AccountSnapshot, error) {
	data, err := os.ReadFile(d.LoginUsersPath())
	if err != nil {
		return model.AccountSnapshot{}, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	inFileOrder := ParseAccounts(string(data))
	current := CurrentAccountName(inFileOrder)

	sorted := make([]model.Account, len(inFileOrder))
	copy(sorted, inFileOrder)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AccountName < sorted[j].AccountName
	})
	return model.AccountSnapshot{Accounts: sorted, CurrentAccountName: current}, nil
}

// ParseAccounts converts login history text into accounts in file order.
func ParseAccounts(text string) []model.Account {
	entries := vdftext.ParseLoginEntriesOrdered(text)
	out := make([]model.Account, 0, len(entries))
	for _, e := range entries {
		acct := model.Account{
			SteamID64:   e.ID,
			AccountName: e.Fields["accountname"],
			PersonaName: e.Fields["personaname"],
			MostRecent:  e.Fields["mostrecent"] == "1",
		}
		if ts, err := strconv.ParseUint(strings.TrimSpace(e.Fields["timestamp"]), 10, 64); err == nil {
			acct.LastLoginAt = &ts
		}
		out = append(out, acct)
	}
	return out
}

// CurrentAccountName picks the account flagged most recent, else the named
// account with the latest login, else "". accounts must be in file order;
// equal timestamps keep the earlier entry.
func CurrentAccountName(accounts []model.Account) string {
	for _, a := range accounts {
		if a.MostRecent && a.AccountName != "" {
			return a.AccountName
		}
	}

	var (
		best   string
		bestTS uint64
		found  bool
	)
	for _, a := range accounts {
		if a.AccountName == "" || a.LastLoginAt == nil {
			continue
		}
		if !found || *a.LastLoginAt > bestTS {
			best, bestTS, found = a.AccountName, *a.LastLoginAt, true
		}
	}
	return best
}

// Forget removes the login history entry for steamID. Removing an entry
// that is not there succeeds without rewriting the file.
func (d *Directory) Forget(steamID string) (bool, error) {
	if err := steamid.Validate(steamID); err != nil {
		return false, err
	}

	path := d.LoginUsersPath()
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	updated, removed := vdftext.RemoveAccountEntry(string(data), steamID)
	if !removed {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	return true, nil
}

// UserdataDir is the per-user data folder for steamID, whether or not it
// exists.
func (d *Directory) UserdataDir(steamID string) (string, error) {
	accountID, err := steamid.ToAccountID(steamID)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.installPath, "userdata", strconv.FormatUint(uint64(accountID), 10)), nil
}

func (d *Directory) LocalConfigPath(steamID string) (string, error) {
	dir, err := d.UserdataDir(steamID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config", "localconfig.vdf"), nil
}
