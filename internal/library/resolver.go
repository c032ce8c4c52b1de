// Package library finds the install's game libraries, the games an account
// has local data for, and copies per-game settings between accounts.
package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"steamswitch/internal/model"
	"steamswitch/internal/vdftext"
)

var (
	ErrInvalidAppID = errors.New("invalid app id")
	ErrNotFound     = errors.New("game settings not found for source account")
)

// App ids that hold client and screenshot data rather than games.
var reservedAppIDs = map[string]bool{
	"7":   true,
	"760": true,
}

// DiscoverLibraryRoots returns installPath plus every library path listed in
// steamapps/libraryfolders.vdf, cleaned, deduplicated and sorted.
func DiscoverLibraryRoots(installPath string) []string {
	seen := map[string]bool{filepath.Clean(installPath): true}

	data, err := os.ReadFile(filepath.Join(installPath, "steamapps", "libraryfolders.vdf"))
	if err == nil {
		for _, raw := range vdftext.ExtractValues(string(data), "path") {
			if p := vdftext.UnescapePath(raw); strings.TrimSpace(p) != "" {
				seen[filepath.Clean(p)] = true
			}
		}
	}

	roots := make([]string, 0, len(seen))
	for p := range seen {
		roots = append(roots, p)
	}
	sort.Strings(roots)
	return roots
}

// OwnedAppIDs lists the numeric directory names under userdataDir, sorted.
// A missing userdataDir yields no ids.
func OwnedAppIDs(userdataDir string) ([]string, error) {
	entries, err := os.ReadDir(userdataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", userdataDir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && isDigits(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// ResolveAppNames maps app ids to display names from the app manifests in
// every root. The first root to name an id wins.
func ResolveAppNames(roots []string) map[string]string {
	names := map[string]string{}
	for _, root := range roots {
		dir := filepath.Join(root, "steamapps")
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, "appmanifest_") || !strings.HasSuffix(name, ".acf") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			appID, ok := vdftext.ExtractValue(string(data), "appid")
			if !ok || appID == "" {
				continue
			}
			display, ok := vdftext.ExtractValue(string(data), "name")
			if !ok || display == "" {
				continue
			}
			if _, exists := names[appID]; !exists {
				names[appID] = display
			}
		}
	}
	return names
}

// ListCopyableGames returns the named, non-reserved games that have data
// under userdataDir, ordered by name without regard to case.
func ListCopyableGames(userdataDir string, roots []string) ([]model.CopyableGame, error) {
	owned, err := OwnedAppIDs(userdataDir)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return []model.CopyableGame{}, nil
	}

	names := ResolveAppNames(roots)
	games := make([]model.CopyableGame, 0, len(owned))
	for _, id := range owned {
		if reservedAppIDs[id] {
			continue
		}
		if name, ok := names[id]; ok {
			games = append(games, model.CopyableGame{AppID: id, DisplayName: name})
		}
	}
	sort.Slice(games, func(i, j int) bool {
		a, b := strings.ToLower(games[i].DisplayName), strings.ToLower(games[j].DisplayName)
		if a != b {
			return a < b
		}
		return games[i].AppID < games[j].AppID
	})
	return games, nil
}

// CopyGameSettings replaces toUserdata/appID with a copy of
// fromUserdata/appID. The copy is not atomic: an I/O error part way through
// leaves the destination incomplete.
func CopyGameSettings(fromUserdata, toUserdata, appID string) error {
	if !isDigits(appID) {
		return fmt.Errorf("%w: %q", ErrInvalidAppID, appID)
	}

	src := filepath.Join(fromUserdata, appID)
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, src)
	}

	dst := filepath.Join(toUserdata, appID)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove %s: %w", dst, err)
	}
	return copyDir(src, dst)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
