package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"steamswitch/internal/accounts"
	"steamswitch/internal/identity"
	"steamswitch/internal/library"
	"steamswitch/internal/logging"
	"steamswitch/internal/model"
	"steamswitch/internal/process"
	"steamswitch/internal/secrets"
	"steamswitch/internal/steamid"
	"steamswitch/internal/vdftext"
)

var (
	ErrInvalidUsername  = errors.New("invalid username")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrSameAccount      = errors.New("source and destination accounts are the same")
	ErrUserdataNotFound = errors.New("userdata folder not found")
	ErrPathResolve      = errors.New("failed to resolve path")
	ErrFolderOpen       = errors.New("failed to open folder")
	ErrPersonaPatch     = errors.New("failed to update persona state")
	ErrInvalidWindow    = errors.New("invalid window size")
)

const (
	maxUsernameLen = 64
	apiKeySecret   = "steam_api_key"
)

type preferencesStore interface {
	Load() (model.Preferences, error)
	Update(fn func(*model.Preferences)) error
}

type processController interface {
	IsRunning() bool
	Stop() error
	Start(path string, elevated bool, launchOptions string) error
}

type secretStore interface {
	Put(name, value string) error
	Get(name string) (string, error)
	Delete(name string) error
}

type webClient interface {
	FetchProfile(ctx context.Context, steamID string) (model.ProfileInfo, bool)
	FetchPlayerBans(ctx context.Context, apiKey string, steamIDs []string) ([]model.BanInfo, error)
}

// Manager runs every account operation against one Steam install. Operations
// that stop the client or write its files are serialized.
type Manager struct {
	mu         sync.Mutex
	prefs      preferencesStore
	identity   identity.Store
	process    processController
	web        webClient
	secrets    secretStore
	openFolder func(dir string) error
	executable func(installPath string) string
}

type Option func(*Manager)

func WithFolderOpener(open func(dir string) error) Option {
	return func(m *Manager) { m.openFolder = open }
}

// WithSecretStore keeps the Web API key in s instead of the preferences file.
func WithSecretStore(s secretStore) Option {
	return func(m *Manager) { m.secrets = s }
}

func WithExecutable(executable func(installPath string) string) Option {
	return func(m *Manager) { m.executable = executable }
}

func NewManager(prefs preferencesStore, identityStore identity.Store, proc processController, web webClient, opts ...Option) *Manager {
	m := &Manager{
		prefs:      prefs,
		identity:   identityStore,
		process:    proc,
		web:        web,
		openFolder: func(string) error { return errors.New("no folder opener configured") },
		executable: process.ClientExecutable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) ListAccounts(ctx context.Context) ([]model.Account, error) {
	dir, err := m.directory(ctx)
	if err != nil {
		return nil, err
	}
	return dir.List()
}

// Snapshot lists accounts and names the current one from a single read of
// the login history. The auto-login target wins when it is set.
func (m *Manager) Snapshot(ctx context.Context) (model.AccountSnapshot, error) {
	dir, err := m.directory(ctx)
	if err != nil {
		return model.AccountSnapshot{}, err
	}
	snap, err := dir.Snapshot()
	if err != nil {
		return model.AccountSnapshot{}, err
	}
	if name := m.autoLoginUser(ctx); name != "" {
		snap.CurrentAccountName = name
	}
	return snap, nil
}

// CurrentAccount is the auto-login target, falling back to the login
// history when no target is set.
func (m *Manager) CurrentAccount(ctx context.Context) (string, error) {
	if name := m.autoLoginUser(ctx); name != "" {
		return name, nil
	}
	dir, err := m.directory(ctx)
	if err != nil {
		return "", err
	}
	return dir.ResolveCurrentAccountName()
}

func (m *Manager) autoLoginUser(ctx context.Context) string {
	name, err := m.identity.AutoLoginUser()
	if err != nil {
		logging.Errorf(ctx, "read auto-login user: %v", err)
		return ""
	}
	return strings.TrimSpace(name)
}

// SwitchAccount makes req.TargetUsername the next account to log in and
// relaunches the client. The client is stopped before anything is written;
// if it will not stop, nothing is written. A failed write still relaunches.
func (m *Manager) SwitchAccount(ctx context.Context, req model.SwitchRequest) error {
	if err := ValidateUsername(req.TargetUsername); err != nil {
		return err
	}
	if req.Mode != "" {
		if req.Mode != model.PersonaOnline && req.Mode != model.PersonaInvisible {
			return fmt.Errorf("%w: %s", ErrInvalidMode, req.Mode)
		}
		if err := steamid.Validate(req.TargetSteamID64); err != nil {
			return err
		}
	}
	installPath, err := m.installPath(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.process.Stop(); err != nil {
		return err
	}

	logging.Infof(ctx, "setting auto-login user to %s", req.TargetUsername)
	writeErr := m.identity.SetAutoLoginUser(req.TargetUsername)

	var patchErr error
	if writeErr == nil && req.Mode != "" {
		patchErr = m.patchPersona(ctx, installPath, req.TargetSteamID64, req.Mode)
	}

	startErr := m.start(ctx, installPath, req.RunElevated, req.LaunchOptions)
	switch {
	case writeErr != nil:
		return writeErr
	case startErr != nil:
		return startErr
	default:
		return patchErr
	}
}

func (m *Manager) patchPersona(ctx context.Context, installPath, steamID string, mode model.PersonaMode) error {
	path, err := accounts.NewDirectory(installPath).LocalConfigPath(steamID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersonaPatch, err)
	}
	found, err := vdftext.PatchPersonaState(path, mode.StateDigit())
	if err != nil {
		logging.Errorf(ctx, "patch persona state: %v", err)
		return fmt.Errorf("%w: %v", ErrPersonaPatch, err)
	}
	if found {
		logging.Infof(ctx, "persona state for %s set to %s", steamID, mode)
	}
	return nil
}

// AddAccount clears the auto-login target so the client opens its login
// prompt on relaunch.
func (m *Manager) AddAccount(ctx context.Context, elevated bool, launchOptions string) error {
	installPath, err := m.installPath(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.process.Stop(); err != nil {
		return err
	}
	logging.Infof(ctx, "clearing auto-login user")
	clearErr := m.identity.ClearAutoLoginUser()
	startErr := m.start(ctx, installPath, elevated, launchOptions)
	if clearErr != nil {
		return clearErr
	}
	return startErr
}

// ForgetAccount drops steamID from the login history. A running client is
// stopped first, since it rewrites the file on exit, and relaunched after.
func (m *Manager) ForgetAccount(ctx context.Context, steamID string) error {
	if err := steamid.Validate(steamID); err != nil {
		return err
	}
	installPath, err := m.installPath(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wasRunning := m.process.IsRunning()
	if err := m.process.Stop(); err != nil {
		return err
	}

	removed, forgetErr := accounts.NewDirectory(installPath).Forget(steamID)
	if forgetErr == nil {
		logging.Infof(ctx, "forget %s: removed=%t", steamID, removed)
	}

	var startErr error
	if wasRunning {
		startErr = m.start(ctx, installPath, false, "")
	}
	if forgetErr != nil {
		return forgetErr
	}
	return startErr
}

func (m *Manager) OpenUserdata(ctx context.Context, steamID string) error {
	if err := steamid.Validate(steamID); err != nil {
		return err
	}
	dir, err := m.directory(ctx)
	if err != nil {
		return err
	}
	userdata, err := dir.UserdataDir(steamID)
	if err != nil {
		return err
	}
	if info, err := os.Stat(userdata); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrUserdataNotFound, userdata)
	}

	canonical, err := filepath.Abs(userdata)
	if err == nil {
		canonical, err = filepath.EvalSymlinks(canonical)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathResolve, err)
	}
	if err := m.openFolder(canonical); err != nil {
		return fmt.Errorf("%w: %v", ErrFolderOpen, err)
	}
	return nil
}

// CopyableGames lists the games fromSteamID has settings for.
func (m *Manager) CopyableGames(ctx context.Context, fromSteamID, toSteamID string) ([]model.CopyableGame, error) {
	if err := validatePair(fromSteamID, toSteamID); err != nil {
		return nil, err
	}
	dir, err := m.directory(ctx)
	if err != nil {
		return nil, err
	}
	userdata, err := dir.UserdataDir(fromSteamID)
	if err != nil {
		return nil, err
	}
	return library.ListCopyableGames(userdata, library.DiscoverLibraryRoots(dir.InstallPath()))
}

// CopyGameSettings overwrites toSteamID's settings for appID with a copy of
// fromSteamID's.
func (m *Manager) CopyGameSettings(ctx context.Context, fromSteamID, toSteamID, appID string) error {
	if err := validatePair(fromSteamID, toSteamID); err != nil {
		return err
	}
	if fromSteamID == toSteamID {
		return ErrSameAccount
	}
	dir, err := m.directory(ctx)
	if err != nil {
		return err
	}
	fromDir, err := dir.UserdataDir(fromSteamID)
	if err != nil {
		return err
	}
	toDir, err := dir.UserdataDir(toSteamID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logging.Infof(ctx, "copying settings for app %s from %s to %s", appID, fromSteamID, toSteamID)
	if err := library.CopyGameSettings(fromDir, toDir, appID); err != nil {
		logging.Errorf(ctx, "copy settings for app %s: %v", appID, err)
		return err
	}
	return nil
}

// ProfileInfo returns nil when the profile could not be fetched.
func (m *Manager) ProfileInfo(ctx context.Context, steamID string) (*model.ProfileInfo, error) {
	if err := steamid.Validate(steamID); err != nil {
		return nil, err
	}
	info, ok := m.web.FetchProfile(ctx, steamID)
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// PlayerBans validates and deduplicates steamIDs before the lookup. Without
// an API key it returns no results.
func (m *Manager) PlayerBans(ctx context.Context, steamIDs []string) ([]model.BanInfo, error) {
	seen := make(map[string]bool, len(steamIDs))
	unique := make([]string, 0, len(steamIDs))
	for _, id := range steamIDs {
		if err := steamid.Validate(id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	key, err := m.apiKey()
	if err != nil {
		return nil, err
	}
	if key == "" || len(unique) == 0 {
		return []model.BanInfo{}, nil
	}
	return m.web.FetchPlayerBans(ctx, key, unique)
}

func (m *Manager) FriendCode(ctx context.Context, steamID string) (string, error) {
	_ = ctx
	return steamid.FriendCode(steamID)
}

// SteamPath is the override when one is set, otherwise the installed path.
func (m *Manager) SteamPath(ctx context.Context) (string, error) {
	return m.installPath(ctx)
}

// SetSteamPath stores an install path override. A blank path clears it.
func (m *Manager) SetSteamPath(ctx context.Context, path string) error {
	_ = ctx
	trimmed := strings.TrimSpace(path)
	return m.prefs.Update(func(p *model.Preferences) {
		p.SteamPathOverride = trimmed
	})
}

func (m *Manager) APIKey(ctx context.Context) (string, error) {
	_ = ctx
	return m.apiKey()
}

// apiKey prefers a key from the preferences (environment or an older plain
// file) over the secret store.
func (m *Manager) apiKey() (string, error) {
	prefs, err := m.prefs.Load()
	if err != nil {
		return "", err
	}
	if key := strings.TrimSpace(prefs.SteamAPIKey); key != "" || m.secrets == nil {
		return key, nil
	}
	key, err := m.secrets.Get(apiKeySecret)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// SetAPIKey stores key. A blank key clears it.
func (m *Manager) SetAPIKey(ctx context.Context, key string) error {
	_ = ctx
	trimmed := strings.TrimSpace(key)
	if m.secrets != nil {
		var err error
		if trimmed == "" {
			err = m.secrets.Delete(apiKeySecret)
		} else {
			err = m.secrets.Put(apiKeySecret, trimmed)
		}
		if err != nil {
			return err
		}
		trimmed = ""
	}
	return m.prefs.Update(func(p *model.Preferences) {
		p.SteamAPIKey = trimmed
	})
}

// WindowSize returns the remembered window size, if any.
func (m *Manager) WindowSize(ctx context.Context) (width, height float64, ok bool, err error) {
	_ = ctx
	prefs, err := m.prefs.Load()
	if err != nil {
		return 0, 0, false, err
	}
	width, height, ok = prefs.WindowSize()
	return width, height, ok, nil
}

func (m *Manager) SetWindowSize(ctx context.Context, width, height float64) error {
	_ = ctx
	if !model.ValidWindowSize(width, height) {
		return fmt.Errorf("%w: %vx%v", ErrInvalidWindow, width, height)
	}
	return m.prefs.Update(func(p *model.Preferences) {
		p.WindowWidth = &width
		p.WindowHeight = &height
	})
}

func (m *Manager) installPath(ctx context.Context) (string, error) {
	_ = ctx
	prefs, err := m.prefs.Load()
	if err != nil {
		return "", err
	}
	return identity.ResolveInstallPath(m.identity, prefs.SteamPathOverride)
}

func (m *Manager) directory(ctx context.Context) (*accounts.Directory, error) {
	installPath, err := m.installPath(ctx)
	if err != nil {
		return nil, err
	}
	return accounts.NewDirectory(installPath), nil
}

func (m *Manager) start(ctx context.Context, installPath string, elevated bool, launchOptions string) error {
	if err := m.process.Start(m.executable(installPath), elevated, launchOptions); err != nil {
		logging.Errorf(ctx, "launch steam: %v", err)
		return err
	}
	return nil
}

// ValidateUsername accepts 1 to 64 ASCII letters, digits or underscores.
func ValidateUsername(name string) error {
	if name == "" || len(name) > maxUsernameLen {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidUsername, name)
		}
	}
	return nil
}

func validatePair(fromSteamID, toSteamID string) error {
	if err := steamid.Validate(fromSteamID); err != nil {
		return err
	}
	return steamid.Validate(toSteamID)
}
