package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"steamswitch/internal/accounts"
	"steamswitch/internal/identity"
	"steamswitch/internal/library"
	"steamswitch/internal/model"
	"steamswitch/internal/process"
	"steamswitch/internal/secrets"
	"steamswitch/internal/steamid"
)

const (
	alphaID = "76561198000000001"
	bravoID = "76561198000000002"
)

const loginUsersFixture = `"users"
{
	"76561198000000001"
	{
		"AccountName"		"alpha"
		"PersonaName"		"Alpha"
		"MostRecent"		"0"
		"Timestamp"		"100"
	}
	"76561198000000002"
	{
		"AccountName"		"bravo"
		"PersonaName"		"Bravo"
		"MostRecent"		"1"
		"Timestamp"		"50"
	}
}
`

const localConfigFixture = "\"UserLocalConfigStore\"\n{\n\t\"friends\"\n\t{\n\t\t\"PersonaState\"\t\t\"1\"\n\t}\n}\n"

type recorder struct {
	events []string
}

func (r *recorder) add(event string) {
	r.events = append(r.events, event)
}

type fakePrefs struct {
	prefs   model.Preferences
	loadErr error
	saves   int
}

func (f *fakePrefs) Load() (model.Preferences, error) {
	return f.prefs, f.loadErr
}

func (f *fakePrefs) Update(fn func(*model.Preferences)) error {
	fn(&f.prefs)
	f.saves++
	return nil
}

type fakeSecrets struct {
	values map[string]string
}

func (f *fakeSecrets) Put(name, value string) error {
	f.values[name] = value
	return nil
}

func (f *fakeSecrets) Get(name string) (string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return v, nil
}

func (f *fakeSecrets) Delete(name string) error {
	delete(f.values, name)
	return nil
}

type fakeIdentity struct {
	rec        *recorder
	install    string
	autoLogin  string
	readErr    error
	writeErr   error
	installErr error
}

func (f *fakeIdentity) InstallPath() (string, error) {
	return f.install, f.installErr
}

func (f *fakeIdentity) AutoLoginUser() (string, error) {
	return f.autoLogin, f.readErr
}

func (f *fakeIdentity) SetAutoLoginUser(name string) error {
	f.rec.add("set:" + name)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.autoLogin = name
	return nil
}

func (f *fakeIdentity) ClearAutoLoginUser() error {
	f.rec.add("clear")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.autoLogin = ""
	return nil
}

type fakeProcess struct {
	rec      *recorder
	running  bool
	stopErr  error
	startErr error
	starts   []startCall
}

type startCall struct {
	path     string
	elevated bool
	options  string
}

func (f *fakeProcess) IsRunning() bool {
	return f.running
}

func (f *fakeProcess) Stop() error {
	if f.stopErr != nil {
		f.rec.add("stop")
		return f.stopErr
	}
	if !f.running {
		return nil
	}
	f.rec.add("stop")
	f.running = false
	return nil
}

func (f *fakeProcess) Start(path string, elevated bool, launchOptions string) error {
	f.rec.add("start")
	f.starts = append(f.starts, startCall{path: path, elevated: elevated, options: launchOptions})
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

type fakeWeb struct {
	profile   model.ProfileInfo
	profileOK bool
	banKey    string
	banIDs    []string
	bans      []model.BanInfo
}

func (f *fakeWeb) FetchProfile(ctx context.Context, steamID string) (model.ProfileInfo, bool) {
	return f.profile, f.profileOK
}

func (f *fakeWeb) FetchPlayerBans(ctx context.Context, apiKey string, steamIDs []string) ([]model.BanInfo, error) {
	f.banKey = apiKey
	f.banIDs = steamIDs
	return f.bans, nil
}

type harness struct {
	install  string
	rec      *recorder
	prefs    *fakePrefs
	identity *fakeIdentity
	process  *fakeProcess
	web      *fakeWeb
	opened   []string
	mgr      *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	install := t.TempDir()
	writeFile(t, filepath.Join(install, "config", "loginusers.vdf"), loginUsersFixture)

	rec := &recorder{}
	h := &harness{
		install:  install,
		rec:      rec,
		prefs:    &fakePrefs{},
		identity: &fakeIdentity{rec: rec, install: install},
		process:  &fakeProcess{rec: rec, running: true},
		web:      &fakeWeb{},
	}
	h.mgr = NewManager(h.prefs, h.identity, h.process, h.web,
		WithExecutable(func(p string) string { return filepath.Join(p, "steam.exe") }),
		WithFolderOpener(func(dir string) error {
			h.opened = append(h.opened, dir)
			return nil
		}),
	)
	return h
}

func (h *harness) userdata(t *testing.T, steamID string) string {
	t.Helper()
	dir, err := accounts.NewDirectory(h.install).UserdataDir(steamID)
	if err != nil {
		t.Fatalf("userdata dir: %v", err)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSwitchAccountOrdering(t *testing.T) {
	h := newHarness(t)

	err := h.mgr.SwitchAccount(context.Background(), model.SwitchRequest{
		TargetUsername: "alpha",
		RunElevated:    true,
		LaunchOptions:  "-silent -tcp",
	})
	if err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	if want := []string{"stop", "set:alpha", "start"}; !reflect.DeepEqual(h.rec.events, want) {
		t.Fatalf("expected %v, got %v", want, h.rec.events)
	}
	want := startCall{path: filepath.Join(h.install, "steam.exe"), elevated: true, options: "-silent -tcp"}
	if len(h.process.starts) != 1 || h.process.starts[0] != want {
		t.Fatalf("unexpected start: %#v", h.process.starts)
	}
}

func TestSwitchAccountStopTimeoutWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.process.stopErr = process.ErrStopTimeout
	localConfig := filepath.Join(h.userdata(t, alphaID), "config", "localconfig.vdf")
	writeFile(t, localConfig, localConfigFixture)

	err := h.mgr.SwitchAccount(context.Background(), model.SwitchRequest{
		TargetUsername:  "alpha",
		TargetSteamID64: alphaID,
		Mode:            model.PersonaInvisible,
	})
	if !errors.Is(err, process.ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	if want := []string{"stop"}; !reflect.DeepEqual(h.rec.events, want) {
		t.Fatalf("expected only a stop attempt, got %v", h.rec.events)
	}
	data, _ := os.ReadFile(localConfig)
	if string(data) != localConfigFixture {
		t.Fatal("localconfig must not change after a stop timeout")
	}
}

func TestSwitchAccountWriteFailureStillRelaunches(t *testing.T) {
	h := newHarness(t)
	h.identity.writeErr = identity.ErrStoreWrite

	err := h.mgr.SwitchAccount(context.Background(), model.SwitchRequest{TargetUsername: "alpha"})
	if !errors.Is(err, identity.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
	if want := []string{"stop", "set:alpha", "start"}; !reflect.DeepEqual(h.rec.events, want) {
		t.Fatalf("expected relaunch after failed write, got %v", h.rec.events)
	}
}

func TestSwitchAccountWithModePatchesPersonaState(t *testing.T) {
	h := newHarness(t)
	localConfig := filepath.Join(h.userdata(t, alphaID), "config", "localconfig.vdf")
	writeFile(t, localConfig, localConfigFixture)

	err := h.mgr.SwitchAccount(context.Background(), model.SwitchRequest{
		TargetUsername:  "alpha",
		TargetSteamID64: alphaID,
		Mode:            model.PersonaInvisible,
	})
	if err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	data, err := os.ReadFile(localConfig)
	if err != nil {
		t.Fatalf("read localconfig: %v", err)
	}
	if !strings.Contains(string(data), "\"PersonaState\"\t\t\"7\"") {
		t.Fatalf("persona state not patched: %q", data)
	}
}

func TestSwitchAccountWithModeMissingLocalConfigIsNoop(t *testing.T) {
	h := newHarness(t)
	err := h.mgr.SwitchAccount(context.Background(), model.SwitchRequest{
		TargetUsername:  "bravo",
		TargetSteamID64: bravoID,
		Mode:            model.PersonaOnline,
	})
	if err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	if want := []string{"stop", "set:bravo", "start"}; !reflect.DeepEqual(h.rec.events, want) {
		t.Fatalf("unexpected events: %v", h.rec.events)
	}
}

func TestSwitchAccountValidation(t *testing.T) {
	tests := []struct {
		name string
		req  model.SwitchRequest
		want error
	}{
		{name: "empty username", req: model.SwitchRequest{}, want: ErrInvalidUsername},
		{name: "username with space", req: model.SwitchRequest{TargetUsername: "a b"}, want: ErrInvalidUsername},
		{name: "username too long", req: model.SwitchRequest{TargetUsername: strings.Repeat("a", 65)}, want: ErrInvalidUsername},
		{name: "bad mode", req: model.SwitchRequest{TargetUsername: "alpha", TargetSteamID64: alphaID, Mode: "away"}, want: ErrInvalidMode},
		{name: "mode without id", req: model.SwitchRequest{TargetUsername: "alpha", Mode: model.PersonaOnline}, want: steamid.ErrInvalidSteamID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if err := h.mgr.SwitchAccount(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(h.rec.events) != 0 {
				t.Fatalf("invalid input must not touch the client: %v", h.rec.events)
			}
		})
	}

	if err := ValidateUsername(strings.Repeat("a", 64)); err != nil {
		t.Fatalf("64 chars should be accepted: %v", err)
	}
}

func TestAddAccountClearsAutoLogin(t *testing.T) {
	h := newHarness(t)
	h.identity.autoLogin = "alpha"

	if err := h.mgr.AddAccount(context.Background(), false, "-console"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if want := []string{"stop", "clear", "start"}; !reflect.DeepEqual(h.rec.events, want) {
		t.Fatalf("unexpected events: %v", h.rec.events)
	}
	if h.identity.autoLogin != "" || h.process.starts[0].options != "-console" {
		t.Fatalf("unexpected state: autoLogin=%q starts=%#v", h.identity.autoLogin, h.process.starts)
	}
}

func TestCurrentAccountPrefersAutoLogin(t *testing.T) {
	h := newHarness(t)
	h.identity.autoLogin = "alpha"

	got, err := h.mgr.CurrentAccount(context.Background())
	if err != nil || got != "alpha" {
		t.Fatalf("expected alpha, got %q err=%v", got, err)
	}

	h.identity.autoLogin = ""
	h.identity.readErr = identity.ErrStoreOpen
	got, err = h.mgr.CurrentAccount(context.Background())
	if err != nil || got != "bravo" {
		t.Fatalf("expected fallback to most recent bravo, got %q err=%v", got, err)
	}

	snap, err := h.mgr.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CurrentAccountName != "bravo" || len(snap.Accounts) != 2 || snap.Accounts[0].AccountName != "alpha" {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestInstallPathOverrideBypassesIdentityStore(t *testing.T) {
	h := newHarness(t)
	h.identity.installErr = identity.ErrStoreOpen
	h.identity.install = ""

	if _, err := h.mgr.ListAccounts(context.Background()); !errors.Is(err, identity.ErrStoreOpen) {
		t.Fatalf("expected store error without override, got %v", err)
	}

	if err := h.mgr.SetSteamPath(context.Background(), "  "+h.install+"  "); err != nil {
		t.Fatalf("SetSteamPath: %v", err)
	}
	got, err := h.mgr.SteamPath(context.Background())
	if err != nil || got != h.install {
		t.Fatalf("expected override %q, got %q err=%v", h.install, got, err)
	}
	list, err := h.mgr.ListAccounts(context.Background())
	if err != nil || len(list) != 2 {
		t.Fatalf("expected accounts through override, got %#v err=%v", list, err)
	}
}

func TestForgetAccountRestartsRunningClient(t *testing.T) {
	h := newHarness(t)

	if err := h.mgr.ForgetAccount(context.Background(), alphaID); err != nil {
		t.Fatalf("ForgetAccount: %v", err)
	}
	if want := []string{"stop", "start"}; !reflect.DeepEqual(h.rec.events, want) {
		t.Fatalf("unexpected events: %v", h.rec.events)
	}
	list, err := h.mgr.ListAccounts(context.Background())
	if err != nil || len(list) != 1 || list[0].SteamID64 != bravoID {
		t.Fatalf("unexpected accounts after forget: %#v err=%v", list, err)
	}
	if h.identity.autoLogin != "" {
		t.Fatal("forget must not touch the identity store")
	}
}

func TestForgetAccountClientStopped(t *testing.T) {
	h := newHarness(t)
	h.process.running = false

	if err := h.mgr.ForgetAccount(context.Background(), "76561198000000099"); err != nil {
		t.Fatalf("ForgetAccount: %v", err)
	}
	if len(h.rec.events) != 0 {
		t.Fatalf("stopped client should stay stopped: %v", h.rec.events)
	}
}

func TestForgetAccountStopTimeout(t *testing.T) {
	h := newHarness(t)
	h.process.stopErr = process.ErrStopTimeout
	before, _ := os.ReadFile(filepath.Join(h.install, "config", "loginusers.vdf"))

	if err := h.mgr.ForgetAccount(context.Background(), alphaID); !errors.Is(err, process.ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(h.install, "config", "loginusers.vdf"))
	if string(before) != string(after) {
		t.Fatal("login history must not change after a stop timeout")
	}
}

func TestForgetAccountUnreadableProcessTableWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.process.running = false
	h.process.stopErr = process.ErrProcessList
	before, _ := os.ReadFile(filepath.Join(h.install, "config", "loginusers.vdf"))

	if err := h.mgr.ForgetAccount(context.Background(), alphaID); !errors.Is(err, process.ErrProcessList) {
		t.Fatalf("expected ErrProcessList, got %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(h.install, "config", "loginusers.vdf"))
	if string(before) != string(after) {
		t.Fatal("login history must not change when the client state is unknown")
	}
	if len(h.process.starts) != 0 {
		t.Fatalf("expected no relaunch, got %v", h.process.starts)
	}
}

func TestOpenUserdata(t *testing.T) {
	h := newHarness(t)

	if err := h.mgr.OpenUserdata(context.Background(), alphaID); !errors.Is(err, ErrUserdataNotFound) {
		t.Fatalf("expected ErrUserdataNotFound, got %v", err)
	}

	dir := h.userdata(t, alphaID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.OpenUserdata(context.Background(), alphaID); err != nil {
		t.Fatalf("OpenUserdata: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if len(h.opened) != 1 || h.opened[0] != want {
		t.Fatalf("expected %q opened, got %v", want, h.opened)
	}

	h.mgr.openFolder = func(string) error { return errors.New("no file browser") }
	if err := h.mgr.OpenUserdata(context.Background(), alphaID); !errors.Is(err, ErrFolderOpen) {
		t.Fatalf("expected ErrFolderOpen, got %v", err)
	}
}

func TestCopyGameSettings(t *testing.T) {
	h := newHarness(t)
	from := h.userdata(t, alphaID)
	to := h.userdata(t, bravoID)
	writeFile(t, filepath.Join(from, "730", "local", "cfg", "autoexec.cfg"), "bind x")
	writeFile(t, filepath.Join(h.install, "steamapps", "appmanifest_730.acf"), "\"AppState\"\n{\n\t\"appid\"\t\t\"730\"\n\t\"name\"\t\t\"Counter-Strike 2\"\n}\n")

	games, err := h.mgr.CopyableGames(context.Background(), alphaID, bravoID)
	if err != nil {
		t.Fatalf("CopyableGames: %v", err)
	}
	if len(games) != 1 || games[0] != (model.CopyableGame{AppID: "730", DisplayName: "Counter-Strike 2"}) {
		t.Fatalf("unexpected games: %#v", games)
	}

	if err := h.mgr.CopyGameSettings(context.Background(), alphaID, bravoID, "730"); err != nil {
		t.Fatalf("CopyGameSettings: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(to, "730", "local", "cfg", "autoexec.cfg"))
	if err != nil || string(data) != "bind x" {
		t.Fatalf("unexpected copy: %q err=%v", data, err)
	}

	if err := h.mgr.CopyGameSettings(context.Background(), alphaID, bravoID, "440"); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := h.mgr.CopyGameSettings(context.Background(), alphaID, alphaID, "730"); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if err := h.mgr.CopyGameSettings(context.Background(), "1", bravoID, "730"); !errors.Is(err, steamid.ErrInvalidSteamID) {
		t.Fatalf("expected ErrInvalidSteamID, got %v", err)
	}
}

func TestPlayerBansDedupesAndNeedsKey(t *testing.T) {
	h := newHarness(t)
	h.web.bans = []model.BanInfo{{SteamID: alphaID}}

	bans, err := h.mgr.PlayerBans(context.Background(), []string{alphaID, alphaID})
	if err != nil || len(bans) != 0 || h.web.banIDs != nil {
		t.Fatalf("expected no lookup without key, got %#v err=%v", bans, err)
	}

	if err := h.mgr.SetAPIKey(context.Background(), " key-1 "); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	bans, err = h.mgr.PlayerBans(context.Background(), []string{alphaID, bravoID, alphaID})
	if err != nil {
		t.Fatalf("PlayerBans: %v", err)
	}
	if h.web.banKey != "key-1" || !reflect.DeepEqual(h.web.banIDs, []string{alphaID, bravoID}) || len(bans) != 1 {
		t.Fatalf("unexpected lookup: key=%q ids=%v bans=%#v", h.web.banKey, h.web.banIDs, bans)
	}

	if _, err := h.mgr.PlayerBans(context.Background(), []string{"bad"}); !errors.Is(err, steamid.ErrInvalidSteamID) {
		t.Fatalf("expected ErrInvalidSteamID, got %v", err)
	}
}

func TestAPIKeyUsesSecretStore(t *testing.T) {
	h := newHarness(t)
	store := &fakeSecrets{values: map[string]string{}}
	h.prefs.prefs.SteamAPIKey = "old-plain"
	mgr := NewManager(h.prefs, h.identity, h.process, h.web, WithSecretStore(store))

	if err := mgr.SetAPIKey(context.Background(), " key-2 "); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if store.values[apiKeySecret] != "key-2" {
		t.Fatalf("expected key in secret store, got %v", store.values)
	}
	if h.prefs.prefs.SteamAPIKey != "" {
		t.Fatalf("expected plain key to be cleared, got %q", h.prefs.prefs.SteamAPIKey)
	}
	key, err := mgr.APIKey(context.Background())
	if err != nil || key != "key-2" {
		t.Fatalf("APIKey = %q, %v", key, err)
	}

	if _, err := mgr.PlayerBans(context.Background(), []string{alphaID}); err != nil {
		t.Fatalf("PlayerBans: %v", err)
	}
	if h.web.banKey != "key-2" {
		t.Fatalf("expected ban lookup with stored key, got %q", h.web.banKey)
	}

	if err := mgr.SetAPIKey(context.Background(), "  "); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := store.values[apiKeySecret]; ok {
		t.Fatal("expected key to be deleted")
	}
	key, err = mgr.APIKey(context.Background())
	if err != nil || key != "" {
		t.Fatalf("APIKey after clear = %q, %v", key, err)
	}
}

func TestProfileInfoNoData(t *testing.T) {
	h := newHarness(t)
	info, err := h.mgr.ProfileInfo(context.Background(), alphaID)
	if err != nil || info != nil {
		t.Fatalf("expected no data, got %#v err=%v", info, err)
	}

	h.web.profileOK = true
	h.web.profile = model.ProfileInfo{DisplayName: "Alpha"}
	info, err = h.mgr.ProfileInfo(context.Background(), alphaID)
	if err != nil || info == nil || info.DisplayName != "Alpha" {
		t.Fatalf("unexpected profile: %#v err=%v", info, err)
	}
}

func TestWindowSize(t *testing.T) {
	h := newHarness(t)
	if err := h.mgr.SetWindowSize(context.Background(), 0, 600); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if h.prefs.saves != 0 {
		t.Fatal("invalid size must not be saved")
	}
	if err := h.mgr.SetWindowSize(context.Background(), 1024, 768); err != nil {
		t.Fatalf("SetWindowSize: %v", err)
	}
	w, hgt, ok, err := h.mgr.WindowSize(context.Background())
	if err != nil || !ok || w != 1024 || hgt != 768 {
		t.Fatalf("unexpected size: %v x %v ok=%v err=%v", w, hgt, ok, err)
	}
}
