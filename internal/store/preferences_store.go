package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"steamswitch/internal/logging"
	"steamswitch/internal/model"
	"steamswitch/internal/platform"
)

const (
	EnvSteamPath = "STEAMSWITCH_STEAM_PATH"
	EnvAPIKey    = "STEAMSWITCH_API_KEY"
)

// PreferencesStore keeps the application preferences in a YAML file.
// Environment overrides apply to Load results and are never written back.
type PreferencesStore struct {
	mu     sync.RWMutex
	path   string
	cached *model.Preferences
	getenv func(string) string

	watcherMu sync.Mutex
	watcher   *fsnotify.Watcher
}

func NewPreferencesStore() (*PreferencesStore, error) {
	if _, err := platform.EnsureConfigDir(); err != nil {
		return nil, err
	}
	path, err := platform.PreferencesPath()
	if err != nil {
		return nil, err
	}
	return NewPreferencesStoreAt(path), nil
}

func NewPreferencesStoreAt(path string) *PreferencesStore {
	return &PreferencesStore{path: path, getenv: os.Getenv}
}

func (s *PreferencesStore) Path() string {
	return s.path
}

// Load returns the stored preferences with environment overrides applied.
func (s *PreferencesStore) Load() (model.Preferences, error) {
	prefs, err := s.document()
	if err != nil {
		return model.Preferences{}, err
	}
	if v := strings.TrimSpace(s.getenv(EnvSteamPath)); v != "" {
		prefs.SteamPathOverride = v
	}
	if v := strings.TrimSpace(s.getenv(EnvAPIKey)); v != "" {
		prefs.SteamAPIKey = v
	}
	return prefs, nil
}

// Update applies fn to the stored preferences and saves them.
func (s *PreferencesStore) Update(fn func(*model.Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.documentLocked()
	if err != nil {
		return err
	}
	fn(&prefs)
	sanitize(&prefs)

	data, err := yaml.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}
	s.cached = &prefs
	return nil
}

// Reload drops the cached document and reads the file again.
func (s *PreferencesStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	_, err := s.documentLocked()
	return err
}

func (s *PreferencesStore) document() (model.Preferences, error) {
	s.mu.RLock()
	if s.cached != nil {
		prefs := *s.cached
		s.mu.RUnlock()
		return prefs, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentLocked()
}

func (s *PreferencesStore) documentLocked() (model.Preferences, error) {
	if s.cached != nil {
		return *s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		prefs := model.DefaultPreferences()
		s.cached = &prefs
		return prefs, nil
	}
	if err != nil {
		return model.Preferences{}, err
	}

	prefs := model.DefaultPreferences()
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	sanitize(&prefs)
	s.cached = &prefs
	return prefs, nil
}

func sanitize(p *model.Preferences) {
	p.SteamAPIKey = strings.TrimSpace(p.SteamAPIKey)
	p.SteamPathOverride = strings.TrimSpace(p.SteamPathOverride)
	if _, _, ok := p.WindowSize(); !ok {
		p.WindowWidth = nil
		p.WindowHeight = nil
	}
}

// Watch reloads the preferences whenever the file is written or replaced,
// calling onChange with the new values. It stops when ctx is done.
func (s *PreferencesStore) Watch(ctx context.Context, onChange func(model.Preferences)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	s.watcherMu.Lock()
	s.watcher = watcher
	s.watcherMu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.closeWatcher()
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		s.closeWatcher()
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	go func() {
		defer s.closeWatcher()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				time.Sleep(100 * time.Millisecond)
				if err := s.Reload(); err != nil {
					logging.ErrorLogger.Printf("reload preferences: %v", err)
					continue
				}
				if onChange != nil {
					if prefs, err := s.Load(); err == nil {
						onChange(prefs)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.ErrorLogger.Printf("preferences watcher: %v", err)
			}
		}
	}()

	return nil
}

func (s *PreferencesStore) StopWatch() {
	s.closeWatcher()
}

func (s *PreferencesStore) closeWatcher() {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}
