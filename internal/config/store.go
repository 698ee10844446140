package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AppName is the subdirectory created under the OS user-config directory,
// e.g. ~/.config/launchpad on Linux.
const AppName = "launchpad"

// Store owns the in-memory Config and its on-disk JSON file. Mutators take
// the same write lock the config file's atomic rename relies on, so there
// is no in-process reader-writer contention beyond that lock (spec.md
// section 5).
type Store struct {
	mu     sync.RWMutex
	path   string
	config Config
}

// DefaultPath resolves <user-config-dir>/<AppName>/config.json, the layout
// spec.md section 6 specifies.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, AppName, "config.json"), nil
}

// New locates the config path (or uses path if non-empty), creates the
// parent directory if missing, and loads the file if present. On
// deserialization failure it backs up the bad file to "<path>.bak" and
// installs defaults, per spec.md section 4.5.
func New(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, wrapNewErr(err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("config: create config directory: %w", err)
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.config = Default()
		if saveErr := s.saveLocked(); saveErr != nil {
			return nil, fmt.Errorf("config: write default config: %w", saveErr)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		if backupErr := backupCorrupt(path, data); backupErr != nil {
			return nil, fmt.Errorf("config: back up corrupt config: %w", backupErr)
		}
		s.config = Default()
		if saveErr := s.saveLocked(); saveErr != nil {
			return nil, fmt.Errorf("config: write default config after corruption: %w", saveErr)
		}
		return s, nil
	}

	s.config = cfg
	return s, nil
}

func wrapNewErr(err error) error {
	return fmt.Errorf("config: %w", err)
}

func backupCorrupt(path string, data []byte) error {
	return os.WriteFile(path+".bak", data, 0644)
}

// Get returns a copy of the current configuration. Callers mutate the copy
// and pass it to Set to persist changes; this keeps the returned value an
// immutable snapshot as spec.md section 4.5 requires ("accessors return
// immutable references").
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(s.config)
}

// Set replaces the in-memory configuration and atomically persists it.
func (s *Store) Set(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cloneConfig(cfg)
	return s.saveLocked()
}

// Mutate applies fn to a copy of the current configuration and persists the
// result, returning the updated Config.
func (s *Store) Mutate(fn func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := cloneConfig(s.config)
	fn(&cfg)
	s.config = cfg

	if err := s.saveLocked(); err != nil {
		return Config{}, err
	}
	return cloneConfig(s.config), nil
}

// saveLocked writes s.config to s.path atomically: a temp file in the same
// directory, then an os.Rename, matching the teacher's StateManager
// (internal/daemon/state.go) save discipline. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename temp file: %w", err)
	}
	return nil
}

// Export writes the current configuration to an arbitrary path, for the
// CLI's `export` command.
func (s *Store) Export(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.config, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("config: marshal for export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write export file: %w", err)
	}
	return nil
}

// Import reads a configuration from an arbitrary path and persists it as
// the current configuration, for the CLI's `import` command.
func (s *Store) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read import file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: parse import file: %w", err)
	}

	return s.Set(cfg)
}

// Reset installs the default configuration and persists it, for the CLI's
// `reset` command.
func (s *Store) Reset() error {
	return s.Set(Default())
}

// Path returns the store's on-disk location.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func cloneConfig(c Config) Config {
	modules := make(map[string]ModuleConfig, len(c.Modules))
	for id, mc := range c.Modules {
		var settings map[string]string
		if mc.Settings != nil {
			settings = make(map[string]string, len(mc.Settings))
			for k, v := range mc.Settings {
				settings[k] = v
			}
		}
		modules[id] = ModuleConfig{Enabled: mc.Enabled, Settings: settings}
	}
	return Config{
		App:       c.App,
		Modules:   modules,
		Shortcuts: c.Shortcuts,
		UI:        c.UI,
	}
}

// lastModified reports the on-disk file's modification time.
func (s *Store) lastModified() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
