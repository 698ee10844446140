// Package config implements the launcher's persisted user configuration:
// a single JSON file under the OS-standard user-config directory, loaded
// with create-default-on-missing and backup-on-corrupt semantics, and saved
// atomically via temp-file-then-rename (spec.md section 4.5).
package config

// AppConfig holds the daemon-wide tunables from spec.md's DaemonState.config
// (debounce, auto-hide, max_results, default search timeout).
type AppConfig struct {
	DebounceMS       int  `json:"debounce_ms"`
	AutoHide         bool `json:"auto_hide"`
	MaxResults       int  `json:"max_results"`
	DefaultTimeoutMS int  `json:"default_timeout_ms"`
}

// ModuleConfig is one module's persisted enable state and free-form
// settings, keyed by module id in Config.Modules.
type ModuleConfig struct {
	Enabled  bool              `json:"enabled"`
	Settings map[string]string `json:"settings,omitempty"`
}

// ShortcutsConfig holds the configured global hotkey binding (spec.md
// section 6's "CmdOrCtrl+Space"-style syntax).
type ShortcutsConfig struct {
	ToggleOverlay string `json:"toggle_overlay"`
}

// UIConfig holds overlay presentation preferences.
type UIConfig struct {
	Theme  string `json:"theme"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Config is the persisted schema, R5Config in spec.md section 3:
// {app, modules: map<module_id, ModuleConfig>, shortcuts, ui}.
type Config struct {
	App       AppConfig               `json:"app"`
	Modules   map[string]ModuleConfig `json:"modules"`
	Shortcuts ShortcutsConfig         `json:"shortcuts"`
	UI        UIConfig                `json:"ui"`
}

// Default returns the configuration installed when no config file exists
// yet, or when the existing one is corrupt (spec.md section 4.5).
func Default() Config {
	return Config{
		App: AppConfig{
			DebounceMS:       300,
			AutoHide:         true,
			MaxResults:       20,
			DefaultTimeoutMS: 3000,
		},
		Modules: map[string]ModuleConfig{
			"daily": {Enabled: true},
		},
		Shortcuts: ShortcutsConfig{
			ToggleOverlay: "CmdOrCtrl+Space",
		},
		UI: UIConfig{
			Theme:  "system",
			Width:  640,
			Height: 480,
		},
	}
}
