package daemon

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.design/x/hotkey"
)

// ParseHotkey parses a spec.md section 6 binding string, e.g.
// "CmdOrCtrl+Space", into golang.design/x/hotkey modifiers and a key.
// "CmdOrCtrl" aliases the OS meta key on macOS and the Control key on
// Linux/Windows.
func ParseHotkey(binding string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(binding, "+")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("daemon: invalid hotkey binding %q", binding)
	}

	mods := make([]hotkey.Modifier, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		mod, err := parseModifier(p)
		if err != nil {
			return nil, 0, err
		}
		mods = append(mods, mod)
	}

	key, err := parseKey(parts[len(parts)-1])
	if err != nil {
		return nil, 0, err
	}
	return mods, key, nil
}

func parseModifier(name string) (hotkey.Modifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cmdorctrl":
		if runtime.GOOS == "darwin" {
			return hotkey.ModCmd, nil
		}
		return hotkey.ModCtrl, nil
	case "cmd", "command", "meta", "super":
		return hotkey.ModCmd, nil
	case "ctrl", "control":
		return hotkey.ModCtrl, nil
	case "shift":
		return hotkey.ModShift, nil
	case "alt", "option":
		return hotkey.ModOption, nil
	default:
		return 0, fmt.Errorf("daemon: unknown hotkey modifier %q", name)
	}
}

var keyNames = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn,
	"enter":  hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
	"0":      hotkey.Key0,
	"1":      hotkey.Key1,
	"2":      hotkey.Key2,
	"3":      hotkey.Key3,
	"4":      hotkey.Key4,
	"5":      hotkey.Key5,
	"6":      hotkey.Key6,
	"7":      hotkey.Key7,
	"8":      hotkey.Key8,
	"9":      hotkey.Key9,
	"a":      hotkey.KeyA,
	"b":      hotkey.KeyB,
	"c":      hotkey.KeyC,
	"d":      hotkey.KeyD,
	"e":      hotkey.KeyE,
	"f":      hotkey.KeyF,
	"g":      hotkey.KeyG,
	"h":      hotkey.KeyH,
	"i":      hotkey.KeyI,
	"j":      hotkey.KeyJ,
	"k":      hotkey.KeyK,
	"l":      hotkey.KeyL,
	"m":      hotkey.KeyM,
	"n":      hotkey.KeyN,
	"o":      hotkey.KeyO,
	"p":      hotkey.KeyP,
	"q":      hotkey.KeyQ,
	"r":      hotkey.KeyR,
	"s":      hotkey.KeyS,
	"t":      hotkey.KeyT,
	"u":      hotkey.KeyU,
	"v":      hotkey.KeyV,
	"w":      hotkey.KeyW,
	"x":      hotkey.KeyX,
	"y":      hotkey.KeyY,
	"z":      hotkey.KeyZ,
}

func parseKey(name string) (hotkey.Key, error) {
	key, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("daemon: unknown hotkey key %q", name)
	}
	return key, nil
}

// HotkeyCapture wraps the OS hotkey registration so the daemon's event
// loop only has to range over a plain channel of fire events, per spec.md
// section 6's "invalid bindings fail at registration".
type HotkeyCapture struct {
	hk *hotkey.Hotkey
}

// RegisterHotkey parses binding and registers it with the OS. A failure
// here is spec.md section 7's HotkeyRegistrationFailed: fatal at daemon
// startup.
func RegisterHotkey(binding string) (*HotkeyCapture, error) {
	mods, key, err := ParseHotkey(binding)
	if err != nil {
		return nil, err
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("daemon: register hotkey %q: %w", binding, err)
	}
	return &HotkeyCapture{hk: hk}, nil
}

// Fired returns a channel that receives an event each time the OS reports
// the hotkey was pressed.
func (c *HotkeyCapture) Fired() <-chan hotkey.Event {
	return c.hk.Keydown()
}

// Unregister releases the OS-level binding.
func (c *HotkeyCapture) Unregister() error {
	return c.hk.Unregister()
}

// Run ranges over Fired() until ctx is done, invoking onFire for each
// event. It is meant to run in its own goroutine from Daemon.Start.
func (c *HotkeyCapture) Run(ctx context.Context, onFire func()) {
	events := c.Fired()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			onFire()
		}
	}
}
