package daemon

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.design/x/hotkey"
)

func TestParseHotkey_CmdOrCtrlIsOSAware(t *testing.T) {
	mods, key, err := ParseHotkey("CmdOrCtrl+Space")
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, hotkey.KeySpace, key)
	if runtime.GOOS == "darwin" {
		assert.Equal(t, hotkey.ModCmd, mods[0])
	} else {
		assert.Equal(t, hotkey.ModCtrl, mods[0])
	}
}

func TestParseHotkey_MultipleModifiers(t *testing.T) {
	mods, key, err := ParseHotkey("Ctrl+Shift+T")
	require.NoError(t, err)
	assert.ElementsMatch(t, []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, mods)
	assert.Equal(t, hotkey.KeyT, key)
}

func TestParseHotkey_NoModifierIsInvalid(t *testing.T) {
	_, _, err := ParseHotkey("Space")
	assert.Error(t, err)
}

func TestParseHotkey_UnknownModifier(t *testing.T) {
	_, _, err := ParseHotkey("Fn+Space")
	assert.Error(t, err)
}

func TestParseHotkey_UnknownKey(t *testing.T) {
	_, _, err := ParseHotkey("Ctrl+F99")
	assert.Error(t, err)
}
