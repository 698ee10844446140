package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	s, err := New(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, Default(), s.Get())
}

func TestNew_LoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.UI.Theme = "dark"
	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	s, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Get().UI.Theme)
}

func TestNew_BacksUpCorruptFileAndResetsToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0644))

	s, err := New(path)
	require.NoError(t, err)

	assert.FileExists(t, path+".bak")
	assert.Equal(t, Default(), s.Get())
}

func TestStore_SetPersistsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	s, err := New(path)
	require.NoError(t, err)

	cfg := s.Get()
	cfg.Shortcuts.ToggleOverlay = "Alt+Space"
	require.NoError(t, s.Set(cfg))

	reloaded, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, "Alt+Space", reloaded.Get().Shortcuts.ToggleOverlay)

	// No leftover temp file after a successful save.
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_Mutate(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	updated, err := s.Mutate(func(c *Config) {
		c.UI.Width = 800
	})
	require.NoError(t, err)
	assert.Equal(t, 800, updated.UI.Width)
	assert.Equal(t, 800, s.Get().UI.Width)
}

func TestStore_ExportImport(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	cfg := s.Get()
	cfg.UI.Theme = "midnight"
	require.NoError(t, s.Set(cfg))

	exportPath := filepath.Join(dir, "exported.json")
	require.NoError(t, s.Export(exportPath))
	assert.FileExists(t, exportPath)

	s2, err := New(filepath.Join(dir, "config2.json"))
	require.NoError(t, err)
	require.NoError(t, s2.Import(exportPath))
	assert.Equal(t, "midnight", s2.Get().UI.Theme)
}

func TestStore_Reset(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	cfg := s.Get()
	cfg.UI.Theme = "midnight"
	require.NoError(t, s.Set(cfg))

	require.NoError(t, s.Reset())
	assert.Equal(t, Default(), s.Get())
}

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	cfg := s.Get()
	cfg.Modules["daily"] = ModuleConfig{Enabled: false}

	// Mutating the returned copy must not affect the store's own state.
	assert.True(t, s.Get().Modules["daily"].Enabled)
}

