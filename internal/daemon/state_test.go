package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_TryBeginShortcut_DebouncesAndRearms(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := NewState(start)

	assert.True(t, s.TryBeginShortcut(start, 300*time.Millisecond))
	assert.False(t, s.TryBeginShortcut(start.Add(100*time.Millisecond), 300*time.Millisecond), "debounce window not elapsed")

	s.EndShortcut()
	assert.True(t, s.TryBeginShortcut(start.Add(400*time.Millisecond), 300*time.Millisecond))
}

func TestState_TryBeginShortcut_BlockedWhileProcessing(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := NewState(start)

	assert.True(t, s.TryBeginShortcut(start, 0))
	assert.False(t, s.TryBeginShortcut(start.Add(time.Hour), 0), "still processing until EndShortcut")
	s.EndShortcut()
	assert.True(t, s.TryBeginShortcut(start.Add(time.Hour), 0))
}

func TestState_CurrentModule_NoneSentinelClears(t *testing.T) {
	s := NewState(time.Now())
	s.SetCurrentModule("daily")
	assert.Equal(t, "daily", s.CurrentModule())

	s.SetCurrentModule("none")
	assert.Equal(t, "", s.CurrentModule())
}

func TestState_OverlayVisible(t *testing.T) {
	s := NewState(time.Now())
	assert.False(t, s.OverlayVisible())
	s.SetOverlayVisible(true)
	assert.True(t, s.OverlayVisible())
}

func TestState_SearchSession(t *testing.T) {
	s := NewState(time.Now())
	s.SetSearchSession("abc")
	assert.Equal(t, "abc", s.SearchSession())
	s.ClearSearchSession()
	assert.Equal(t, "", s.SearchSession())
}

func TestState_Stats_TracksCountersAndUptime(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := NewState(start)

	s.TryBeginShortcut(start, 0)
	s.IncrementSearches()
	s.IncrementSearches()
	s.SetMemoryUsageKB(12345)

	snapshot := s.Stats(start.Add(90 * time.Second))
	assert.Equal(t, int64(1), snapshot.ShortcutsTriggered)
	assert.Equal(t, int64(2), snapshot.SearchesPerformed)
	assert.Equal(t, int64(90), snapshot.UptimeSeconds)
	assert.Equal(t, int64(12345), snapshot.MemoryUsageKB)
}

func TestState_IdleSince(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s := NewState(start)
	s.TouchActivity(start)

	assert.Equal(t, 5*time.Minute, s.IdleSince(start.Add(5*time.Minute)))
}
