package daemon

import (
	"sync"
	"time"

	"github.com/launchpad-go/launchpad/internal/bus"
)

// noneModuleID is the sentinel id that clears the current module
// (spec.md section 4.2's module activation protocol).
const noneModuleID = "none"

// State is DaemonState from spec.md section 3: process-wide, exclusively
// owned by the daemon, guarded by a single-writer discipline. Access is a
// sync.RWMutex rather than a channel-actor; search dispatch writes here
// too (activity stamp, session id, searches counter).
type State struct {
	mu sync.RWMutex

	currentModule      string
	shortcutProcessing bool
	lastShortcutTime   time.Time
	overlayVisible     bool
	searchSessionID    string
	lastActivity       time.Time
	startedAt          time.Time

	stats bus.Stats
}

// NewState creates a State with its clock started at now.
func NewState(now time.Time) *State {
	return &State{
		startedAt:    now,
		lastActivity: now,
	}
}

// TryBeginShortcut implements spec.md section 4.2 step 1: if the debounce
// window hasn't elapsed, or a shortcut is already being processed, the
// event is dropped (returns false). Otherwise it claims processing,
// stamps the time, and increments ShortcutsTriggered.
func (s *State) TryBeginShortcut(now time.Time, debounce time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shortcutProcessing || now.Sub(s.lastShortcutTime) < debounce {
		return false
	}
	s.shortcutProcessing = true
	s.lastShortcutTime = now
	s.stats.ShortcutsTriggered++
	return true
}

// EndShortcut clears shortcut_processing after the release window
// (spec.md section 4.2 step 3).
func (s *State) EndShortcut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortcutProcessing = false
}

// SetCurrentModule writes current_module; the sentinel id "none" clears it.
func (s *State) SetCurrentModule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == noneModuleID {
		s.currentModule = ""
		return
	}
	s.currentModule = id
}

// CurrentModule returns the current module id, or "" if none is set.
func (s *State) CurrentModule() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModule
}

// SetOverlayVisible updates the daemon's best-effort view of overlay
// visibility; the overlay itself is the source of truth.
func (s *State) SetOverlayVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayVisible = visible
}

func (s *State) OverlayVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlayVisible
}

// SetSearchSession records the active search session id.
func (s *State) SetSearchSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchSessionID = id
}

// ClearSearchSession ends the current search session (spec.md section 4.2's
// periodic cleanup task).
func (s *State) ClearSearchSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchSessionID = ""
}

func (s *State) SearchSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchSessionID
}

// TouchActivity stamps last_activity_ms to now, measured from startedAt.
func (s *State) TouchActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
	s.stats.LastActivityMS = now.Sub(s.startedAt).Milliseconds()
}

// IdleSince reports how long it has been since the last touched activity.
func (s *State) IdleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastActivity)
}

// IncrementSearches bumps searches_performed.
func (s *State) IncrementSearches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.SearchesPerformed++
}

// SetMemoryUsageKB records the most recent resident memory sample.
func (s *State) SetMemoryUsageKB(kb int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.MemoryUsageKB = kb
}

// Stats returns a snapshot of the daemon's statistics, with uptime and
// last-activity computed against now.
func (s *State) Stats(now time.Time) bus.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.stats
	snapshot.UptimeSeconds = int64(now.Sub(s.startedAt).Seconds())
	return snapshot
}
