// Package daemon implements the background process from spec.md section
// 4.2: it owns the bus broker, the module registry, the configuration
// store, and the global hotkey, and runs the Idle/ShortcutPending state
// machine that ties a hotkey press to an overlay appearing on screen.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/launchpad-go/launchpad/internal/bus"
	"github.com/launchpad-go/launchpad/internal/config"
	"github.com/launchpad-go/launchpad/internal/logging"
	"github.com/launchpad-go/launchpad/internal/registry"
)

// Config mirrors the teacher's DaemonConfig/DefaultDaemonConfig shape
// (internal/daemon/daemon.go), generalized to this bus/overlay pair
// instead of a unix-socket/process-manager pair.
type Config struct {
	// BusAddr is the TCP loopback address the broker listens on.
	BusAddr string

	// HotkeyBinding is the global shortcut string parsed by ParseHotkey,
	// e.g. "CmdOrCtrl+Space" (spec.md section 6).
	HotkeyBinding string

	// OverlayPath is the overlay binary to spawn on first trigger when no
	// client is connected. Resolved relative to the running executable's
	// directory if not absolute (spec.md section 4.2).
	OverlayPath string

	// OverlaySpawnWait is how long the daemon waits after spawning the
	// overlay process before broadcasting ShowOverlay (spec.md section 4.2
	// gives this as a fixed 2s wait).
	OverlaySpawnWait time.Duration

	// ShortcutReleaseWindow is how long shortcut_processing stays set after
	// a shortcut fires before the next one is accepted (spec.md section 4.2
	// gives this as a fixed 300ms window, distinct from the configurable
	// debounce_ms which governs the minimum gap between accepted presses).
	ShortcutReleaseWindow time.Duration

	// SessionCleanupInterval and SessionIdleTimeout govern the periodic
	// task that ends a stale search session (spec.md section 4.2).
	SessionCleanupInterval time.Duration
	SessionIdleTimeout     time.Duration

	// StatsInterval governs the periodic memory/uptime sampling task.
	StatsInterval time.Duration
}

// DefaultConfig returns spec.md section 6's defaults.
func DefaultConfig() Config {
	return Config{
		BusAddr:                bus.DefaultBrokerConfig().Addr,
		HotkeyBinding:          "CmdOrCtrl+Space",
		OverlayPath:            defaultOverlayPath(),
		OverlaySpawnWait:       2 * time.Second,
		ShortcutReleaseWindow:  300 * time.Millisecond,
		SessionCleanupInterval: 5 * time.Minute,
		SessionIdleTimeout:     5 * time.Minute,
		StatsInterval:          1 * time.Minute,
	}
}

// DebugLogPath is where Start redirects the standard logger so the
// daemon's output is captured even when it runs detached/auto-started.
const DebugLogPath = "/tmp/launchpad-daemon.log"

func defaultOverlayPath() string {
	name := "launchpad-overlay"
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// Daemon wires the bus broker, module registry, and config store together
// and runs the shortcut-driven overlay lifecycle.
type Daemon struct {
	config   Config
	broker   *bus.Broker
	registry *registry.Registry
	store    *config.Store
	state    *State
	logger   *logging.Logger

	hotkey *HotkeyCapture

	// overlaySpawner is overridable in tests so onShortcutFired doesn't
	// actually fork a process.
	overlaySpawner func() error

	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon. reg and store must already be populated/opened;
// the Daemon does not own their lifecycle beyond its own Start/Stop.
func New(cfg Config, reg *registry.Registry, store *config.Store) *Daemon {
	d := &Daemon{
		config:   cfg,
		registry: reg,
		store:    store,
		logger:   logging.New("Daemon"),
		now:      time.Now,
	}
	d.state = NewState(d.now())
	d.overlaySpawner = d.spawnOverlayProcess
	return d
}

// Start binds the bus broker, registers the global hotkey, and launches
// the background tasks. It returns once the broker is accepting
// connections; the hotkey loop and periodic tasks run in goroutines until
// Stop is called or ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	// Capture daemon output to a file even when the process runs detached
	// (spec.md section 2: the daemon is headless), matching the teacher's
	// setupDebugLogging/DebugLogPath (internal/daemon/daemon.go).
	logging.EnableDebugFileLogging(DebugLogPath)

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.broker = bus.New(bus.BrokerConfig{Addr: d.config.BusAddr})
	d.broker.Handler = d.handleMessage
	if err := d.broker.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("daemon: start broker: %w", err)
	}
	d.logger.Printf("bus listening on %s", d.broker.Addr())

	if d.config.HotkeyBinding != "" {
		hk, err := RegisterHotkey(d.config.HotkeyBinding)
		if err != nil {
			// HotkeyRegistrationFailed is fatal at daemon startup and
			// logged at error (spec.md section 7).
			d.logger.Errorf("register hotkey %q: %v", d.config.HotkeyBinding, err)
			cancel()
			return fmt.Errorf("daemon: %w", err)
		}
		d.hotkey = hk
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			hk.Run(runCtx, d.onShortcutFired)
		}()
	}

	d.wg.Add(2)
	go d.sessionCleanupLoop(runCtx)
	go d.statsLoop(runCtx)

	return nil
}

// Stop unregisters the hotkey, stops the broker, and waits for background
// tasks to exit.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if d.hotkey != nil {
		if err := d.hotkey.Unregister(); err != nil {
			d.logger.Warnf("unregister hotkey: %v", err)
		}
	}
	if d.broker != nil {
		if err := d.broker.Stop(); err != nil {
			d.logger.Warnf("stop broker: %v", err)
		}
	}
	d.wg.Wait()
	return nil
}

// State exposes the daemon's runtime state for status reporting.
func (d *Daemon) State() *State { return d.state }

// onShortcutFired implements spec.md section 4.2's debounce and overlay
// spawn-on-first-trigger sequence:
//  1. drop the event if shortcut_processing is set or less than debounce_ms
//     has elapsed since the last accepted press;
//  2. otherwise broadcast ToggleOverlay to every connected client;
//  3. if no overlay client is connected, spawn one and, after a fixed
//     wait, broadcast ShowOverlay so the freshly-started overlay has time
//     to connect and subscribe;
//  4. clear shortcut_processing after a fixed release window.
func (d *Daemon) onShortcutFired() {
	now := d.now()
	debounce := time.Duration(d.store.Get().App.DebounceMS) * time.Millisecond
	if !d.state.TryBeginShortcut(now, debounce) {
		return
	}
	defer time.AfterFunc(d.config.ShortcutReleaseWindow, d.state.EndShortcut)

	d.broker.Broadcast(bus.ToggleOverlay(), "")

	if d.broker.ClientCount() == 0 {
		go d.spawnOverlayThenShow()
	}
}

func (d *Daemon) spawnOverlayThenShow() {
	if err := d.overlaySpawner(); err != nil {
		d.logger.Warnf("spawn overlay: %v", err)
		return
	}
	time.Sleep(d.config.OverlaySpawnWait)
	d.broker.Broadcast(bus.ShowOverlay(nil), "")
	d.state.SetOverlayVisible(true)
}

func (d *Daemon) spawnOverlayProcess() error {
	path := d.config.OverlayPath
	if !filepath.IsAbs(path) {
		if exe, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exe), path)
		}
	}
	cmd := exec.Command(path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}

// handleMessage is the bus.Broker.Handler: it dispatches every inbound
// message by Kind, per spec.md section 3's variant list.
func (d *Daemon) handleMessage(clientID string, msg bus.Message) {
	switch msg.Kind {
	case bus.KindPing:
		d.broker.SendTo(clientID, bus.Pong())

	case bus.KindSearchQuery:
		d.handleSearchQuery(clientID, msg.Payload.(bus.SearchQueryPayload))

	case bus.KindUpdateModule:
		d.handleUpdateModule(msg.Payload.(bus.UpdateModulePayload))

	case bus.KindExecuteAction:
		d.handleExecuteAction(clientID, msg.Payload.(bus.ExecuteActionPayload))

	case bus.KindGetCurrentMod:
		d.broker.SendTo(clientID, bus.NewModuleChanged(currentModuleOrNone(d.state.CurrentModule())))

	case bus.KindHideOverlay:
		d.state.SetOverlayVisible(false)

	case bus.KindShowOverlay, bus.KindToggleOverlay:
		d.state.SetOverlayVisible(true)

	case bus.KindStopDaemon:
		go d.Stop()

	default:
		d.logger.Warnf("client %s: unhandled message kind %s", clientID, msg.Kind)
	}
}

func currentModuleOrNone(id string) string {
	if id == "" {
		return noneModuleID
	}
	return id
}

func (d *Daemon) handleSearchQuery(clientID string, query bus.SearchQueryPayload) {
	d.state.TouchActivity(d.now())
	d.state.SetSearchSession(query.SessionID)

	if err := query.Validate(); err != nil {
		d.logger.Warnf("client %s: invalid search query: %v", clientID, err)
		return
	}

	timeout := time.Duration(query.TimeoutMS) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results := d.registry.Search(ctx, query)
	d.state.IncrementSearches()
	d.broker.SendTo(clientID, bus.NewSearchResults(query.SessionID, results))
}

// handleUpdateModule implements the module activation protocol (spec.md
// section 4.2): the sentinel id "none" clears the current module;
// otherwise the id must name a registered module, or the request is
// dropped (ModuleUnavailable, spec.md section 7) with no broadcast. When
// the request is accepted, every connected client is told the new current
// module.
func (d *Daemon) handleUpdateModule(payload bus.UpdateModulePayload) {
	if payload.ModuleID != noneModuleID {
		if _, ok := d.registry.Get(payload.ModuleID); !ok {
			d.logger.Warnf("update module: unknown module %q", payload.ModuleID)
			return
		}
	}
	d.state.SetCurrentModule(payload.ModuleID)
	d.state.TouchActivity(d.now())
	d.broker.Broadcast(bus.NewModuleChanged(currentModuleOrNone(d.state.CurrentModule())), "")
}

// handleExecuteAction dispatches a result's action through the registry's
// trial-by-module-order search (spec.md section 4.3) and reports the
// outcome back to the requesting client only.
func (d *Daemon) handleExecuteAction(clientID string, payload bus.ExecuteActionPayload) {
	d.state.TouchActivity(d.now())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := d.registry.ExecuteAction(ctx, payload.ResultID, payload.ActionType)
	if err != nil {
		d.logger.Warnf("execute action %s (%s): %v", payload.ResultID, payload.ActionType, err)
	}
	d.broker.SendTo(clientID, bus.NewActionResult(payload.ResultID, payload.ActionType, err == nil, err))
}

// sessionCleanupLoop ends a stale search session once the daemon has been
// idle for SessionIdleTimeout (spec.md section 4.2's periodic task).
func (d *Daemon) sessionCleanupLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.config.SessionCleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.state.IdleSince(d.now()) > d.config.SessionIdleTimeout {
				d.state.ClearSearchSession()
			}
		}
	}
}

// statsLoop samples process memory every StatsInterval (spec.md section
// 4.2) and broadcasts a DaemonStatus so connected clients can display it.
func (d *Daemon) statsLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.config.StatsInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.state.SetMemoryUsageKB(sampleMemoryUsageKB())
			stats := d.state.Stats(d.now())
			pid := os.Getpid()
			d.broker.Broadcast(bus.NewDaemonStatus(true, &pid, &stats), "")
		}
	}
}
