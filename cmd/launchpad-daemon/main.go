// Command launchpad-daemon runs the headless daemon: bus broker, module
// registry, and global hotkey, per spec.md section 2.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/launchpad-go/launchpad/internal/config"
	"github.com/launchpad-go/launchpad/internal/daemon"
	"github.com/launchpad-go/launchpad/internal/modules/daily"
	"github.com/launchpad-go/launchpad/internal/registry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore()
	if err != nil {
		log.Fatalf("launchpad-daemon: open config: %v", err)
	}

	cfgSnapshot := store.Get()

	reg := registry.New()
	if err := registerConfigured(reg, daily.New(), cfgSnapshot); err != nil {
		log.Fatalf("launchpad-daemon: register daily module: %v", err)
	}

	cfg := daemon.DefaultConfig()
	cfg.HotkeyBinding = cfgSnapshot.Shortcuts.ToggleOverlay

	d := daemon.New(cfg, reg, store)
	if err := d.Start(ctx); err != nil {
		log.Fatalf("launchpad-daemon: start: %v", err)
	}
	log.Printf("[Daemon] started")

	<-ctx.Done()
	log.Printf("[Daemon] shutdown signal received")

	if err := d.Stop(); err != nil {
		log.Printf("[Daemon] shutdown error: %v", err)
	}
	log.Printf("[Daemon] shutdown complete")
}

func openStore() (*config.Store, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.New(path)
}

// registerConfigured reconciles a module's persisted config.ModuleConfig
// (enabled state and settings, written by `launchpad-ctl module <ID>
// --enable BOOL`) with registration, so a module the user disabled via the
// CLI is excluded from the running daemon's search pipeline rather than
// only from the config file on disk (spec.md section 2/4.5/6). A module
// with no entry yet in cfg.Modules keeps its own Info().Enabled default.
func registerConfigured(reg *registry.Registry, mod registry.Module, cfg config.Config) error {
	info := mod.Info()
	enabled := info.Enabled
	var settings map[string]string
	if mc, ok := cfg.Modules[info.ID]; ok {
		enabled = mc.Enabled
		settings = mc.Settings
	}
	return reg.RegisterConfigured(mod, enabled, settings)
}
