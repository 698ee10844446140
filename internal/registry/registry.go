package registry

import (
	"fmt"
	"sync"
)

// Registry holds registered modules keyed by id plus the ordered subset
// that is currently enabled. Reads (search, health check) are the common
// case; writes are registration and configuration changes, so access is
// guarded by a reader-writer lock (spec.md section 5).
type Registry struct {
	mu sync.RWMutex

	modules map[string]Module
	// enabled preserves insertion order; it is the tie-break for equal
	// scores in the search pipeline (spec.md section 4.3).
	enabled []string

	defaultModule string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register inserts module under its own id and, if its ModuleInfo reports
// Enabled, appends it to the enabled ordered list. It is RegisterConfigured
// with no config-supplied override: enabled state comes from the module's
// own Info(), and Initialize is called with no settings.
func (r *Registry) Register(module Module) error {
	return r.RegisterConfigured(module, module.Info().Enabled, nil)
}

// RegisterConfigured is Register's config-aware counterpart, used by
// daemon startup to reconcile a module against its persisted
// config.ModuleConfig (spec.md section 4.5/6): enabled overrides
// module.Info().Enabled for initial pipeline membership, and settings is
// delivered to the module's Initialize call. Initialize is invoked exactly
// once here, per spec.md section 4.3 ("invoked once at registration").
func (r *Registry) RegisterConfigured(module Module, enabled bool, settings map[string]string) error {
	info := module.Info()
	if info.ID == "" {
		return fmt.Errorf("registry: module info must have a non-empty id")
	}

	if err := module.Initialize(settings); err != nil {
		return fmt.Errorf("registry: initialize module %s: %w", info.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[info.ID]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, info.ID)
	}

	r.modules[info.ID] = module
	if enabled {
		r.enabled = append(r.enabled, info.ID)
	}
	return nil
}

// Unregister removes module id, calling Cleanup() on it first. It is
// symmetric with Register.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	module, ok := r.modules[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	delete(r.modules, id)
	r.removeFromEnabledLocked(id)
	if r.defaultModule == id {
		r.defaultModule = ""
	}
	r.mu.Unlock()

	return module.Cleanup()
}

func (r *Registry) removeFromEnabledLocked(id string) {
	for i, enabledID := range r.enabled {
		if enabledID == id {
			r.enabled = append(r.enabled[:i], r.enabled[i+1:]...)
			return
		}
	}
}

// SetDefault marks id as the default module. Setting an id that is not a
// member of the registry fails with ErrModuleNotFound (spec.md section
// 4.3's ModuleNotFound).
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	r.defaultModule = id
	return nil
}

// Default returns the current default module id, or "" if none is set.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModule
}

// Get returns the module registered under id.
func (r *Registry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// List returns ModuleInfo for every registered module: enabled modules
// first, in insertion order, then disabled modules in no defined order.
func (r *Registry) List() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ModuleInfo, 0, len(r.modules))
	seen := make(map[string]bool, len(r.enabled))
	for _, id := range r.enabled {
		infos = append(infos, r.modules[id].Info())
		seen[id] = true
	}
	for id, m := range r.modules {
		if !seen[id] {
			infos = append(infos, m.Info())
		}
	}
	return infos
}

// enabledModules returns a stable-ordered snapshot of (id, Module) for
// every currently enabled module, used by the search pipeline so the
// module_insertion_index tie-break is well defined.
func (r *Registry) enabledModules() []struct {
	ID     string
	Module Module
} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]struct {
		ID     string
		Module Module
	}, 0, len(r.enabled))
	for _, id := range r.enabled {
		out = append(out, struct {
			ID     string
			Module Module
		}{ID: id, Module: r.modules[id]})
	}
	return out
}

// orderedModuleIDs returns the registry-order id list used by action
// dispatch trial (spec.md section 4.3).
func (r *Registry) orderedModuleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.enabled))
	copy(out, r.enabled)
	return out
}
