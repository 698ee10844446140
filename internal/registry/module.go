// Package registry holds the set of search providers ("modules") the daemon
// dispatches queries to, and the pipeline that merges, ranks, and bounds
// their results (SPEC_FULL.md section 3).
package registry

import (
	"context"
	"errors"

	"github.com/launchpad-go/launchpad/internal/bus"
)

// Sentinel errors surfaced by the registry, matching spec.md section 7's
// ModuleUnavailable / ActionUnhandled error kinds.
var (
	ErrModuleNotFound  = errors.New("registry: module not found")
	ErrModuleExists    = errors.New("registry: module already registered")
	ErrActionUnhandled = errors.New("registry: no module handled the action")
)

// ModuleInfo describes a module's identity and static metadata (spec.md
// section 3). ID is the registry's primary key.
type ModuleInfo struct {
	ID          string
	Name        string
	Description string
	Version     string
	Author      string
	Enabled     bool
	Keywords    []string
}

// Module is the provider contract from spec.md section 4.3. The registry
// depends only on this capability set, never on a shared base
// implementation, so built-in and third-party modules are interchangeable.
type Module interface {
	Info() ModuleInfo

	// Initialize is invoked once at registration; it must be idempotent
	// under retries.
	Initialize(settings map[string]string) error

	// Search is pure with respect to module state beyond its own cache:
	// no externally visible side effects.
	Search(ctx context.Context, query bus.SearchQueryPayload) ([]bus.SearchResult, error)

	// ExecuteAction may have external side effects. It returns
	// ErrActionUnhandled (via errors.Is) when this module does not
	// recognize resultID/actionType.
	ExecuteAction(ctx context.Context, resultID, actionType string) error

	HealthCheck(ctx context.Context) (bool, error)

	GetSettingsSchema() map[string]string
	UpdateSettings(settings map[string]string) error

	// Cleanup is invoked before unregister.
	Cleanup() error
}
