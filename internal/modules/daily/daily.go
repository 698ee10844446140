// Package daily implements the reference search module from spec.md
// section 4.4: a small, time-sensitive catalogue (current time/date/week/
// day, system controls, a calculator, and a terminal launcher) served via
// fuzzy matching, illustrating the registry.Module provider contract.
package daily

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/launchpad-go/launchpad/internal/bus"
	"github.com/launchpad-go/launchpad/internal/registry"
)

// ID is this module's stable registry slug.
const ID = "daily"

// DefaultCacheUpdateInterval is how long the catalogue is considered fresh
// before the next Search rebuilds it (spec.md section 4.4).
const DefaultCacheUpdateInterval = 30 * time.Second

// entry is one catalogue item. handler implements its ExecuteAction.
type entry struct {
	id          string
	title       string
	description string
	icon        string
	actionType  string
	handler     func(ctx context.Context) error
}

// Module is the "Daily" reference module.
type Module struct {
	mu                  sync.Mutex
	cache               []entry
	cacheBuiltAt        time.Time
	cacheUpdateInterval time.Duration
	settings            map[string]string

	// now is overridable in tests so catalogue entries are deterministic.
	now func() time.Time
}

// New creates a Daily module with default settings.
func New() *Module {
	return &Module{
		cacheUpdateInterval: DefaultCacheUpdateInterval,
		settings:            map[string]string{},
		now:                 time.Now,
	}
}

func (m *Module) Info() registry.ModuleInfo {
	return registry.ModuleInfo{
		ID:          ID,
		Name:        "Daily",
		Description: "Time, date, system controls, calculator, and terminal launcher",
		Version:     "1.0.0",
		Author:      "launchpad",
		Enabled:     true,
		Keywords:    []string{"time", "date", "day", "week", "calculator", "terminal", "system"},
	}
}

// Initialize is idempotent under retries: it just records settings.
func (m *Module) Initialize(settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if settings != nil {
		m.settings = settings
	}
	if iv, ok := m.settings["cache_update_interval_ms"]; ok {
		if ms, err := strconv.Atoi(iv); err == nil && ms > 0 {
			m.cacheUpdateInterval = time.Duration(ms) * time.Millisecond
		}
	}
	return nil
}

// Search rebuilds the catalogue if it is older than cacheUpdateInterval,
// then scores every entry against query.Text. An empty query returns the
// full catalogue (spec.md section 4.4).
func (m *Module) Search(ctx context.Context, query bus.SearchQueryPayload) ([]bus.SearchResult, error) {
	catalogue := m.catalogueSnapshot()

	results := make([]bus.SearchResult, 0, len(catalogue)+1)
	if calc, ok := calculatorEntry(query.Text); ok {
		results = append(results, bus.SearchResult{
			ID:          calc.id,
			Title:       calc.title,
			Description: calc.description,
			Icon:        calc.icon,
			ActionType:  calc.actionType,
			Score:       1.0,
		})
	}

	for i, e := range catalogue {
		score := registry.FuzzyScoreTitleDescription(query.Text, e.title, e.description, i)
		if query.Text != "" && score <= 0 {
			continue
		}
		results = append(results, bus.SearchResult{
			ID:          e.id,
			Title:       e.title,
			Description: e.description,
			Icon:        e.icon,
			ActionType:  e.actionType,
			Score:       score,
		})
	}
	return results, nil
}

// ExecuteAction dispatches to the catalogue entry matching resultID. It
// returns registry.ErrActionUnhandled for any id this module doesn't own,
// so the registry's trial dispatch can move on to the next module.
func (m *Module) ExecuteAction(ctx context.Context, resultID, actionType string) error {
	// Copy-type results (current time/date/calculator) are carried out by
	// the overlay locally once dispatch succeeds; the module only needs to
	// confirm it owns the id.
	if resultID == "daily.calculator" {
		return nil
	}

	catalogue := m.catalogueSnapshot()
	for _, e := range catalogue {
		if e.id != resultID {
			continue
		}
		if e.handler == nil {
			return nil
		}
		return e.handler(ctx)
	}
	return registry.ErrActionUnhandled
}

func (m *Module) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}

func (m *Module) GetSettingsSchema() map[string]string {
	return map[string]string{
		"cache_update_interval_ms": "int, default 30000",
	}
}

func (m *Module) UpdateSettings(settings map[string]string) error {
	return m.Initialize(settings)
}

func (m *Module) Cleanup() error {
	return nil
}

// catalogueSnapshot returns the current catalogue, rebuilding it first if
// stale.
func (m *Module) catalogueSnapshot() []entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.cacheBuiltAt) > m.cacheUpdateInterval || m.cache == nil {
		m.cache = m.buildCatalogue(now)
		m.cacheBuiltAt = now
	}

	out := make([]entry, len(m.cache))
	copy(out, m.cache)
	return out
}

func (m *Module) buildCatalogue(now time.Time) []entry {
	_, week := now.ISOWeek()

	catalogue := []entry{
		{
			id:          "daily.current-time",
			title:       now.Format("3:04 PM"),
			description: "Current time",
			icon:        "🕐",
			actionType:  "copy",
		},
		{
			id:          "daily.current-date",
			title:       now.Format("Monday, January 2, 2006"),
			description: "Current date",
			icon:        "📅",
			actionType:  "copy",
		},
		{
			id:          "daily.current-datetime",
			title:       now.Format("2006-01-02 15:04:05"),
			description: "Current date and time",
			icon:        "🕓",
			actionType:  "copy",
		},
		{
			id:          "daily.current-week",
			title:       fmt.Sprintf("Week %d", week),
			description: "Current ISO week number",
			icon:        "🗓",
			actionType:  "copy",
		},
		{
			id:          "daily.current-day",
			title:       now.Format("Monday"),
			description: "Current day of the week",
			icon:        "📆",
			actionType:  "copy",
		},
		{
			id:          "daily.lock-screen",
			title:       "Lock Screen",
			description: "Lock the current session",
			icon:        "🔒",
			actionType:  "system",
			handler:     lockScreen,
		},
		{
			id:          "daily.sleep",
			title:       "Sleep",
			description: "Put the computer to sleep",
			icon:        "💤",
			actionType:  "system",
			handler:     sleepSystem,
		},
		{
			id:          "daily.terminal",
			title:       "Open Terminal",
			description: "Launch a new terminal window",
			icon:        "💻",
			actionType:  "launch",
			handler:     launchTerminal,
		},
	}

	return catalogue
}

var calcExpr = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*([+\-*/])\s*(-?\d+(?:\.\d+)?)\s*$`)

// calculatorEntry evaluates a simple two-operand arithmetic expression from
// the query text, if it parses as one; it is consulted directly by Search
// rather than living in the rebuilt catalogue, since its content is a
// function of the query rather than the clock.
func calculatorEntry(queryText string) (entry, bool) {
	m := calcExpr.FindStringSubmatch(queryText)
	if m == nil {
		return entry{}, false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[3], 64)
	if errA != nil || errB != nil {
		return entry{}, false
	}

	var result float64
	switch m[2] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return entry{}, false
		}
		result = a / b
	}

	return entry{
		id:          "daily.calculator",
		title:       strconv.FormatFloat(result, 'g', -1, 64),
		description: fmt.Sprintf("%s = %s", strings.TrimSpace(queryText), strconv.FormatFloat(result, 'g', -1, 64)),
		icon:        "🧮",
		actionType:  "copy",
	}, true
}

func lockScreen(ctx context.Context) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "pmset", "displaysleepnow")
	case "linux":
		cmd = exec.CommandContext(ctx, "loginctl", "lock-session")
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32.exe", "user32.dll,LockWorkStation")
	default:
		return fmt.Errorf("daily: lock screen not supported on %s", runtime.GOOS)
	}
	return cmd.Run()
}

func sleepSystem(ctx context.Context) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "pmset", "sleepnow")
	case "linux":
		cmd = exec.CommandContext(ctx, "systemctl", "suspend")
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32.exe", "powrprof.dll,SetSuspendState", "0,1,0")
	default:
		return fmt.Errorf("daily: sleep not supported on %s", runtime.GOOS)
	}
	return cmd.Run()
}

func launchTerminal(ctx context.Context) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-a", "Terminal")
	case "linux":
		cmd = exec.CommandContext(ctx, "x-terminal-emulator")
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd.exe", "/c", "start", "cmd.exe")
	default:
		return fmt.Errorf("daily: terminal launch not supported on %s", runtime.GOOS)
	}
	return cmd.Start()
}
