// Package overlaycli implements the daemon-facing contract an overlay
// process must satisfy (spec.md section 4.6): a headless bus-client
// harness that survives daemon restarts, answers heartbeats, tracks
// window visibility, and correlates search results by session id. It owns
// no rendering of its own (HTML/JS/CSS is an explicit Non-goal); callers
// supply Hooks to react to the events that would otherwise drive a UI.
package overlaycli

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/launchpad-go/launchpad/internal/bus"
	"github.com/launchpad-go/launchpad/internal/logging"
)

// Hooks lets a caller observe the events an overlay UI would otherwise
// render directly. Any field may be left nil.
type Hooks struct {
	OnShow          func(query *string)
	OnHide          func()
	OnResults       func(results []bus.SearchResult)
	OnModuleChanged func(moduleID string)
	OnDaemonStatus  func(status bus.DaemonStatusPayload)
	OnActionResult  func(result bus.ActionResultPayload)
}

// Config configures Overlay's reconnect behavior. Grounded on the
// teacher's ResilientClientConfig (internal/daemon/resilient.go):
// min/max backoff that doubles between attempts, adapted from a unary
// request/response client's heartbeat loop to a long-lived broadcast
// subscriber.
type Config struct {
	Addr string

	// RetryInterval is passed through to each individual bus.Client.Connect
	// call's fixed-interval retry (spec.md section 4.1's connect()).
	RetryInterval time.Duration

	// ReconnectBackoffMin/Max bound the delay between successive Connect
	// attempts across daemon restarts (spec.md section 4.6 item 1).
	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration
}

// DefaultConfig returns spec.md section 4.6's defaults.
func DefaultConfig() Config {
	return Config{
		Addr:                bus.DefaultClientConfig().Addr,
		RetryInterval:       time.Second,
		ReconnectBackoffMin: 200 * time.Millisecond,
		ReconnectBackoffMax: 30 * time.Second,
	}
}

// Overlay is the headless bus-client harness described by spec.md section
// 4.6's five numbered daemon-facing behaviors.
type Overlay struct {
	config Config
	hooks  Hooks
	logger *logging.Logger

	// newClient is overridable in tests so Run doesn't have to dial a real
	// TCP listener through the production constructor.
	newClient func(bus.ClientConfig) *bus.Client

	mu        sync.Mutex
	client    *bus.Client
	visible   bool
	sessionID string
	results   map[string]bus.SearchResult
}

// New creates an Overlay. Unset Config fields fall back to DefaultConfig.
func New(config Config, hooks Hooks) *Overlay {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	if config.ReconnectBackoffMin <= 0 {
		config.ReconnectBackoffMin = def.ReconnectBackoffMin
	}
	if config.ReconnectBackoffMax <= 0 {
		config.ReconnectBackoffMax = def.ReconnectBackoffMax
	}
	return &Overlay{
		config:    config,
		hooks:     hooks,
		logger:    logging.New("Overlay"),
		newClient: bus.NewClient,
		results:   make(map[string]bus.SearchResult),
	}
}

// Run connects to the daemon and serves messages until ctx is cancelled,
// reconnecting with exponential backoff across daemon restarts (spec.md
// section 4.6 item 1). It returns ctx.Err() when ctx is cancelled.
func (o *Overlay) Run(ctx context.Context) error {
	backoff := o.config.ReconnectBackoffMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		client := o.newClient(bus.ClientConfig{Addr: o.config.Addr, RetryInterval: o.config.RetryInterval, ConnectRetries: 1})
		if err := client.Connect(); err != nil {
			o.logger.Warnf("connect to %s: %v", o.config.Addr, err)
			if !o.sleepBackoff(ctx, &backoff) {
				return ctx.Err()
			}
			continue
		}

		backoff = o.config.ReconnectBackoffMin
		o.setClient(client)
		o.serve(ctx, client)
		o.setClient(nil)
		client.Close()
	}
}

func (o *Overlay) sleepBackoff(ctx context.Context, backoff *time.Duration) bool {
	timer := time.NewTimer(*backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	*backoff *= 2
	if *backoff > o.config.ReconnectBackoffMax {
		*backoff = o.config.ReconnectBackoffMax
	}
	return true
}

// serve reads and dispatches messages until Receive fails (disconnect) or
// ctx is cancelled.
func (o *Overlay) serve(ctx context.Context, client *bus.Client) {
	// Closing the client on cancellation unblocks a pending Receive.
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()
	for {
		msg, err := client.Receive()
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		o.dispatch(client, msg)
	}
}

// dispatch implements spec.md section 4.6 items 2-5.
func (o *Overlay) dispatch(client *bus.Client, msg bus.Message) {
	switch msg.Kind {
	case bus.KindPing:
		if err := client.Send(bus.Pong()); err != nil {
			o.logger.Warnf("send Pong: %v", err)
		}

	case bus.KindToggleOverlay:
		o.toggleVisibility(client)

	case bus.KindShowOverlay:
		payload := msg.Payload.(bus.ShowOverlayPayload)
		o.setVisible(true)
		if o.hooks.OnShow != nil {
			o.hooks.OnShow(payload.Query)
		}

	case bus.KindHideOverlay:
		o.setVisible(false)
		if o.hooks.OnHide != nil {
			o.hooks.OnHide()
		}

	case bus.KindSearchResults:
		payload := msg.Payload.(bus.SearchResultsPayload)
		if payload.SessionID != o.SessionID() {
			return // stale result from a superseded query, discard
		}
		o.cacheResults(payload.Results)
		if o.hooks.OnResults != nil {
			o.hooks.OnResults(payload.Results)
		}

	case bus.KindModuleChanged:
		payload := msg.Payload.(bus.ModuleChangedPayload)
		if o.hooks.OnModuleChanged != nil {
			o.hooks.OnModuleChanged(payload.ModuleID)
		}

	case bus.KindDaemonStatus:
		payload := msg.Payload.(bus.DaemonStatusPayload)
		if o.hooks.OnDaemonStatus != nil {
			o.hooks.OnDaemonStatus(payload)
		}

	case bus.KindActionResult:
		o.handleActionResult(msg.Payload.(bus.ActionResultPayload))

	case bus.KindClearResults:
		o.cacheResults(nil)
	}
}

// toggleVisibility implements item 3: the overlay, not the daemon, is
// authoritative for visibility, so it flips its own state and emits
// Show/HideOverlay rather than waiting to be told.
func (o *Overlay) toggleVisibility(client *bus.Client) {
	o.mu.Lock()
	next := !o.visible
	o.visible = next
	o.mu.Unlock()

	if next {
		client.Send(bus.ShowOverlay(nil))
		if o.hooks.OnShow != nil {
			o.hooks.OnShow(nil)
		}
		return
	}
	client.Send(bus.HideOverlay())
	if o.hooks.OnHide != nil {
		o.hooks.OnHide()
	}
}

// handleActionResult implements item 5: once the daemon has dispatched
// the action, the overlay carries out any local follow-up. For "copy"
// results that is writing the cached title to the OS clipboard; other
// action types have no local component (their side effects already
// happened daemon-side).
func (o *Overlay) handleActionResult(payload bus.ActionResultPayload) {
	if payload.OK && payload.ActionType == "copy" {
		if result, ok := o.cachedResult(payload.ResultID); ok {
			if err := clipboard.WriteAll(result.Title); err != nil {
				o.logger.Warnf("copy %q to clipboard: %v", payload.ResultID, err)
			}
		}
	}
	if o.hooks.OnActionResult != nil {
		o.hooks.OnActionResult(payload)
	}
}

// Search sends a SearchQuery tagged with a fresh session id, per
// keystroke-batch (spec.md section 4.6 item 4). Results tagged with any
// earlier session id are discarded by dispatch.
func (o *Overlay) Search(text, moduleFilter string, maxResults, timeoutMS int) error {
	sessionID := uuid.NewString()
	o.setSessionID(sessionID)
	return o.send(bus.NewSearchQuery(text, moduleFilter, maxResults, timeoutMS, sessionID))
}

// ExecuteAction requests the daemon dispatch resultID/actionType through
// the registry (spec.md section 4.6 item 5).
func (o *Overlay) ExecuteAction(resultID, actionType string) error {
	return o.send(bus.NewExecuteAction(resultID, actionType))
}

func (o *Overlay) send(msg bus.Message) error {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()
	if client == nil {
		return bus.ErrNotConnected
	}
	return client.Send(msg)
}

func (o *Overlay) setClient(c *bus.Client) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.client = c
}

func (o *Overlay) setVisible(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = v
}

// Visible reports the overlay's current authoritative visibility.
func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

func (o *Overlay) setSessionID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionID = id
}

// SessionID returns the session id of the most recently issued query.
func (o *Overlay) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

func (o *Overlay) cacheResults(results []bus.SearchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = make(map[string]bus.SearchResult, len(results))
	for _, r := range results {
		o.results[r.ID] = r
	}
}

func (o *Overlay) cachedResult(id string) (bus.SearchResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.results[id]
	return r, ok
}

// IsConnected reports whether Run currently holds a live connection.
func (o *Overlay) IsConnected() bool {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()
	return client != nil && client.IsConnected()
}
