// Package bus implements the line-framed JSON message bus shared by the
// daemon, overlay, and control processes: a TCP-loopback broker with
// fan-out broadcast plus a reconnecting client, as described by the wire
// protocol in SPEC_FULL.md section 1.
package bus

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a Message variant on the wire. ExecuteAction/ActionResult
// extend spec.md section 3's variant list to carry the registry's
// execute_action operation (section 4.3) across the daemon/overlay process
// boundary, since the distilled variant list names the operation without
// giving it a wire form.

type Kind string

const (
	KindPing           Kind = "Ping"
	KindPong           Kind = "Pong"
	KindToggleOverlay  Kind = "ToggleOverlay"
	KindShowOverlay    Kind = "ShowOverlay"
	KindHideOverlay    Kind = "HideOverlay"
	KindSearchQuery    Kind = "SearchQuery"
	KindSearchResults  Kind = "SearchResults"
	KindClearResults   Kind = "ClearResults"
	KindUpdateModule   Kind = "UpdateModule"
	KindModuleChanged  Kind = "ModuleChanged"
	KindGetCurrentMod  Kind = "GetCurrentModule"
	KindDaemonStatus   Kind = "DaemonStatus"
	KindStartDaemon    Kind = "StartDaemon"
	KindStopDaemon     Kind = "StopDaemon"
	KindExecuteAction  Kind = "ExecuteAction"
	KindActionResult   Kind = "ActionResult"
)

// ShowOverlayPayload carries an optional pre-filled query.
type ShowOverlayPayload struct {
	Query *string `json:"query,omitempty"`
}

// SearchQueryPayload is a search request from an overlay.
//
// Invariants (spec.md section 3): MaxResults >= 1, TimeoutMS >= 1. Text may
// be empty, which modules interpret as "return default entries".
type SearchQueryPayload struct {
	Text         string `json:"text"`
	ModuleFilter string `json:"module_filter,omitempty"`
	MaxResults   int    `json:"max_results"`
	TimeoutMS    int    `json:"timeout_ms"`
	SessionID    string `json:"session_id"`
}

// Validate enforces the SearchQuery invariants from spec.md section 3.
func (q SearchQueryPayload) Validate() error {
	if q.MaxResults < 1 {
		return fmt.Errorf("bus: max_results must be >= 1, got %d", q.MaxResults)
	}
	if q.TimeoutMS < 1 {
		return fmt.Errorf("bus: timeout_ms must be >= 1, got %d", q.TimeoutMS)
	}
	return nil
}

// SearchResult is a single ranked entry returned by a module.
//
// Score is monotone in ranking order within a response batch; ties are
// broken by insertion order, never by recomputing score (spec.md section 3).
type SearchResult struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Icon        string            `json:"icon,omitempty"`
	ActionType  string            `json:"action_type"`
	Score       float64           `json:"score"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// SearchResultsPayload is the daemon's reply to a SearchQuery.
type SearchResultsPayload struct {
	SessionID string         `json:"session_id"`
	Results   []SearchResult `json:"results"`
}

// UpdateModulePayload requests the daemon activate a module.
type UpdateModulePayload struct {
	ModuleID string `json:"module_id"`
}

// ModuleChangedPayload echoes the now-current module to all clients.
type ModuleChangedPayload struct {
	ModuleID string `json:"module_id"`
}

// ExecuteActionPayload asks the daemon to dispatch a result's action
// through the registry's trial-by-module-order search (spec.md section
// 4.3's execute_action, routed over the bus since the overlay that owns
// the result lives in a different process from the registry).
type ExecuteActionPayload struct {
	ResultID   string `json:"result_id"`
	ActionType string `json:"action_type"`
}

// ActionResultPayload reports whether the dispatch succeeded. The overlay
// still holds the originating SearchResult from its own cache, so this
// reply only needs to echo enough to correlate and carry out any
// overlay-local follow-up (e.g. the "copy" action_type's clipboard write,
// spec.md section 4.6 item 5).
type ActionResultPayload struct {
	ResultID   string `json:"result_id"`
	ActionType string `json:"action_type"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// DaemonStatusPayload reports daemon liveness and, additively, its stats
// (SPEC_FULL.md section 8: the original carries richer counters than the
// distilled spec's running/pid pair).
type DaemonStatusPayload struct {
	Running bool   `json:"running"`
	PID     *int   `json:"pid,omitempty"`
	Stats   *Stats `json:"stats,omitempty"`
}

// Stats mirrors DaemonState.stats from spec.md section 3.
type Stats struct {
	ShortcutsTriggered int64 `json:"shortcuts_triggered"`
	SearchesPerformed  int64 `json:"searches_performed"`
	UptimeSeconds      int64 `json:"uptime_seconds"`
	LastActivityMS     int64 `json:"last_activity_ms"`
	MemoryUsageKB      int64 `json:"memory_usage_kb"`
}

// Message is a tagged-variant envelope transported over the bus, one JSON
// object per line. On the wire it is externally tagged, e.g.
// {"SearchQuery":{"text":"cur", ...}}. Payload holds the concrete payload
// type for Kind, or nil for payload-less variants (Ping, Pong, ToggleOverlay,
// HideOverlay, ClearResults, GetCurrentModule, StartDaemon, StopDaemon).
type Message struct {
	Kind    Kind
	Payload interface{}
}

// MarshalJSON implements the externally-tagged wire form.
func (m Message) MarshalJSON() ([]byte, error) {
	var payload interface{} = m.Payload
	if payload == nil {
		payload = struct{}{}
	}
	wrapped := map[Kind]interface{}{m.Kind: payload}
	return json.Marshal(wrapped)
}

// UnmarshalJSON decodes the externally-tagged wire form, dispatching the
// single key's payload into the concrete Go type for that Kind.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[Kind]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bus: malformed message: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("bus: message must have exactly one tag, got %d", len(raw))
	}

	for kind, body := range raw {
		m.Kind = kind
		payload, err := decodePayload(kind, body)
		if err != nil {
			return err
		}
		m.Payload = payload
	}
	return nil
}

func decodePayload(kind Kind, body json.RawMessage) (interface{}, error) {
	switch kind {
	case KindPing, KindPong, KindHideOverlay, KindClearResults,
		KindGetCurrentMod, KindStartDaemon, KindStopDaemon:
		return nil, nil
	case KindToggleOverlay:
		return nil, nil
	case KindShowOverlay:
		var p ShowOverlayPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode ShowOverlay: %w", err)
		}
		return p, nil
	case KindSearchQuery:
		var p SearchQueryPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode SearchQuery: %w", err)
		}
		return p, nil
	case KindSearchResults:
		var p SearchResultsPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode SearchResults: %w", err)
		}
		return p, nil
	case KindUpdateModule:
		var p UpdateModulePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode UpdateModule: %w", err)
		}
		return p, nil
	case KindModuleChanged:
		var p ModuleChangedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode ModuleChanged: %w", err)
		}
		return p, nil
	case KindExecuteAction:
		var p ExecuteActionPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode ExecuteAction: %w", err)
		}
		return p, nil
	case KindActionResult:
		var p ActionResultPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode ActionResult: %w", err)
		}
		return p, nil
	case KindDaemonStatus:
		var p DaemonStatusPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("bus: decode DaemonStatus: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Convenience constructors, mirroring the variant list in spec.md section 3.

func Ping() Message          { return Message{Kind: KindPing} }
func Pong() Message          { return Message{Kind: KindPong} }
func ToggleOverlay() Message { return Message{Kind: KindToggleOverlay} }
func HideOverlay() Message   { return Message{Kind: KindHideOverlay} }
func ClearResults() Message  { return Message{Kind: KindClearResults} }

func ShowOverlay(query *string) Message {
	return Message{Kind: KindShowOverlay, Payload: ShowOverlayPayload{Query: query}}
}

func NewSearchQuery(text, moduleFilter string, maxResults, timeoutMS int, sessionID string) Message {
	return Message{Kind: KindSearchQuery, Payload: SearchQueryPayload{
		Text:         text,
		ModuleFilter: moduleFilter,
		MaxResults:   maxResults,
		TimeoutMS:    timeoutMS,
		SessionID:    sessionID,
	}}
}

func NewSearchResults(sessionID string, results []SearchResult) Message {
	return Message{Kind: KindSearchResults, Payload: SearchResultsPayload{
		SessionID: sessionID,
		Results:   results,
	}}
}

func NewUpdateModule(moduleID string) Message {
	return Message{Kind: KindUpdateModule, Payload: UpdateModulePayload{ModuleID: moduleID}}
}

func NewModuleChanged(moduleID string) Message {
	return Message{Kind: KindModuleChanged, Payload: ModuleChangedPayload{ModuleID: moduleID}}
}

func NewExecuteAction(resultID, actionType string) Message {
	return Message{Kind: KindExecuteAction, Payload: ExecuteActionPayload{ResultID: resultID, ActionType: actionType}}
}

func NewActionResult(resultID, actionType string, ok bool, actionErr error) Message {
	p := ActionResultPayload{ResultID: resultID, ActionType: actionType, OK: ok}
	if actionErr != nil {
		p.Error = actionErr.Error()
	}
	return Message{Kind: KindActionResult, Payload: p}
}

func NewDaemonStatus(running bool, pid *int, stats *Stats) Message {
	return Message{Kind: KindDaemonStatus, Payload: DaemonStatusPayload{Running: running, PID: pid, Stats: stats}}
}
