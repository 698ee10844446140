package overlaycli

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/launchpad-go/launchpad/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestBroker(t *testing.T) *bus.Broker {
	t.Helper()
	b := bus.New(bus.BrokerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { b.Stop() })
	return b
}

func runOverlay(t *testing.T, addr string, hooks Hooks) (*Overlay, context.CancelFunc) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.ReconnectBackoffMin = 10 * time.Millisecond
	cfg.ReconnectBackoffMax = 50 * time.Millisecond

	o := New(cfg, hooks)
	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)
	return o, cancel
}

func waitConnected(t *testing.T, b *bus.Broker) {
	t.Helper()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOverlay_ConnectsAndRespondsToPing(t *testing.T) {
	b := startTestBroker(t)
	runOverlay(t, b.Addr(), Hooks{})
	waitConnected(t, b)

	var gotID string
	b.Handler = func(clientID string, msg bus.Message) {
		if msg.Kind == bus.KindPong {
			gotID = clientID
		}
	}

	b.Broadcast(bus.Ping(), "")
	assert.Eventually(t, func() bool { return gotID != "" }, time.Second, 5*time.Millisecond)
}

func TestOverlay_ToggleOverlay_EmitsAuthoritativeShowThenHide(t *testing.T) {
	b := startTestBroker(t)

	var mu sync.Mutex
	var seen []bus.Kind
	b.Handler = func(clientID string, msg bus.Message) {
		mu.Lock()
		seen = append(seen, msg.Kind)
		mu.Unlock()
	}

	o, _ := runOverlay(t, b.Addr(), Hooks{})
	waitConnected(t, b)

	b.Broadcast(bus.ToggleOverlay(), "")
	require.Eventually(t, func() bool { return o.Visible() }, time.Second, 5*time.Millisecond)

	b.Broadcast(bus.ToggleOverlay(), "")
	require.Eventually(t, func() bool { return !o.Visible() }, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, bus.KindShowOverlay)
	assert.Contains(t, seen, bus.KindHideOverlay)
}

func TestOverlay_ShowOverlay_InvokesOnShowWithQuery(t *testing.T) {
	b := startTestBroker(t)

	shown := make(chan *string, 1)
	runOverlay(t, b.Addr(), Hooks{OnShow: func(query *string) { shown <- query }})
	waitConnected(t, b)

	q := "figma"
	b.Broadcast(bus.ShowOverlay(&q), "")

	select {
	case got := <-shown:
		require.NotNil(t, got)
		assert.Equal(t, "figma", *got)
	case <-time.After(time.Second):
		t.Fatal("OnShow was not invoked")
	}
}

func TestOverlay_SearchResults_DiscardsStaleSession(t *testing.T) {
	b := startTestBroker(t)

	var results chan []bus.SearchResult = make(chan []bus.SearchResult, 2)
	o, _ := runOverlay(t, b.Addr(), Hooks{OnResults: func(r []bus.SearchResult) { results <- r }})
	waitConnected(t, b)

	require.NoError(t, o.Search("term", "", 10, 1000))
	require.Eventually(t, func() bool { return o.SessionID() != "" }, time.Second, 5*time.Millisecond)

	// A result set carrying a stale session id must be discarded.
	b.Broadcast(bus.NewSearchResults("stale-session", []bus.SearchResult{{ID: "x", Title: "x"}}), "")
	b.Broadcast(bus.NewSearchResults(o.SessionID(), []bus.SearchResult{{ID: "y", Title: "y"}}), "")

	select {
	case r := <-results:
		require.Len(t, r, 1)
		assert.Equal(t, "y", r[0].ID)
	case <-time.After(time.Second):
		t.Fatal("OnResults was not invoked for the live session")
	}

	select {
	case <-results:
		t.Fatal("stale session result should have been discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOverlay_ExecuteAction_SendsRequest(t *testing.T) {
	b := startTestBroker(t)

	var got bus.ExecuteActionPayload
	received := make(chan struct{}, 1)
	b.Handler = func(clientID string, msg bus.Message) {
		if msg.Kind == bus.KindExecuteAction {
			got = msg.Payload.(bus.ExecuteActionPayload)
			received <- struct{}{}
		}
	}

	o, _ := runOverlay(t, b.Addr(), Hooks{})
	waitConnected(t, b)

	require.NoError(t, o.ExecuteAction("daily.terminal", "launch"))

	select {
	case <-received:
		assert.Equal(t, "daily.terminal", got.ResultID)
		assert.Equal(t, "launch", got.ActionType)
	case <-time.After(time.Second):
		t.Fatal("daemon did not receive ExecuteAction")
	}
}

func TestOverlay_ActionResult_InvokesHookWithoutCrashingOnUnknownID(t *testing.T) {
	b := startTestBroker(t)

	result := make(chan bus.ActionResultPayload, 1)
	runOverlay(t, b.Addr(), Hooks{OnActionResult: func(r bus.ActionResultPayload) { result <- r }})
	waitConnected(t, b)

	b.Broadcast(bus.NewActionResult("unknown-id", "copy", true, nil), "")

	select {
	case r := <-result:
		assert.True(t, r.OK)
		assert.Equal(t, "unknown-id", r.ResultID)
	case <-time.After(time.Second):
		t.Fatal("OnActionResult was not invoked")
	}
}

func TestOverlay_Run_ReturnsWhenContextCancelled(t *testing.T) {
	b := startTestBroker(t)
	cfg := DefaultConfig()
	cfg.Addr = b.Addr()
	o := New(cfg, Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	waitConnected(t, b)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestOverlay_Run_RetriesUntilBrokerIsAvailable(t *testing.T) {
	// Reserve a port, close it immediately so the overlay's first connect
	// attempts fail, then open a broker on the same address.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.ReconnectBackoffMin = 10 * time.Millisecond
	cfg.ReconnectBackoffMax = 20 * time.Millisecond
	o := New(cfg, Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go o.Run(ctx)

	time.Sleep(30 * time.Millisecond)

	b := bus.New(bus.BrokerConfig{Addr: addr})
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { b.Stop() })

	waitConnected(t, b)
}
