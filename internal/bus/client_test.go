package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ConnectFailsAfterRetriesExhausted(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Addr = "127.0.0.1:1" // nothing listens here
	cfg.ConnectRetries = 2
	cfg.RetryInterval = 10 * time.Millisecond

	c := NewClient(cfg)
	err := c.Connect()
	require.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := NewClient(DefaultClientConfig())
	err := c.Send(Ping())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ReceiveBeforeConnect(t *testing.T) {
	c := NewClient(DefaultClientConfig())
	_, err := c.Receive()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_SendReceiveRoundTrip(t *testing.T) {
	b := startTestBroker(t)

	received := make(chan Message, 1)
	b.Handler = func(_ string, msg Message) { received <- msg }

	c := dialTestClient(t, b)

	require.NoError(t, c.Send(NewUpdateModule("daily")))

	select {
	case msg := <-received:
		payload, ok := msg.Payload.(UpdateModulePayload)
		require.True(t, ok)
		assert.Equal(t, "daily", payload.ModuleID)
	case <-time.After(time.Second):
		t.Fatal("broker never observed the client's message")
	}

	b.Broadcast(NewModuleChanged("daily"), "")
	msg, err := c.Receive()
	require.NoError(t, err)
	payload, ok := msg.Payload.(ModuleChangedPayload)
	require.True(t, ok)
	assert.Equal(t, "daily", payload.ModuleID)
}

func TestClient_TryReceiveTimesOutWithoutMessage(t *testing.T) {
	b := startTestBroker(t)
	c := dialTestClient(t, b)

	_, ok, err := c.TryReceive(50 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_ReceiveAfterBrokerCloses(t *testing.T) {
	b := startTestBroker(t)
	c := dialTestClient(t, b)

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, b.Stop())

	_, err := c.Receive()
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestClient_ReconnectAfterClose(t *testing.T) {
	cfg := DefaultBrokerConfig()
	cfg.Addr = "127.0.0.1:0"
	b := New(cfg)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { b.Stop() })

	cc := DefaultClientConfig()
	cc.Addr = b.Addr()
	cc.ConnectRetries = 1
	c := NewClient(cc)

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())
}
