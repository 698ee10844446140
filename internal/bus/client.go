package bus

import (
	"encoding/json"
	"log"
	"net"
	"sync"
	"time"
)

// ClientConfig configures a Client's connect/retry behavior. Grounded on the
// teacher's ResilientClient (internal/daemon/resilient.go), reduced to a
// bounded number of attempts separated by a fixed RetryInterval; the delay
// does not grow between attempts.
type ClientConfig struct {
	Addr string

	// ConnectRetries bounds the number of connection attempts. Zero means
	// retry forever.
	ConnectRetries int

	// RetryInterval is the fixed delay between connection attempts, per
	// spec.md section 4.6's "retry at a fixed 1s interval, up to N attempts".
	RetryInterval time.Duration

	MaxFrameSize      int
	OutboundQueueSize int
}

// DefaultClientConfig mirrors spec.md section 4.6's defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:              "127.0.0.1:19755",
		ConnectRetries:    5,
		RetryInterval:     time.Second,
		MaxFrameSize:      DefaultMaxFrameSize,
		OutboundQueueSize: DefaultOutboundQueueSize,
	}
}

// Client is the overlay/control-side bus client: it dials the broker,
// exposes Send/Receive/TryReceive, and re-dials lazily on the next Connect
// call after a disconnect (spec.md section 4.6 and 3's BusClient).
type Client struct {
	config ClientConfig

	mu      sync.Mutex
	conn    net.Conn
	fr      *frameReader
	inbound chan Message
	closed  chan struct{}

	readErr error // guarded by mu
}

// NewClient creates a Client with the given configuration.
func NewClient(config ClientConfig) *Client {
	if config.Addr == "" {
		config.Addr = DefaultClientConfig().Addr
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.OutboundQueueSize <= 0 {
		config.OutboundQueueSize = DefaultOutboundQueueSize
	}
	return &Client{config: config}
}

// Connect dials the broker, retrying at config.RetryInterval up to
// config.ConnectRetries times (0 = unlimited). On success it starts the
// background read pump that feeds Receive/TryReceive.
func (c *Client) Connect() error {
	var lastErr error
	attempt := 0
	for {
		attempt++
		conn, err := net.Dial("tcp", c.config.Addr)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.fr = newFrameReader(conn, c.config.MaxFrameSize)
			c.inbound = make(chan Message, c.config.OutboundQueueSize)
			c.closed = make(chan struct{})
			c.readErr = nil
			c.mu.Unlock()

			go c.readPump()
			return nil
		}
		lastErr = err

		if c.config.ConnectRetries > 0 && attempt >= c.config.ConnectRetries {
			return &TransientError{Op: "connect", Err: lastErr}
		}
		log.Printf("[bus] connect attempt %d failed: %v, retrying in %s", attempt, err, c.config.RetryInterval)
		time.Sleep(c.config.RetryInterval)
	}
}

// readPump owns the connection's read half, decoding frames into c.inbound
// until the connection fails, mirroring the broker's single-reader
// discipline on the client side.
func (c *Client) readPump() {
	c.mu.Lock()
	fr := c.fr
	inbound := c.inbound
	closed := c.closed
	c.mu.Unlock()

	for {
		line, err := fr.readFrame()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			close(closed)
			return
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Printf("[bus] client: malformed frame from broker: %v", err)
			continue
		}
		select {
		case inbound <- msg:
		case <-closed:
			return
		}
	}
}

// Send writes msg to the broker. It is safe for concurrent use.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := writeFrame(conn, data); err != nil {
		return &TransientError{Op: "send", Err: err}
	}
	return nil
}

// Receive blocks until a message arrives or the connection closes.
func (c *Client) Receive() (Message, error) {
	c.mu.Lock()
	inbound := c.inbound
	closed := c.closed
	c.mu.Unlock()
	if inbound == nil {
		return Message{}, ErrNotConnected
	}

	select {
	case msg := <-inbound:
		return msg, nil
	case <-closed:
		select {
		case msg := <-inbound:
			return msg, nil
		default:
		}
		if err := c.lastReadErr(); err != nil {
			return Message{}, &TransientError{Op: "receive", Err: err}
		}
		return Message{}, ErrClientClosed
	}
}

func (c *Client) lastReadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// TryReceive blocks until a message arrives, the connection closes, or
// deadline elapses, whichever comes first (spec.md section 3's
// try_receive(deadline)).
func (c *Client) TryReceive(deadline time.Duration) (Message, bool, error) {
	c.mu.Lock()
	inbound := c.inbound
	closed := c.closed
	c.mu.Unlock()
	if inbound == nil {
		return Message{}, false, ErrNotConnected
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case msg := <-inbound:
		return msg, true, nil
	case <-closed:
		select {
		case msg := <-inbound:
			return msg, true, nil
		default:
		}
		if err := c.lastReadErr(); err != nil {
			return Message{}, false, &TransientError{Op: "receive", Err: err}
		}
		return Message{}, false, ErrClientClosed
	case <-timer.C:
		return Message{}, false, nil
	}
}

// Close tears down the connection. It is safe to call Connect again
// afterward to reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// IsConnected reports whether the connection is currently established. It
// does not guarantee the next Send will succeed, only that no failure has
// been observed yet.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed == nil {
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}
