package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// BrokerConfig configures a Broker. Mirrors the teacher's
// DaemonConfig/DefaultDaemonConfig shape (internal/daemon/daemon.go).
type BrokerConfig struct {
	// Addr is the TCP loopback address to listen on, e.g. "127.0.0.1:19755".
	Addr string

	// MaxFrameSize caps a single line-framed message (default 64 KiB).
	MaxFrameSize int

	// OutboundQueueSize bounds each client's outbound queue (default 256).
	OutboundQueueSize int

	// MaxMalformedFrames disconnects a client after this many consecutive
	// malformed frames (spec.md section 4.1: threshold 3).
	MaxMalformedFrames int
}

// DefaultBrokerConfig returns sensible defaults per spec.md section 4.1/6.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Addr:               "127.0.0.1:19755",
		MaxFrameSize:       DefaultMaxFrameSize,
		OutboundQueueSize:  DefaultOutboundQueueSize,
		MaxMalformedFrames: 3,
	}
}

// Broker is the daemon-side IPC hub: it accepts bus clients over a TCP
// loopback listener and fans out broadcasts to them with per-client
// back-pressure (spec.md section 4.1).
type Broker struct {
	config   BrokerConfig
	listener net.Listener

	clients sync.Map // map[string]*brokerClient

	clientCount atomic.Int64

	// Handler is invoked for every inbound Message from any client. It may
	// be nil, in which case inbound messages are dropped (useful for a
	// broker embedded in tests).
	Handler func(clientID string, msg Message)

	wg       sync.WaitGroup
	closeMu  sync.Mutex
	closed   bool
}

// brokerClient is the broker's bookkeeping for one connected bus client.
// Its lifetime runs from accept to first send/receive error or disconnect,
// per spec.md section 3's BusClient definition.
type brokerClient struct {
	id       string
	conn     net.Conn
	outbound chan Message
	fr       *frameReader

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Broker bound to config.Addr. Call Start to begin accepting.
func New(config BrokerConfig) *Broker {
	if config.Addr == "" {
		config.Addr = DefaultBrokerConfig().Addr
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.OutboundQueueSize <= 0 {
		config.OutboundQueueSize = DefaultOutboundQueueSize
	}
	if config.MaxMalformedFrames <= 0 {
		config.MaxMalformedFrames = 3
	}
	return &Broker{config: config}
}

// Start binds the listener and begins the accept loop in the background.
func (b *Broker) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.config.Addr)
	if err != nil {
		return &TransientError{Op: "listen", Err: err}
	}
	b.listener = ln

	b.wg.Add(1)
	go b.acceptLoop(ctx)
	return nil
}

// Addr returns the actual listen address (useful when Addr is ":0").
func (b *Broker) Addr() string {
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

func (b *Broker) acceptLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if b.isClosed() {
				return
			}
			log.Printf("[bus] accept error: %v", err)
			continue
		}

		id := uuid.NewString()
		bc := &brokerClient{
			id:       id,
			conn:     conn,
			outbound: make(chan Message, b.config.OutboundQueueSize),
			fr:       newFrameReader(conn, b.config.MaxFrameSize),
			closed:   make(chan struct{}),
		}
		b.clients.Store(id, bc)
		b.clientCount.Add(1)

		b.wg.Add(2)
		go b.readLoop(ctx, bc)
		go b.writeLoop(bc)
	}
}

// readLoop is the per-client reader task (spec.md section 4.1: "a per-client
// reader task"). It owns the read half of the connection exclusively.
func (b *Broker) readLoop(ctx context.Context, bc *brokerClient) {
	defer b.wg.Done()
	defer b.disconnect(bc)

	malformed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-bc.closed:
			return
		default:
		}

		line, err := bc.fr.readFrame()
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				log.Printf("[bus] client %s: %v", bc.id, &FatalError{Op: "read-frame", Err: err})
			}
			return // EOF, reset, or ErrFrameTooLarge: broker.disconnect cleans up
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			malformed++
			log.Printf("[bus] client %s: malformed frame (%d/%d): %v", bc.id, malformed, b.config.MaxMalformedFrames, err)
			if malformed >= b.config.MaxMalformedFrames {
				fatalErr := &FatalError{Op: "malformed-frame-threshold", Err: fmt.Errorf("%d consecutive malformed frames", malformed)}
				log.Printf("[bus] client %s: disconnecting: %v", bc.id, fatalErr)
				return
			}
			continue
		}
		malformed = 0

		if b.Handler != nil {
			b.Handler(bc.id, msg)
		}
	}
}

// writeLoop is the per-client writer task; it owns the write half of the
// connection exclusively, never sharing it with readLoop (spec.md section
// 4.1: "single-writer/single-reader discipline on their stream via two
// tasks that never share the same half").
func (b *Broker) writeLoop(bc *brokerClient) {
	defer b.wg.Done()
	for {
		select {
		case <-bc.closed:
			return
		case msg, ok := <-bc.outbound:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("[bus] client %s: marshal error: %v", bc.id, err)
				continue
			}
			if err := writeFrame(bc.conn, data); err != nil {
				log.Printf("[bus] client %s: write error, dropping: %v", bc.id, err)
				go b.disconnect(bc)
				return
			}
		}
	}
}

func (b *Broker) disconnect(bc *brokerClient) {
	bc.closeOnce.Do(func() {
		close(bc.closed)
		bc.conn.Close()
		if _, loaded := b.clients.LoadAndDelete(bc.id); loaded {
			b.clientCount.Add(-1)
		}
	})
}

// Broadcast enqueues msg on every connected client's outbound queue except
// the one identified by except (pass "" to exclude none). A client whose
// queue is already full is disconnected rather than having the message
// silently dropped while it stays connected (spec.md section 4.1).
func (b *Broker) Broadcast(msg Message, except string) {
	b.clients.Range(func(_, value any) bool {
		bc := value.(*brokerClient)
		if bc.id == except {
			return true
		}
		b.enqueue(bc, msg)
		return true
	})
}

// SendTo delivers msg to a single client by id. It reports whether the
// client existed.
func (b *Broker) SendTo(id string, msg Message) bool {
	v, ok := b.clients.Load(id)
	if !ok {
		return false
	}
	b.enqueue(v.(*brokerClient), msg)
	return true
}

func (b *Broker) enqueue(bc *brokerClient, msg Message) {
	select {
	case bc.outbound <- msg:
	default:
		log.Printf("[bus] client %s: %v, disconnecting", bc.id, ErrOutboundQueueFull)
		go b.disconnect(bc)
	}
}

// ClientCount returns the number of currently connected clients.
func (b *Broker) ClientCount() int64 {
	return b.clientCount.Load()
}

func (b *Broker) isClosed() bool {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	return b.closed
}

// Stop closes the listener and all client connections, then waits for the
// accept/read/write goroutines to exit.
func (b *Broker) Stop() error {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return nil
	}
	b.closed = true
	b.closeMu.Unlock()

	if b.listener != nil {
		b.listener.Close()
	}
	b.clients.Range(func(_, value any) bool {
		b.disconnect(value.(*brokerClient))
		return true
	})
	b.wg.Wait()
	return nil
}
