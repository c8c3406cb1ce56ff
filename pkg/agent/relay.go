// pkg/agent/relay.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State describes the relay's connection lifecycle:
// Disconnected -> Connecting -> Connected -> Disconnected.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned when a start frame is sent while the channel
// is down. Callers must not expose the send action in that state.
var ErrNotConnected = errors.New("relay not connected")

// DefaultReconnectDelay is the fixed delay between reconnect attempts.
// There is no backoff growth and no retry cap: the relay retries forever,
// a simplicity trade-off for a development tool.
const DefaultReconnectDelay = 3 * time.Second

// Conn is the minimal duplex channel the relay needs. The production
// implementation wraps a websocket connection; tests inject pipes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a Conn to the agent at the given URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Handler receives every inbound frame in arrival order.
type Handler func(frame *Frame)

// Relay maintains one long-lived duplex channel to the external agent,
// dispatches inbound frames to its handler, and reconnects on any drop that
// was not an explicit teardown.
type Relay struct {
	url            string
	dial           Dialer
	handler        Handler
	onStateChange  func(State)
	reconnectDelay time.Duration

	mu    sync.Mutex
	state State
	conn  Conn

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Relay.
type Option func(*Relay)

// WithDialer replaces the websocket dialer, used by tests.
func WithDialer(dial Dialer) Option {
	return func(r *Relay) { r.dial = dial }
}

// WithReconnectDelay overrides the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(r *Relay) { r.reconnectDelay = d }
}

// WithStateChange sets a callback invoked on every state transition, used
// to surface the connected/reconnecting indicator.
func WithStateChange(fn func(State)) Option {
	return func(r *Relay) { r.onStateChange = fn }
}

// NewRelay creates a relay for the agent at url. Frames are delivered to
// handler from the relay's read loop.
func NewRelay(url string, handler Handler, opts ...Option) *Relay {
	r := &Relay{
		url:            url,
		dial:           websocketDialer,
		handler:        handler,
		reconnectDelay: DefaultReconnectDelay,
		state:          Disconnected,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the relay's current connection state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	changed := r.state != s
	r.state = s
	r.mu.Unlock()
	if changed && r.onStateChange != nil {
		r.onStateChange(s)
	}
}

// Start runs the connect/read/reconnect loop until the context is cancelled
// or Close is called.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		defer r.setState(Disconnected)
		for {
			if err := r.connectAndRead(ctx); err != nil {
				slog.Warn("relay disconnected", "error", err, "retry_in", r.reconnectDelay)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.reconnectDelay):
			}
		}
	}()
}

// connectAndRead dials the agent and pumps inbound frames until the
// connection drops or the context is cancelled.
func (r *Relay) connectAndRead(ctx context.Context) error {
	r.setState(Connecting)

	conn, err := r.dial(ctx, r.url)
	if err != nil {
		r.setState(Disconnected)
		return fmt.Errorf("dial agent: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.state = Connected
	r.mu.Unlock()
	if r.onStateChange != nil {
		r.onStateChange(Connected)
	}
	slog.Info("relay connected", "url", r.url)

	// Close the connection when the context is cancelled so ReadMessage
	// unblocks.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			r.setState(Disconnected)
			return fmt.Errorf("read frame: %w", err)
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			slog.Warn("relay dropped malformed frame", "error", err)
			continue
		}
		if r.handler != nil {
			r.handler(frame)
		}
	}
}

// SendStart sends the start frame for one turn. Fails with ErrNotConnected
// while the channel is down.
func (r *Relay) SendStart(sessionID, prompt, userMessage string) error {
	r.mu.Lock()
	conn := r.conn
	connected := r.state == Connected
	r.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteJSON(NewStartFrame(sessionID, prompt, userMessage)); err != nil {
		return fmt.Errorf("send start frame: %w", err)
	}
	return nil
}

// Close tears the relay down. No reconnect is scheduled after an explicit
// close.
func (r *Relay) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	if r.done != nil {
		<-r.done
	}
}

// wsConn adapts a gorilla websocket connection to the Conn interface.
type wsConn struct {
	*websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

func websocketDialer(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{c}, nil
}
