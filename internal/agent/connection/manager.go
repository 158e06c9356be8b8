// Package connection manages the transport connection to the local signing agent.
package connection

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// DefaultEndpoint is the well-known loopback address of the local agent.
const DefaultEndpoint = "wss://127.0.0.1:13579/"

// Default transport limits.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadLimit        = 32 << 20
	closeWriteTimeout       = time.Second
)

// Options configures a Manager.
type Options struct {
	// Endpoint is the agent WebSocket URL. Defaults to DefaultEndpoint.
	Endpoint string

	// TLSConfig is used for wss:// endpoints.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds the opening handshake. Zero means
	// DefaultHandshakeTimeout; a negative value disables the bound.
	HandshakeTimeout time.Duration

	// ReadLimit caps a single inbound frame. Defaults to DefaultReadLimit.
	ReadLimit int64

	// Logger for connection events. Defaults to logger.Default().
	Logger logger.Logger

	// OnStateChange is called after every state transition, with the
	// Manager lock held. It must not call back into the Manager.
	OnStateChange func(State)
}

// Manager owns one connection to the local agent.
//
// At most one live connection exists per Manager. Inbound text frames are
// delivered from a single read goroutine to every registered handler in
// registration order.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer
	log    logger.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
	done  chan struct{}

	writeMu  sync.Mutex
	handlers registry
}

// NewManager creates a new connection manager in the Disconnected state.
func NewManager(opts Options) *Manager {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.HandshakeTimeout < 0 {
		opts.HandshakeTimeout = 0
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	return &Manager{
		opts: opts,
		dialer: &websocket.Dialer{
			TLSClientConfig:  opts.TLSConfig,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		log:   opts.Logger.With("component", "agent_connection", "endpoint", opts.Endpoint),
		state: StateDisconnected,
	}
}

// Connect opens the connection and returns once the handshake completes.
// It returns an error wrapping domain.ErrConnection if the handshake fails.
// Connecting an already connected Manager is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil
	case StateConnecting:
		m.mu.Unlock()
		return domain.ErrConnection.WithDetails("handshake already in progress")
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.log.Debug("connecting to agent")

	conn, resp, err := m.dialer.DialContext(ctx, m.opts.Endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.mu.Lock()
		m.setStateLocked(StateFailed)
		m.mu.Unlock()

		m.log.Warn("agent handshake failed", "error", err)
		return domain.ErrConnection.WithCause(err)
	}

	m.mu.Lock()
	if m.state != StateConnecting {
		// Disconnect was called while the handshake was in flight.
		m.mu.Unlock()
		conn.Close()
		return domain.ErrConnection.WithDetails("disconnected during handshake")
	}
	conn.SetReadLimit(m.opts.ReadLimit)
	done := make(chan struct{})
	m.conn = conn
	m.done = done
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	go m.readLoop(conn, done)

	m.log.Info("connected to agent")
	return nil
}

// Disconnect closes the connection if present and sets the state to
// Disconnected. It is idempotent and safe on a never-connected Manager.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if conn == nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	conn.Close()

	m.log.Info("disconnected from agent")
}

// Send serializes v as JSON and transmits it as one text frame.
// It returns domain.ErrNotConnected unless the state is Connected.
// Nothing is queued.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		return domain.ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return domain.ErrConnection.WithDetails("write failed").WithCause(err)
	}
	return nil
}

// OnMessage appends handler to the registry. The handler stays registered,
// across reconnects, until its Subscription is cancelled.
func (m *Manager) OnMessage(handler Handler) *Subscription {
	return &Subscription{reg: &m.handlers, entry: m.handlers.add(handler)}
}

// Handlers returns the number of registered handlers.
func (m *Manager) Handlers() int {
	return m.handlers.len()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected returns true if the connection is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Done returns a channel that is closed when the current connection ends.
// Without a connection it returns an already closed channel.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || m.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return m.done
}

// Endpoint returns the agent URL.
func (m *Manager) Endpoint() string {
	return m.opts.Endpoint
}

// readLoop delivers inbound frames until the connection ends.
func (m *Manager) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			m.connectionLost(conn, err)
			return
		}
		if msgType != websocket.TextMessage {
			m.log.Debug("ignoring non-text frame", "type", msgType)
			continue
		}
		m.handlers.dispatch(data)
	}
}

// connectionLost resets the state when the connection ends without a
// Disconnect call. Pending operations are not resolved here.
func (m *Manager) connectionLost(conn *websocket.Conn, err error) {
	m.mu.Lock()
	current := m.conn == conn
	if current {
		m.conn = nil
		m.setStateLocked(StateDisconnected)
	}
	m.mu.Unlock()

	if !current {
		return
	}

	conn.Close()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.log.Info("agent closed connection")
		return
	}
	m.log.Warn("agent connection lost", "error", err)
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}
