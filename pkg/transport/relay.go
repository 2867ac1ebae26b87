package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomlink-project/roomlink-go/pkg/version"
)

// DefaultMaxMessageSize is the maximum control message size (64KB).
const DefaultMaxMessageSize = 64 * 1024

// DefaultHandshakeTimeout bounds the WebSocket upgrade plus the
// hello/welcome exchange.
const DefaultHandshakeTimeout = 30 * time.Second

// Relay control message types.
const (
	msgHello       = "hello"
	msgWelcome     = "welcome"
	msgPeerJoined  = "peer_joined"
	msgPeerLeft    = "peer_left"
	msgJoinCode    = "join_code"
	msgCredentials = "credentials"
	msgBye         = "bye"
)

// relayMessage is the JSON envelope for all relay control messages.
// Fields are populated depending on Type.
type relayMessage struct {
	Type        string       `json:"type"`
	DisplayName string       `json:"displayName,omitempty"`
	Tenant      string       `json:"tenant,omitempty"`
	Room        *RoomProfile `json:"room,omitempty"`
	JoinCode    string       `json:"joinCode,omitempty"`
	Peer        *Peer        `json:"peer,omitempty"`
	PeerID      string       `json:"peerId,omitempty"`
	Credential  string       `json:"credential,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// RelayConfig configures a RelayClient.
type RelayConfig struct {
	// Endpoint is the relay WebSocket URL (ws:// or wss://).
	Endpoint string

	// HandshakeTimeout bounds the upgrade and welcome exchange
	// (default: 30s).
	HandshakeTimeout time.Duration

	// MaxMessageSize is the maximum control message size (default: 64KB).
	MaxMessageSize int64

	// KeepAlive configuration.
	KeepAlive KeepAliveConfig

	// Logger receives transport diagnostics. Silent when nil.
	Logger *slog.Logger
}

// RelayClient maintains the host's control channel to the relay
// service. A single client supports repeated Connect/Disconnect
// cycles; at most one channel is established at a time.
type RelayClient struct {
	config RelayConfig
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	listener  EventListener
	connected bool
	closing   bool
	joinCode  string
	done      chan struct{}
}

// NewRelayClient creates a relay client for the given configuration.
func NewRelayClient(config RelayConfig) (*RelayClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("relay endpoint is required")
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	config.KeepAlive = config.KeepAlive.withDefaults()

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RelayClient{
		config: config,
		logger: logger,
	}, nil
}

// SetListener registers the listener that receives server-pushed events.
func (c *RelayClient) SetListener(l EventListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// Connected reports whether the control channel is established.
func (c *RelayClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// RemoteJoinCode returns the join code assigned by the relay, or an
// empty string when no channel is established.
func (c *RelayClient) RemoteJoinCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinCode
}

// Connect dials the relay, performs the hello/welcome handshake and
// starts the background read and keep-alive loops.
func (c *RelayClient) Connect(ctx context.Context, opts Options) (*RoomProfile, error) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
		Subprotocols:     version.SupportedSubprotocols(),
	}

	header := http.Header{}
	if opts.Credential != "" {
		header.Set("Authorization", "Bearer "+opts.Credential)
	}
	if opts.Tenant != "" {
		header.Set("X-Roomlink-Tenant", opts.Tenant)
	}

	conn, resp, err := dialer.DialContext(ctx, c.config.Endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w", c.config.Endpoint, &HandshakeError{StatusCode: resp.StatusCode})
		}
		return nil, fmt.Errorf("dial %s: %w", c.config.Endpoint, err)
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	profile, joinCode, err := c.handshake(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.closing = false
	c.joinCode = joinCode
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.readPump(conn)
	go c.pingLoop(conn, done)

	c.logger.Debug("relay connected",
		"endpoint", c.config.Endpoint,
		"room", profile.RoomID,
	)

	return profile, nil
}

// handshake sends hello and waits for the relay's welcome.
func (c *RelayClient) handshake(conn *websocket.Conn, opts Options) (*RoomProfile, string, error) {
	deadline := time.Now().Add(c.config.HandshakeTimeout)

	conn.SetWriteDeadline(deadline)
	hello := relayMessage{
		Type:        msgHello,
		DisplayName: opts.DisplayName,
		Tenant:      opts.Tenant,
	}
	if err := conn.WriteJSON(&hello); err != nil {
		return nil, "", fmt.Errorf("send hello: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	conn.SetReadDeadline(deadline)
	var welcome relayMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		return nil, "", fmt.Errorf("await welcome: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if welcome.Type != msgWelcome {
		return nil, "", fmt.Errorf("%w: unexpected message %q", ErrHandshakeFailed, welcome.Type)
	}
	if welcome.Room == nil {
		return nil, "", fmt.Errorf("%w: welcome carries no room profile", ErrHandshakeFailed)
	}

	profile := *welcome.Room
	return &profile, welcome.JoinCode, nil
}

// Disconnect closes the control channel gracefully. It is a no-op when
// no channel is established.
func (c *RelayClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(c.config.KeepAlive.WriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Debug("close frame write failed", "error", err)
	}

	// Give the relay a moment to complete the close handshake before
	// tearing the socket down.
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(time.Second):
	}

	c.teardown(conn, nil)
	return nil
}

// teardown transitions to disconnected exactly once per established
// channel. A non-nil err is delivered to the listener unless the
// teardown was initiated by a local Disconnect.
func (c *RelayClient) teardown(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if !c.connected || c.conn != conn {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.connected = false
	c.conn = nil
	c.joinCode = ""
	closing := c.closing
	listener := c.listener
	close(c.done)
	c.mu.Unlock()

	conn.Close()

	if closing || listener == nil {
		return
	}
	listener.OnDisconnected(err)
}

// readPump reads control messages until the connection fails or closes.
func (c *RelayClient) readPump(conn *websocket.Conn) {
	detection := c.config.KeepAlive.DetectionDelay()
	conn.SetReadDeadline(time.Now().Add(detection))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(detection))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("relay read error", "error", err)
			}
			c.teardown(conn, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(detection))

		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed relay message", "error", err)
			continue
		}
		c.handleMessage(conn, msg)
	}
}

// handleMessage dispatches one server-pushed control message.
func (c *RelayClient) handleMessage(conn *websocket.Conn, msg relayMessage) {
	c.mu.Lock()
	if !c.connected || c.conn != conn {
		c.mu.Unlock()
		return
	}
	listener := c.listener
	if msg.Type == msgJoinCode {
		c.joinCode = msg.JoinCode
	}
	c.mu.Unlock()

	if listener == nil {
		return
	}

	switch msg.Type {
	case msgPeerJoined:
		if msg.Peer != nil {
			listener.OnPeerJoined(*msg.Peer)
		}
	case msgPeerLeft:
		listener.OnPeerLeft(msg.PeerID)
	case msgJoinCode:
		listener.OnJoinCodeChanged(msg.JoinCode)
	case msgCredentials:
		listener.OnCredentialsRotated(msg.Credential, msg.Tenant)
	case msgBye:
		c.logger.Debug("relay sent bye", "reason", msg.Reason)
		c.teardown(conn, fmt.Errorf("%w: relay closed channel: %s", ErrConnectionClosed, msg.Reason))
	default:
		c.logger.Debug("ignoring relay message", "type", msg.Type)
	}
}

// pingLoop sends keep-alive pings until the channel is torn down.
func (c *RelayClient) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.config.KeepAlive.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.KeepAlive.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping write failed", "error", err)
				return
			}
		}
	}
}

// IsUnrecoverableRequestError reports whether err indicates a rejection
// that cannot succeed on retry with the same credential: an upgrade
// refused with 401/403, or a policy close code from the relay.
func (c *RelayClient) IsUnrecoverableRequestError(err error) bool {
	if err == nil {
		return false
	}

	var he *HandshakeError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case ClosePairingRejected, CloseTenantSuspended, CloseRegistrationRevoked:
			return true
		}
	}

	return false
}
