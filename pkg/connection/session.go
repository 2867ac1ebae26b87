package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomlink-project/roomlink-go/pkg/backend"
	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Backend brokers host registration with the pairing service.
// Implemented by backend.Client. Optional: a nil Backend runs the
// connection in standalone mode.
type Backend interface {
	// Register validates the pairing code and issues the host's
	// credential.
	Register(ctx context.Context, pairingCode string) (*backend.Registration, error)

	// Tenant returns the tenant namespace issued at registration.
	Tenant() string

	// JWT returns the credential issued at registration.
	JWT() string
}

// SessionResult carries the metadata produced by one successful
// connect. It is applied to the connection state atomically or
// discarded as a whole.
type SessionResult struct {
	// Credential is the token the session authenticated with.
	Credential string

	// Tenant is the namespace the session is scoped to.
	Tenant string

	// JoinCode is the join code assigned by the relay.
	JoinCode string

	// Profile is the room profile assigned by the relay.
	Profile *transport.RoomProfile
}

// SessionObserver receives domain events from an open session.
// A session delivers no events before Open and none after Close.
type SessionObserver interface {
	// PeerJoined is invoked when a peer joins the room.
	PeerJoined(peer transport.Peer)

	// PeerLeft is invoked when a peer leaves the room.
	PeerLeft(peerID string)

	// CredentialsRotated is invoked when the relay rotates the host
	// credential.
	CredentialsRotated(credential, tenant string)

	// JoinCodeRotated is invoked when the relay assigns a new join
	// code.
	JoinCodeRotated(code string)

	// Disconnected is invoked once when the control channel drops.
	Disconnected(err error)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Conn is the transport the session runs over. Required.
	Conn transport.Conn

	// Backend brokers registration. Optional.
	Backend Backend

	// Observer receives the session's domain events. Required.
	Observer SessionObserver

	// PairingCode is presented to the backend during Open.
	PairingCode string

	// DisplayName is announced to the relay during Open.
	DisplayName string
}

// Session represents exactly one attempt-to-teardown lifecycle of the
// control channel. A session can be opened once; create a new session
// for each attempt.
type Session struct {
	conn        transport.Conn
	backend     Backend
	observer    SessionObserver
	pairingCode string
	displayName string

	mu     sync.Mutex
	opened bool
	closed bool
}

// NewSession creates a session for one connection attempt.
func NewSession(config SessionConfig) *Session {
	return &Session{
		conn:        config.Conn,
		backend:     config.Backend,
		observer:    config.Observer,
		pairingCode: config.PairingCode,
		displayName: config.DisplayName,
	}
}

// Open registers with the backend (when configured) and establishes
// the control channel. Unrecoverable rejections are wrapped with
// ErrPairingRejected; everything else is transient.
func (s *Session) Open(ctx context.Context) (*SessionResult, error) {
	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return nil, ErrSessionOpen
	}
	s.opened = true
	s.mu.Unlock()

	var credential, tenant string
	if s.backend != nil {
		if _, err := s.backend.Register(ctx, s.pairingCode); err != nil {
			if backend.IsAuthRejection(err) {
				return nil, fmt.Errorf("%w: %w", ErrPairingRejected, err)
			}
			return nil, fmt.Errorf("backend registration: %w", err)
		}
		credential = s.backend.JWT()
		tenant = s.backend.Tenant()
	}

	s.conn.SetListener(s)
	profile, err := s.conn.Connect(ctx, transport.Options{
		Credential:  credential,
		Tenant:      tenant,
		DisplayName: s.displayName,
	})
	if err != nil {
		if s.conn.IsUnrecoverableRequestError(err) {
			return nil, fmt.Errorf("%w: %w", ErrPairingRejected, err)
		}
		return nil, fmt.Errorf("transport connect: %w", err)
	}

	return &SessionResult{
		Credential: credential,
		Tenant:     tenant,
		JoinCode:   s.conn.RemoteJoinCode(),
		Profile:    profile,
	}, nil
}

// Close tears the session down. Idempotent: closing an already-closed
// session returns nil.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.conn.Disconnect(ctx)
}

// Active reports whether the session has been opened and not yet
// closed.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened && !s.closed
}

// stale reports whether events should be dropped.
func (s *Session) stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.opened || s.closed
}

// OnPeerJoined implements transport.EventListener.
func (s *Session) OnPeerJoined(peer transport.Peer) {
	if s.stale() {
		return
	}
	s.observer.PeerJoined(peer)
}

// OnPeerLeft implements transport.EventListener.
func (s *Session) OnPeerLeft(peerID string) {
	if s.stale() {
		return
	}
	s.observer.PeerLeft(peerID)
}

// OnCredentialsRotated implements transport.EventListener.
func (s *Session) OnCredentialsRotated(credential, tenant string) {
	if s.stale() {
		return
	}
	s.observer.CredentialsRotated(credential, tenant)
}

// OnJoinCodeChanged implements transport.EventListener.
func (s *Session) OnJoinCodeChanged(code string) {
	if s.stale() {
		return
	}
	s.observer.JoinCodeRotated(code)
}

// OnDisconnected implements transport.EventListener. The drop closes
// the session; later events are discarded.
func (s *Session) OnDisconnected(err error) {
	s.mu.Lock()
	if !s.opened || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.observer.Disconnected(err)
}

// Compile-time interface satisfaction checks.
var (
	_ transport.EventListener = (*Session)(nil)
	_ Backend                 = (*backend.Client)(nil)
)
