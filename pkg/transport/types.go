package transport

import (
	"errors"
	"fmt"
)

// Transport errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrHandshakeFailed  = errors.New("relay handshake failed")
)

// Relay close codes in the application-reserved range (RFC 6455 §7.4.2).
const (
	// ClosePairingRejected indicates the relay rejected the host's
	// pairing credential. Reconnecting with the same credential
	// cannot succeed.
	ClosePairingRejected = 4001

	// CloseTenantSuspended indicates the tenant namespace is suspended.
	CloseTenantSuspended = 4002

	// CloseRegistrationRevoked indicates the host's registration was
	// revoked by the backend. Reconnecting with the same credential
	// cannot succeed.
	CloseRegistrationRevoked = 4003
)

// Options carries the parameters for a single connection attempt.
type Options struct {
	// Credential is the bearer token presented to the relay.
	// Empty in standalone (no backend) mode.
	Credential string

	// Tenant scopes the connection to a customer namespace.
	Tenant string

	// DisplayName is the human-readable host name announced to peers.
	DisplayName string
}

// RoomProfile describes the room the relay assigned to the host.
type RoomProfile struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName,omitempty"`
}

// PeerKind classifies a connected peer.
type PeerKind string

const (
	// PeerKindRemote is a remote controller driving the room.
	PeerKindRemote PeerKind = "remote"

	// PeerKindObserver is a read-only participant.
	PeerKindObserver PeerKind = "observer"
)

// Peer identifies a participant connected to the host's room.
type Peer struct {
	ID   string   `json:"id"`
	Kind PeerKind `json:"kind"`
}

// HandshakeError reports a rejected WebSocket upgrade.
type HandshakeError struct {
	// StatusCode is the HTTP status of the failed upgrade response.
	StatusCode int
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("relay refused handshake: status %d", e.StatusCode)
}
