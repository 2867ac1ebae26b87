package connection

import (
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Event types for orchestrator callbacks.
type EventType uint8

const (
	// EventConnected - control channel established.
	EventConnected EventType = iota

	// EventIdentityEstablished - backend-brokered identity applied.
	// Emitted only when a backend is configured.
	EventIdentityEstablished

	// EventPeerJoined - a peer joined the room.
	EventPeerJoined

	// EventPeerLeft - a peer left the room.
	EventPeerLeft

	// EventJoinCodeChanged - the relay assigned a new join code.
	EventJoinCodeChanged

	// EventCredentialsRotated - the relay rotated the host credential.
	EventCredentialsRotated

	// EventRetryScheduled - a reconnect attempt was scheduled.
	EventRetryScheduled

	// EventDisconnected - the control channel closed.
	EventDisconnected

	// EventTerminalFailure - the connect cycle gave up.
	EventTerminalFailure
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventIdentityEstablished:
		return "IDENTITY_ESTABLISHED"
	case EventPeerJoined:
		return "PEER_JOINED"
	case EventPeerLeft:
		return "PEER_LEFT"
	case EventJoinCodeChanged:
		return "JOIN_CODE_CHANGED"
	case EventCredentialsRotated:
		return "CREDENTIALS_ROTATED"
	case EventRetryScheduled:
		return "RETRY_SCHEDULED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventTerminalFailure:
		return "TERMINAL_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Event represents an orchestrator event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Credential is the applied credential (identity and rotation
	// events).
	Credential string

	// Tenant is the applied tenant namespace (identity and rotation
	// events).
	Tenant string

	// RoomID is the assigned room (connected and identity events).
	RoomID string

	// RoomName is the assigned room's display name.
	RoomName string

	// Peer is the affected peer (peer-joined events).
	Peer transport.Peer

	// PeerID is the affected peer's ID (peer-left events).
	PeerID string

	// JoinCode is the assigned join code (connected and join-code
	// events).
	JoinCode string

	// Attempt is the retry attempt number (retry events).
	Attempt int

	// Delay is the scheduled backoff delay (retry events).
	Delay time.Duration

	// Error is set if the event reports a failure.
	Error error
}

// EventHandler handles orchestrator events.
type EventHandler func(Event)
