package transport

import (
	"context"
)

// Conn is the control channel between a host and the relay service.
// Implemented by RelayClient.
type Conn interface {
	// Connect establishes the control channel and performs the
	// handshake. It returns the room profile assigned by the relay.
	Connect(ctx context.Context, opts Options) (*RoomProfile, error)

	// Disconnect closes the control channel. Calling Disconnect on a
	// connection that is not established is a no-op.
	Disconnect(ctx context.Context) error

	// Connected reports whether the control channel is established.
	Connected() bool

	// RemoteJoinCode returns the short-lived join code the relay
	// assigned for remotes to locate this host. Empty until the
	// handshake completes.
	RemoteJoinCode() string

	// SetListener registers the listener that receives server-pushed
	// events. Must be called before Connect; a nil listener silences
	// event delivery.
	SetListener(l EventListener)

	// IsUnrecoverableRequestError reports whether err indicates a
	// failure that cannot succeed on retry with the same credential,
	// such as a revoked registration.
	IsUnrecoverableRequestError(err error) bool
}

// EventListener receives server-pushed events from an established
// control channel. Methods are invoked sequentially from the
// connection's read loop and must not block.
type EventListener interface {
	// OnPeerJoined is invoked when a peer joins the host's room.
	OnPeerJoined(peer Peer)

	// OnPeerLeft is invoked when a peer leaves the host's room.
	OnPeerLeft(peerID string)

	// OnCredentialsRotated is invoked when the relay rotates the
	// host's credential.
	OnCredentialsRotated(credential, tenant string)

	// OnJoinCodeChanged is invoked when the relay assigns a new join
	// code to the host's room.
	OnJoinCodeChanged(code string)

	// OnDisconnected is invoked once when the control channel is lost
	// for any reason other than a local Disconnect call.
	OnDisconnected(err error)
}

// Compile-time interface satisfaction checks.
var (
	_ Conn = (*RelayClient)(nil)
)
