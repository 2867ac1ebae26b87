package connection

import (
	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Phase represents the orchestrator's lifecycle phase.
type Phase uint8

const (
	// PhaseIdle indicates no connect cycle is active.
	PhaseIdle Phase = iota

	// PhaseConnecting indicates a connection attempt is in progress.
	PhaseConnecting

	// PhaseConnected indicates an established control channel.
	PhaseConnected

	// PhaseRetrying indicates a backoff wait before the next attempt.
	PhaseRetrying

	// PhaseFailed indicates the connect cycle gave up. A new Connect
	// or an explicit Disconnect leaves this phase.
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseConnected:
		return "CONNECTED"
	case PhaseRetrying:
		return "RETRYING"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// State is a point-in-time snapshot of the orchestrator's connection
// state.
type State struct {
	// Phase is the current lifecycle phase.
	Phase Phase

	// HasEverConnected reports whether any connect succeeded during
	// the orchestrator's lifetime. Monotonic: once true, it stays true.
	HasEverConnected bool

	// JoinCode is the last join code assigned by the relay.
	JoinCode string

	// Credential is the last credential applied to the connection.
	Credential string

	// Tenant is the last tenant namespace applied to the connection.
	Tenant string

	// Peers is the set of currently connected peers, sorted by ID.
	Peers []transport.Peer
}
