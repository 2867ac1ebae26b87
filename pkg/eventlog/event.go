package eventlog

import "time"

// Event represents a lifecycle log event captured by the host.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// CycleID uniquely identifies one connect cycle (UUID). All events
	// between a connect request and the matching teardown share an ID.
	CycleID string `cbor:"2,keyasint"`

	// HostID is the stable host identifier.
	HostID string `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Tenant is the tenant identifier (populated once registered).
	Tenant string `cbor:"5,keyasint,omitempty"`

	// RoomID is the assigned room (populated once connected).
	RoomID string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Phase   *PhaseEvent     `cbor:"7,keyasint,omitempty"`  // Lifecycle phase transitions
	Retry   *RetryEvent     `cbor:"8,keyasint,omitempty"`  // Scheduled reconnect attempts
	Peer    *PeerEvent      `cbor:"9,keyasint,omitempty"`  // Peer arrivals/departures
	Pairing *PairingEvent   `cbor:"10,keyasint,omitempty"` // Pairing code issuance
	Error   *ErrorEventData `cbor:"11,keyasint,omitempty"` // Failures at any stage
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPhase indicates a lifecycle phase transition.
	CategoryPhase Category = 0
	// CategoryRetry indicates a scheduled reconnect attempt.
	CategoryRetry Category = 1
	// CategoryPeer indicates a peer joining or leaving the room.
	CategoryPeer Category = 2
	// CategoryPairing indicates pairing code issuance or clearing.
	CategoryPairing Category = 3
	// CategoryError indicates a failure event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPhase:
		return "PHASE"
	case CategoryRetry:
		return "RETRY"
	case CategoryPeer:
		return "PEER"
	case CategoryPairing:
		return "PAIRING"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// PhaseEvent captures a lifecycle phase transition.
type PhaseEvent struct {
	// From is the previous phase name.
	From string `cbor:"1,keyasint"`

	// To is the new phase name.
	To string `cbor:"2,keyasint"`

	// Reason describes what triggered the transition (optional).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// RetryEvent captures a scheduled reconnect attempt.
type RetryEvent struct {
	// Attempt is the attempt number within the current cycle (1-based).
	Attempt int `cbor:"1,keyasint"`

	// Delay is the wait before the attempt fires.
	Delay time.Duration `cbor:"2,keyasint"`
}

// PeerEvent captures a remote or observer joining or leaving the room.
type PeerEvent struct {
	// PeerID identifies the peer within the room.
	PeerID string `cbor:"1,keyasint"`

	// Kind is the peer kind ("remote" or "observer").
	Kind string `cbor:"2,keyasint,omitempty"`

	// Joined is true for arrivals, false for departures.
	Joined bool `cbor:"3,keyasint"`
}

// PairingAction identifies what happened to the long-lived pairing code.
type PairingAction uint8

const (
	// PairingIssued indicates a fresh code was issued by the backend.
	PairingIssued PairingAction = 0
	// PairingRefreshed indicates an expiring code was replaced.
	PairingRefreshed PairingAction = 1
	// PairingCleared indicates the stored code was discarded.
	PairingCleared PairingAction = 2
)

// String returns the action name.
func (a PairingAction) String() string {
	switch a {
	case PairingIssued:
		return "ISSUED"
	case PairingRefreshed:
		return "REFRESHED"
	case PairingCleared:
		return "CLEARED"
	default:
		return "UNKNOWN"
	}
}

// PairingEvent captures long-lived pairing code lifecycle.
// The code itself is never logged.
type PairingEvent struct {
	// Action is what happened to the code.
	Action PairingAction `cbor:"1,keyasint"`

	// ExpiresAt is the code expiry (zero for PairingCleared).
	ExpiresAt time.Time `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures a failure during connect, pairing, or an
// established session.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes where the error occurred (e.g. "register", "dial").
	Context string `cbor:"2,keyasint,omitempty"`

	// Terminal is true when the failure ends the connect cycle for good.
	Terminal bool `cbor:"3,keyasint"`
}
