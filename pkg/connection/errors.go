package connection

import "errors"

// Connection errors.
var (
	// ErrPairingCodeRequired is returned by Connect when a backend is
	// configured but the request carries no pairing code. No network
	// attempt is made.
	ErrPairingCodeRequired = errors.New("pairing code required")

	// ErrAlreadyConnected is returned by Connect while a connect cycle
	// is in flight or a session is established. The active session is
	// left untouched.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrPairingRejected wraps failures where the backend or relay
	// permanently rejected the presented pairing code or credential.
	// Never retried.
	ErrPairingRejected = errors.New("pairing rejected")

	// ErrConnectAborted is returned by Connect when an explicit
	// Disconnect interrupts the connect or retry cycle.
	ErrConnectAborted = errors.New("connect aborted")

	// ErrSessionOpen is returned by Session.Open when the session was
	// already opened.
	ErrSessionOpen = errors.New("session already open")

	// ErrClosed is returned by operations on a closed Orchestrator.
	ErrClosed = errors.New("orchestrator closed")
)
