package host

import (
	"errors"
	"log/slog"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/backend"
	"github.com/roomlink-project/roomlink-go/pkg/connection"
	"github.com/roomlink-project/roomlink-go/pkg/discovery"
	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Sentinel errors returned by Service operations.
var (
	ErrNotStarted      = errors.New("host service not started")
	ErrAlreadyStarted  = errors.New("host service already started")
	ErrInvalidConfig   = errors.New("invalid host configuration")
	ErrNoBackend       = errors.New("no pairing backend configured")
	ErrCodeExpired     = errors.New("stored pairing code expired")
	ErrSettingsVersion = errors.New("settings file from a newer version")
)

// ServiceState tracks where the host service is in its lifecycle.
// Stopped is not terminal: a stopped service can be started again.
type ServiceState uint8

const (
	StateIdle     ServiceState = iota // created, never started
	StateStarting                     // Start in progress
	StateRunning                      // orchestrator live, upkeep loops running
	StateStopping                     // Stop in progress
	StateStopped                      // stopped; Start may be called again
)

var serviceStateNames = [...]string{
	StateIdle:     "IDLE",
	StateStarting: "STARTING",
	StateRunning:  "RUNNING",
	StateStopping: "STOPPING",
	StateStopped:  "STOPPED",
}

// String returns the state name.
func (s ServiceState) String() string {
	if int(s) < len(serviceStateNames) {
		return serviceStateNames[s]
	}
	return "UNKNOWN"
}

// Config configures a host Service.
type Config struct {
	// HostID is the stable host identifier. Required.
	HostID string

	// DisplayName is the user-facing host name. Persisted settings
	// override this value on Start.
	DisplayName string

	// Transport is the control channel to the relay. Required.
	Transport transport.Conn

	// Backend brokers registration and pairing codes. Optional; nil
	// runs the host without a pairing backend.
	Backend *backend.Client

	// SettingsStore persists host settings across restarts. Optional.
	SettingsStore *SettingsStore

	// Advertiser publishes the host on the LAN while connected. Optional.
	Advertiser discovery.Advertiser

	// AdvertisePort is the SRV port for the LAN advertisement.
	AdvertisePort uint16

	// Backoff configures reconnection timing.
	Backoff connection.BackoffConfig

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration

	// PairingRefreshInterval is how often the permanent pairing code is
	// checked for staleness (default: 5 minutes).
	PairingRefreshInterval time.Duration

	// EventLogger captures lifecycle events for later analysis.
	// If nil, capture is disabled.
	EventLogger eventlog.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:         30 * time.Second,
		PairingRefreshInterval: 5 * time.Minute,
		Backoff: connection.BackoffConfig{
			Initial:    1 * time.Second,
			Max:        60 * time.Second,
			Multiplier: 2.0,
			Jitter:     0.25,
		},
	}
}

// Validate checks if the host config is valid.
func (c *Config) Validate() error {
	if c.HostID == "" {
		return ErrInvalidConfig
	}
	if c.Transport == nil {
		return ErrInvalidConfig
	}
	return nil
}
