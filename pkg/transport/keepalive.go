package transport

import "time"

// Liveness defaults. With the stock settings a silent peer is noticed
// within 95 seconds: three 30s ping intervals plus one 5s pong wait.
const (
	DefaultPingInterval   = 30 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 3
	DefaultWriteTimeout   = 10 * time.Second
)

// KeepAliveConfig tunes how aggressively a control channel probes its
// peer and how long writes may stall before the channel counts as dead.
type KeepAliveConfig struct {
	// PingInterval is how often a ping frame goes out.
	PingInterval time.Duration

	// PongTimeout is how long a pong may take before the ping counts
	// as missed.
	PongTimeout time.Duration

	// MaxMissedPongs is how many pings may go unanswered in a row
	// before the channel is torn down.
	MaxMissedPongs int

	// WriteTimeout bounds each frame write, pings included.
	WriteTimeout time.Duration
}

// DefaultKeepAliveConfig returns the stock liveness settings.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// withDefaults fills unset or nonsensical fields from the defaults.
func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// DetectionDelay is the worst-case time between a peer going silent
// and this side noticing. The read deadline is set to this value and
// refreshed on every pong or data frame.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return time.Duration(c.MaxMissedPongs)*c.PingInterval + c.PongTimeout
}
