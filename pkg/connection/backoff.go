package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Retry timing defaults: delays double from one second up to a minute,
// with up to 25% random jitter added on top.
const (
	InitialBackoff    = 1 * time.Second
	MaxBackoff        = 60 * time.Second
	BackoffMultiplier = 2.0
	JitterFactor      = 0.25
)

// Backoff calculates exponential backoff delays with jitter. The delay
// grows with the tracked attempt count; Reset starts a new cycle.
type Backoff struct {
	mu sync.Mutex

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	rng *rand.Rand
}

// NewBackoff creates a backoff calculator with the default timing,
// jitter included.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	})
}

// BackoffConfig overrides the retry timing. Zero durations and
// multiplier fall back to the package defaults; a zero Jitter disables
// jitter, which keeps test timing deterministic.
type BackoffConfig struct {
	Initial    time.Duration // first retry delay
	Max        time.Duration // delay ceiling
	Multiplier float64       // growth factor per attempt
	Jitter     float64       // random fraction added to each delay
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// NewBackoffWithConfig creates a backoff calculator with custom timing.
// Out-of-range values fall back to the defaults rather than erroring.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next advances the attempt counter and returns the jittered delay for
// the new attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	return b.jittered(b.baseForAttempt(b.attempts))
}

// Peek returns the delay the next call to Next would produce, without
// advancing the attempt counter.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jittered(b.baseForAttempt(b.attempts + 1))
}

// DelayForAttempt returns the jittered delay for the given attempt
// number without touching the tracked counter. Attempt numbers below 1
// are treated as 1, so the result is always at least the initial delay.
func (b *Backoff) DelayForAttempt(attempt int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jittered(b.baseForAttempt(attempt))
}

// Reset clears the attempt counter; the next delay starts over from the
// initial value.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts reports how many delays have been handed out since the last
// Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay (without jitter) the next attempt
// would use.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseForAttempt(b.attempts + 1)
}

// baseForAttempt computes the un-jittered delay for an attempt number.
func (b *Backoff) baseForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * b.multiplier)
		if d >= b.max {
			return b.max
		}
	}
	return d
}

// jittered stretches a delay by a random amount up to the jitter
// fraction.
func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	span := float64(d) * b.jitter
	return d + time.Duration(b.rng.Float64()*span)
}

// BackoffSequence returns the base delays (without jitter) the default
// configuration walks through, ending at the ceiling.
func BackoffSequence() []time.Duration {
	seq := []time.Duration{InitialBackoff}
	for d := InitialBackoff; d < MaxBackoff; {
		d = time.Duration(float64(d) * BackoffMultiplier)
		if d > MaxBackoff {
			d = MaxBackoff
		}
		seq = append(seq, d)
	}
	return seq
}
