package discovery

import (
	"context"
	"time"
)

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// AdvertiseHost starts advertising the host service.
	// Calling it again replaces the current advertisement.
	AdvertiseHost(ctx context.Context, info *HostInfo) error

	// UpdateHost updates TXT records for the running advertisement.
	// Returns ErrNotAdvertising if AdvertiseHost has not been called.
	UpdateHost(info *HostInfo) error

	// StopHost stops advertising the host service.
	StopHost() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface by
	// name. Empty advertises on all interfaces.
	Interface string

	// TTL for the published DNS records.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns an AdvertiserConfig that advertises
// on every interface with a 120 second record TTL.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		TTL: 120 * time.Second,
	}
}
