package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v2"
)

// MDNSAdvertiser announces the host service over zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{config: config}, nil
}

// AdvertiseHost announces the host on the local network. A second call
// replaces the running advertisement.
func (a *MDNSAdvertiser) AdvertiseHost(ctx context.Context, info *HostInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	server, err := zeroconf.Register(
		InstanceName(info),
		ServiceTypeHost,
		Domain,
		port,
		TXTRecordsToStrings(EncodeHostTXT(info)),
		a.interfaces(),
		a.serverOptions()...,
	)
	if err != nil {
		return fmt.Errorf("failed to register host service: %w", err)
	}

	a.server = server
	return nil
}

// UpdateHost swaps the TXT records on the running advertisement, so
// the registered and join-code flags change without a re-announce.
func (a *MDNSAdvertiser) UpdateHost(info *HostInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(EncodeHostTXT(info)))
	return nil
}

// StopHost withdraws the advertisement. Safe to call when idle.
func (a *MDNSAdvertiser) StopHost() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// interfaces resolves the configured interface name. Nil selects all
// interfaces.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func (a *MDNSAdvertiser) serverOptions() []zeroconf.ServerOption {
	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}
	return opts
}

// Compile-time interface satisfaction check.
var _ Advertiser = (*MDNSAdvertiser)(nil)
