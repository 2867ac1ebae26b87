package discovery

import "errors"

// Service constants.
const (
	// ServiceTypeHost is the service type advertised by connected hosts.
	ServiceTypeHost = "_roomlink._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the port published in the SRV record when the host
	// has no local control listener.
	DefaultPort = 9460

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// TXTVersion is the current TXT record format version.
	TXTVersion = "1"
)

// TXT record keys.
const (
	// TXTKeyVersion is the TXT format version.
	TXTKeyVersion = "v"

	// TXTKeyHostID is the stable host identifier.
	TXTKeyHostID = "id"

	// TXTKeyName is the user-facing display name.
	TXTKeyName = "name"

	// TXTKeyRegistered is "1" when the host is registered with a pairing backend.
	TXTKeyRegistered = "tenant"

	// TXTKeyJoinCode is "1" when a join code is currently active.
	TXTKeyJoinCode = "jc"
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrUnsupportedVersion  = errors.New("unsupported TXT format version")
	ErrInstanceNameTooLong = errors.New("instance name exceeds DNS label limit")
	ErrNotAdvertising      = errors.New("host service not advertised")
)

// HostInfo describes the host advertisement.
type HostInfo struct {
	// HostID is the stable host identifier.
	HostID string

	// DisplayName is the user-facing name shown in remote UIs.
	DisplayName string

	// Registered indicates the host is registered with a pairing backend.
	Registered bool

	// JoinCodeActive indicates a join code is currently available.
	// The code itself is never advertised.
	JoinCodeActive bool

	// Port is the SRV port. Zero means DefaultPort.
	Port uint16
}
