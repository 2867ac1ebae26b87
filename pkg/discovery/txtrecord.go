package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeHostTXT creates TXT records for host advertisement.
func EncodeHostTXT(info *HostInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyVersion] = TXTVersion
	txt[TXTKeyHostID] = info.HostID
	txt[TXTKeyName] = info.DisplayName

	// Flags
	txt[TXTKeyRegistered] = encodeFlag(info.Registered)
	txt[TXTKeyJoinCode] = encodeFlag(info.JoinCodeActive)

	return txt
}

// DecodeHostTXT parses TXT records from a host advertisement.
func DecodeHostTXT(txt TXTRecordMap) (*HostInfo, error) {
	// Check version (required)
	v, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if v != TXTVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, v)
	}

	info := &HostInfo{}

	// Parse host ID (required)
	info.HostID, ok = txt[TXTKeyHostID]
	if !ok || info.HostID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyHostID)
	}

	// Parse display name (required)
	info.DisplayName, ok = txt[TXTKeyName]
	if !ok || info.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}

	// Flags
	info.Registered = decodeFlag(txt[TXTKeyRegistered])
	info.JoinCodeActive = decodeFlag(txt[TXTKeyJoinCode])

	return info, nil
}

// encodeFlag converts a bool to the "0"/"1" TXT convention.
func encodeFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// decodeFlag parses a "0"/"1" TXT flag. Anything but "1" is false.
func decodeFlag(s string) bool {
	return s == "1"
}

// TXTRecordsToStrings flattens a TXTRecordMap into the "key=value"
// slice form the zeroconf server expects.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	return result
}

// StringsToTXTRecords parses "key=value" strings back into a map. A
// bare key is kept with an empty value; entries without a key are
// dropped.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		key, value, _ := strings.Cut(s, "=")
		if key == "" {
			continue
		}
		txt[key] = value
	}
	return txt
}

// InstanceName derives the mDNS instance name for a host.
// Falls back to "Roomlink-<hostID>" when the display name is empty, and
// truncates to the DNS label limit.
func InstanceName(info *HostInfo) string {
	name := info.DisplayName
	if name == "" {
		name = "Roomlink-" + info.HostID
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
