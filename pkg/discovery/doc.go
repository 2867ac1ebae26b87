// Package discovery implements mDNS/DNS-SD advertisement for roomlink hosts.
//
// A host advertises a single service instance of type _roomlink._tcp while it
// holds an established control channel. Remotes on the same LAN browse for
// this service to find hosts that are ready to be joined, then fetch the
// actual join code through the room control UI or the relay.
//
// # Host Advertisement (_roomlink._tcp)
//
// Instance name is the user-facing display name (truncated to the DNS label
// limit). TXT records include: v (format version), id (host ID), name
// (display name), tenant (1 when the host is registered with a pairing
// backend), jc (1 when a join code is currently active).
//
// The join code itself is never published over mDNS. TXT records only carry
// its availability so remotes can tell joinable hosts from idle ones.
package discovery
