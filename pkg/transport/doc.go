// Package transport maintains the control channel between a host and
// the RoomLink relay service.
//
// A control channel is one WebSocket connection, authenticated with the
// bearer token minted at registration. Once the socket is up the host
// sends a hello frame and the relay answers with a welcome carrying the
// room profile; from then on the relay pushes control messages for peer
// presence, join-code rotation, and credential rotation.
//
// # Protocol Stack
//
//	┌──────────────────────────────┐
//	│    JSON control messages     │
//	├──────────────────────────────┤
//	│    WebSocket (RFC 6455)      │
//	├──────────────────────────────┤
//	│        TLS (wss://)          │
//	└──────────────────────────────┘
//
// # Liveness
//
// WebSocket ping/pong control frames keep the channel honest. The host
// pings every KeepAliveConfig.PingInterval and holds a read deadline of
// KeepAliveConfig.DetectionDelay; every pong or data frame pushes the
// deadline out again. A channel that stays silent past the deadline is
// torn down and reported through EventListener.OnDisconnected. With the
// stock settings a dead relay is noticed within 95 seconds.
//
// Consumers talk to the channel through the Conn interface. RelayClient
// is the production implementation; tests substitute their own.
package transport
