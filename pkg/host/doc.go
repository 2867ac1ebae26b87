// Package host assembles a complete roomlink host from the lower
// layers: the connection orchestrator, the pairing backend client, the
// pairing code store, settings persistence, LAN advertisement and
// lifecycle capture.
//
// # Lifecycle
//
// A Service moves through IDLE, STARTING, RUNNING, STOPPING and
// STOPPED. Start loads settings and creates the orchestrator; Connect
// opens the control channel; Stop tears everything down and persists
// settings.
//
//	svc, err := host.NewService(cfg)
//	...
//	if err := svc.Start(ctx); err != nil { ... }
//	defer svc.Stop()
//
//	err = svc.Connect(ctx, connection.ConnectRequest{
//	    PairingCode: "ABC123",
//	    AllowRetry:  true,
//	})
//
// # Stored pairing codes
//
// With a backend configured, the host keeps a long-lived pairing code
// on disk. Connect without a code falls back to the stored one; a
// background loop refreshes it before expiry; a backend rejection
// discards it. This lets a host reconnect after a restart without
// anyone re-entering a code.
//
// # Events
//
// Connection events pass through the service (which updates its remote
// registry, advertisement and lifecycle log) before reaching handlers
// registered with OnEvent.
package host
