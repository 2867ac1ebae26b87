// Package connection provides the connection lifecycle manager for a
// RoomLink host.
//
// This package handles:
//   - Establishing the control channel to the relay, optionally
//     brokered by the pairing backend
//   - Exponential backoff with jitter for retry attempts
//   - Failure classification (unrecoverable vs transient)
//   - Automatic reconnection after a transient drop
//   - Fan-out of server-pushed events (peer presence, join-code and
//     credential rotation) to registered handlers
//
// # Lifecycle
//
// The Orchestrator moves through five phases:
//
//	Idle → Connecting → Connected → Retrying → Failed
//
// A transient drop while Connected transitions back through Retrying
// to Connecting. An explicit Disconnect from any phase returns to
// Idle and cancels a pending retry wait.
//
// Whether a transient failure is retried is decided by a single gate:
// the caller requested retries (ConnectRequest.AllowRetry), or the
// orchestrator has connected successfully at least once in its
// lifetime. A pairing rejection is never retried.
//
// # Reconnection Strategy
//
// When an attempt fails, the next one is delayed with exponential
// backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful connect
//
// # Jitter
//
// To prevent thundering herd when many hosts reconnect after a relay
// outage:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Event Delivery
//
// Handlers registered with OnEvent run on a single dispatch goroutine
// per Orchestrator; no two handlers run concurrently for the same
// instance, and events are delivered in the order they were applied to
// the connection state.
package connection
