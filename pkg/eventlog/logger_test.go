package eventlog

import (
	"testing"
	"time"
)

func TestNoopLoggerAcceptsEveryPayload(t *testing.T) {
	var logger NoopLogger

	payloads := []Event{
		{Timestamp: time.Now(), CycleID: "test-cycle", HostID: "host-1"},
		{Category: CategoryPhase, Phase: &PhaseEvent{From: "IDLE", To: "CONNECTING"}},
		{Category: CategoryRetry, Retry: &RetryEvent{Attempt: 1, Delay: time.Second}},
		{Category: CategoryPeer, Peer: &PeerEvent{PeerID: "remote-1", Joined: true}},
		{Category: CategoryPairing, Pairing: &PairingEvent{Action: PairingIssued}},
		{Category: CategoryError, Error: &ErrorEventData{Message: "test error"}},
	}

	for _, ev := range payloads {
		logger.Log(ev)
	}
}

func TestLoggerImplementations(t *testing.T) {
	var _ Logger = NoopLogger{}
	var _ Logger = &NoopLogger{}
}
