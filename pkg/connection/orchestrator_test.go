package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/backend"
	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// testBackoff keeps retry waits short enough for tests.
func testBackoff() BackoffConfig {
	return BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        50 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0,
	}
}

func newTestOrchestrator(t *testing.T, config Config) *Orchestrator {
	t.Helper()
	if config.Backoff == (BackoffConfig{}) {
		config.Backoff = testBackoff()
	}
	o, err := NewOrchestrator(config)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

// collectEvents forwards orchestrator events into a channel.
func collectEvents(o *Orchestrator) <-chan Event {
	ch := make(chan Event, 64)
	o.OnEvent(func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch
}

func awaitEvent(t *testing.T, events <-chan Event, eventType EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v event", eventType)
		}
	}
}

func TestNewOrchestrator(t *testing.T) {
	t.Run("RequiresTransport", func(t *testing.T) {
		if _, err := NewOrchestrator(Config{}); err == nil {
			t.Error("expected error for missing transport")
		}
	})

	t.Run("InitialState", func(t *testing.T) {
		o := newTestOrchestrator(t, Config{Transport: newFakeConn()})

		if o.Phase() != PhaseIdle {
			t.Errorf("Phase() = %v, want IDLE", o.Phase())
		}
		if o.HasEverConnected() {
			t.Error("HasEverConnected() = true on a fresh orchestrator")
		}
		if o.JoinCode() != "" {
			t.Errorf("JoinCode() = %q, want empty", o.JoinCode())
		}
		if len(o.Peers()) != 0 {
			t.Errorf("Peers() = %v, want empty", o.Peers())
		}
	})
}

func TestOrchestratorConnect(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		conn := newFakeConn()
		o := newTestOrchestrator(t, Config{Transport: conn, DisplayName: "Test Host"})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		if o.Phase() != PhaseConnected {
			t.Errorf("Phase() = %v, want CONNECTED", o.Phase())
		}
		if !o.HasEverConnected() {
			t.Error("HasEverConnected() = false after success")
		}
		if o.JoinCode() != "715204" {
			t.Errorf("JoinCode() = %q, want 715204", o.JoinCode())
		}

		ev := awaitEvent(t, events, EventConnected)
		if ev.RoomID != "room-1" {
			t.Errorf("connected event room = %q, want room-1", ev.RoomID)
		}
		if ev.JoinCode != "715204" {
			t.Errorf("connected event join code = %q, want 715204", ev.JoinCode)
		}
		awaitEvent(t, events, EventJoinCodeChanged)

		conn.mu.Lock()
		opts := conn.lastOpts
		conn.mu.Unlock()
		if opts.DisplayName != "Test Host" {
			t.Errorf("announced name = %q, want Test Host", opts.DisplayName)
		}
	})

	t.Run("WithBackendEmitsIdentity", func(t *testing.T) {
		conn := newFakeConn()
		be := &fakeBackend{}
		o := newTestOrchestrator(t, Config{Transport: conn, Backend: be})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{PairingCode: "ABCD2345"}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		ev := awaitEvent(t, events, EventIdentityEstablished)
		if ev.Credential != "jwt-test" {
			t.Errorf("identity credential = %q, want jwt-test", ev.Credential)
		}
		if ev.Tenant != "tenant-test" {
			t.Errorf("identity tenant = %q, want tenant-test", ev.Tenant)
		}

		state := o.State()
		if state.Credential != "jwt-test" || state.Tenant != "tenant-test" {
			t.Errorf("state = %+v, want backend identity applied", state)
		}
	})

	t.Run("PairingCodeRequired", func(t *testing.T) {
		conn := newFakeConn()
		be := &fakeBackend{}
		o := newTestOrchestrator(t, Config{Transport: conn, Backend: be})

		err := o.Connect(context.Background(), ConnectRequest{})
		if !errors.Is(err, ErrPairingCodeRequired) {
			t.Errorf("Connect() error = %v, want ErrPairingCodeRequired", err)
		}

		// Rejected before any network activity
		be.mu.Lock()
		registers := be.registers
		be.mu.Unlock()
		if registers != 0 {
			t.Errorf("Register called %d times, want 0", registers)
		}
		if conn.calls() != 0 {
			t.Errorf("transport Connect called %d times, want 0", conn.calls())
		}
		if o.Phase() != PhaseIdle {
			t.Errorf("Phase() = %v, want IDLE", o.Phase())
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		o := newTestOrchestrator(t, Config{Transport: newFakeConn()})

		if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if err := o.Connect(context.Background(), ConnectRequest{}); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("TransientFailureWithoutRetry", func(t *testing.T) {
		cause := errors.New("connection refused")
		conn := newFakeConn()
		conn.connectFn = func(transport.Options) (*transport.RoomProfile, error) {
			return nil, cause
		}
		o := newTestOrchestrator(t, Config{Transport: conn})
		events := collectEvents(o)

		err := o.Connect(context.Background(), ConnectRequest{AllowRetry: false})
		if !errors.Is(err, cause) {
			t.Errorf("Connect() error = %v, want %v", err, cause)
		}
		if o.Phase() != PhaseFailed {
			t.Errorf("Phase() = %v, want FAILED", o.Phase())
		}
		if conn.calls() != 1 {
			t.Errorf("transport Connect called %d times, want 1", conn.calls())
		}

		ev := awaitEvent(t, events, EventTerminalFailure)
		if !errors.Is(ev.Error, cause) {
			t.Errorf("terminal event error = %v, want %v", ev.Error, cause)
		}
	})

	t.Run("RetriesUntilSuccess", func(t *testing.T) {
		var calls atomic.Int32
		conn := newFakeConn()
		conn.connectFn = func(transport.Options) (*transport.RoomProfile, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("not yet")
			}
			return &transport.RoomProfile{RoomID: "room-1"}, nil
		}
		o := newTestOrchestrator(t, Config{Transport: conn})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{AllowRetry: true}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		first := awaitEvent(t, events, EventRetryScheduled)
		if first.Attempt != 1 {
			t.Errorf("first retry attempt = %d, want 1", first.Attempt)
		}
		if first.Delay != 10*time.Millisecond {
			t.Errorf("first retry delay = %v, want 10ms", first.Delay)
		}

		second := awaitEvent(t, events, EventRetryScheduled)
		if second.Attempt != 2 {
			t.Errorf("second retry attempt = %d, want 2", second.Attempt)
		}
		if second.Delay != 20*time.Millisecond {
			t.Errorf("second retry delay = %v, want 20ms", second.Delay)
		}

		awaitEvent(t, events, EventConnected)
		if o.Phase() != PhaseConnected {
			t.Errorf("Phase() = %v, want CONNECTED", o.Phase())
		}
		if calls.Load() != 3 {
			t.Errorf("transport Connect called %d times, want 3", calls.Load())
		}

		// Success resets the backoff cycle
		if o.RetryAttempts() != 0 {
			t.Errorf("RetryAttempts() = %d after success, want 0", o.RetryAttempts())
		}
	})

	t.Run("PairingRejectedNeverRetried", func(t *testing.T) {
		be := &fakeBackend{
			registerFn: func(string) (*backend.Registration, error) {
				return nil, authRejection()
			},
		}
		conn := newFakeConn()
		o := newTestOrchestrator(t, Config{Transport: conn, Backend: be})
		events := collectEvents(o)

		err := o.Connect(context.Background(), ConnectRequest{
			PairingCode: "ABCD2345",
			AllowRetry:  true,
		})
		if !errors.Is(err, ErrPairingRejected) {
			t.Fatalf("Connect() error = %v, want ErrPairingRejected", err)
		}
		if o.Phase() != PhaseFailed {
			t.Errorf("Phase() = %v, want FAILED", o.Phase())
		}

		ev := awaitEvent(t, events, EventTerminalFailure)
		if !errors.Is(ev.Error, ErrPairingRejected) {
			t.Errorf("terminal event error = %v, want ErrPairingRejected", ev.Error)
		}

		// Even with AllowRetry, a rejection stops the cycle after one
		// attempt.
		be.mu.Lock()
		registers := be.registers
		be.mu.Unlock()
		if registers != 1 {
			t.Errorf("Register called %d times, want 1", registers)
		}
	})

	t.Run("CallerCancelDuringRetryWait", func(t *testing.T) {
		conn := newFakeConn()
		conn.connectFn = func(transport.Options) (*transport.RoomProfile, error) {
			return nil, errors.New("unreachable")
		}
		o := newTestOrchestrator(t, Config{
			Transport: conn,
			Backoff: BackoffConfig{
				Initial:    300 * time.Millisecond,
				Max:        300 * time.Millisecond,
				Multiplier: 2.0,
				Jitter:     0,
			},
		})
		events := collectEvents(o)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- o.Connect(ctx, ConnectRequest{AllowRetry: true})
		}()

		awaitEvent(t, events, EventRetryScheduled)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Connect() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Connect() did not return after cancel")
		}

		if o.Phase() != PhaseIdle {
			t.Errorf("Phase() = %v, want IDLE after abandoned cycle", o.Phase())
		}
	})
}

func TestOrchestratorDisconnect(t *testing.T) {
	t.Run("FromConnected", func(t *testing.T) {
		conn := newFakeConn()
		o := newTestOrchestrator(t, Config{Transport: conn})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		listener := conn.eventListener()
		listener.OnPeerJoined(transport.Peer{ID: "remote-1", Kind: transport.PeerKindRemote})
		awaitEvent(t, events, EventPeerJoined)

		if err := o.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}
		awaitEvent(t, events, EventDisconnected)

		if o.Phase() != PhaseIdle {
			t.Errorf("Phase() = %v, want IDLE", o.Phase())
		}
		if o.JoinCode() != "" {
			t.Errorf("JoinCode() = %q, want cleared", o.JoinCode())
		}
		if len(o.Peers()) != 0 {
			t.Errorf("Peers() = %v, want cleared", o.Peers())
		}

		conn.mu.Lock()
		disconnects := conn.disconnects
		conn.mu.Unlock()
		if disconnects != 1 {
			t.Errorf("transport Disconnect called %d times, want 1", disconnects)
		}

		// HasEverConnected survives the disconnect
		if !o.HasEverConnected() {
			t.Error("HasEverConnected() lost after Disconnect")
		}
	})

	t.Run("WhenIdle", func(t *testing.T) {
		o := newTestOrchestrator(t, Config{Transport: newFakeConn()})

		if err := o.Disconnect(context.Background()); err != nil {
			t.Errorf("Disconnect() on idle orchestrator error = %v", err)
		}
		if o.Phase() != PhaseIdle {
			t.Errorf("Phase() = %v, want IDLE", o.Phase())
		}
	})

	t.Run("DuringRetryWait", func(t *testing.T) {
		conn := newFakeConn()
		conn.connectFn = func(transport.Options) (*transport.RoomProfile, error) {
			return nil, errors.New("unreachable")
		}
		o := newTestOrchestrator(t, Config{
			Transport: conn,
			Backoff: BackoffConfig{
				Initial:    300 * time.Millisecond,
				Max:        300 * time.Millisecond,
				Multiplier: 2.0,
				Jitter:     0,
			},
		})
		events := collectEvents(o)

		errCh := make(chan error, 1)
		go func() {
			errCh <- o.Connect(context.Background(), ConnectRequest{AllowRetry: true})
		}()

		awaitEvent(t, events, EventRetryScheduled)

		if err := o.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect() error = %v", err)
		}

		select {
		case err := <-errCh:
			if !errors.Is(err, ErrConnectAborted) {
				t.Errorf("Connect() error = %v, want ErrConnectAborted", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Connect() did not return after Disconnect")
		}

		if o.Phase() != PhaseIdle {
			t.Errorf("Phase() = %v, want IDLE", o.Phase())
		}
	})
}

func TestOrchestratorSelfHeal(t *testing.T) {
	t.Run("DropSchedulesReconnect", func(t *testing.T) {
		conn := newFakeConn()
		o := newTestOrchestrator(t, Config{Transport: conn})
		events := collectEvents(o)

		// AllowRetry false: after the first success, drops are healed
		// regardless.
		if err := o.Connect(context.Background(), ConnectRequest{AllowRetry: false}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		awaitEvent(t, events, EventConnected)

		cause := errors.New("link reset")
		conn.eventListener().OnDisconnected(cause)

		ev := awaitEvent(t, events, EventDisconnected)
		if !errors.Is(ev.Error, cause) {
			t.Errorf("disconnected event error = %v, want %v", ev.Error, cause)
		}
		awaitEvent(t, events, EventRetryScheduled)
		awaitEvent(t, events, EventConnected)

		if o.Phase() != PhaseConnected {
			t.Errorf("Phase() = %v, want CONNECTED after self-heal", o.Phase())
		}
		if conn.calls() != 2 {
			t.Errorf("transport Connect called %d times, want 2", conn.calls())
		}
	})

	t.Run("UnrecoverableDropFailsTerminally", func(t *testing.T) {
		cause := errors.New("registration revoked")
		conn := newFakeConn()
		conn.unrecoverable = func(err error) bool { return errors.Is(err, cause) }
		o := newTestOrchestrator(t, Config{Transport: conn})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		awaitEvent(t, events, EventConnected)

		conn.eventListener().OnDisconnected(cause)

		awaitEvent(t, events, EventDisconnected)
		ev := awaitEvent(t, events, EventTerminalFailure)
		if !errors.Is(ev.Error, ErrPairingRejected) {
			t.Errorf("terminal event error = %v, want ErrPairingRejected wrap", ev.Error)
		}

		if o.Phase() != PhaseFailed {
			t.Errorf("Phase() = %v, want FAILED", o.Phase())
		}

		// No reconnect attempt follows a terminal drop
		time.Sleep(100 * time.Millisecond)
		if conn.calls() != 1 {
			t.Errorf("transport Connect called %d times, want 1", conn.calls())
		}
	})
}

func TestOrchestratorPeerTracking(t *testing.T) {
	conn := newFakeConn()
	o := newTestOrchestrator(t, Config{Transport: conn})
	events := collectEvents(o)

	if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	listener := conn.eventListener()
	listener.OnPeerJoined(transport.Peer{ID: "zeta", Kind: transport.PeerKindRemote})
	listener.OnPeerJoined(transport.Peer{ID: "alpha", Kind: transport.PeerKindObserver})
	awaitEvent(t, events, EventPeerJoined)
	awaitEvent(t, events, EventPeerJoined)

	// A duplicate join and an unknown leave change nothing
	listener.OnPeerJoined(transport.Peer{ID: "alpha", Kind: transport.PeerKindObserver})
	listener.OnPeerLeft("never-seen")
	time.Sleep(50 * time.Millisecond)

	peers := o.Peers()
	if len(peers) != 2 {
		t.Fatalf("len(Peers()) = %d, want 2", len(peers))
	}
	if peers[0].ID != "alpha" || peers[1].ID != "zeta" {
		t.Errorf("Peers() order = %q, %q; want alpha, zeta", peers[0].ID, peers[1].ID)
	}

	listener.OnPeerLeft("alpha")
	ev := awaitEvent(t, events, EventPeerLeft)
	if ev.PeerID != "alpha" {
		t.Errorf("peer-left event = %q, want alpha", ev.PeerID)
	}

	peers = o.Peers()
	if len(peers) != 1 || peers[0].ID != "zeta" {
		t.Errorf("Peers() = %v, want just zeta", peers)
	}
}

func TestOrchestratorRotations(t *testing.T) {
	t.Run("Credentials", func(t *testing.T) {
		conn := newFakeConn()
		be := &fakeBackend{}
		o := newTestOrchestrator(t, Config{Transport: conn, Backend: be})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{PairingCode: "ABCD2345"}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		awaitEvent(t, events, EventConnected)

		conn.eventListener().OnCredentialsRotated("jwt-next", "tenant-test")

		ev := awaitEvent(t, events, EventCredentialsRotated)
		if ev.Credential != "jwt-next" {
			t.Errorf("event credential = %q, want jwt-next", ev.Credential)
		}
		if o.State().Credential != "jwt-next" {
			t.Errorf("state credential = %q, want jwt-next", o.State().Credential)
		}
	})

	t.Run("JoinCode", func(t *testing.T) {
		conn := newFakeConn()
		o := newTestOrchestrator(t, Config{Transport: conn})
		events := collectEvents(o)

		if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		awaitEvent(t, events, EventJoinCodeChanged)

		conn.eventListener().OnJoinCodeChanged("330187")

		deadline := time.After(2 * time.Second)
		for {
			var ev Event
			select {
			case ev = <-events:
			case <-deadline:
				t.Fatal("timed out waiting for join code rotation")
			}
			if ev.Type == EventJoinCodeChanged && ev.JoinCode == "330187" {
				break
			}
		}

		if o.JoinCode() != "330187" {
			t.Errorf("JoinCode() = %q, want 330187", o.JoinCode())
		}
	})
}

func TestOrchestratorClose(t *testing.T) {
	conn := newFakeConn()
	o, err := NewOrchestrator(Config{Transport: conn, Backoff: testBackoff()})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	if err := o.Connect(context.Background(), ConnectRequest{}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := o.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The active session was torn down
	conn.mu.Lock()
	disconnects := conn.disconnects
	conn.mu.Unlock()
	if disconnects != 1 {
		t.Errorf("transport Disconnect called %d times, want 1", disconnects)
	}

	if err := o.Connect(context.Background(), ConnectRequest{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect() after Close error = %v, want ErrClosed", err)
	}
	if err := o.Disconnect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Disconnect() after Close error = %v, want ErrClosed", err)
	}

	// Close is idempotent
	if err := o.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "IDLE"},
		{PhaseConnecting, "CONNECTING"},
		{PhaseConnected, "CONNECTED"},
		{PhaseRetrying, "RETRYING"},
		{PhaseFailed, "FAILED"},
		{Phase(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventConnected, "CONNECTED"},
		{EventIdentityEstablished, "IDENTITY_ESTABLISHED"},
		{EventPeerJoined, "PEER_JOINED"},
		{EventPeerLeft, "PEER_LEFT"},
		{EventJoinCodeChanged, "JOIN_CODE_CHANGED"},
		{EventCredentialsRotated, "CREDENTIALS_ROTATED"},
		{EventRetryScheduled, "RETRY_SCHEDULED"},
		{EventDisconnected, "DISCONNECTED"},
		{EventTerminalFailure, "TERMINAL_FAILURE"},
		{EventType(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
