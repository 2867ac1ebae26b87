package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testRelay is an in-process relay endpoint the client can dial. It
// performs the hello/welcome exchange and then services control frames
// until the peer goes away.
type testRelay struct {
	t      *testing.T
	server *httptest.Server

	reject int

	mu       sync.Mutex
	conn     *websocket.Conn
	authz    string
	tenant   string
	protocol string
	hello    relayMessage
}

func startRelay(t *testing.T, reject int) *testRelay {
	t.Helper()
	r := &testRelay{t: t, reject: reject}
	upgrader := websocket.Upgrader{}

	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.reject != 0 {
			http.Error(w, "refused", r.reject)
			return
		}

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}

		var hello relayMessage
		if err := conn.ReadJSON(&hello); err != nil {
			conn.Close()
			return
		}

		r.mu.Lock()
		r.conn = conn
		r.authz = req.Header.Get("Authorization")
		r.tenant = req.Header.Get("X-Roomlink-Tenant")
		r.protocol = req.Header.Get("Sec-WebSocket-Protocol")
		r.hello = hello
		r.mu.Unlock()

		welcome := relayMessage{
			Type:     msgWelcome,
			Room:     &RoomProfile{RoomID: "room-7", RoomName: "Conference 4F"},
			JoinCode: "928471",
		}
		if err := conn.WriteJSON(&welcome); err != nil {
			conn.Close()
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
	t.Cleanup(r.server.Close)
	return r
}

func newTestRelay(t *testing.T) *testRelay {
	return startRelay(t, 0)
}

func (r *testRelay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

func (r *testRelay) current() *websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

// push sends a control message to the connected client.
func (r *testRelay) push(msg relayMessage) {
	r.t.Helper()
	conn := r.current()
	if conn == nil {
		r.t.Fatal("no client connected")
	}
	if err := conn.WriteJSON(&msg); err != nil {
		r.t.Fatalf("push failed: %v", err)
	}
}

// closeWith sends a close frame to the connected client. The handler's
// read loop tears the socket down once the client echoes the close.
func (r *testRelay) closeWith(code int, reason string) {
	r.t.Helper()
	conn := r.current()
	if conn == nil {
		r.t.Fatal("no client connected")
	}
	msg := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		r.t.Fatalf("close frame write failed: %v", err)
	}
}

// drop severs the TCP connection without a close handshake.
func (r *testRelay) drop() {
	r.t.Helper()
	conn := r.current()
	if conn == nil {
		r.t.Fatal("no client connected")
	}
	conn.Close()
}

// recordingListener captures server-pushed events for assertions.
type recordingListener struct {
	mu        sync.Mutex
	joined    []Peer
	left      []string
	joinCodes []string
	creds     []string
	tenants   []string

	disconnected chan error
}

var _ EventListener = (*recordingListener)(nil)

func newRecordingListener() *recordingListener {
	return &recordingListener{disconnected: make(chan error, 4)}
}

func (l *recordingListener) OnPeerJoined(peer Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joined = append(l.joined, peer)
}

func (l *recordingListener) OnPeerLeft(peerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.left = append(l.left, peerID)
}

func (l *recordingListener) OnCredentialsRotated(credential, tenant string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creds = append(l.creds, credential)
	l.tenants = append(l.tenants, tenant)
}

func (l *recordingListener) OnJoinCodeChanged(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joinCodes = append(l.joinCodes, code)
}

func (l *recordingListener) OnDisconnected(err error) {
	select {
	case l.disconnected <- err:
	default:
	}
}

func (l *recordingListener) snapshot() (joined []Peer, left, joinCodes, creds, tenants []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Peer(nil), l.joined...),
		append([]string(nil), l.left...),
		append([]string(nil), l.joinCodes...),
		append([]string(nil), l.creds...),
		append([]string(nil), l.tenants...)
}

func (l *recordingListener) awaitDisconnect(t *testing.T) error {
	t.Helper()
	select {
	case err := <-l.disconnected:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect callback")
		return nil
	}
}

func newConnectedClient(t *testing.T, relay *testRelay, listener EventListener) *RelayClient {
	t.Helper()
	client, err := NewRelayClient(RelayConfig{Endpoint: relay.url()})
	if err != nil {
		t.Fatalf("NewRelayClient failed: %v", err)
	}
	if listener != nil {
		client.SetListener(listener)
	}
	if _, err := client.Connect(context.Background(), Options{DisplayName: "Test Room"}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

// waitFor polls until the condition holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewRelayClient(t *testing.T) {
	t.Run("RequiresEndpoint", func(t *testing.T) {
		_, err := NewRelayClient(RelayConfig{})
		if err == nil {
			t.Fatal("expected error for missing endpoint")
		}
	})

	t.Run("Valid", func(t *testing.T) {
		client, err := NewRelayClient(RelayConfig{Endpoint: "wss://relay.example.com/host"})
		if err != nil {
			t.Fatalf("NewRelayClient failed: %v", err)
		}
		if client.Connected() {
			t.Error("fresh client reports connected")
		}
		if client.RemoteJoinCode() != "" {
			t.Error("fresh client reports a join code")
		}
	})
}

func TestRelayConnect(t *testing.T) {
	t.Run("Handshake", func(t *testing.T) {
		relay := newTestRelay(t)
		client, err := NewRelayClient(RelayConfig{Endpoint: relay.url()})
		if err != nil {
			t.Fatalf("NewRelayClient failed: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		profile, err := client.Connect(context.Background(), Options{
			Credential:  "jwt-host-test-001",
			Tenant:      "tenant-42",
			DisplayName: "Test Room",
		})
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}

		if profile.RoomID != "room-7" {
			t.Errorf("RoomID = %q, want room-7", profile.RoomID)
		}
		if profile.RoomName != "Conference 4F" {
			t.Errorf("RoomName = %q, want Conference 4F", profile.RoomName)
		}
		if !client.Connected() {
			t.Error("client not connected after handshake")
		}
		if client.RemoteJoinCode() != "928471" {
			t.Errorf("RemoteJoinCode() = %q, want 928471", client.RemoteJoinCode())
		}

		relay.mu.Lock()
		authz, tenant, protocol, hello := relay.authz, relay.tenant, relay.protocol, relay.hello
		relay.mu.Unlock()

		if authz != "Bearer jwt-host-test-001" {
			t.Errorf("Authorization = %q, want the bearer credential", authz)
		}
		if tenant != "tenant-42" {
			t.Errorf("tenant header = %q, want tenant-42", tenant)
		}
		if !strings.Contains(protocol, "roomlink.v1") {
			t.Errorf("offered subprotocols %q do not include roomlink.v1", protocol)
		}
		if hello.Type != msgHello {
			t.Errorf("first message type = %q, want hello", hello.Type)
		}
		if hello.DisplayName != "Test Room" {
			t.Errorf("hello displayName = %q, want Test Room", hello.DisplayName)
		}
		if hello.Tenant != "tenant-42" {
			t.Errorf("hello tenant = %q, want tenant-42", hello.Tenant)
		}
	})

	t.Run("StandaloneOmitsAuth", func(t *testing.T) {
		relay := newTestRelay(t)
		newConnectedClient(t, relay, nil)

		relay.mu.Lock()
		authz := relay.authz
		relay.mu.Unlock()
		if authz != "" {
			t.Errorf("Authorization = %q, want none in standalone mode", authz)
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		relay := newTestRelay(t)
		client := newConnectedClient(t, relay, nil)

		_, err := client.Connect(context.Background(), Options{})
		if !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("UpgradeRejected", func(t *testing.T) {
		relay := startRelay(t, http.StatusUnauthorized)
		client, err := NewRelayClient(RelayConfig{Endpoint: relay.url()})
		if err != nil {
			t.Fatalf("NewRelayClient failed: %v", err)
		}

		_, err = client.Connect(context.Background(), Options{Credential: "jwt-revoked"})
		if err == nil {
			t.Fatal("expected error for a refused upgrade")
		}

		var he *HandshakeError
		if !errors.As(err, &he) {
			t.Fatalf("error %v is not a *HandshakeError", err)
		}
		if he.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want 401", he.StatusCode)
		}
		if !client.IsUnrecoverableRequestError(err) {
			t.Error("401 upgrade not classified as unrecoverable")
		}
		if client.Connected() {
			t.Error("client reports connected after a refused upgrade")
		}
	})

	t.Run("WelcomeMissingRoom", func(t *testing.T) {
		upgrader := websocket.Upgrader{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			conn, err := upgrader.Upgrade(w, req, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			var hello relayMessage
			_ = conn.ReadJSON(&hello)
			_ = conn.WriteJSON(&relayMessage{Type: msgWelcome})
			_, _, _ = conn.ReadMessage()
		}))
		defer server.Close()

		client, err := NewRelayClient(RelayConfig{Endpoint: "ws" + strings.TrimPrefix(server.URL, "http")})
		if err != nil {
			t.Fatalf("NewRelayClient failed: %v", err)
		}

		_, err = client.Connect(context.Background(), Options{})
		if !errors.Is(err, ErrHandshakeFailed) {
			t.Errorf("error = %v, want ErrHandshakeFailed", err)
		}
		if client.Connected() {
			t.Error("client reports connected after a rejected welcome")
		}
	})

	t.Run("UnexpectedFirstMessage", func(t *testing.T) {
		upgrader := websocket.Upgrader{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			conn, err := upgrader.Upgrade(w, req, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			var hello relayMessage
			_ = conn.ReadJSON(&hello)
			_ = conn.WriteJSON(&relayMessage{Type: msgBye, Reason: "draining"})
			_, _, _ = conn.ReadMessage()
		}))
		defer server.Close()

		client, err := NewRelayClient(RelayConfig{Endpoint: "ws" + strings.TrimPrefix(server.URL, "http")})
		if err != nil {
			t.Fatalf("NewRelayClient failed: %v", err)
		}

		_, err = client.Connect(context.Background(), Options{})
		if !errors.Is(err, ErrHandshakeFailed) {
			t.Errorf("error = %v, want ErrHandshakeFailed", err)
		}
	})
}

func TestRelayServerPushedEvents(t *testing.T) {
	relay := newTestRelay(t)
	listener := newRecordingListener()
	client := newConnectedClient(t, relay, listener)

	relay.push(relayMessage{Type: msgPeerJoined, Peer: &Peer{ID: "remote-1", Kind: PeerKindRemote}})
	relay.push(relayMessage{Type: msgPeerLeft, PeerID: "remote-1"})
	relay.push(relayMessage{Type: msgJoinCode, JoinCode: "774421"})
	relay.push(relayMessage{Type: msgCredentials, Credential: "jwt-rotated", Tenant: "tenant-42"})

	waitFor(t, func() bool {
		_, _, _, creds, _ := listener.snapshot()
		return len(creds) > 0
	}, "timeout waiting for pushed events")

	joined, left, joinCodes, creds, tenants := listener.snapshot()
	if len(joined) != 1 || joined[0].ID != "remote-1" || joined[0].Kind != PeerKindRemote {
		t.Errorf("joined = %+v, want one remote-1", joined)
	}
	if len(left) != 1 || left[0] != "remote-1" {
		t.Errorf("left = %v, want [remote-1]", left)
	}
	if len(joinCodes) != 1 || joinCodes[0] != "774421" {
		t.Errorf("joinCodes = %v, want [774421]", joinCodes)
	}
	if len(creds) != 1 || creds[0] != "jwt-rotated" {
		t.Errorf("creds = %v, want [jwt-rotated]", creds)
	}
	if len(tenants) != 1 || tenants[0] != "tenant-42" {
		t.Errorf("tenants = %v, want [tenant-42]", tenants)
	}

	// A rotated join code replaces the handshake one
	if client.RemoteJoinCode() != "774421" {
		t.Errorf("RemoteJoinCode() = %q, want the rotated code", client.RemoteJoinCode())
	}
}

func TestRelayDisconnect(t *testing.T) {
	t.Run("Graceful", func(t *testing.T) {
		relay := newTestRelay(t)
		listener := newRecordingListener()
		client := newConnectedClient(t, relay, listener)

		if err := client.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		if client.Connected() {
			t.Error("client reports connected after Disconnect")
		}
		if client.RemoteJoinCode() != "" {
			t.Error("join code survives Disconnect")
		}

		// A local Disconnect must not fire the disconnect callback
		select {
		case err := <-listener.disconnected:
			t.Errorf("unexpected disconnect callback: %v", err)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("WhenIdle", func(t *testing.T) {
		client, err := NewRelayClient(RelayConfig{Endpoint: "wss://relay.example.com/host"})
		if err != nil {
			t.Fatalf("NewRelayClient failed: %v", err)
		}
		if err := client.Disconnect(context.Background()); err != nil {
			t.Errorf("Disconnect on an idle client = %v, want nil", err)
		}
	})

	t.Run("ReconnectAfterDisconnect", func(t *testing.T) {
		relay := newTestRelay(t)
		client := newConnectedClient(t, relay, nil)

		if err := client.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		if _, err := client.Connect(context.Background(), Options{DisplayName: "Test Room"}); err != nil {
			t.Fatalf("reconnect failed: %v", err)
		}
		if !client.Connected() {
			t.Error("client not connected after reconnect")
		}
		if client.RemoteJoinCode() != "928471" {
			t.Errorf("RemoteJoinCode() = %q after reconnect, want 928471", client.RemoteJoinCode())
		}
	})
}

func TestRelayRemoteClose(t *testing.T) {
	t.Run("PolicyCode", func(t *testing.T) {
		relay := newTestRelay(t)
		listener := newRecordingListener()
		client := newConnectedClient(t, relay, listener)

		relay.closeWith(ClosePairingRejected, "registration revoked")

		err := listener.awaitDisconnect(t)
		var ce *websocket.CloseError
		if !errors.As(err, &ce) {
			t.Fatalf("disconnect error %v is not a *websocket.CloseError", err)
		}
		if ce.Code != ClosePairingRejected {
			t.Errorf("close code = %d, want %d", ce.Code, ClosePairingRejected)
		}
		if !client.IsUnrecoverableRequestError(err) {
			t.Error("policy close not classified as unrecoverable")
		}
		if client.Connected() {
			t.Error("client reports connected after remote close")
		}
	})

	t.Run("Bye", func(t *testing.T) {
		relay := newTestRelay(t)
		listener := newRecordingListener()
		client := newConnectedClient(t, relay, listener)

		relay.push(relayMessage{Type: msgBye, Reason: "maintenance"})

		err := listener.awaitDisconnect(t)
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("disconnect error = %v, want wrapped ErrConnectionClosed", err)
		}
		if client.IsUnrecoverableRequestError(err) {
			t.Error("bye classified as unrecoverable")
		}
		if client.Connected() {
			t.Error("client reports connected after bye")
		}
	})

	t.Run("AbruptDrop", func(t *testing.T) {
		relay := newTestRelay(t)
		listener := newRecordingListener()
		client := newConnectedClient(t, relay, listener)

		relay.drop()

		err := listener.awaitDisconnect(t)
		if err == nil {
			t.Fatal("disconnect callback carried no error")
		}
		if client.IsUnrecoverableRequestError(err) {
			t.Error("transport drop classified as unrecoverable")
		}
		if client.Connected() {
			t.Error("client reports connected after drop")
		}
	})
}

func TestIsUnrecoverableRequestError(t *testing.T) {
	client, err := NewRelayClient(RelayConfig{Endpoint: "wss://relay.example.com/host"})
	if err != nil {
		t.Fatalf("NewRelayClient failed: %v", err)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Unauthorized", &HandshakeError{StatusCode: http.StatusUnauthorized}, true},
		{"Forbidden", &HandshakeError{StatusCode: http.StatusForbidden}, true},
		{"ServerError", &HandshakeError{StatusCode: http.StatusInternalServerError}, false},
		{"WrappedHandshake", fmt.Errorf("dial: %w", &HandshakeError{StatusCode: http.StatusForbidden}), true},
		{"ClosePairingRejected", &websocket.CloseError{Code: ClosePairingRejected}, true},
		{"CloseTenantSuspended", &websocket.CloseError{Code: CloseTenantSuspended}, true},
		{"CloseRegistrationRevoked", &websocket.CloseError{Code: CloseRegistrationRevoked}, true},
		{"CloseAbnormal", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, false},
		{"CloseNormal", &websocket.CloseError{Code: websocket.CloseNormalClosure}, false},
		{"PlainError", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.IsUnrecoverableRequestError(tt.err); got != tt.want {
				t.Errorf("IsUnrecoverableRequestError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandshakeErrorError(t *testing.T) {
	err := &HandshakeError{StatusCode: http.StatusForbidden}
	if got := err.Error(); got != "relay refused handshake: status 403" {
		t.Errorf("Error() = %q", got)
	}
}
