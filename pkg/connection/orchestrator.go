package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Orchestrator defaults.
const (
	// DefaultConnectTimeout bounds a single connection attempt.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultEventBuffer is the dispatch queue size.
	DefaultEventBuffer = 64
)

// ConnectRequest carries the parameters of one connect invocation.
// Immutable for the duration of the connect cycle it starts.
type ConnectRequest struct {
	// PairingCode is presented to the backend for validation.
	// Required when a backend is configured.
	PairingCode string

	// AllowRetry enables retrying transient failures before the first
	// successful connect. After any success, transient drops are
	// always retried.
	AllowRetry bool
}

// Config configures an Orchestrator.
type Config struct {
	// Transport is the control channel to the relay. Required.
	Transport transport.Conn

	// Backend brokers registration. Optional; nil runs standalone.
	Backend Backend

	// Backoff customizes the retry delay calculation. The zero value
	// selects the default timing with jitter.
	Backoff BackoffConfig

	// DisplayName is announced to the relay on every attempt.
	DisplayName string

	// ConnectTimeout bounds a single attempt (default: 30s).
	ConnectTimeout time.Duration

	// EventBuffer is the dispatch queue size (default: 64).
	EventBuffer int

	// Logger receives lifecycle diagnostics. Silent when nil.
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Transport == nil {
		return fmt.Errorf("connection: Transport is required")
	}
	return nil
}

// Orchestrator sequences connect, listen, classify and retry for a
// host's control channel. It is the single writer of the connection
// state; all mutations happen under its lock and all handler fan-out
// happens on one dispatch goroutine.
type Orchestrator struct {
	config Config
	logger *slog.Logger

	mu               sync.RWMutex
	phase            Phase
	hasEverConnected bool
	joinCode         string
	credential       string
	tenant           string
	peers            map[string]transport.Peer
	session          *Session
	request          ConnectRequest
	attemptCancel    context.CancelFunc
	retryCancel      chan struct{}
	closed           bool

	backoff *Backoff

	handlersMu sync.RWMutex
	handlers   []EventHandler

	events  chan Event
	retryCh chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator and starts its dispatch and
// retry workers.
func NewOrchestrator(config Config) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	backoff := NewBackoff()
	if config.Backoff != (BackoffConfig{}) {
		backoff = NewBackoffWithConfig(config.Backoff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		config:  config,
		logger:  logger,
		phase:   PhaseIdle,
		peers:   make(map[string]transport.Peer),
		backoff: backoff,
		events:  make(chan Event, config.EventBuffer),
		retryCh: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	o.wg.Add(2)
	go o.dispatchLoop()
	go o.retryLoop()

	return o, nil
}

// OnEvent registers a handler for orchestrator events. Handlers run
// sequentially on the dispatch goroutine in registration order.
func (o *Orchestrator) OnEvent(handler EventHandler) {
	o.handlersMu.Lock()
	defer o.handlersMu.Unlock()
	o.handlers = append(o.handlers, handler)
}

// Connect starts a connect cycle and blocks until it reaches Connected
// or gives up. Transient failures are retried internally when the
// request allows it or a previous connect ever succeeded. Returns
// ErrConnectAborted when an explicit Disconnect interrupts the cycle.
func (o *Orchestrator) Connect(ctx context.Context, req ConnectRequest) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	switch o.phase {
	case PhaseConnecting, PhaseConnected, PhaseRetrying:
		o.mu.Unlock()
		return ErrAlreadyConnected
	}
	if o.config.Backend != nil && req.PairingCode == "" {
		o.mu.Unlock()
		return ErrPairingCodeRequired
	}
	o.request = req
	o.backoff.Reset()
	o.setPhaseLocked(PhaseConnecting)
	o.mu.Unlock()

	for {
		err := o.attempt(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}
		if ctx.Err() != nil {
			o.abandonCycle()
			return ctx.Err()
		}
		if errors.Is(err, ErrPairingRejected) {
			o.failTerminal(err)
			return err
		}

		o.mu.Lock()
		if o.closed || o.phase != PhaseConnecting {
			o.mu.Unlock()
			return ErrConnectAborted
		}
		if !o.request.AllowRetry && !o.hasEverConnected {
			o.setPhaseLocked(PhaseFailed)
			o.mu.Unlock()
			o.emit(Event{Type: EventTerminalFailure, Error: err})
			return err
		}
		o.setPhaseLocked(PhaseRetrying)
		cancelCh := make(chan struct{})
		o.retryCancel = cancelCh
		o.mu.Unlock()

		delay := o.backoff.Next()
		o.emit(Event{Type: EventRetryScheduled, Attempt: o.backoff.Attempts(), Delay: delay})
		o.logger.Debug("retrying connect",
			"attempt", o.backoff.Attempts(),
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.abandonCycle()
			return ctx.Err()
		case <-o.ctx.Done():
			timer.Stop()
			return ErrClosed
		case <-cancelCh:
			timer.Stop()
			return ErrConnectAborted
		case <-timer.C:
		}

		o.mu.Lock()
		if o.closed || o.phase != PhaseRetrying {
			o.mu.Unlock()
			return ErrConnectAborted
		}
		o.setPhaseLocked(PhaseConnecting)
		o.mu.Unlock()
	}
}

// attempt runs one session open and, on success, applies the result.
func (o *Orchestrator) attempt(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	relay := &sessionRelay{orchestrator: o}
	sess := NewSession(SessionConfig{
		Conn:        o.config.Transport,
		Backend:     o.config.Backend,
		Observer:    relay,
		PairingCode: o.request.PairingCode,
		DisplayName: o.config.DisplayName,
	})
	relay.session = sess
	o.session = sess
	o.peers = make(map[string]transport.Peer)
	attemptCtx, cancel := context.WithTimeout(ctx, o.config.ConnectTimeout)
	o.attemptCancel = cancel
	o.mu.Unlock()
	defer cancel()

	result, err := sess.Open(attemptCtx)
	if err != nil {
		o.mu.Lock()
		if o.session == sess {
			o.session = nil
			o.attemptCancel = nil
		}
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	if o.closed || o.phase != PhaseConnecting || o.session != sess {
		// Disconnect raced the success; tear the session down.
		o.mu.Unlock()
		sess.Close(context.Background())
		return ErrConnectAborted
	}
	o.credential = result.Credential
	o.tenant = result.Tenant
	o.joinCode = result.JoinCode
	o.hasEverConnected = true
	o.attemptCancel = nil
	o.setPhaseLocked(PhaseConnected)
	o.backoff.Reset()
	backendActive := o.config.Backend != nil
	o.mu.Unlock()

	profile := result.Profile

	o.emit(Event{
		Type:     EventConnected,
		JoinCode: result.JoinCode,
		RoomID:   profile.RoomID,
		RoomName: profile.RoomName,
	})
	if backendActive {
		o.emit(Event{
			Type:       EventIdentityEstablished,
			Credential: result.Credential,
			Tenant:     result.Tenant,
			RoomID:     profile.RoomID,
			RoomName:   profile.RoomName,
		})
	}
	if result.JoinCode != "" {
		o.emit(Event{Type: EventJoinCodeChanged, JoinCode: result.JoinCode})
	}

	return nil
}

// Disconnect ends the current cycle from any phase: it closes the
// active session, cancels a pending retry wait and returns the
// orchestrator to Idle. The join code and peer set are cleared.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	wasConnected := o.phase == PhaseConnected
	sess := o.session
	o.session = nil
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
	if o.retryCancel != nil {
		close(o.retryCancel)
		o.retryCancel = nil
	}
	o.setPhaseLocked(PhaseIdle)
	o.joinCode = ""
	o.peers = make(map[string]transport.Peer)
	o.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.Close(ctx)
	}
	if wasConnected {
		o.emit(Event{Type: EventDisconnected})
	}
	return err
}

// Close shuts the orchestrator down: it disconnects, stops the workers
// and waits for them to exit. Must not be called from an event handler.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	sess := o.session
	o.session = nil
	if o.attemptCancel != nil {
		o.attemptCancel()
		o.attemptCancel = nil
	}
	if o.retryCancel != nil {
		close(o.retryCancel)
		o.retryCancel = nil
	}
	o.setPhaseLocked(PhaseIdle)
	o.mu.Unlock()

	if sess != nil {
		sess.Close(context.Background())
	}
	o.cancel()
	o.wg.Wait()
	return nil
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

// HasEverConnected reports whether any connect succeeded during the
// orchestrator's lifetime.
func (o *Orchestrator) HasEverConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.hasEverConnected
}

// JoinCode returns the last join code assigned by the relay.
func (o *Orchestrator) JoinCode() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.joinCode
}

// Peers returns the currently connected peers, sorted by ID.
func (o *Orchestrator) Peers() []transport.Peer {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.peersLocked()
}

// RetryAttempts returns the attempt count of the current backoff cycle.
func (o *Orchestrator) RetryAttempts() int {
	return o.backoff.Attempts()
}

// State returns a snapshot of the connection state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return State{
		Phase:            o.phase,
		HasEverConnected: o.hasEverConnected,
		JoinCode:         o.joinCode,
		Credential:       o.credential,
		Tenant:           o.tenant,
		Peers:            o.peersLocked(),
	}
}

// peersLocked copies the peer set sorted by ID. Callers hold o.mu.
func (o *Orchestrator) peersLocked() []transport.Peer {
	peers := make([]transport.Peer, 0, len(o.peers))
	for _, p := range o.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

// setPhaseLocked transitions the phase. Callers hold o.mu.
func (o *Orchestrator) setPhaseLocked(p Phase) {
	if o.phase == p {
		return
	}
	o.logger.Debug("phase transition", "from", o.phase.String(), "to", p.String())
	o.phase = p
}

// abandonCycle returns to Idle after the caller's context was
// canceled mid-cycle.
func (o *Orchestrator) abandonCycle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if o.phase == PhaseConnecting || o.phase == PhaseRetrying {
		o.setPhaseLocked(PhaseIdle)
		o.retryCancel = nil
	}
}

// failTerminal transitions to Failed and reports the terminal error.
func (o *Orchestrator) failTerminal(err error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.setPhaseLocked(PhaseFailed)
	o.retryCancel = nil
	o.mu.Unlock()

	o.emit(Event{Type: EventTerminalFailure, Error: err})
}

// emit queues an event for dispatch. Events are dropped with a warning
// when the queue is full.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.logger.Warn("event queue full, dropping event", "type", ev.Type.String())
	}
}

// dispatchLoop fans events out to registered handlers, one at a time.
func (o *Orchestrator) dispatchLoop() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		case ev := <-o.events:
			o.handlersMu.RLock()
			handlers := append([]EventHandler(nil), o.handlers...)
			o.handlersMu.RUnlock()
			for _, handler := range handlers {
				handler(ev)
			}
		}
	}
}

// retryLoop waits for reconnect triggers from the event path.
func (o *Orchestrator) retryLoop() {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.retryCh:
			o.runRetryCycle()
		}
	}
}

// runRetryCycle re-attempts the connection after a drop until it
// succeeds, gives up or is canceled.
func (o *Orchestrator) runRetryCycle() {
	for {
		o.mu.Lock()
		if o.closed || o.phase != PhaseRetrying {
			o.mu.Unlock()
			return
		}
		cancelCh := o.retryCancel
		o.mu.Unlock()

		delay := o.backoff.Next()
		o.emit(Event{Type: EventRetryScheduled, Attempt: o.backoff.Attempts(), Delay: delay})
		o.logger.Debug("reconnect scheduled",
			"attempt", o.backoff.Attempts(),
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-o.ctx.Done():
			timer.Stop()
			return
		case <-cancelCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		o.mu.Lock()
		if o.closed || o.phase != PhaseRetrying {
			o.mu.Unlock()
			return
		}
		o.setPhaseLocked(PhaseConnecting)
		o.mu.Unlock()

		err := o.attempt(o.ctx)
		if err == nil {
			return
		}
		if errors.Is(err, ErrClosed) || errors.Is(err, ErrConnectAborted) {
			return
		}
		if errors.Is(err, ErrPairingRejected) {
			o.failTerminal(err)
			return
		}

		o.mu.Lock()
		if o.closed || o.phase != PhaseConnecting {
			o.mu.Unlock()
			return
		}
		if !o.request.AllowRetry && !o.hasEverConnected {
			o.setPhaseLocked(PhaseFailed)
			o.mu.Unlock()
			o.emit(Event{Type: EventTerminalFailure, Error: err})
			return
		}
		o.setPhaseLocked(PhaseRetrying)
		cancelCh = make(chan struct{})
		o.retryCancel = cancelCh
		o.mu.Unlock()
	}
}

// sessionRelay forwards one session's events into the orchestrator,
// carrying the session identity for staleness checks.
type sessionRelay struct {
	orchestrator *Orchestrator
	session      *Session
}

func (r *sessionRelay) PeerJoined(peer transport.Peer) {
	r.orchestrator.handlePeerJoined(r.session, peer)
}

func (r *sessionRelay) PeerLeft(peerID string) {
	r.orchestrator.handlePeerLeft(r.session, peerID)
}

func (r *sessionRelay) CredentialsRotated(credential, tenant string) {
	r.orchestrator.handleCredentialsRotated(r.session, credential, tenant)
}

func (r *sessionRelay) JoinCodeRotated(code string) {
	r.orchestrator.handleJoinCodeRotated(r.session, code)
}

func (r *sessionRelay) Disconnected(err error) {
	r.orchestrator.handleSessionDisconnected(r.session, err)
}

var _ SessionObserver = (*sessionRelay)(nil)

// currentSessionLocked reports whether events from sess should still
// be applied. Callers hold o.mu.
func (o *Orchestrator) currentSessionLocked(sess *Session) bool {
	if o.closed || sess == nil || o.session != sess {
		return false
	}
	return o.phase != PhaseFailed && o.phase != PhaseIdle
}

// handlePeerJoined applies a peer join to the peer set. Joins for an
// already-present peer ID update the entry without re-emitting.
func (o *Orchestrator) handlePeerJoined(sess *Session, peer transport.Peer) {
	o.mu.Lock()
	if !o.currentSessionLocked(sess) || peer.ID == "" {
		o.mu.Unlock()
		return
	}
	_, known := o.peers[peer.ID]
	o.peers[peer.ID] = peer
	o.mu.Unlock()

	if known {
		return
	}
	o.emit(Event{Type: EventPeerJoined, Peer: peer})
}

// handlePeerLeft removes a peer from the peer set. Leaves for unknown
// peer IDs are ignored.
func (o *Orchestrator) handlePeerLeft(sess *Session, peerID string) {
	o.mu.Lock()
	if !o.currentSessionLocked(sess) {
		o.mu.Unlock()
		return
	}
	_, known := o.peers[peerID]
	delete(o.peers, peerID)
	o.mu.Unlock()

	if !known {
		return
	}
	o.emit(Event{Type: EventPeerLeft, PeerID: peerID})
}

func (o *Orchestrator) handleCredentialsRotated(sess *Session, credential, tenant string) {
	o.mu.Lock()
	if !o.currentSessionLocked(sess) {
		o.mu.Unlock()
		return
	}
	o.credential = credential
	o.tenant = tenant
	o.mu.Unlock()

	o.emit(Event{Type: EventCredentialsRotated, Credential: credential, Tenant: tenant})
}

func (o *Orchestrator) handleJoinCodeRotated(sess *Session, code string) {
	o.mu.Lock()
	if !o.currentSessionLocked(sess) {
		o.mu.Unlock()
		return
	}
	o.joinCode = code
	o.mu.Unlock()

	o.emit(Event{Type: EventJoinCodeChanged, JoinCode: code})
}

// handleSessionDisconnected classifies a drop reported by the current
// session and either schedules the self-heal cycle or fails terminally.
func (o *Orchestrator) handleSessionDisconnected(sess *Session, cause error) {
	o.mu.Lock()
	if o.closed || o.session != sess || o.phase != PhaseConnected {
		o.mu.Unlock()
		return
	}
	o.session = nil
	o.peers = make(map[string]transport.Peer)

	unrecoverable := errors.Is(cause, ErrPairingRejected) ||
		o.config.Transport.IsUnrecoverableRequestError(cause)
	if unrecoverable {
		terminal := cause
		if !errors.Is(terminal, ErrPairingRejected) {
			terminal = fmt.Errorf("%w: %w", ErrPairingRejected, cause)
		}
		o.setPhaseLocked(PhaseFailed)
		o.mu.Unlock()
		o.emit(Event{Type: EventDisconnected, Error: cause})
		o.emit(Event{Type: EventTerminalFailure, Error: terminal})
		return
	}

	if !o.request.AllowRetry && !o.hasEverConnected {
		o.setPhaseLocked(PhaseFailed)
		o.mu.Unlock()
		o.emit(Event{Type: EventDisconnected, Error: cause})
		o.emit(Event{Type: EventTerminalFailure, Error: cause})
		return
	}

	o.setPhaseLocked(PhaseRetrying)
	cancelCh := make(chan struct{})
	o.retryCancel = cancelCh
	o.mu.Unlock()

	o.emit(Event{Type: EventDisconnected, Error: cause})

	select {
	case o.retryCh <- struct{}{}:
	default:
		// A cycle is already pending.
	}
}
