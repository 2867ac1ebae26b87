package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/roomlink-project/roomlink-go/pkg/connection"
	"github.com/roomlink-project/roomlink-go/pkg/discovery"
	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
	"github.com/roomlink-project/roomlink-go/pkg/pairing"
	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Service runs a roomlink host. It owns the connection orchestrator and
// layers settings persistence, pairing code upkeep, LAN advertisement
// and lifecycle capture on top of it.
type Service struct {
	mu sync.RWMutex

	config Config
	state  ServiceState

	orchestrator *connection.Orchestrator

	// Remote tracking
	registry *Registry

	// Pairing code management (nil without a backend)
	pairingStore *pairing.Store

	displayName string
	tenant      string
	roomID      string
	lastPhase   connection.Phase
	advertising bool

	// cycleID correlates lifecycle log entries for one connect cycle.
	cycleID string

	// usedStoredCode marks that the running connect cycle presented the
	// stored permanent code rather than a caller-supplied one.
	usedStoredCode bool

	// Event handlers
	eventHandlers []connection.EventHandler

	// Logger for debug output (optional)
	logger *slog.Logger

	// Lifecycle logger for structured event capture (optional)
	eventLogger eventlog.Logger

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// refreshCh nudges the pairing refresh loop out of its tick cycle.
	refreshCh chan struct{}
}

// NewService creates a new host service.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if config.PairingRefreshInterval <= 0 {
		config.PairingRefreshInterval = DefaultConfig().PairingRefreshInterval
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var eventLogger eventlog.Logger = eventlog.NoopLogger{}
	if config.EventLogger != nil {
		eventLogger = config.EventLogger
	}

	svc := &Service{
		config:      config,
		state:       StateIdle,
		registry:    NewRegistry(),
		displayName: config.DisplayName,
		lastPhase:   connection.PhaseIdle,
		logger:      logger,
		eventLogger: eventLogger,
		refreshCh:   make(chan struct{}, 1),
	}

	if config.Backend != nil {
		store, err := pairing.NewStore(pairing.StoreConfig{
			Issuer: config.Backend,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		svc.pairingStore = store
	}

	return svc, nil
}

// State returns the current service state.
func (s *Service) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnEvent registers a handler for connection events. Handlers run on
// the orchestrator's dispatch goroutine after the service has applied
// the event to its own state.
func (s *Service) OnEvent(handler connection.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// Start starts the host service. It loads persisted settings, creates
// the connection orchestrator and begins pairing code upkeep. Start
// does not connect; call Connect to open the control channel.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.loadSettings(); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return err
	}

	orchConfig := connection.Config{
		Transport:      s.config.Transport,
		Backoff:        s.config.Backoff,
		DisplayName:    s.DisplayName(),
		ConnectTimeout: s.config.ConnectTimeout,
		Logger:         s.logger,
	}
	if s.config.Backend != nil {
		orchConfig.Backend = s.config.Backend
	}

	orch, err := connection.NewOrchestrator(orchConfig)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return err
	}
	orch.OnEvent(s.handleConnectionEvent)

	s.mu.Lock()
	s.orchestrator = orch
	s.state = StateRunning
	s.mu.Unlock()

	if s.pairingStore != nil {
		s.wg.Add(1)
		go s.pairingRefreshLoop()
	}

	s.logger.Info("host service started", "hostId", s.config.HostID)
	return nil
}

// Stop stops the host service. It tears down the control channel,
// stops the LAN advertisement and persists settings.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateStarting {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	orch := s.orchestrator
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if orch != nil {
		if err := orch.Close(); err != nil {
			s.logger.Warn("orchestrator close failed", "error", err)
		}
	}

	s.stopAdvertising()

	if err := s.saveSettings(); err != nil {
		s.logger.Warn("failed to save settings", "error", err)
	}

	s.mu.Lock()
	s.orchestrator = nil
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("host service stopped")
	return nil
}

// Connect opens the control channel and blocks until it is established
// or the attempt gives up. When no pairing code is supplied and a
// stored permanent code is available, the stored code is presented
// instead. Returns ErrCodeExpired when the fallback code has expired.
func (s *Service) Connect(ctx context.Context, req connection.ConnectRequest) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	orch := s.orchestrator

	usedStored := false
	if req.PairingCode == "" && s.pairingStore != nil {
		if code, ok := s.pairingStore.Current(); ok {
			if code.Remaining(time.Now()) <= 0 {
				s.mu.Unlock()
				return ErrCodeExpired
			}
			req.PairingCode = code.Code
			usedStored = true
		}
	}

	s.cycleID = uuid.NewString()
	s.usedStoredCode = usedStored
	s.mu.Unlock()

	s.logger.Info("connecting",
		"storedCode", usedStored,
		"allowRetry", req.AllowRetry,
	)

	return orch.Connect(ctx, req)
}

// Disconnect tears down the control channel and returns the host to
// idle. Safe to call in any state.
func (s *Service) Disconnect(ctx context.Context) error {
	s.mu.RLock()
	orch := s.orchestrator
	s.mu.RUnlock()

	if orch == nil {
		return ErrNotStarted
	}
	return orch.Disconnect(ctx)
}

// Phase returns the connection lifecycle phase.
func (s *Service) Phase() connection.Phase {
	s.mu.RLock()
	orch := s.orchestrator
	s.mu.RUnlock()

	if orch == nil {
		return connection.PhaseIdle
	}
	return orch.Phase()
}

// HasEverConnected reports whether any connect has succeeded since the
// service started.
func (s *Service) HasEverConnected() bool {
	s.mu.RLock()
	orch := s.orchestrator
	s.mu.RUnlock()

	if orch == nil {
		return false
	}
	return orch.HasEverConnected()
}

// JoinCode returns the active room join code, or "" when none is held.
func (s *Service) JoinCode() string {
	s.mu.RLock()
	orch := s.orchestrator
	s.mu.RUnlock()

	if orch == nil {
		return ""
	}
	return orch.JoinCode()
}

// Peers returns the peers currently present in the room.
func (s *Service) Peers() []transport.Peer {
	s.mu.RLock()
	orch := s.orchestrator
	s.mu.RUnlock()

	if orch == nil {
		return nil
	}
	return orch.Peers()
}

// Remotes returns all remotes that have ever joined this host.
func (s *Service) Remotes() []*Remote {
	return s.registry.List()
}

// ForgetRemote removes a remote from the registry and persisted settings.
func (s *Service) ForgetRemote(peerID string) error {
	s.registry.Forget(peerID)
	return s.saveSettings()
}

// HostID returns the stable host identifier.
func (s *Service) HostID() string {
	return s.config.HostID
}

// Tenant returns the tenant namespace assigned by the backend, or ""
// before registration.
func (s *Service) Tenant() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenant
}

// RoomID returns the room assigned by the relay, or "" when not
// connected.
func (s *Service) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// DisplayName returns the user-facing host name.
func (s *Service) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayName
}

// SetDisplayName renames the host. The LAN advertisement updates
// immediately; the relay sees the new name on the next connect.
func (s *Service) SetDisplayName(name string) error {
	s.mu.Lock()
	s.displayName = name
	advertising := s.advertising
	s.mu.Unlock()

	if err := s.saveSettings(); err != nil {
		return err
	}

	if advertising && s.config.Advertiser != nil {
		if err := s.config.Advertiser.UpdateHost(s.hostInfo(s.JoinCode() != "")); err != nil {
			s.logger.Warn("mDNS update failed", "error", err)
		}
	}
	return nil
}

// PairingCode returns the stored long-lived pairing code. The second
// return value is false when no backend is configured or no code is
// held.
func (s *Service) PairingCode() (pairing.LongLivedCode, bool) {
	if s.pairingStore == nil {
		return pairing.LongLivedCode{}, false
	}
	return s.pairingStore.Current()
}

// GeneratePairingCode unconditionally issues a fresh long-lived code,
// replacing any stored one.
func (s *Service) GeneratePairingCode(ctx context.Context) (pairing.LongLivedCode, error) {
	if s.pairingStore == nil {
		return pairing.LongLivedCode{}, ErrNoBackend
	}

	code, err := s.pairingStore.Generate(ctx)
	if err != nil {
		return pairing.LongLivedCode{}, err
	}

	s.logPairing(eventlog.PairingIssued, code.ExpiresAt)
	if err := s.saveSettings(); err != nil {
		s.logger.Warn("failed to persist pairing code", "error", err)
	}
	return code, nil
}

// handleConnectionEvent applies orchestrator events to the service
// state, then fans them out to registered handlers.
func (s *Service) handleConnectionEvent(ev connection.Event) {
	switch ev.Type {
	case connection.EventConnected:
		s.handleConnected(ev)
	case connection.EventIdentityEstablished:
		s.handleIdentityEstablished(ev)
	case connection.EventCredentialsRotated:
		s.handleCredentialsRotated(ev)
	case connection.EventJoinCodeChanged:
		s.handleJoinCodeChanged(ev)
	case connection.EventPeerJoined:
		s.handlePeerJoined(ev)
	case connection.EventPeerLeft:
		s.handlePeerLeft(ev)
	case connection.EventRetryScheduled:
		s.handleRetryScheduled(ev)
	case connection.EventDisconnected:
		s.handleDisconnected(ev)
	case connection.EventTerminalFailure:
		s.handleTerminalFailure(ev)
	}

	s.mu.RLock()
	handlers := append([]connection.EventHandler(nil), s.eventHandlers...)
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}

func (s *Service) handleConnected(ev connection.Event) {
	s.mu.Lock()
	from := s.lastPhase
	s.lastPhase = connection.PhaseConnected
	s.roomID = ev.RoomID
	s.mu.Unlock()

	s.logPhase(from, connection.PhaseConnected, "")
	s.startAdvertising(ev.JoinCode != "")
}

func (s *Service) handleIdentityEstablished(ev connection.Event) {
	s.mu.Lock()
	s.tenant = ev.Tenant
	s.mu.Unlock()

	// Make sure a long-lived code exists for later reconnects.
	s.nudgeRefresh()
}

func (s *Service) handleCredentialsRotated(ev connection.Event) {
	s.mu.Lock()
	if ev.Tenant != "" {
		s.tenant = ev.Tenant
	}
	tenant := s.tenant
	s.mu.Unlock()

	// Keep the backend client authenticated with the rotated credential
	// so pairing code issuance keeps working.
	if s.config.Backend != nil && ev.Credential != "" {
		s.config.Backend.SetCredentials(ev.Credential, tenant)
	}
}

func (s *Service) handleJoinCodeChanged(ev connection.Event) {
	s.mu.RLock()
	advertising := s.advertising
	s.mu.RUnlock()

	if advertising && s.config.Advertiser != nil {
		if err := s.config.Advertiser.UpdateHost(s.hostInfo(ev.JoinCode != "")); err != nil {
			s.logger.Warn("mDNS update failed", "error", err)
		}
	}
}

func (s *Service) handlePeerJoined(ev connection.Event) {
	s.registry.MarkPresent(ev.Peer)
	s.logPeer(ev.Peer.ID, string(ev.Peer.Kind), true)

	if err := s.saveSettings(); err != nil {
		s.logger.Warn("failed to persist remotes", "error", err)
	}
}

func (s *Service) handlePeerLeft(ev connection.Event) {
	kind := ""
	if remote := s.registry.Get(ev.PeerID); remote != nil {
		kind = string(remote.Kind)
	}

	s.registry.MarkAbsent(ev.PeerID)
	s.logPeer(ev.PeerID, kind, false)
}

func (s *Service) handleRetryScheduled(ev connection.Event) {
	s.mu.Lock()
	s.lastPhase = connection.PhaseRetrying
	s.mu.Unlock()

	s.logRetry(ev.Attempt, ev.Delay)
}

func (s *Service) handleDisconnected(ev connection.Event) {
	s.registry.MarkAllAbsent()
	s.stopAdvertising()

	s.mu.Lock()
	orch := s.orchestrator
	from := s.lastPhase
	to := connection.PhaseIdle
	if orch != nil {
		to = orch.Phase()
	}
	s.lastPhase = to
	if to == connection.PhaseIdle {
		s.roomID = ""
	}
	s.mu.Unlock()

	reason := ""
	if ev.Error != nil {
		reason = ev.Error.Error()
	}
	s.logPhase(from, to, reason)
}

func (s *Service) handleTerminalFailure(ev connection.Event) {
	s.mu.Lock()
	from := s.lastPhase
	s.lastPhase = connection.PhaseFailed
	usedStored := s.usedStoredCode
	s.usedStoredCode = false
	s.mu.Unlock()

	s.stopAdvertising()

	reason := ""
	if ev.Error != nil {
		reason = ev.Error.Error()
	}
	if from != connection.PhaseFailed {
		s.logPhase(from, connection.PhaseFailed, reason)
	}
	s.logError(ev.Error, "connect", true)

	// A rejected permanent code will never be accepted again; discard
	// it so the next pairing starts fresh.
	if usedStored && errors.Is(ev.Error, connection.ErrPairingRejected) {
		s.clearStoredCode()
	}
}

// startAdvertising publishes the host service on the LAN.
func (s *Service) startAdvertising(joinCodeActive bool) {
	if s.config.Advertiser == nil {
		return
	}

	if err := s.config.Advertiser.AdvertiseHost(s.ctx, s.hostInfo(joinCodeActive)); err != nil {
		s.logger.Warn("mDNS advertisement failed", "error", err)
		return
	}

	s.mu.Lock()
	s.advertising = true
	s.mu.Unlock()
}

// stopAdvertising withdraws the LAN advertisement if one is running.
func (s *Service) stopAdvertising() {
	s.mu.Lock()
	wasAdvertising := s.advertising
	s.advertising = false
	s.mu.Unlock()

	if wasAdvertising && s.config.Advertiser != nil {
		if err := s.config.Advertiser.StopHost(); err != nil {
			s.logger.Warn("mDNS stop failed", "error", err)
		}
	}
}

func (s *Service) hostInfo(joinCodeActive bool) *discovery.HostInfo {
	registered := s.config.Backend != nil && s.config.Backend.JWT() != ""
	return &discovery.HostInfo{
		HostID:         s.config.HostID,
		DisplayName:    s.DisplayName(),
		Registered:     registered,
		JoinCodeActive: joinCodeActive,
		Port:           s.config.AdvertisePort,
	}
}

// clearStoredCode discards the stored permanent pairing code.
func (s *Service) clearStoredCode() {
	if s.pairingStore == nil {
		return
	}
	if _, ok := s.pairingStore.Current(); !ok {
		return
	}

	s.pairingStore.Clear()
	s.logPairing(eventlog.PairingCleared, time.Time{})
	if err := s.saveSettings(); err != nil {
		s.logger.Warn("failed to persist settings", "error", err)
	}
	s.logger.Info("stored pairing code cleared after rejection")
}

// nudgeRefresh wakes the pairing refresh loop outside its tick cycle.
func (s *Service) nudgeRefresh() {
	if s.pairingStore == nil {
		return
	}
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// pairingRefreshLoop keeps the long-lived pairing code fresh while the
// service runs.
func (s *Service) pairingRefreshLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PairingRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.refreshCh:
		case <-ticker.C:
		}
		s.refreshPairingCode()
	}
}

// refreshPairingCode refreshes the stored code when it is missing or
// close to expiry. No-op until the host is registered.
func (s *Service) refreshPairingCode() {
	if s.config.Backend == nil || s.config.Backend.JWT() == "" {
		return
	}

	before, hadBefore := s.pairingStore.Current()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	code, err := s.pairingStore.RefreshIfExpiringSoon(ctx)
	cancel()
	if err != nil {
		s.logger.Warn("pairing code refresh failed", "error", err)
		return
	}

	if hadBefore && code.Code == before.Code {
		return
	}

	action := eventlog.PairingIssued
	if hadBefore {
		action = eventlog.PairingRefreshed
	}
	s.logPairing(action, code.ExpiresAt)

	if err := s.saveSettings(); err != nil {
		s.logger.Warn("failed to persist pairing code", "error", err)
	}
	s.logger.Info("long-lived pairing code updated", "expiresAt", code.ExpiresAt)
}

// loadSettings applies persisted settings at startup.
func (s *Service) loadSettings() error {
	if s.config.SettingsStore == nil {
		return nil
	}

	settings, err := s.config.SettingsStore.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings == nil {
		return nil
	}

	s.mu.Lock()
	if settings.DisplayName != "" {
		s.displayName = settings.DisplayName
	}
	s.mu.Unlock()

	s.registry.Restore(settings.Remotes)

	if settings.PermanentPairingCode != "" && s.pairingStore != nil {
		s.pairingStore.Seed(pairing.LongLivedCode{
			Code:      settings.PermanentPairingCode,
			ExpiresAt: settings.PermanentCodeExpiresAt,
		})
	}
	return nil
}

// saveSettings snapshots the current state to the settings store.
func (s *Service) saveSettings() error {
	if s.config.SettingsStore == nil {
		return nil
	}

	settings := &Settings{
		DisplayName: s.DisplayName(),
		Remotes:     s.registry.Records(),
	}
	if s.pairingStore != nil {
		if code, ok := s.pairingStore.Current(); ok {
			settings.PermanentPairingCode = code.Code
			settings.PermanentCodeExpiresAt = code.ExpiresAt
		}
	}
	return s.config.SettingsStore.Save(settings)
}

// eventBase fills the shared fields of a lifecycle log event.
func (s *Service) eventBase(category eventlog.Category) eventlog.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eventlog.Event{
		Timestamp: time.Now(),
		CycleID:   s.cycleID,
		HostID:    s.config.HostID,
		Category:  category,
		Tenant:    s.tenant,
		RoomID:    s.roomID,
	}
}

func (s *Service) logPhase(from, to connection.Phase, reason string) {
	ev := s.eventBase(eventlog.CategoryPhase)
	ev.Phase = &eventlog.PhaseEvent{
		From:   from.String(),
		To:     to.String(),
		Reason: reason,
	}
	s.eventLogger.Log(ev)
}

func (s *Service) logRetry(attempt int, delay time.Duration) {
	ev := s.eventBase(eventlog.CategoryRetry)
	ev.Retry = &eventlog.RetryEvent{
		Attempt: attempt,
		Delay:   delay,
	}
	s.eventLogger.Log(ev)
}

func (s *Service) logPeer(peerID, kind string, joined bool) {
	ev := s.eventBase(eventlog.CategoryPeer)
	ev.Peer = &eventlog.PeerEvent{
		PeerID: peerID,
		Kind:   kind,
		Joined: joined,
	}
	s.eventLogger.Log(ev)
}

func (s *Service) logPairing(action eventlog.PairingAction, expiresAt time.Time) {
	ev := s.eventBase(eventlog.CategoryPairing)
	ev.Pairing = &eventlog.PairingEvent{
		Action:    action,
		ExpiresAt: expiresAt,
	}
	s.eventLogger.Log(ev)
}

func (s *Service) logError(err error, context string, terminal bool) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	ev := s.eventBase(eventlog.CategoryError)
	ev.Error = &eventlog.ErrorEventData{
		Message:  msg,
		Context:  context,
		Terminal: terminal,
	}
	s.eventLogger.Log(ev)
}
