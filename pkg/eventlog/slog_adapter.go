package eventlog

import (
	"context"
	"log/slog"
)

// SlogAdapter mirrors lifecycle events onto an slog.Logger, giving a
// human-readable view of the event stream during development.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps the given slog.Logger as an event sink.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log emits the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("cycle_id", event.CycleID),
		slog.String("host_id", event.HostID),
		slog.String("category", event.Category.String()),
	}

	if event.Tenant != "" {
		attrs = append(attrs, slog.String("tenant", event.Tenant))
	}
	if event.RoomID != "" {
		attrs = append(attrs, slog.String("room_id", event.RoomID))
	}

	switch {
	case event.Phase != nil:
		attrs = append(attrs,
			slog.String("from", event.Phase.From),
			slog.String("to", event.Phase.To),
		)
		if event.Phase.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Phase.Reason))
		}
	case event.Retry != nil:
		attrs = append(attrs,
			slog.Int("attempt", event.Retry.Attempt),
			slog.Duration("delay", event.Retry.Delay),
		)
	case event.Peer != nil:
		attrs = append(attrs,
			slog.String("peer_id", event.Peer.PeerID),
			slog.Bool("joined", event.Peer.Joined),
		)
		if event.Peer.Kind != "" {
			attrs = append(attrs, slog.String("kind", event.Peer.Kind))
		}
	case event.Pairing != nil:
		attrs = append(attrs, slog.String("action", event.Pairing.Action.String()))
		if !event.Pairing.ExpiresAt.IsZero() {
			attrs = append(attrs, slog.Time("expires_at", event.Pairing.ExpiresAt))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.Bool("terminal", event.Error.Terminal),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "lifecycle", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
