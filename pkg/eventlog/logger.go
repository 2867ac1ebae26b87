package eventlog

// Logger receives lifecycle events as the host emits them.
type Logger interface {
	// Log records one event. Implementations must be safe for
	// concurrent use and should return quickly; the host calls Log
	// from its event dispatch path.
	Log(event Event)
}

// NoopLogger discards all events. The zero value is ready to use.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
