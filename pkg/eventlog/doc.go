// Package eventlog provides structured lifecycle logging for roomlink hosts.
//
// The host records every phase transition, retry schedule, peer
// membership change, pairing code action, and failure as an Event and
// hands it to a Logger. Unlike the operational slog output, the event
// log is a complete machine-readable trace: roomlink-log can replay,
// filter, and export it long after the fact.
//
// # Basic Usage
//
// Applications pick a sink by providing a Logger implementation:
//
//	// Development: mirror events onto the console via slog.
//	cfg.EventLogger = eventlog.NewSlogAdapter(slog.Default())
//
//	// Production: append to a binary log file.
//	fileLog, err := eventlog.NewFileLogger("/var/log/roomlink/host.rlog")
//	if err != nil { ... }
//	cfg.EventLogger = fileLog
//
//	// Both at once.
//	cfg.EventLogger = eventlog.NewMultiLogger(fileLog, eventlog.NewSlogAdapter(slog.Default()))
//
// # Event Types
//
// Events carry one type-specific payload:
//   - PhaseEvent: lifecycle phase transitions
//   - RetryEvent: scheduled reconnect attempts
//   - PeerEvent: remotes and observers joining or leaving
//   - PairingEvent: long-lived pairing code issuance (never the code itself)
//   - ErrorEventData: failures, with a terminal flag
//
// # File Format
//
// Log files are CBOR, conventionally with an .rlog extension. The
// roomlink-log CLI views, filters, and exports them.
package eventlog
