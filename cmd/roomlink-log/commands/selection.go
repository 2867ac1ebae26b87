// Package commands holds the roomlink-log subcommands. They share one
// Selection type so every subcommand narrows a log the same way.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
)

// Selection narrows a log to the events a command should touch. The
// fields hold raw flag values; the zero value selects everything.
type Selection struct {
	CycleID  string
	HostID   string
	Tenant   string
	Category string
	From     string
	Until    string
}

// filter validates the raw values and translates them into an
// eventlog.Filter. From is inclusive, Until exclusive, both RFC3339.
func (s Selection) filter() (eventlog.Filter, error) {
	f := eventlog.Filter{
		CycleID: s.CycleID,
		HostID:  s.HostID,
		Tenant:  s.Tenant,
	}
	if s.Category != "" {
		cat, err := ParseCategory(s.Category)
		if err != nil {
			return eventlog.Filter{}, err
		}
		f.Category = &cat
	}
	if s.From != "" {
		t, err := time.Parse(time.RFC3339, s.From)
		if err != nil {
			return eventlog.Filter{}, fmt.Errorf("bad -from time %q: %w", s.From, err)
		}
		f.TimeStart = &t
	}
	if s.Until != "" {
		t, err := time.Parse(time.RFC3339, s.Until)
		if err != nil {
			return eventlog.Filter{}, fmt.Errorf("bad -until time %q: %w", s.Until, err)
		}
		f.TimeEnd = &t
	}
	return f, nil
}

// ParseCategory maps a flag value like "retry" onto an event category.
func ParseCategory(name string) (eventlog.Category, error) {
	switch strings.ToLower(name) {
	case "phase":
		return eventlog.CategoryPhase, nil
	case "retry":
		return eventlog.CategoryRetry, nil
	case "peer":
		return eventlog.CategoryPeer, nil
	case "pairing":
		return eventlog.CategoryPairing, nil
	case "error":
		return eventlog.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (phase, retry, peer, pairing, error)", name)
	}
}
