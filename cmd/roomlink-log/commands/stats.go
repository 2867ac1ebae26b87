package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
)

// logSummary accumulates whole-log counters plus one cycleSummary per
// distinct cycle id. Cycles are kept in first-seen order, which for an
// append-only log is chronological.
type logSummary struct {
	events     int
	byCategory map[eventlog.Category]int
	errors     int
	terminal   int
	first      time.Time
	last       time.Time

	cycles  []*cycleSummary
	byCycle map[string]*cycleSummary
}

type cycleSummary struct {
	id       string
	hostID   string
	events   int
	retries  int
	errors   int
	terminal bool
	first    time.Time
	last     time.Time
}

func newLogSummary() *logSummary {
	return &logSummary{
		byCategory: make(map[eventlog.Category]int),
		byCycle:    make(map[string]*cycleSummary),
	}
}

func (s *logSummary) observe(e eventlog.Event) {
	s.events++
	s.byCategory[e.Category]++
	if s.first.IsZero() || e.Timestamp.Before(s.first) {
		s.first = e.Timestamp
	}
	if e.Timestamp.After(s.last) {
		s.last = e.Timestamp
	}
	if e.Error != nil {
		s.errors++
		if e.Error.Terminal {
			s.terminal++
		}
	}
	if e.CycleID == "" {
		return
	}
	c := s.byCycle[e.CycleID]
	if c == nil {
		c = &cycleSummary{id: e.CycleID, first: e.Timestamp, last: e.Timestamp}
		s.byCycle[e.CycleID] = c
		s.cycles = append(s.cycles, c)
	}
	c.observe(e)
}

func (c *cycleSummary) observe(e eventlog.Event) {
	c.events++
	if c.hostID == "" {
		c.hostID = e.HostID
	}
	if e.Timestamp.Before(c.first) {
		c.first = e.Timestamp
	}
	if e.Timestamp.After(c.last) {
		c.last = e.Timestamp
	}
	if e.Retry != nil {
		c.retries++
	}
	if e.Error != nil {
		c.errors++
		if e.Error.Terminal {
			c.terminal = true
		}
	}
}

var categoryOrder = []eventlog.Category{
	eventlog.CategoryPhase,
	eventlog.CategoryRetry,
	eventlog.CategoryPeer,
	eventlog.CategoryPairing,
	eventlog.CategoryError,
}

func (s *logSummary) render(w io.Writer) {
	if s.events == 0 {
		fmt.Fprintln(w, "empty log")
		return
	}

	var cats []string
	for _, cat := range categoryOrder {
		if n := s.byCategory[cat]; n > 0 {
			cats = append(cats, fmt.Sprintf("%s %d", cat, n))
		}
	}
	fmt.Fprintf(w, "Events: %d (%s)\n", s.events, strings.Join(cats, ", "))
	fmt.Fprintf(w, "Span:   %s .. %s (%s)\n",
		s.first.UTC().Format(time.RFC3339), s.last.UTC().Format(time.RFC3339),
		s.last.Sub(s.first).Round(time.Second))
	if s.errors > 0 {
		fmt.Fprintf(w, "Errors: %d (%d terminal)\n", s.errors, s.terminal)
	}
	fmt.Fprintf(w, "Cycles: %d\n", len(s.cycles))
	for _, c := range s.cycles {
		c.render(w)
	}
}

func (c *cycleSummary) render(w io.Writer) {
	parts := []string{fmt.Sprintf("%d events", c.events)}
	if c.retries > 0 {
		parts = append(parts, fmt.Sprintf("%d retries", c.retries))
	}
	if c.errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", c.errors))
	}
	if d := c.last.Sub(c.first); d > 0 {
		parts = append(parts, d.Round(time.Millisecond).String())
	}
	host := c.hostID
	if host == "" {
		host = "-"
	}
	fmt.Fprintf(w, "  %-8s  %-16s  %s", shortID(c.id), host, strings.Join(parts, ", "))
	if c.terminal {
		fmt.Fprint(w, "  [terminal failure]")
	}
	fmt.Fprintln(w)
}

// RunStats reads the selected events once and prints aggregate
// counters plus a per-cycle breakdown.
func RunStats(path string, sel Selection, w io.Writer) error {
	f, err := sel.filter()
	if err != nil {
		return err
	}

	reader, err := eventlog.NewFilteredReader(path, f)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	summary := newLogSummary()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		summary.observe(event)
	}

	summary.render(w)
	return nil
}
