package commands

import (
	"fmt"
	"io"

	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
)

const viewTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// RunView streams the selected events to w as a table, one line per
// event. Payload fields that do not fit the headline show up as
// indented detail lines underneath.
func RunView(path string, sel Selection, w io.Writer) error {
	f, err := sel.filter()
	if err != nil {
		return err
	}

	reader, err := eventlog.NewFilteredReader(path, f)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		writeEvent(w, event)
	}
}

func writeEvent(w io.Writer, e eventlog.Event) {
	fmt.Fprintf(w, "%s  %-8s  %-7s  %s\n",
		e.Timestamp.UTC().Format(viewTimeFormat), shortID(e.CycleID), e.Category, headline(e))
	for _, line := range detailLines(e) {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// headline is the one line summary shown in the rightmost column.
func headline(e eventlog.Event) string {
	switch {
	case e.Phase != nil:
		if e.Phase.From == "" {
			return "-> " + e.Phase.To
		}
		return e.Phase.From + " -> " + e.Phase.To
	case e.Retry != nil:
		return fmt.Sprintf("attempt %d in %s", e.Retry.Attempt, e.Retry.Delay)
	case e.Peer != nil:
		verb := "left"
		if e.Peer.Joined {
			verb = "joined"
		}
		if e.Peer.Kind != "" {
			return fmt.Sprintf("%s %s (%s)", verb, e.Peer.PeerID, e.Peer.Kind)
		}
		return verb + " " + e.Peer.PeerID
	case e.Pairing != nil:
		if e.Pairing.ExpiresAt.IsZero() {
			return e.Pairing.Action.String()
		}
		return fmt.Sprintf("%s, expires %s", e.Pairing.Action, e.Pairing.ExpiresAt.UTC().Format(viewTimeFormat))
	case e.Error != nil:
		if e.Error.Terminal {
			return e.Error.Message + " (terminal)"
		}
		return e.Error.Message
	}
	return ""
}

func detailLines(e eventlog.Event) []string {
	var lines []string
	if e.Phase != nil && e.Phase.Reason != "" {
		lines = append(lines, "reason: "+e.Phase.Reason)
	}
	if e.Error != nil && e.Error.Context != "" {
		lines = append(lines, "context: "+e.Error.Context)
	}
	if e.RoomID != "" {
		room := e.RoomID
		if e.Tenant != "" {
			room = e.Tenant + "/" + e.RoomID
		}
		lines = append(lines, "room: "+room)
	}
	return lines
}

// shortID trims a cycle id to the leading eight characters so the
// column stays narrow; a full id is one -cycle flag away.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
