package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
)

// RunExport re-encodes the selected events onto w, either as one JSON
// object per line or as CSV with a flattened type/detail pair.
func RunExport(path, format string, sel Selection, w io.Writer) error {
	f, err := sel.filter()
	if err != nil {
		return err
	}

	reader, err := eventlog.NewFilteredReader(path, f)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format %q (jsonl, csv)", format)
	}
}

func exportJSONL(reader *eventlog.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
}

var csvHeader = []string{"timestamp", "cycle_id", "host_id", "category", "tenant", "room_id", "type", "detail"}

func exportCSV(reader *eventlog.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		kind, detail := summarize(event)
		row := []string{
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			event.CycleID,
			event.HostID,
			event.Category.String(),
			event.Tenant,
			event.RoomID,
			kind,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// summarize flattens an event payload into the CSV type and detail
// columns. The detail never repeats what the type already says.
func summarize(e eventlog.Event) (kind, detail string) {
	switch {
	case e.Phase != nil:
		if e.Phase.From == "" {
			return "phase", "-> " + e.Phase.To
		}
		return "phase", e.Phase.From + " -> " + e.Phase.To
	case e.Retry != nil:
		return "retry", fmt.Sprintf("attempt %d after %s", e.Retry.Attempt, e.Retry.Delay)
	case e.Peer != nil:
		kind = "peer-leave"
		if e.Peer.Joined {
			kind = "peer-join"
		}
		return kind, e.Peer.PeerID
	case e.Pairing != nil:
		detail = e.Pairing.Action.String()
		if !e.Pairing.ExpiresAt.IsZero() {
			detail += " until " + e.Pairing.ExpiresAt.UTC().Format(time.RFC3339)
		}
		return "pairing", detail
	case e.Error != nil:
		detail = e.Error.Message
		if e.Error.Terminal {
			detail += " (terminal)"
		}
		return "error", detail
	}
	return "unknown", ""
}
