package commands

import (
	"fmt"
	"io"

	"github.com/roomlink-project/roomlink-go/pkg/eventlog"
)

// RunFilter copies the selected events into a fresh log at output,
// keeping the binary format so the result feeds back into any other
// subcommand. It reports how many events were written.
func RunFilter(path, output string, sel Selection) (int, error) {
	f, err := sel.filter()
	if err != nil {
		return 0, err
	}

	reader, err := eventlog.NewFilteredReader(path, f)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	sink, err := eventlog.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", output, err)
	}

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.Close()
			return count, fmt.Errorf("read %s: %w", path, err)
		}
		sink.Log(event)
		count++
	}

	// Log holds write errors until Close; a full disk surfaces here.
	if err := sink.Close(); err != nil {
		return count, fmt.Errorf("write %s: %w", output, err)
	}
	return count, nil
}
