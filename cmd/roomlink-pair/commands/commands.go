// Package commands holds the roomlink-pair subcommands. Each Run
// function parses its own flags and reports the outcome as a process
// exit code, which keeps main a thin dispatcher and the commands
// testable against in-memory writers.
package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// Exit codes: 1 means the command itself failed, 2 means the input
// (a pairing code or a credential) was rejected.
const (
	exitOK       = 0
	exitFailure  = 1
	exitRejected = 2
)

const stampFormat = "2006-01-02 15:04"

// parseFlags runs fs over args with errors going to stderr. When the
// returned ok is false the caller exits with the returned code; -h is
// mapped to a clean exit after the flag package prints the defaults.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) (int, bool) {
	fs.SetOutput(stderr)
	switch err := fs.Parse(args); err {
	case nil:
		return 0, true
	case flag.ErrHelp:
		return exitOK, false
	default:
		return exitFailure, false
	}
}

func printJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return exitFailure
	}
	return exitOK
}
