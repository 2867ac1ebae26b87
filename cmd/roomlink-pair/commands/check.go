package commands

import (
	"flag"
	"fmt"
	"io"

	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// RunCheck validates and canonicalizes pairing codes without touching
// the network. Valid codes print in display form; any invalid code
// turns the exit code to rejected.
func RunCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	quiet := fs.Bool("q", false, "no per-code output, only the exit code")
	if code, ok := parseFlags(fs, args, stderr); !ok {
		return code
	}

	codes := fs.Args()
	if len(codes) == 0 {
		fmt.Fprintln(stderr, "check: at least one code argument is needed")
		return exitFailure
	}

	bad := 0
	for _, raw := range codes {
		code, err := pairing.Normalize(raw)
		if err != nil {
			bad++
			if !*quiet {
				fmt.Fprintf(stdout, "%-12s invalid: %v\n", raw, err)
			}
			continue
		}
		if !*quiet {
			fmt.Fprintf(stdout, "%-12s ok\n", pairing.Format(code))
		}
	}
	if bad > 0 {
		return exitRejected
	}
	return exitOK
}
