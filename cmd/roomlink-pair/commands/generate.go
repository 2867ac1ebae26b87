package commands

import (
	"flag"
	"fmt"
	"io"

	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// RunGenerate prints locally generated random pairing codes, meant
// for provisioning fixtures and backend seeding. Codes the backend
// hands out come from the issue command instead.
func RunGenerate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	count := fs.Int("n", 1, "how many codes to generate")
	plain := fs.Bool("plain", false, "print the canonical form without the separator")
	if code, ok := parseFlags(fs, args, stderr); !ok {
		return code
	}

	if *count < 1 {
		fmt.Fprintln(stderr, "generate: -n must be at least 1")
		return exitFailure
	}

	for i := 0; i < *count; i++ {
		code, err := pairing.GenerateCode()
		if err != nil {
			fmt.Fprintf(stderr, "generate: %v\n", err)
			return exitFailure
		}
		if *plain {
			fmt.Fprintln(stdout, code)
			continue
		}
		fmt.Fprintln(stdout, pairing.Format(code))
	}
	return exitOK
}
