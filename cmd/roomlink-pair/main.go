// Command roomlink-pair works with pairing codes: offline checks and
// generation, plus the two backend calls an operator needs when
// provisioning a host by hand.
//
//	roomlink-pair check ABCD-2345
//	roomlink-pair generate -n 5
//	roomlink-pair register -backend https://pair.example.com -host-id host-401 ABCD-2345
//	roomlink-pair issue -backend https://pair.example.com -host-id host-401 -token eyJh...
//	roomlink-pair show -data-dir /var/lib/roomlink
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/roomlink-project/roomlink-go/cmd/roomlink-pair/commands"
	"github.com/roomlink-project/roomlink-go/pkg/version"
)

const toolVersion = "0.1.0"

var runners = map[string]func(args []string, stdout, stderr io.Writer) int{
	"check":    commands.RunCheck,
	"generate": commands.RunGenerate,
	"register": commands.RunRegister,
	"issue":    commands.RunIssue,
	"show":     commands.RunShow,
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	switch name := os.Args[1]; name {
	case "help", "-h", "-help", "--help":
		usage(os.Stdout)
	case "version", "-v", "--version":
		fmt.Printf("roomlink-pair %s (protocol %s)\n", toolVersion, version.Current)
	default:
		run, ok := runners[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
			usage(os.Stderr)
			os.Exit(1)
		}
		os.Exit(run(os.Args[2:], os.Stdout, os.Stderr))
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: roomlink-pair <command> [flags]

  check      validate and canonicalize pairing codes, offline
  generate   generate random pairing codes, offline
  register   exchange a pairing code for host credentials
  issue      request a fresh long-lived code from the backend
  show       print the pairing state stored by roomlink-host

'roomlink-pair <command> -h' lists that command's flags.`)
}
