// Command roomlink-log inspects the lifecycle logs a host writes when
// started with -event-log. The files are append-only CBOR records;
// this tool turns them into something a person or a spreadsheet can
// read:
//
//	roomlink-log view -cycle ab12cd34 host.rlog
//	roomlink-log stats host.rlog
//	roomlink-log filter -category error -o errors.rlog host.rlog
//	roomlink-log export -format csv -o events.csv host.rlog
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/roomlink-project/roomlink-go/cmd/roomlink-log/commands"
)

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var subcommands = []command{
	{"view", "print events as a readable table", runView},
	{"filter", "copy selected events into a new log file", runFilter},
	{"stats", "summarize a log: totals, span, per-cycle counters", runStats},
	{"export", "re-encode events as jsonl or csv", runExport},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage())
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "-h" || name == "-help" || name == "--help" || name == "help" {
		fmt.Print(usage())
		return
	}

	for _, c := range subcommands {
		if c.name == name {
			if err := c.run(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "roomlink-log %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage())
	os.Exit(2)
}

func usage() string {
	var b strings.Builder
	b.WriteString("Usage: roomlink-log <command> [flags] <file.rlog>\n\nCommands:\n")
	for _, c := range subcommands {
		fmt.Fprintf(&b, "  %-8s %s\n", c.name, c.summary)
	}
	b.WriteString("\nRun 'roomlink-log <command> -h' for the flags of one command.\n")
	return b.String()
}

// addSelectionFlags registers the narrowing flags every subcommand
// shares.
func addSelectionFlags(fs *flag.FlagSet, sel *commands.Selection) {
	fs.StringVar(&sel.CycleID, "cycle", "", "keep only events from this connect cycle id")
	fs.StringVar(&sel.HostID, "host", "", "keep only events from this host id")
	fs.StringVar(&sel.Tenant, "tenant", "", "keep only events for this tenant")
	fs.StringVar(&sel.Category, "category", "", "keep only one category: phase, retry, peer, pairing, error")
	fs.StringVar(&sel.From, "from", "", "keep only events at or after this RFC3339 time")
	fs.StringVar(&sel.Until, "until", "", "keep only events before this RFC3339 time")
}

func logfileArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one log file, got %d arguments", fs.NArg())
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	var sel commands.Selection
	addSelectionFlags(fs, &sel)
	fs.Parse(args)

	path, err := logfileArg(fs)
	if err != nil {
		return err
	}
	return commands.RunView(path, sel, os.Stdout)
}

func runFilter(args []string) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	var sel commands.Selection
	addSelectionFlags(fs, &sel)
	output := fs.String("o", "", "output log file (required)")
	fs.Parse(args)

	path, err := logfileArg(fs)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("-o is required")
	}

	n, err := commands.RunFilter(path, *output, sel)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d events to %s\n", n, *output)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var sel commands.Selection
	addSelectionFlags(fs, &sel)
	fs.Parse(args)

	path, err := logfileArg(fs)
	if err != nil {
		return err
	}
	return commands.RunStats(path, sel, os.Stdout)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var sel commands.Selection
	addSelectionFlags(fs, &sel)
	format := fs.String("format", "jsonl", "output format: jsonl or csv")
	output := fs.String("o", "", "output file (default stdout)")
	fs.Parse(args)

	path, err := logfileArg(fs)
	if err != nil {
		return err
	}

	if *output == "" {
		return commands.RunExport(path, *format, sel, os.Stdout)
	}
	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	if err := commands.RunExport(path, *format, sel, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
