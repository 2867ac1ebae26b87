package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/backend"
	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// RunRegister exchanges a pairing code for host credentials at the
// pairing backend and prints them. A code the backend refuses exits
// with the rejected code so scripts can tell bad input from outages.
func RunRegister(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	backendURL := fs.String("backend", "", "pairing backend base URL")
	hostID := fs.String("host-id", "", "host identifier to register")
	name := fs.String("name", "", "human readable host name")
	asJSON := fs.Bool("json", false, "print the raw registration as JSON")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if code, ok := parseFlags(fs, args, stderr); !ok {
		return code
	}

	if *backendURL == "" || *hostID == "" {
		fmt.Fprintln(stderr, "register: -backend and -host-id are required")
		return exitFailure
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "register: exactly one pairing code argument is needed")
		return exitFailure
	}

	code, err := pairing.Normalize(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "register: %v\n", err)
		return exitRejected
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL:     *backendURL,
		HostID:      *hostID,
		DisplayName: *name,
	})
	if err != nil {
		fmt.Fprintf(stderr, "register: %v\n", err)
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reg, err := client.Register(ctx, code)
	if err != nil {
		fmt.Fprintf(stderr, "register: %v\n", err)
		if backend.IsAuthRejection(err) {
			return exitRejected
		}
		return exitFailure
	}

	if *asJSON {
		return printJSON(stdout, stderr, reg)
	}

	fmt.Fprintf(stdout, "registered %s with tenant %s\n", *hostID, reg.Tenant)
	room := reg.RoomID
	if reg.RoomName != "" {
		room = fmt.Sprintf("%s (%q)", reg.RoomID, reg.RoomName)
	}
	fmt.Fprintf(stdout, "room:  %s\n", room)
	fmt.Fprintf(stdout, "token: %s\n", reg.Token)
	return exitOK
}
