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

// issuedCode is the JSON shape of a freshly issued code.
type issuedCode struct {
	Code      string    `json:"code"`
	Formatted string    `json:"formatted"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RunIssue asks the backend for a fresh long-lived pairing code using
// credentials from a prior registration.
func RunIssue(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	backendURL := fs.String("backend", "", "pairing backend base URL")
	hostID := fs.String("host-id", "", "host identifier")
	token := fs.String("token", "", "host JWT from a prior registration")
	tenant := fs.String("tenant", "", "tenant identifier")
	asJSON := fs.Bool("json", false, "print the issued code as JSON")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if code, ok := parseFlags(fs, args, stderr); !ok {
		return code
	}

	if *backendURL == "" || *hostID == "" || *token == "" {
		fmt.Fprintln(stderr, "issue: -backend, -host-id and -token are required")
		return exitFailure
	}

	client, err := backend.NewClient(backend.Config{BaseURL: *backendURL, HostID: *hostID})
	if err != nil {
		fmt.Fprintf(stderr, "issue: %v\n", err)
		return exitFailure
	}
	client.SetCredentials(*token, *tenant)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	code, err := client.IssueLongLivedCode(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "issue: %v\n", err)
		if backend.IsAuthRejection(err) {
			return exitRejected
		}
		return exitFailure
	}

	if *asJSON {
		return printJSON(stdout, stderr, issuedCode{
			Code:      code.Code,
			Formatted: pairing.Format(code.Code),
			ExpiresAt: code.ExpiresAt,
		})
	}

	fmt.Fprintf(stdout, "code:    %s\n", pairing.Format(code.Code))
	fmt.Fprintf(stdout, "expires: %s (%s left)\n",
		code.ExpiresAt.Local().Format(stampFormat),
		code.Remaining(time.Now()).Round(time.Minute))
	return exitOK
}
