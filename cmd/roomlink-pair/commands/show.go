package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/host"
	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// storedState is the JSON shape of the persisted pairing state.
type storedState struct {
	DisplayName string     `json:"displayName,omitempty"`
	Code        string     `json:"code,omitempty"`
	Formatted   string     `json:"formatted,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Expired     bool       `json:"expired"`
	Remotes     int        `json:"remotes"`
}

// RunShow prints the pairing state roomlink-host persists: the stored
// long-lived code, its expiry, and the paired remotes. It reads the
// host's data directory and never contacts the backend.
func RunShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "", "host data directory (default ~/.roomlink)")
	asJSON := fs.Bool("json", false, "print the state as JSON")
	if code, ok := parseFlags(fs, args, stderr); !ok {
		return code
	}

	dir := *dataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(stderr, "show: resolve home directory: %v\n", err)
			return exitFailure
		}
		dir = filepath.Join(home, ".roomlink")
	}

	settings, err := host.NewSettingsStore(filepath.Join(dir, "settings.json")).Load()
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return exitFailure
	}
	if settings == nil {
		fmt.Fprintf(stderr, "show: no settings under %s; has roomlink-host run yet?\n", dir)
		return exitFailure
	}

	now := time.Now()
	code := pairing.LongLivedCode{
		Code:      settings.PermanentPairingCode,
		ExpiresAt: settings.PermanentCodeExpiresAt,
	}

	if *asJSON {
		out := storedState{
			DisplayName: settings.DisplayName,
			Code:        code.Code,
			Expired:     code.Code != "" && code.Remaining(now) <= 0,
			Remotes:     len(settings.Remotes),
		}
		if code.Code != "" {
			out.Formatted = pairing.Format(code.Code)
			out.ExpiresAt = &code.ExpiresAt
		}
		return printJSON(stdout, stderr, out)
	}

	if settings.DisplayName != "" {
		fmt.Fprintf(stdout, "host: %s\n", settings.DisplayName)
	}
	printStoredCode(stdout, code, now)
	printRemotes(stdout, settings.Remotes)
	return exitOK
}

func printStoredCode(w io.Writer, code pairing.LongLivedCode, now time.Time) {
	if code.Code == "" {
		fmt.Fprintln(w, "code: none stored")
		return
	}
	stamp := code.ExpiresAt.Local().Format(stampFormat)
	switch {
	case code.Remaining(now) <= 0:
		fmt.Fprintf(w, "code: %s, expired since %s\n", pairing.Format(code.Code), stamp)
	case code.ExpiringSoon(now, pairing.RefreshWindow):
		fmt.Fprintf(w, "code: %s, expires %s (%s left, refresh due)\n",
			pairing.Format(code.Code), stamp, code.Remaining(now).Round(time.Minute))
	default:
		fmt.Fprintf(w, "code: %s, expires %s (%s left)\n",
			pairing.Format(code.Code), stamp, code.Remaining(now).Round(time.Minute))
	}
}

func printRemotes(w io.Writer, remotes []host.RemoteRecord) {
	if len(remotes) == 0 {
		return
	}
	fmt.Fprintf(w, "remotes (%d):\n", len(remotes))
	for _, r := range remotes {
		line := "  " + r.PeerID
		if r.Kind != "" {
			line += " (" + r.Kind + ")"
		}
		if !r.LastSeenAt.IsZero() {
			line += ", last seen " + r.LastSeenAt.Local().Format(stampFormat)
		}
		fmt.Fprintln(w, line)
	}
}
