package commands

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// capture runs a subcommand against in-memory writers.
func capture(run func([]string, io.Writer, io.Writer) int, args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCheckValidCode(t *testing.T) {
	code, out, errOut := capture(RunCheck, "abcd-2345")
	if code != exitOK {
		t.Fatalf("exit %d, want %d (stderr: %s)", code, exitOK, errOut)
	}
	if !strings.Contains(out, "ABCD-2345") || !strings.Contains(out, " ok") {
		t.Errorf("expected canonical code and ok marker, got: %s", out)
	}
}

func TestCheckInvalidCode(t *testing.T) {
	code, out, _ := capture(RunCheck, "ABCD-2340")
	if code != exitRejected {
		t.Fatalf("exit %d, want %d", code, exitRejected)
	}
	if !strings.Contains(out, "invalid:") {
		t.Errorf("expected invalid marker, got: %s", out)
	}
}

func TestCheckMixedCodes(t *testing.T) {
	code, out, _ := capture(RunCheck, "ABCD-2345", "bogus")
	if code != exitRejected {
		t.Fatalf("exit %d, want %d", code, exitRejected)
	}
	if !strings.Contains(out, " ok") || !strings.Contains(out, "invalid:") {
		t.Errorf("expected one ok and one invalid line, got: %s", out)
	}
}

func TestCheckNoArguments(t *testing.T) {
	code, _, errOut := capture(RunCheck)
	if code != exitFailure {
		t.Fatalf("exit %d, want %d", code, exitFailure)
	}
	if !strings.Contains(errOut, "at least one code") {
		t.Errorf("expected argument error, got: %s", errOut)
	}
}

func TestCheckQuiet(t *testing.T) {
	code, out, _ := capture(RunCheck, "-q", "bogus")
	if code != exitRejected {
		t.Fatalf("exit %d, want %d", code, exitRejected)
	}
	if out != "" {
		t.Errorf("expected no output in quiet mode, got: %s", out)
	}
}

func TestGenerateDefault(t *testing.T) {
	code, out, errOut := capture(RunGenerate)
	if code != exitOK {
		t.Fatalf("exit %d, want %d (stderr: %s)", code, exitOK, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d codes, want 1", len(lines))
	}
	if _, err := pairing.Normalize(lines[0]); err != nil {
		t.Errorf("generated code %q does not normalize: %v", lines[0], err)
	}
}

func TestGenerateCount(t *testing.T) {
	code, out, _ := capture(RunGenerate, "-n", "5")
	if code != exitOK {
		t.Fatalf("exit %d, want %d", code, exitOK)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 5 {
		t.Errorf("got %d codes, want 5", len(lines))
	}
}

func TestGeneratePlain(t *testing.T) {
	code, out, _ := capture(RunGenerate, "-plain")
	if code != exitOK {
		t.Fatalf("exit %d, want %d", code, exitOK)
	}
	got := strings.TrimSpace(out)
	if strings.Contains(got, "-") {
		t.Errorf("plain output still has a separator: %s", got)
	}
	if len(got) != pairing.CodeLength {
		t.Errorf("code is %d characters, want %d", len(got), pairing.CodeLength)
	}
}

func TestGenerateBadCount(t *testing.T) {
	code, _, errOut := capture(RunGenerate, "-n", "0")
	if code != exitFailure {
		t.Fatalf("exit %d, want %d", code, exitFailure)
	}
	if !strings.Contains(errOut, "-n must be at least 1") {
		t.Errorf("expected count error, got: %s", errOut)
	}
}

func TestHelpExitsClean(t *testing.T) {
	code, _, errOut := capture(RunCheck, "-h")
	if code != exitOK {
		t.Fatalf("exit %d, want %d", code, exitOK)
	}
	if !strings.Contains(errOut, "-q") {
		t.Errorf("expected flag listing on stderr, got: %s", errOut)
	}
}
