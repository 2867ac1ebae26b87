package pairing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Pairing code constants.
const (
	// CodeLength is the number of characters in a pairing code.
	CodeLength = 8

	// codeAlphabet omits 0/O and 1/I to avoid transcription mistakes.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Pairing code errors.
var (
	ErrInvalidCode = errors.New("invalid pairing code")
)

// GenerateCode generates a cryptographically random pairing code.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random pairing code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Normalize canonicalizes a user-entered pairing code: whitespace and
// group separators are stripped and letters upper-cased. It returns an
// error when the result is not a valid code.
func Normalize(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)

	if len(s) != CodeLength {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidCode, CodeLength)
	}
	for _, r := range s {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidCode, r)
		}
	}
	return s, nil
}

// Format renders a canonical code in display form (XXXX-XXXX).
func Format(code string) string {
	if len(code) != CodeLength {
		return code
	}
	return code[:CodeLength/2] + "-" + code[CodeLength/2:]
}

// MustNormalize normalizes a pairing code and panics on error.
// Use only in tests or when the code is known to be valid.
func MustNormalize(s string) string {
	code, err := Normalize(s)
	if err != nil {
		panic(err)
	}
	return code
}

// LongLivedCode is a backend-issued pairing code with an expiry.
type LongLivedCode struct {
	// Code is the canonical pairing code.
	Code string

	// ExpiresAt is the instant the backend will stop accepting the code.
	ExpiresAt time.Time
}

// Remaining returns the validity left at the given instant. The result
// is negative once the code has expired.
func (c LongLivedCode) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// ExpiringSoon reports whether the code is due for a refresh: its
// remaining validity at the given instant is below the window.
func (c LongLivedCode) ExpiringSoon(now time.Time, window time.Duration) bool {
	return c.Remaining(now) < window
}
