package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Client errors.
var (
	// ErrNotRegistered is returned by authorized calls made before a
	// successful Register.
	ErrNotRegistered = errors.New("backend: host is not registered")
)

// APIError represents a structured error response from the pairing
// backend. Callers can use errors.As to extract it:
//
//	var apiErr *backend.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == backend.ErrCodeInvalidPairingCode { ... }
//	}
type APIError struct {
	// Code is the backend error code (e.g. "INVALID_PAIRING_CODE").
	Code string `json:"code"`
	// Message is the human-readable description from the backend.
	Message string `json:"message"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Backend error codes.
const (
	ErrCodeInvalidPairingCode  = "INVALID_PAIRING_CODE"
	ErrCodePairingCodeExpired  = "PAIRING_CODE_EXPIRED"
	ErrCodeRegistrationRevoked = "REGISTRATION_REVOKED"
	ErrCodeTenantSuspended     = "TENANT_SUSPENDED"
	ErrCodeRateLimited         = "RATE_LIMITED"
)

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsAuthRejection reports whether err is a backend response that
// permanently rejects the presented pairing code or credential.
// Retrying the same request cannot succeed.
func IsAuthRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized ||
		apiErr.StatusCode == http.StatusForbidden
}
