// Package backend implements the HTTP client for the RoomLink pairing
// backend.
//
// The backend brokers host registration: a host presents a pairing code
// and receives a JWT plus the tenant namespace it is scoped to. The
// client caches both for subsequent authorized calls, notably the
// issuance of long-lived pairing codes consumed by pkg/pairing.
//
// Error responses use a single JSON shape and surface as *APIError;
// callers can extract it with errors.As to inspect the backend error
// code and HTTP status.
package backend
