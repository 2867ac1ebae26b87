// Package pairing manages long-lived pairing codes for a RoomLink host.
//
// A long-lived pairing code is issued by the pairing backend and lets a
// remote pair with the host without the host being online at the time
// the code is entered. Codes carry an expiry; the Store tracks the
// current code and refreshes it through an Issuer once the remaining
// validity drops below the refresh window.
//
// Code format: 8 characters from a 32-character alphabet that omits the
// easily confused 0/O/1/I. Codes are displayed in two groups of four
// (XXXX-XXXX); Normalize accepts the grouped form, lowercase input and
// surrounding whitespace.
package pairing
