// Package common defines shared constants and sentinel errors used across
// the certificate, SII and server layers. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Certificate container / key vault errors. These are never retried
	// automatically; they require corrected user input.
	ErrorInvalidContainer = errors.New("invalid certificate container")
	ErrorWrongPassword    = errors.New("wrong password")

	// SII protocol errors.
	ErrorNoSeed      = errors.New("no seed requested")
	ErrorSeedExpired = errors.New("seed expired")
	ErrorNoToken     = errors.New("no valid token")
	ErrorProtocol    = errors.New("unexpected authority response")

	// Signing errors.
	ErrorSigning = errors.New("signing error")

	// Invoice state errors.
	ErrorInvalidState = errors.New("invalid state transition")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed API token).
	ErrInvalidToken = errors.New("invalid token")
)

// AuthorityRejectedError is returned when the SII answers a well-formed
// response with a status other than "00". Glosa carries the authority's
// message verbatim.
type AuthorityRejectedError struct {
	Estado string
	Glosa  string
}

func (e *AuthorityRejectedError) Error() string {
	return fmt.Sprintf("authority rejected (estado %s): %s", e.Estado, e.Glosa)
}

// TransportError wraps a transport-level failure against the SII: a non-2xx
// HTTP status or a network/timeout error. These are safe to retry by
// restarting the affected step.
type TransportError struct {
	Status string
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sii transport error: %v", e.Err)
	}
	return fmt.Sprintf("sii transport error: %s: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }
