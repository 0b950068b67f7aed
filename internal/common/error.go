// Package common defines shared constants and sentinel errors used across
// the inspection backend. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")

	// Credential errors.
	ErrInvalidCredential = errors.New("invalid credential")

	// Session lifecycle errors.
	ErrUnknownToken    = errors.New("unknown token")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrCredentialStale = errors.New("credential version stale")

	// Report errors.
	ErrForbidden = errors.New("forbidden")

	// Attachment errors.
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrAttachmentFailure = errors.New("attachment failure")
)
