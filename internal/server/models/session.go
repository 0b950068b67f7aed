package models

import "time"

// Session is the server-side record behind an opaque login token. It is owned
// exclusively by the session service; Revoked, once set, is never cleared.
type Session struct {
	Token             string
	PrincipalID       string
	CredentialVersion int64
	IssuedAt          time.Time
	ExpiresAt         time.Time
	Revoked           bool
}
