// Package models defines server-side data models persisted in the database.
package models

import "time"

// Principal is an authenticated identity capable of creating and amending
// inspection reports. Credentials are stored only as a bcrypt hash;
// CredentialVersion increments on every secret change and invalidates any
// session issued against an older version.
type Principal struct {
	ID                string
	Username          string
	CredentialHash    string
	CredentialVersion int64
	CreatedAt         time.Time
}
