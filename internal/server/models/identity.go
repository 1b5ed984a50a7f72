// Package models defines server-side data models persisted in the database.
package models

import "time"

// Identity is a persisted session identity: one row of the identities table
// mapping an opaque token to a user identifier.
type Identity struct {
	// ID is the store-assigned surrogate key; 0 until the row is created.
	ID int64
	// Token is the random bearer credential, unique across rows.
	Token string
	// UserID names the authenticated subject.
	UserID string

	// IP and UserAgent record request provenance. Informational only.
	IP        string
	UserAgent string

	// Created is set once, when the row is first inserted.
	Created time.Time
}
