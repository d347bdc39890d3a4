// Package model defines the data structures used throughout the application.
package model

import "time"

// User is an identity record created on first magic-link sign-in.
//
// Email is the primary external identifier — the magic-link flow verifies
// ownership of the address before the record is created, so EmailVerifiedAt
// is set on creation and only ever refreshed on subsequent sign-ins.
// Application code never mutates a user beyond the display Name.
type User struct {
	ID              string     `json:"id"              db:"id"`
	Email           string     `json:"email"           db:"email"`
	Name            string     `json:"name"            db:"name"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt" db:"email_verified_at"`
	CreatedAt       time.Time  `json:"createdAt"       db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt"       db:"updated_at"`
}

// Viewer is the authenticated user's profile as returned by /api/me,
// augmented with the current credit balance.
type Viewer struct {
	User
	Credits int `json:"credits"`
}

// LoginToken is a single-use magic-link token. Only a bcrypt hash of the
// raw token is stored; the raw value lives exclusively in the emailed URL.
type LoginToken struct {
	ID         string     `json:"id"         db:"id"`
	Email      string     `json:"email"      db:"email"`
	TokenHash  string     `json:"-"          db:"token_hash"`
	ExpiresAt  time.Time  `json:"expiresAt"  db:"expires_at"`
	ConsumedAt *time.Time `json:"consumedAt" db:"consumed_at"`
	CreatedAt  time.Time  `json:"createdAt"  db:"created_at"`
}
