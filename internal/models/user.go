// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a CMS account with authentication and 2FA fields.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email" validate:"required,email,max=320"`
	PasswordHash string    `json:"-"` // Never serialize the hash
	Name         string    `json:"name" validate:"max=200"`
	TOTPSecret   *string   `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled  bool      `json:"totpEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Needs2FASetup returns true if the user has not completed 2FA enrollment.
// Admin sessions require 2FA; API token logins only ask for a code once
// enrollment is complete.
func (u *User) Needs2FASetup() bool {
	return !u.TOTPEnabled
}

// DisplayName returns the name to show in the admin UI, falling back to
// the email address when no name was set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
