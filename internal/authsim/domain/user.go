// Package domain holds the plain data types shared by the store and service
// layers. No behavior beyond trivial derived accessors lives here.
package domain

import "time"

// User is the stored account record. PasswordHash is an Argon2id PHC string
// and never leaves the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Permissions  []string
	MFAEnabled   *time.Time // set when the user completed MFA activation
	MFASecret    *string    // base32 TOTP secret, set at enrollment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MFAActive reports whether logins for this user must present a TOTP or
// backup code. Enrollment alone (secret stored, not yet activated) does not
// count.
func (u User) MFAActive() bool {
	return u.MFAEnabled != nil && u.MFASecret != nil && *u.MFASecret != ""
}

// Public returns the externally visible projection of the user, with the
// credential stripped.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Roles:       u.Roles,
		Permissions: u.Permissions,
		MFAEnabled:  u.MFAActive(),
	}
}

// PublicUser is what login and verify responses expose.
type PublicUser struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	MFAEnabled  bool     `json:"mfa_enabled"`
}
