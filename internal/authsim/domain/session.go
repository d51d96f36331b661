package domain

import "time"

// Session binds an issued token pair to one login instance. A user may hold
// any number of concurrent sessions; session ids are globally unique ULIDs.
type Session struct {
	ID             string
	UserID         string
	Device         string
	IPAddress      string
	UserAgent      string
	RefreshHash    string // SHA-256 fingerprint of the bound refresh token
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	IsActive       bool
}

// Expired reports whether the session's lifetime has elapsed at now.
// ExpiresAt is the sole source of truth; callers must not trust a cached
// IsActive instead.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Live reports whether the session can still back token operations.
func (s Session) Live(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

// SessionStats summarizes the session store for health reporting.
type SessionStats struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}
