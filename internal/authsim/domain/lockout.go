package domain

import "time"

// LockoutRecord tracks consecutive failed login attempts for one identifier
// (normally an email, but any opaque string is accepted). Records are
// created lazily on the first failure.
type LockoutRecord struct {
	Identifier     string
	FailedAttempts int
	LockedUntil    *time.Time // set only once FailedAttempts reached the max
	FirstFailedAt  time.Time
	UpdatedAt      time.Time
}

// LockExpired reports whether a lock was set and has already elapsed at now.
func (r LockoutRecord) LockExpired(now time.Time) bool {
	return r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// LockoutStatus is the outcome of any lockout tracker operation. Policy
// outcomes are values, never errors.
type LockoutStatus struct {
	Locked            bool       `json:"locked"`
	Attempts          int        `json:"attempts"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// LockoutStats summarizes the lockout store for health reporting.
type LockoutStats struct {
	TotalLocked     int     `json:"total_locked"`
	TotalAttempts   int     `json:"total_attempts"`
	AverageAttempts float64 `json:"average_attempts"`
}
