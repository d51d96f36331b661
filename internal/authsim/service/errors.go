package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the email is unknown or the
	// password does not match. Callers must not reveal which of the two
	// failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is the sentinel matched by AccountLockedError.Is.
	ErrAccountLocked = errors.New("account locked")

	// ErrMFARequired is returned when the credentials are valid but the
	// user has MFA active and supplied no code.
	ErrMFARequired = errors.New("mfa code required")

	// ErrInvalidMFACode is returned when the supplied TOTP or backup code
	// does not verify.
	ErrInvalidMFACode = errors.New("invalid mfa code")

	// ErrMFANotEnrolled is returned when an MFA operation requires an
	// enrollment that does not exist.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")

	// ErrMFAAlreadyActive is returned when enrolling a user whose MFA is
	// already activated.
	ErrMFAAlreadyActive = errors.New("mfa already active")

	// ErrTokenInvalid is returned for any access token that fails
	// verification, regardless of the underlying cause.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidRefreshToken is returned when a refresh token fails
	// verification or does not match its session fingerprint.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrSessionExpired is returned when the session backing a token has
	// expired or been invalidated.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionNotFound is returned when a token references a session
	// that no longer exists.
	ErrSessionNotFound = errors.New("session not found")
)

// AccountLockedError reports a lockout rejection together with the time
// the lock expires, so callers can surface a Retry-After.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
