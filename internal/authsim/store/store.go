// Package store defines the data access contracts for the simulator.
// Concrete drivers live under drivers/ (memory is the default, sqlite is the
// persistent option). The orchestrator only ever talks to these interfaces,
// so a different backend can be swapped in without touching the services.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface, exposing one repository per
// entity. Drivers must serialize mutations per key (per identifier, per
// session id) so concurrent requests for the same user never lose updates;
// independent keys may proceed in parallel.
type Store interface {
	Users() Users
	Sessions() Sessions
	Lockouts() Lockouts
	BackupCodes() BackupCodes

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is the lookup used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the stored credential.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// UpdateMFASecret stores a TOTP secret without enabling MFA.
	UpdateMFASecret(ctx context.Context, userID, secret string) error

	// EnableMFA stamps the user's MFA activation time.
	EnableMFA(ctx context.Context, userID string, at time.Time) error

	// DisableMFA clears the secret and the activation stamp.
	DisableMFA(ctx context.Context, userID string) error

	// IsEmpty reports whether no users exist (used by the seed bootstrap).
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	// CreateSession inserts a fully populated session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns a session by id, whatever its state.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// TouchSession updates activity and expiry timestamps atomically and
	// returns the updated record. ErrNotFound when the id is unknown.
	TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) (domain.Session, error)

	// SetRefreshHash rebinds the session to a rotated refresh token.
	SetRefreshHash(ctx context.Context, id, hash string) error

	// InvalidateSession flips IsActive off. Idempotent: unknown ids and
	// already-inactive sessions return nil.
	InvalidateSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes sessions with ExpiresAt <= now and
	// returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)

	// CountSessions returns active and total session counts. Active means
	// IsActive and not yet expired at now.
	CountSessions(ctx context.Context, now time.Time) (domain.SessionStats, error)
}

type Lockouts interface {
	// GetLockout returns the record for identifier, or ErrNotFound.
	GetLockout(ctx context.Context, identifier string) (domain.LockoutRecord, error)

	// RecordFailure atomically increments the failure count, creating the
	// record if absent. A record whose previous lock already expired
	// restarts counting from one. When the count reaches maxAttempts the
	// record transitions to locked until now+lockFor. Returns the updated
	// record.
	RecordFailure(ctx context.Context, identifier string, now time.Time, maxAttempts int, lockFor time.Duration) (domain.LockoutRecord, error)

	// ClearLockout removes the record and reports whether one existed.
	ClearLockout(ctx context.Context, identifier string) (bool, error)

	// ListLockouts returns every record, for stats reporting.
	ListLockouts(ctx context.Context) ([]domain.LockoutRecord, error)

	// DeleteExpiredLockouts removes records whose lock has elapsed at now
	// and returns how many were removed. Warning-stage records are kept.
	DeleteExpiredLockouts(ctx context.Context, now time.Time) (int, error)
}

type BackupCodes interface {
	// ReplaceBackupCodes swaps the user's entire backup code set for the
	// given fingerprints.
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error

	// ConsumeBackupCode atomically removes the fingerprint if present and
	// reports whether it was. A consumed code can never match again.
	ConsumeBackupCode(ctx context.Context, userID, hash string) (bool, error)

	// CountBackupCodes returns how many codes the user has left.
	CountBackupCodes(ctx context.Context, userID string) (int, error)

	// DeleteBackupCodes removes all codes for the user.
	DeleteBackupCodes(ctx context.Context, userID string) error
}
