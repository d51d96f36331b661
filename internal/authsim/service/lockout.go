package service

import (
	"context"
	"errors"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

// LockoutService tracks failed authentication attempts per identifier and
// locks accounts that exceed the configured threshold. With Enabled false
// every check passes and failures are not recorded.
type LockoutService struct {
	Lockouts store.Lockouts

	MaxAttempts int
	LockFor     time.Duration
	Enabled     bool

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *LockoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Check returns an *AccountLockedError if the identifier is currently
// locked, nil otherwise. Expired locks are treated as not locked.
func (s *LockoutService) Check(ctx context.Context, identifier string) error {
	if !s.Enabled {
		return nil
	}

	rec, err := s.Lockouts.GetLockout(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
		return &AccountLockedError{Until: *rec.LockedUntil}
	}
	return nil
}

// RecordFailure registers one failed attempt and returns the resulting
// status. Crossing the threshold sets the lock; an attempt against an
// expired lock restarts the count at one.
func (s *LockoutService) RecordFailure(ctx context.Context, identifier string) (domain.LockoutStatus, error) {
	if !s.Enabled {
		return domain.LockoutStatus{AttemptsRemaining: s.MaxAttempts}, nil
	}

	rec, err := s.Lockouts.RecordFailure(ctx, identifier, s.now(), s.MaxAttempts, s.LockFor)
	if err != nil {
		return domain.LockoutStatus{}, err
	}
	return s.status(rec), nil
}

// RecordSuccess clears any failure history for the identifier. Called
// after a fully successful authentication.
func (s *LockoutService) RecordSuccess(ctx context.Context, identifier string) error {
	if !s.Enabled {
		return nil
	}
	_, err := s.Lockouts.ClearLockout(ctx, identifier)
	return err
}

// Status reports the current lockout state without mutating it.
func (s *LockoutService) Status(ctx context.Context, identifier string) (domain.LockoutStatus, error) {
	if !s.Enabled {
		return domain.LockoutStatus{AttemptsRemaining: s.MaxAttempts}, nil
	}

	rec, err := s.Lockouts.GetLockout(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LockoutStatus{AttemptsRemaining: s.MaxAttempts}, nil
		}
		return domain.LockoutStatus{}, err
	}
	return s.status(rec), nil
}

// Unlock removes the lockout record for the identifier. It reports
// whether a record existed.
func (s *LockoutService) Unlock(ctx context.Context, identifier string) (bool, error) {
	return s.Lockouts.ClearLockout(ctx, identifier)
}

// Stats aggregates lockout state across all tracked identifiers.
func (s *LockoutService) Stats(ctx context.Context) (domain.LockoutStats, error) {
	recs, err := s.Lockouts.ListLockouts(ctx)
	if err != nil {
		return domain.LockoutStats{}, err
	}

	now := s.now()
	var stats domain.LockoutStats
	for _, rec := range recs {
		stats.TotalAttempts += rec.FailedAttempts
		if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
			stats.TotalLocked++
		}
	}
	if len(recs) > 0 {
		stats.AverageAttempts = float64(stats.TotalAttempts) / float64(len(recs))
	}
	return stats, nil
}

// SweepExpired drops lockout records whose lock has lapsed, returning the
// number removed.
func (s *LockoutService) SweepExpired(ctx context.Context) (int, error) {
	return s.Lockouts.DeleteExpiredLockouts(ctx, s.now())
}

func (s *LockoutService) status(rec domain.LockoutRecord) domain.LockoutStatus {
	now := s.now()
	st := domain.LockoutStatus{
		Attempts:          rec.FailedAttempts,
		AttemptsRemaining: s.MaxAttempts - rec.FailedAttempts,
	}
	if st.AttemptsRemaining < 0 {
		st.AttemptsRemaining = 0
	}
	if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
		st.Locked = true
		st.LockedUntil = rec.LockedUntil
	}
	return st
}
