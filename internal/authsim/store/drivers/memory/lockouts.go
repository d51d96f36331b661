package memory

import (
	"context"
	"sync"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

type lockoutsRepo struct {
	records sync.Map // map[string]domain.LockoutRecord
	locks   keyMutex
}

func (r *lockoutsRepo) GetLockout(ctx context.Context, identifier string) (domain.LockoutRecord, error) {
	if v, ok := r.records.Load(identifier); ok {
		return v.(domain.LockoutRecord), nil
	}
	return domain.LockoutRecord{}, store.ErrNotFound
}

func (r *lockoutsRepo) RecordFailure(ctx context.Context, identifier string, now time.Time, maxAttempts int, lockFor time.Duration) (domain.LockoutRecord, error) {
	defer r.locks.lock(identifier)()

	rec := domain.LockoutRecord{Identifier: identifier, FirstFailedAt: now}
	if v, ok := r.records.Load(identifier); ok {
		rec = v.(domain.LockoutRecord)
		// A served lock counts as clear: the next failure restarts at one.
		if rec.LockExpired(now) {
			rec = domain.LockoutRecord{Identifier: identifier, FirstFailedAt: now}
		}
	}

	rec.FailedAttempts++
	rec.UpdatedAt = now
	if rec.LockedUntil == nil && rec.FailedAttempts >= maxAttempts {
		until := now.Add(lockFor)
		rec.LockedUntil = &until
	}

	r.records.Store(identifier, rec)
	return rec, nil
}

func (r *lockoutsRepo) ClearLockout(ctx context.Context, identifier string) (bool, error) {
	defer r.locks.lock(identifier)()

	_, existed := r.records.Load(identifier)
	r.records.Delete(identifier)
	return existed, nil
}

func (r *lockoutsRepo) ListLockouts(ctx context.Context) ([]domain.LockoutRecord, error) {
	var out []domain.LockoutRecord
	r.records.Range(func(_, value any) bool {
		out = append(out, value.(domain.LockoutRecord))
		return true
	})
	return out, nil
}

func (r *lockoutsRepo) DeleteExpiredLockouts(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	r.records.Range(func(key, value any) bool {
		rec := value.(domain.LockoutRecord)
		if !rec.LockExpired(now) {
			return true
		}

		unlock := r.locks.lock(rec.Identifier)
		if v, ok := r.records.Load(rec.Identifier); ok && v.(domain.LockoutRecord).LockExpired(now) {
			r.records.Delete(rec.Identifier)
			removed++
		}
		unlock()
		return true
	})
	return removed, nil
}
