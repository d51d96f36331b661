package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

type lockoutsRepo struct {
	db *sql.DB
}

const lockoutColumns = `identifier, failed_attempts, locked_until, first_failed_at, updated_at`

func (r *lockoutsRepo) GetLockout(ctx context.Context, identifier string) (domain.LockoutRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+lockoutColumns+` FROM lockouts WHERE identifier = ?`, identifier)
	return scanLockout(row)
}

func (r *lockoutsRepo) RecordFailure(ctx context.Context, identifier string, now time.Time, maxAttempts int, lockFor time.Duration) (domain.LockoutRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.LockoutRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec := domain.LockoutRecord{Identifier: identifier, FirstFailedAt: now}
	row := tx.QueryRowContext(ctx,
		`SELECT `+lockoutColumns+` FROM lockouts WHERE identifier = ?`, identifier)
	existing, err := scanLockout(row)
	switch {
	case err == nil:
		rec = existing
		// A served lock counts as clear: restart the count.
		if rec.LockExpired(now) {
			rec = domain.LockoutRecord{Identifier: identifier, FirstFailedAt: now}
		}
	case !errors.Is(err, store.ErrNotFound):
		return domain.LockoutRecord{}, err
	}

	rec.FailedAttempts++
	rec.UpdatedAt = now
	if rec.LockedUntil == nil && rec.FailedAttempts >= maxAttempts {
		until := now.Add(lockFor)
		rec.LockedUntil = &until
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lockouts (identifier, failed_attempts, locked_until, first_failed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (identifier) DO UPDATE SET
		   failed_attempts = excluded.failed_attempts,
		   locked_until = excluded.locked_until,
		   first_failed_at = excluded.first_failed_at,
		   updated_at = excluded.updated_at`,
		rec.Identifier, rec.FailedAttempts, toUnixPtr(rec.LockedUntil),
		toUnix(rec.FirstFailedAt), toUnix(rec.UpdatedAt))
	if err != nil {
		return domain.LockoutRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.LockoutRecord{}, err
	}
	return rec, nil
}

func (r *lockoutsRepo) ClearLockout(ctx context.Context, identifier string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM lockouts WHERE identifier = ?`, identifier)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *lockoutsRepo) ListLockouts(ctx context.Context) ([]domain.LockoutRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lockoutColumns+` FROM lockouts ORDER BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LockoutRecord
	for rows.Next() {
		var (
			rec           domain.LockoutRecord
			lockedUntil   sql.NullInt64
			first, updded int64
		)
		if err := rows.Scan(&rec.Identifier, &rec.FailedAttempts, &lockedUntil, &first, &updded); err != nil {
			return nil, err
		}
		rec.LockedUntil = fromUnixPtr(lockedUntil)
		rec.FirstFailedAt = fromUnix(first)
		rec.UpdatedAt = fromUnix(updded)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *lockoutsRepo) DeleteExpiredLockouts(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM lockouts WHERE locked_until IS NOT NULL AND locked_until <= ?`, toUnix(now))
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func scanLockout(row *sql.Row) (domain.LockoutRecord, error) {
	var (
		rec          domain.LockoutRecord
		lockedUntil  sql.NullInt64
		first, updat int64
	)
	err := row.Scan(&rec.Identifier, &rec.FailedAttempts, &lockedUntil, &first, &updat)
	if err != nil {
		return domain.LockoutRecord{}, mapNotFound(err)
	}
	rec.LockedUntil = fromUnixPtr(lockedUntil)
	rec.FirstFailedAt = fromUnix(first)
	rec.UpdatedAt = fromUnix(updat)
	return rec, nil
}
