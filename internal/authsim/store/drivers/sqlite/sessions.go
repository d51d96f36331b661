package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

type sessionsRepo struct {
	db *sql.DB
}

const sessionColumns = `id, user_id, device, ip_address, user_agent, refresh_hash, created_at, last_activity_at, expires_at, is_active`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, device, ip_address, user_agent, refresh_hash, created_at, last_activity_at, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Device, s.IPAddress, s.UserAgent, s.RefreshHash,
		toUnix(s.CreatedAt), toUnix(s.LastActivityAt), toUnix(s.ExpiresAt),
		boolToInt(s.IsActive),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) (domain.Session, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ?, expires_at = ? WHERE id = ?`,
		toUnix(lastActivity), toUnix(expiresAt), id)
	if err != nil {
		return domain.Session{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, err
	}
	if affected == 0 {
		return domain.Session{}, store.ErrNotFound
	}
	return r.GetSession(ctx, id)
}

func (r *sessionsRepo) SetRefreshHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) InvalidateSession(ctx context.Context, id string) error {
	// Idempotent: zero affected rows is fine.
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *sessionsRepo) CountSessions(ctx context.Context, now time.Time) (domain.SessionStats, error) {
	var stats domain.SessionStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN is_active = 1 AND expires_at > ? THEN 1 ELSE 0 END), 0)
		 FROM sessions`, toUnix(now)).Scan(&stats.Total, &stats.Active)
	if err != nil {
		return domain.SessionStats{}, err
	}
	return stats, nil
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var (
		s                      domain.Session
		created, activity, exp int64
		active                 int
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Device, &s.IPAddress, &s.UserAgent,
		&s.RefreshHash, &created, &activity, &exp, &active)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.CreatedAt = fromUnix(created)
	s.LastActivityAt = fromUnix(activity)
	s.ExpiresAt = fromUnix(exp)
	s.IsActive = active != 0
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
