package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

type usersRepo struct {
	db *sql.DB
}

const userColumns = `id, email, password_hash, roles, permissions, mfa_enabled_at, mfa_secret, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, roles, permissions, mfa_enabled_at, mfa_secret, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash,
		strings.Join(u.Roles, " "), strings.Join(u.Permissions, " "),
		toUnixPtr(u.MFAEnabled), toNullString(u.MFASecret),
		toUnix(u.CreatedAt), toUnix(u.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, nowUnix(), userID)
}

func (r *usersRepo) UpdateMFASecret(ctx context.Context, userID, secret string) error {
	return r.exec(ctx,
		`UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		secret, nowUnix(), userID)
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET mfa_enabled_at = ?, updated_at = ? WHERE id = ?`,
		toUnix(at), nowUnix(), userID)
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	return r.exec(ctx,
		`UPDATE users SET mfa_enabled_at = NULL, mfa_secret = NULL, updated_at = ? WHERE id = ?`,
		nowUnix(), userID)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// exec runs an UPDATE that must affect exactly one user.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func nowUnix() int64 { return time.Now().Unix() }

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u             domain.User
		roles, perms  string
		mfaAt         sql.NullInt64
		secret        sql.NullString
		created, updd int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &roles, &perms, &mfaAt, &secret, &created, &updd)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Roles = splitFields(roles)
	u.Permissions = splitFields(perms)
	u.MFAEnabled = fromUnixPtr(mfaAt)
	u.MFASecret = fromNullString(secret)
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updd)
	return u, nil
}

func splitFields(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}
