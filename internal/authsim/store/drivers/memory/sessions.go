package memory

import (
	"context"
	"sync"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

type sessionsRepo struct {
	sessions sync.Map // map[string]domain.Session
	locks    keyMutex
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	defer r.locks.lock(s.ID)()

	if _, taken := r.sessions.Load(s.ID); taken {
		return store.ErrAlreadyExists
	}
	r.sessions.Store(s.ID, s)
	return nil
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(domain.Session), nil
	}
	return domain.Session{}, store.ErrNotFound
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) (domain.Session, error) {
	defer r.locks.lock(id)()

	v, ok := r.sessions.Load(id)
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	s := v.(domain.Session)
	s.LastActivityAt = lastActivity
	s.ExpiresAt = expiresAt
	r.sessions.Store(id, s)
	return s, nil
}

func (r *sessionsRepo) SetRefreshHash(ctx context.Context, id, hash string) error {
	defer r.locks.lock(id)()

	v, ok := r.sessions.Load(id)
	if !ok {
		return store.ErrNotFound
	}
	s := v.(domain.Session)
	s.RefreshHash = hash
	r.sessions.Store(id, s)
	return nil
}

func (r *sessionsRepo) InvalidateSession(ctx context.Context, id string) error {
	defer r.locks.lock(id)()

	v, ok := r.sessions.Load(id)
	if !ok {
		return nil // idempotent
	}
	s := v.(domain.Session)
	s.IsActive = false
	r.sessions.Store(id, s)
	return nil
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	r.sessions.Range(func(key, value any) bool {
		s := value.(domain.Session)
		if !s.Expired(now) {
			return true
		}

		// Re-check under the per-key lock: a concurrent Touch may have
		// extended the session since the Range read.
		unlock := r.locks.lock(s.ID)
		if v, ok := r.sessions.Load(s.ID); ok && v.(domain.Session).Expired(now) {
			r.sessions.Delete(s.ID)
			removed++
		}
		unlock()
		return true
	})
	return removed, nil
}

func (r *sessionsRepo) CountSessions(ctx context.Context, now time.Time) (domain.SessionStats, error) {
	var stats domain.SessionStats
	r.sessions.Range(func(_, value any) bool {
		stats.Total++
		if value.(domain.Session).Live(now) {
			stats.Active++
		}
		return true
	})
	return stats, nil
}
