package service

import (
	"context"
	"errors"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/devharness/authsim/pkg/idx"
)

// SessionMeta carries the client attributes recorded on a new session.
type SessionMeta struct {
	Device    string
	IPAddress string
	UserAgent string
}

// SessionService owns the session lifecycle: creation at login, sliding
// expiry on refresh, invalidation at logout, and bulk expiry sweeps.
type SessionService struct {
	Sessions store.Sessions

	// TTL is how long a session lives past its last activity.
	TTL time.Duration

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create opens a new session for the user and returns it.
func (s *SessionService) Create(ctx context.Context, userID string, meta SessionMeta) (domain.Session, error) {
	now := s.now()
	sess := domain.Session{
		ID:             idx.NewAt(now).String(),
		UserID:         userID,
		Device:         meta.Device,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.TTL),
		IsActive:       true,
	}
	if err := s.Sessions.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Get returns the session if it is still live. Expired or invalidated
// sessions surface as ErrSessionExpired; unknown ids as
// ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.Sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	if !sess.Live(s.now()) {
		return domain.Session{}, ErrSessionExpired
	}
	return sess, nil
}

// Touch records activity on a live session and slides its expiry forward
// by the configured TTL.
func (s *SessionService) Touch(ctx context.Context, id string) (domain.Session, error) {
	now := s.now()
	sess, err := s.Sessions.TouchSession(ctx, id, now, now.Add(s.TTL))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return sess, nil
}

// BindRefresh stores the fingerprint of the refresh token bound to the
// session.
func (s *SessionService) BindRefresh(ctx context.Context, id, fingerprint string) error {
	return s.Sessions.SetRefreshHash(ctx, id, fingerprint)
}

// Invalidate deactivates a session. Unknown ids are a no-op so logout is
// idempotent.
func (s *SessionService) Invalidate(ctx context.Context, id string) error {
	return s.Sessions.InvalidateSession(ctx, id)
}

// SweepExpired deletes sessions past their expiry and returns how many
// were removed.
func (s *SessionService) SweepExpired(ctx context.Context) (int, error) {
	return s.Sessions.DeleteExpiredSessions(ctx, s.now())
}

// Stats reports active and total session counts.
func (s *SessionService) Stats(ctx context.Context) (domain.SessionStats, error) {
	return s.Sessions.CountSessions(ctx, s.now())
}
