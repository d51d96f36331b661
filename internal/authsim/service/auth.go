package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/devharness/authsim/pkg/cryptox"
	"github.com/devharness/authsim/pkg/jwtx"
)

// LoginInput carries everything a login attempt can present.
type LoginInput struct {
	Email    string
	Password string
	OTP      string // TOTP or backup code, required when MFA is active
	Meta     SessionMeta
}

// LoginResult is the successful outcome of a login.
type LoginResult struct {
	User    domain.PublicUser
	Session domain.Session
	Tokens  domain.TokenPair
}

// VerifyResult is the outcome of validating an access token.
type VerifyResult struct {
	User      domain.PublicUser
	SessionID string
	ExpiresIn int64 // seconds of validity left on the token
}

// AuthService orchestrates login, token refresh, verification, and logout
// across the credential, lockout, MFA, and session layers.
type AuthService struct {
	Users    store.Users
	Codec    *jwtx.Codec
	Lockout  *LockoutService
	MFA      *MFAService
	Sessions *SessionService
	Audit    *AuditDispatcher

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RotateRefresh issues a new refresh token on every refresh instead
	// of keeping the original for the session's lifetime.
	RotateRefresh bool

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login authenticates a user and opens a session. Checks run in a fixed
// order: lockout first, then credentials, then MFA. Unknown emails and
// wrong passwords are indistinguishable to the caller, and both count
// toward the lockout threshold. A missing code for an MFA-active user
// returns ErrMFARequired without counting as a failure.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	now := s.now()

	if err := s.Lockout.Check(ctx, email); err != nil {
		var locked *AccountLockedError
		if errors.As(err, &locked) {
			s.audit(AuditEvent{
				Timestamp: now,
				EventType: AuditLoginLocked,
				Email:     email,
				IP:        in.Meta.IPAddress,
				Error:     err.Error(),
			})
		}
		return LoginResult{}, err
	}

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, s.failLogin(ctx, email, in.Meta, ErrInvalidCredentials)
		}
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(in.Password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return LoginResult{}, s.failLogin(ctx, email, in.Meta, ErrInvalidCredentials)
		}
		return LoginResult{}, err
	}

	if user.MFAActive() {
		if strings.TrimSpace(in.OTP) == "" {
			// Not a failed attempt: the password was right, the
			// client just needs to re-submit with a code.
			return LoginResult{}, ErrMFARequired
		}
		ok, err := s.MFA.Verify(ctx, user, in.OTP)
		if err != nil {
			return LoginResult{}, err
		}
		if !ok {
			return LoginResult{}, s.failLogin(ctx, email, in.Meta, ErrInvalidMFACode)
		}
	}

	if err := s.Lockout.RecordSuccess(ctx, email); err != nil {
		return LoginResult{}, err
	}

	sess, err := s.Sessions.Create(ctx, user.ID, in.Meta)
	if err != nil {
		return LoginResult{}, err
	}

	tokens, err := s.issueTokens(ctx, user, sess)
	if err != nil {
		return LoginResult{}, err
	}

	s.audit(AuditEvent{
		Timestamp: now,
		EventType: AuditLoginSuccess,
		UserID:    user.ID,
		Email:     email,
		SessionID: sess.ID,
		IP:        in.Meta.IPAddress,
		Success:   true,
	})

	return LoginResult{User: user.Public(), Session: sess, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// token must verify, its session must be live, and its fingerprint must
// match the one bound to the session. With RotateRefresh set, the old
// refresh token is retired and a new one returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	claims, err := s.Codec.VerifyKind(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return LoginResult{}, ErrInvalidRefreshToken
	}

	sess, err := s.Sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return LoginResult{}, ErrInvalidRefreshToken
		}
		return LoginResult{}, err
	}
	if sess.RefreshHash != cryptox.FingerprintToken(refreshToken) {
		return LoginResult{}, ErrInvalidRefreshToken
	}

	user, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidRefreshToken
		}
		return LoginResult{}, err
	}

	sess, err = s.Sessions.Touch(ctx, sess.ID)
	if err != nil {
		// The sweep may have removed it between the liveness check and here.
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return LoginResult{}, ErrInvalidRefreshToken
		}
		return LoginResult{}, err
	}

	now := s.now()
	access, err := s.Codec.Sign(jwtx.NewAccessClaims(
		user.ID, user.Email, user.Roles, user.Permissions, sess.ID, s.Codec.Issuer(), s.AccessTTL, now))
	if err != nil {
		return LoginResult{}, err
	}

	tokens := domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}

	if s.RotateRefresh {
		rotated, err := s.Codec.Sign(jwtx.NewRefreshClaims(user.ID, sess.ID, s.Codec.Issuer(), s.RefreshTTL, now))
		if err != nil {
			return LoginResult{}, err
		}
		if err := s.Sessions.BindRefresh(ctx, sess.ID, cryptox.FingerprintToken(rotated)); err != nil {
			return LoginResult{}, err
		}
		tokens.RefreshToken = rotated
	}

	s.audit(AuditEvent{
		Timestamp: now,
		EventType: AuditTokenRefreshed,
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: sess.ID,
		Success:   true,
	})

	return LoginResult{User: user.Public(), Session: sess, Tokens: tokens}, nil
}

// Verify validates an access token and confirms its session is still
// live. All token-level failures collapse to ErrTokenInvalid.
func (s *AuthService) Verify(ctx context.Context, accessToken string) (VerifyResult, error) {
	claims, err := s.Codec.VerifyKind(accessToken, jwtx.KindAccess)
	if err != nil {
		return VerifyResult{}, ErrTokenInvalid
	}

	if _, err := s.Sessions.Get(ctx, claims.SID); err != nil {
		return VerifyResult{}, err
	}

	user, err := s.Users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, ErrTokenInvalid
		}
		return VerifyResult{}, err
	}

	return VerifyResult{
		User:      user.Public(),
		SessionID: claims.SID,
		ExpiresIn: int64(jwtx.RemainingValidity(claims, s.now()).Seconds()),
	}, nil
}

// Logout invalidates the session behind an access token. Invalid tokens
// and already-dead sessions both succeed, so logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.Codec.VerifyKind(accessToken, jwtx.KindAccess)
	if err != nil {
		return nil
	}

	if err := s.Sessions.Invalidate(ctx, claims.SID); err != nil {
		return err
	}

	s.audit(AuditEvent{
		Timestamp: s.now(),
		EventType: AuditLogout,
		UserID:    claims.Subject,
		SessionID: claims.SID,
		Success:   true,
	})
	return nil
}

// Unlock clears a lockout on behalf of an administrator. It reports
// whether a record existed.
func (s *AuthService) Unlock(ctx context.Context, identifier, actor string) (bool, error) {
	existed, err := s.Lockout.Unlock(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	if err != nil {
		return false, err
	}
	if existed {
		s.audit(AuditEvent{
			Timestamp: s.now(),
			EventType: AuditLockoutCleared,
			Email:     identifier,
			UserID:    actor,
			Success:   true,
		})
	}
	return existed, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user domain.User, sess domain.Session) (domain.TokenPair, error) {
	now := s.now()

	access, err := s.Codec.Sign(jwtx.NewAccessClaims(
		user.ID, user.Email, user.Roles, user.Permissions, sess.ID, s.Codec.Issuer(), s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.Codec.Sign(jwtx.NewRefreshClaims(user.ID, sess.ID, s.Codec.Issuer(), s.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Sessions.BindRefresh(ctx, sess.ID, cryptox.FingerprintToken(refresh)); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// failLogin records a failed attempt and returns either the original
// cause or, when the attempt crossed the threshold, the lockout error.
func (s *AuthService) failLogin(ctx context.Context, email string, meta SessionMeta, cause error) error {
	st, err := s.Lockout.RecordFailure(ctx, email)
	if err != nil {
		return err
	}

	s.audit(AuditEvent{
		Timestamp: s.now(),
		EventType: AuditLoginFailure,
		Email:     email,
		IP:        meta.IPAddress,
		Error:     cause.Error(),
	})

	if st.Locked && st.LockedUntil != nil {
		return &AccountLockedError{Until: *st.LockedUntil}
	}
	return cause
}

func (s *AuthService) audit(event AuditEvent) {
	s.Audit.Emit(event)
}
