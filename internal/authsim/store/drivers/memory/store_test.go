package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/stretchr/testify/require"
)

func TestUsersRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewStore()
	users := st.Users()

	empty, err := users.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	u := domain.User{ID: "u1", Email: "dev@example.com", PasswordHash: "hash"}
	require.NoError(t, users.CreateUser(ctx, u))

	t.Run("duplicate email rejected", func(t *testing.T) {
		err := users.CreateUser(ctx, domain.User{ID: "u2", Email: "dev@example.com"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("lookup by id and email", func(t *testing.T) {
		got, err := users.GetUserByID(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "dev@example.com", got.Email)

		got, err = users.GetUserByEmail(ctx, "dev@example.com")
		require.NoError(t, err)
		require.Equal(t, "u1", got.ID)

		_, err = users.GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("mfa lifecycle", func(t *testing.T) {
		require.NoError(t, users.UpdateMFASecret(ctx, "u1", "SECRET"))
		got, err := users.GetUserByID(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got.MFASecret)
		require.False(t, got.MFAActive(), "secret alone must not activate MFA")

		require.NoError(t, users.EnableMFA(ctx, "u1", time.Now()))
		got, _ = users.GetUserByID(ctx, "u1")
		require.True(t, got.MFAActive())

		require.NoError(t, users.DisableMFA(ctx, "u1"))
		got, _ = users.GetUserByID(ctx, "u1")
		require.False(t, got.MFAActive())
		require.Nil(t, got.MFASecret)
	})

	t.Run("updates on unknown user fail", func(t *testing.T) {
		require.ErrorIs(t, users.UpdatePasswordHash(ctx, "ghost", "x"), store.ErrNotFound)
	})
}

func TestSessionsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sessions := NewStore().Sessions()
	now := time.Now().UTC()

	mk := func(id string, expiresAt time.Time, active bool) domain.Session {
		return domain.Session{
			ID: id, UserID: "u1",
			CreatedAt: now, LastActivityAt: now,
			ExpiresAt: expiresAt, IsActive: active,
		}
	}

	require.NoError(t, sessions.CreateSession(ctx, mk("s1", now.Add(time.Hour), true)))
	require.NoError(t, sessions.CreateSession(ctx, mk("s2", now.Add(-time.Minute), true)))
	require.NoError(t, sessions.CreateSession(ctx, mk("s3", now.Add(time.Hour), false)))

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := sessions.CreateSession(ctx, mk("s1", now.Add(time.Hour), true))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("touch updates both timestamps", func(t *testing.T) {
		later := now.Add(30 * time.Minute)
		got, err := sessions.TouchSession(ctx, "s1", later, later.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, later, got.LastActivityAt)
		require.Equal(t, later.Add(time.Hour), got.ExpiresAt)

		_, err = sessions.TouchSession(ctx, "ghost", later, later)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invalidate is idempotent", func(t *testing.T) {
		require.NoError(t, sessions.InvalidateSession(ctx, "s3"))
		require.NoError(t, sessions.InvalidateSession(ctx, "s3"))
		require.NoError(t, sessions.InvalidateSession(ctx, "ghost"))
	})

	t.Run("stats count live sessions only", func(t *testing.T) {
		stats, err := sessions.CountSessions(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 3, stats.Total)
		require.Equal(t, 1, stats.Active) // s2 expired, s3 inactive
	})

	t.Run("sweep removes only expired", func(t *testing.T) {
		removed, err := sessions.DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 1, removed) // s2

		_, err = sessions.GetSession(ctx, "s2")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = sessions.GetSession(ctx, "s1")
		require.NoError(t, err)
	})
}

func TestLockoutsRepoRecordFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lockouts := NewStore().Lockouts()
	now := time.Now().UTC()

	t.Run("counts up and locks at max", func(t *testing.T) {
		for i := 1; i <= 4; i++ {
			rec, err := lockouts.RecordFailure(ctx, "a@example.com", now, 5, 15*time.Minute)
			require.NoError(t, err)
			require.Equal(t, i, rec.FailedAttempts)
			require.Nil(t, rec.LockedUntil)
		}

		rec, err := lockouts.RecordFailure(ctx, "a@example.com", now, 5, 15*time.Minute)
		require.NoError(t, err)
		require.Equal(t, 5, rec.FailedAttempts)
		require.NotNil(t, rec.LockedUntil)
		require.Equal(t, now.Add(15*time.Minute), *rec.LockedUntil)
	})

	t.Run("expired lock restarts the count", func(t *testing.T) {
		after := now.Add(20 * time.Minute)
		rec, err := lockouts.RecordFailure(ctx, "a@example.com", after, 5, 15*time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, rec.FailedAttempts)
		require.Nil(t, rec.LockedUntil)
	})

	t.Run("clear reports existence", func(t *testing.T) {
		existed, err := lockouts.ClearLockout(ctx, "a@example.com")
		require.NoError(t, err)
		require.True(t, existed)

		existed, err = lockouts.ClearLockout(ctx, "a@example.com")
		require.NoError(t, err)
		require.False(t, existed)
	})

	t.Run("concurrent failures never lose an increment", func(t *testing.T) {
		const n = 100
		var wg sync.WaitGroup
		wg.Add(n)
		for range n {
			go func() {
				defer wg.Done()
				_, err := lockouts.RecordFailure(ctx, "race@example.com", now, n+1, time.Minute)
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		rec, err := lockouts.GetLockout(ctx, "race@example.com")
		require.NoError(t, err)
		require.Equal(t, n, rec.FailedAttempts)
	})
}

func TestLockoutsRepoSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lockouts := NewStore().Lockouts()
	now := time.Now().UTC()

	_, err := lockouts.RecordFailure(ctx, "warned", now, 5, time.Minute)
	require.NoError(t, err)
	for range 3 {
		_, err = lockouts.RecordFailure(ctx, "locked", now, 3, time.Minute)
		require.NoError(t, err)
	}

	removed, err := lockouts.DeleteExpiredLockouts(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, removed, "only the served lock is swept")

	list, err := lockouts.ListLockouts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "warned", list[0].Identifier)
}

func TestBackupCodesRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	codes := NewStore().BackupCodes()

	require.NoError(t, codes.ReplaceBackupCodes(ctx, "u1", []string{"h1", "h2", "h3"}))

	n, err := codes.CountBackupCodes(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	t.Run("consume is single-use", func(t *testing.T) {
		ok, err := codes.ConsumeBackupCode(ctx, "u1", "h2")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = codes.ConsumeBackupCode(ctx, "u1", "h2")
		require.NoError(t, err)
		require.False(t, ok)

		n, _ := codes.CountBackupCodes(ctx, "u1")
		require.Equal(t, 2, n)
	})

	t.Run("unknown user or code", func(t *testing.T) {
		ok, err := codes.ConsumeBackupCode(ctx, "ghost", "h1")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = codes.ConsumeBackupCode(ctx, "u1", "nope")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("replace swaps the whole set", func(t *testing.T) {
		require.NoError(t, codes.ReplaceBackupCodes(ctx, "u1", []string{"n1"}))
		ok, _ := codes.ConsumeBackupCode(ctx, "u1", "h1")
		require.False(t, ok)
		ok, _ = codes.ConsumeBackupCode(ctx, "u1", "n1")
		require.True(t, ok)
	})

	t.Run("delete clears everything", func(t *testing.T) {
		require.NoError(t, codes.DeleteBackupCodes(ctx, "u1"))
		n, _ := codes.CountBackupCodes(ctx, "u1")
		require.Equal(t, 0, n)
	})
}
