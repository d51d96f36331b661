package memory

import (
	"context"
	"sync"
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	"github.com/devharness/authsim/internal/authsim/store"
)

type usersRepo struct {
	byID    sync.Map // map[string]domain.User
	emailID sync.Map // map[string]string, email -> user id
	locks   keyMutex
}

func newUsersRepo() *usersRepo { return &usersRepo{} }

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if v, ok := r.byID.Load(id); ok {
		return v.(domain.User), nil
	}
	return domain.User{}, store.ErrNotFound
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	id, ok := r.emailID.Load(email)
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return r.GetUserByID(ctx, id.(string))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	// Lock on email so two concurrent creates for the same address cannot
	// both pass the uniqueness check.
	defer r.locks.lock(u.Email)()

	if _, taken := r.emailID.Load(u.Email); taken {
		return store.ErrAlreadyExists
	}
	if _, taken := r.byID.Load(u.ID); taken {
		return store.ErrAlreadyExists
	}

	r.byID.Store(u.ID, u)
	r.emailID.Store(u.Email, u.ID)
	return nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.update(userID, func(u *domain.User) {
		u.PasswordHash = hash
	})
}

func (r *usersRepo) UpdateMFASecret(ctx context.Context, userID, secret string) error {
	return r.update(userID, func(u *domain.User) {
		s := secret
		u.MFASecret = &s
	})
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string, at time.Time) error {
	return r.update(userID, func(u *domain.User) {
		t := at
		u.MFAEnabled = &t
	})
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	return r.update(userID, func(u *domain.User) {
		u.MFAEnabled = nil
		u.MFASecret = nil
	})
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	empty := true
	r.byID.Range(func(_, _ any) bool {
		empty = false
		return false
	})
	return empty, nil
}

func (r *usersRepo) update(userID string, mutate func(*domain.User)) error {
	defer r.locks.lock(userID)()

	v, ok := r.byID.Load(userID)
	if !ok {
		return store.ErrNotFound
	}
	u := v.(domain.User)
	mutate(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID.Store(userID, u)
	return nil
}
