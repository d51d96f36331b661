// Package memory is the default store driver: process-local maps with
// per-key locking. Mutations on the same key are serialized through striped
// mutexes while independent keys proceed in parallel, which is all the
// consistency the simulator's single-process model asks for.
package memory

import (
	"context"

	"github.com/devharness/authsim/internal/authsim/store"
)

type Store struct {
	users       *usersRepo
	sessions    *sessionsRepo
	lockouts    *lockoutsRepo
	backupCodes *backupCodesRepo
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:       newUsersRepo(),
		sessions:    &sessionsRepo{},
		lockouts:    &lockoutsRepo{},
		backupCodes: &backupCodesRepo{},
	}
}

func (s *Store) Users() store.Users             { return s.users }
func (s *Store) Sessions() store.Sessions       { return s.sessions }
func (s *Store) Lockouts() store.Lockouts       { return s.lockouts }
func (s *Store) BackupCodes() store.BackupCodes { return s.backupCodes }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }
