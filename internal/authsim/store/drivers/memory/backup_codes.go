package memory

import (
	"context"
	"sync"

	"github.com/devharness/authsim/internal/authsim/store"
)

type backupCodesRepo struct {
	// codes maps userID -> set of code fingerprints.
	codes sync.Map // map[string]map[string]struct{}
	locks keyMutex
}

var _ store.BackupCodes = (*backupCodesRepo)(nil)

func (r *backupCodesRepo) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	defer r.locks.lock(userID)()

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	r.codes.Store(userID, set)
	return nil
}

func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, userID, hash string) (bool, error) {
	defer r.locks.lock(userID)()

	v, ok := r.codes.Load(userID)
	if !ok {
		return false, nil
	}
	old := v.(map[string]struct{})
	if _, found := old[hash]; !found {
		return false, nil
	}

	// Copy-on-write keeps readers safe without locking reads.
	next := make(map[string]struct{}, len(old)-1)
	for h := range old {
		if h != hash {
			next[h] = struct{}{}
		}
	}
	r.codes.Store(userID, next)
	return true, nil
}

func (r *backupCodesRepo) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	if v, ok := r.codes.Load(userID); ok {
		return len(v.(map[string]struct{})), nil
	}
	return 0, nil
}

func (r *backupCodesRepo) DeleteBackupCodes(ctx context.Context, userID string) error {
	defer r.locks.lock(userID)()
	r.codes.Delete(userID)
	return nil
}
