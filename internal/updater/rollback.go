package updater

import (
	"errors"
	"os"
	"path/filepath"
)

// RollbackStateName sits next to the rollback copy and records which release
// it is.
const RollbackStateName = "last.toml"

func (u *Updater) rollbackStore() *VersionStore {
	return NewVersionStore(filepath.Join(filepath.Dir(u.swapper.RollbackPath()), RollbackStateName))
}

// recordRollback writes the record of the build just moved into the rollback
// slot, so the copy and its record are replaced together.
func (a *attempt) recordRollback() error {
	return a.rollbackStore().Save(a.res.Previous)
}

// Rollback puts the executable kept in version-cache back in place and makes
// its record current again. The replaced executable is discarded.
func (u *Updater) Rollback() (*Result, error) {
	a := u.begin()

	lock, err := acquireLock(u.cfg.WorkDir, a.res.AttemptID)
	if err != nil {
		return a.fail(err)
	}
	defer func() {
		if err := lock.release(); err != nil {
			a.log.Warn("could not release lock", "error", err)
		}
	}()

	installed, err := u.store.current()
	if err != nil {
		return a.fail(err)
	}
	a.res.Previous = installed

	prev := DefaultRecord()
	rs := u.rollbackStore()
	if _, statErr := os.Stat(rs.Path()); statErr == nil {
		if prev, err = rs.Load(); err != nil {
			return a.fail(err)
		}
	}

	a.enter(StateSwapping)
	if err := u.swapper.Restore(u.cfg.ExecutablePath); err != nil {
		return a.fail(err)
	}
	if err := u.store.Save(prev); err != nil {
		return a.fail(err)
	}
	if err := os.Remove(rs.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("could not remove rollback record", "path", rs.Path(), "error", err)
	}

	a.res.Current = prev
	a.log.Info("rolled back", "from", installed.Label, "to", prev.Label)
	a.enter(StateCommitted)
	return a.res, nil
}
