package updater

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LockFileName guards a work directory against concurrent update attempts.
const LockFileName = "version.lock"

// attemptLock is an exclusive lock file. Creation with O_EXCL is the lock;
// the content only helps a human identify a stale one.
type attemptLock struct {
	path  string
	owner string
}

func acquireLock(workDir, owner string) (*attemptLock, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	path := filepath.Join(workDir, LockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil, pathError(KindLockHeld, path, "another update holds the lock; remove the file if no update is running", err)
	}
	if err != nil {
		return nil, fmt.Errorf("creating lock file: %w", err)
	}

	_, werr := fmt.Fprintf(f, "pid=%d\nattempt=%s\nstarted=%s\n", os.Getpid(), owner, time.Now().UTC().Format(time.RFC3339))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock file: %w", errors.Join(werr, cerr))
	}
	return &attemptLock{path: path, owner: owner}, nil
}

func (l *attemptLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}
