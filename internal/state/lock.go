package state

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// errLockHeld is returned by the platform lock call when another
// process holds the lock; the acquire loop keeps polling on it.
var errLockHeld = errors.New("lock held by another process")

// LockTimeoutError reports that a concurrent invocation held the
// session lock for the whole bounded wait. The losing invocation
// aborts without touching state; a later invocation retries.
type LockTimeoutError struct {
	Tool      string
	SessionID string
	Timeout   time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("STATE_LOCK_TIMEOUT: session %s/%s still locked after %s", e.Tool, e.SessionID, e.Timeout)
}

// acquireLock opens (creating if needed) the lock file and polls an
// exclusive non-blocking lock until the deadline. The file is opened
// once and every contender locks the same inode; the lock file is
// never unlinked, because removal would let a new arrival lock a fresh
// inode while a waiter still polls the old one.
func acquireLock(path string, timeout, poll time.Duration) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("STATE_LOCK_OPEN: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for {
		err := lockFileExclusive(f)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, errLockHeld) {
			_ = f.Close()
			return nil, fmt.Errorf("STATE_LOCK: %w", err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, errLockHeld
		}
		time.Sleep(poll)
	}
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = unlockFile(f)
	_ = f.Close()
}
