package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultTimeout = 2 * time.Second
	defaultPoll    = 50 * time.Millisecond
)

// Store hands out scoped, mutually-exclusive access to per-session
// state. All cross-invocation coordination goes through it: hook
// invocations share no memory, only these files and their locks.
type Store struct {
	storageRoot string
	timeout     time.Duration
	poll        time.Duration
}

func NewStore(storageRoot string, timeout, poll time.Duration) (*Store, error) {
	if err := EnsureLayout(storageRoot); err != nil {
		return nil, fmt.Errorf("STATE_LAYOUT: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Store{storageRoot: storageRoot, timeout: timeout, poll: poll}, nil
}

// Session is a held lock over one session's state. The caller defers
// Release so the lock drops on every exit path; Commit persists a new
// state atomically while the lock is held. A Session that is never
// committed leaves the file exactly as Acquire found it.
type Session struct {
	State SessionState

	path     string
	lock     *os.File
	released bool
}

// Acquire loads the committed state for (tool, sessionID) under the
// session's advisory lock. Concurrent invocations for the same session
// serialize here; one that cannot obtain the lock within the bounded
// wait fails with LockTimeoutError and must not proceed, since its
// view of the cursor would be stale.
func (s *Store) Acquire(tool, sessionID string) (*Session, error) {
	lockPath := LockPath(s.storageRoot, tool, sessionID)
	f, err := acquireLock(lockPath, s.timeout, s.poll)
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, &LockTimeoutError{Tool: tool, SessionID: sessionID, Timeout: s.timeout}
		}
		return nil, err
	}
	path := FilePath(s.storageRoot, tool, sessionID)
	st, err := loadState(path, tool, sessionID)
	if err != nil {
		releaseLock(f)
		return nil, err
	}
	return &Session{State: st, path: path, lock: f}, nil
}

// Commit atomically replaces the session's state file. Offset and turn
// count travel together; there is no way to persist one without the
// other.
func (sess *Session) Commit(st SessionState) error {
	if sess.released {
		return fmt.Errorf("STATE_COMMIT: session already released")
	}
	st.SessionID = sess.State.SessionID
	st.Tool = sess.State.Tool
	if err := saveState(sess.path, st); err != nil {
		return err
	}
	sess.State = st
	return nil
}

// Release drops the lock. Idempotent. The lock file itself stays on
// disk (see acquireLock for why unlinking is unsafe).
func (sess *Session) Release() {
	if sess.released {
		return
	}
	sess.released = true
	releaseLock(sess.lock)
	sess.lock = nil
}

// ListSessions loads every tracked session state under the storage
// root, sorted by tool then session id.
func ListSessions(storageRoot string) ([]SessionState, error) {
	entries, err := os.ReadDir(Root(storageRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]SessionState, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(Root(storageRoot), e.Name()))
		if err != nil {
			continue
		}
		var st SessionState
		if err := toml.Unmarshal(blob, &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

// OrphanedLocks lists lock files older than olderThan that no process
// currently holds and that have no sibling state file: leftovers of
// invocations that locked a fresh session and died before committing.
// A held lock is never reported, whatever its age.
func OrphanedLocks(storageRoot string, olderThan time.Duration) ([]string, error) {
	root := Root(storageRoot)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		info, err := e.Info()
		if err != nil || time.Since(info.ModTime()) < olderThan {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, strings.TrimSuffix(e.Name(), ".lock"))); err == nil {
			continue
		}
		p := filepath.Join(root, e.Name())
		f, err := os.OpenFile(p, os.O_RDWR, 0o644)
		if err != nil {
			continue
		}
		if err := lockFileExclusive(f); err == nil {
			_ = unlockFile(f)
			out = append(out, p)
		}
		_ = f.Close()
	}
	sort.Strings(out)
	return out, nil
}
