package state

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

func Root(storageRoot string) string {
	return filepath.Join(storageRoot, "state")
}

func LogRoot(storageRoot string) string {
	return filepath.Join(storageRoot, "logs")
}

func AuditPath(storageRoot string) string {
	return filepath.Join(storageRoot, "audit.log")
}

func EnsureLayout(storageRoot string) error {
	dirs := []string{storageRoot, Root(storageRoot), LogRoot(storageRoot)}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// SessionKey derives the state filename stem for a (tool, session)
// pair. Session ids can contain path separators or exceed filename
// limits, so the name is a truncated digest rather than the raw id.
func SessionKey(tool, sessionID string) string {
	sum := sha256.Sum256([]byte(tool + "::" + sessionID))
	return hex.EncodeToString(sum[:])[:16]
}

// FilePath returns the state file for a (tool, session) pair.
func FilePath(storageRoot, tool, sessionID string) string {
	return filepath.Join(Root(storageRoot), SessionKey(tool, sessionID)+".toml")
}

// LockPath returns the sidecar lock file guarding one state file. The
// state file itself is replaced by rename on commit, so the lock lives
// on a path that is never renamed.
func LockPath(storageRoot, tool, sessionID string) string {
	return FilePath(storageRoot, tool, sessionID) + ".lock"
}
