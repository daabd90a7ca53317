package state

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"hooktrace/internal/fsutil"
)

const StateVersion = 1

// SessionState is the persisted cursor for one (tool, session) pair:
// how far into the transcript previous invocations have read, and the
// last turn number handed to a provider. Only the Store mutates it on
// disk.
type SessionState struct {
	Version   int       `toml:"version"`
	SessionID string    `toml:"session_id"`
	Tool      string    `toml:"tool"`
	Offset    int64     `toml:"offset"`
	TurnCount int       `toml:"turn_count"`
	UpdatedAt time.Time `toml:"updated_at"`
}

func loadState(path, tool, sessionID string) (SessionState, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionState{Version: StateVersion, SessionID: sessionID, Tool: tool}, nil
		}
		return SessionState{}, fmt.Errorf("STATE_READ: %w", err)
	}
	var st SessionState
	if err := toml.Unmarshal(blob, &st); err != nil {
		return SessionState{}, fmt.Errorf("STATE_PARSE: %w", err)
	}
	if st.Version == 0 {
		st.Version = StateVersion
	}
	if st.Version != StateVersion {
		return SessionState{}, fmt.Errorf("STATE_VERSION: unsupported state version %d", st.Version)
	}
	if st.SessionID == "" {
		st.SessionID = sessionID
	}
	if st.Tool == "" {
		st.Tool = tool
	}
	return st, nil
}

func saveState(path string, st SessionState) error {
	st.Version = StateVersion
	st.UpdatedAt = time.Now().UTC()
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("STATE_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(path, blob, 0o644)
}
