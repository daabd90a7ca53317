package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Operations recorded in the audit log.
const (
	OpHookInvocation = "hook_invocation"
	OpEnable         = "enable"
	OpDisable        = "disable"
	OpSelfUpdate     = "self_update"
)

// Event statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Logger appends one JSON line per event. A nil logger or an empty
// path is a no-op, so callers never guard audit calls.
type Logger struct {
	path string
	mu   sync.Mutex
}

// Event is one audit record. Tool, SessionID and Invocation tie hook
// invocations back to the session state they touched.
type Event struct {
	Timestamp  string            `json:"timestamp"`
	Operation  string            `json:"operation"`
	Phase      string            `json:"phase,omitempty"`
	Status     string            `json:"status"`
	Tool       string            `json:"tool,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Invocation string            `json:"invocation_id,omitempty"`
	Code       string            `json:"code,omitempty"`
	Message    string            `json:"message,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func New(path string) *Logger {
	return &Logger{path: path}
}

func (l *Logger) Log(ev Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(blob, '\n')); err != nil {
		return err
	}
	return nil
}
