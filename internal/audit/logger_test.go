package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogNoopForNilLoggerAndEmptyPath(t *testing.T) {
	var nilLogger *Logger
	if err := nilLogger.Log(Event{Operation: OpHookInvocation}); err != nil {
		t.Fatalf("nil logger should be noop: %v", err)
	}
	if err := New("").Log(Event{Operation: OpHookInvocation}); err != nil {
		t.Fatalf("empty-path logger should be noop: %v", err)
	}
}

func TestLogWritesJSONLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger := New(logPath)

	first := Event{
		Operation:  OpHookInvocation,
		Phase:      "dispatch",
		Status:     StatusOK,
		Tool:       "claude",
		SessionID:  "sess-1",
		Invocation: "inv-7",
		Fields: map[string]string{
			"turns": "2",
		},
	}
	second := Event{
		Operation: OpEnable,
		Status:    StatusOK,
		Tool:      "codex",
	}

	if err := logger.Log(first); err != nil {
		t.Fatalf("log first event: %v", err)
	}
	if err := logger.Log(second); err != nil {
		t.Fatalf("log second event: %v", err)
	}

	blob, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var gotFirst Event
	if err := json.Unmarshal([]byte(lines[0]), &gotFirst); err != nil {
		t.Fatalf("unmarshal first event: %v", err)
	}
	if gotFirst.Timestamp == "" {
		t.Fatalf("expected timestamp to be set")
	}
	if _, err := time.Parse(time.RFC3339Nano, gotFirst.Timestamp); err != nil {
		t.Fatalf("timestamp should be RFC3339Nano: %v", err)
	}
	if gotFirst.Operation != OpHookInvocation || gotFirst.Phase != "dispatch" || gotFirst.Status != StatusOK {
		t.Fatalf("unexpected first event body: %+v", gotFirst)
	}
	if gotFirst.Tool != "claude" || gotFirst.SessionID != "sess-1" || gotFirst.Invocation != "inv-7" {
		t.Fatalf("unexpected first event identity: %+v", gotFirst)
	}
	if gotFirst.Fields["turns"] != "2" {
		t.Fatalf("unexpected first event fields: %+v", gotFirst.Fields)
	}

	var gotSecond Event
	if err := json.Unmarshal([]byte(lines[1]), &gotSecond); err != nil {
		t.Fatalf("unmarshal second event: %v", err)
	}
	if gotSecond.Operation != OpEnable || gotSecond.Tool != "codex" {
		t.Fatalf("unexpected second event body: %+v", gotSecond)
	}
}

func TestLogErrorEventCarriesCode(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger := New(logPath)

	if err := logger.Log(Event{
		Operation: OpHookInvocation,
		Status:    StatusError,
		Code:      "STATE_LOCK_TIMEOUT",
		Message:   "session claude/sess-1 still locked after 2s",
	}); err != nil {
		t.Fatalf("log: %v", err)
	}

	blob, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(blob))), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Code != "STATE_LOCK_TIMEOUT" || got.Status != StatusError {
		t.Fatalf("event = %+v", got)
	}
}

func TestLogMkdirAllFailure(t *testing.T) {
	tmp := t.TempDir()
	blockedPath := filepath.Join(tmp, "blocked")
	if err := os.WriteFile(blockedPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("create blocking file: %v", err)
	}

	logger := New(filepath.Join(blockedPath, "audit.log"))
	if err := logger.Log(Event{Operation: OpHookInvocation}); err == nil {
		t.Fatalf("expected mkdir failure")
	}
}

func TestLogOpenFileFailure(t *testing.T) {
	tmp := t.TempDir()
	dirPath := filepath.Join(tmp, "log-dir")
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		t.Fatalf("create directory path: %v", err)
	}

	logger := New(dirPath)
	if err := logger.Log(Event{Operation: OpHookInvocation}); err == nil {
		t.Fatalf("expected open file failure")
	}
}
