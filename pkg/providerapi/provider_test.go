package providerapi

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEmitRequestJSONTags(t *testing.T) {
	v := EmitRequest{
		Turn: Turn{
			TurnNum:   3,
			SessionID: "sess-1",
			StartedAt: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
			EndedAt:   time.Date(2026, 1, 2, 15, 4, 9, 0, time.UTC),
			Segments: []Segment{
				{Role: RoleUser, Content: "hello"},
				{Role: RoleAssistant, Content: "hi", Metadata: map[string]string{MetaModel: "claude-sonnet-4"}},
			},
		},
		SourceTool:     "claude",
		TranscriptPath: "/tmp/session.jsonl",
		InvocationID:   "inv-9",
	}
	blob, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(blob)
	for _, key := range []string{"\"turn\"", "\"turnNum\"", "\"sessionId\"", "\"segments\"", "\"sourceTool\"", "\"transcriptPath\"", "\"invocationId\""} {
		if !strings.Contains(s, key) {
			t.Fatalf("expected key %s in %s", key, s)
		}
	}
}

func TestErrorCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Provider: "langfuse", Op: "emit", Err: cause}
	if got := err.Error(); !strings.HasPrefix(got, "PRV_EMIT: langfuse:") {
		t.Fatalf("error = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("unwrap lost the cause")
	}
}
