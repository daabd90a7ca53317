package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// claudeShapedAdapter handles the settings.json hook payload shape that
// claude introduced and gemini and kiro adopted. The three tools emit
// identical key vocabularies, so the same adapter serves all of them
// under different registry keys.
type claudeShapedAdapter struct {
	tool string
}

type claudeShapedPayload struct {
	SessionID        string `json:"session_id"`
	SessionIDCamel   string `json:"sessionId"`
	TranscriptPath   string `json:"transcript_path"`
	TranscriptCamel  string `json:"transcriptPath"`
	HookEventName    string `json:"hook_event_name"`
	HookEventCamel   string `json:"hookEventName"`
	StopHookActive   bool   `json:"stop_hook_active"`
	WorkingDirectory string `json:"cwd"`
}

var claudeKinds = map[string]Kind{
	"Stop":             KindStop,
	"SubagentStop":     KindSubagentStop,
	"SessionStart":     KindSessionStart,
	"SessionEnd":       KindSessionEnd,
	"UserPromptSubmit": KindPromptSubmit,
	"PreToolUse":       KindPreToolUse,
	"PostToolUse":      KindPostToolUse,
	"Notification":     KindNotification,
	"PreCompact":       KindPreCompact,
}

func (a claudeShapedAdapter) Tool() string { return a.tool }

func (a claudeShapedAdapter) Normalize(raw []byte) (HookEvent, error) {
	var p claudeShapedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HookEvent{}, &AdapterError{Tool: a.tool, Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	sessionID := first(p.SessionID, p.SessionIDCamel)
	if sessionID == "" {
		return HookEvent{}, &AdapterError{Tool: a.tool, Reason: "payload has no session_id"}
	}
	name := first(p.HookEventName, p.HookEventCamel)
	kind, ok := claudeKinds[name]
	if !ok {
		return HookEvent{}, &AdapterError{Tool: a.tool, Reason: fmt.Sprintf("unknown hook_event_name %q", name)}
	}
	return HookEvent{
		SourceTool:     a.tool,
		Kind:           kind,
		SessionID:      sessionID,
		TranscriptPath: first(p.TranscriptPath, p.TranscriptCamel),
		OccurredAt:     time.Now().UTC(),
		Raw:            json.RawMessage(raw),
	}, nil
}
