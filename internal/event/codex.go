package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// codexAdapter handles codex rollout-style payloads. Codex mostly
// exports natively over OTLP, but its session notifications can still
// be piped into the hook path; they carry the rollout JSONL location
// as the transcript.
type codexAdapter struct{}

type codexPayload struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	RolloutPath string `json:"rollout_path"`
	Timestamp   string `json:"timestamp"`
	Payload     struct {
		ID          string `json:"id"`
		SessionID   string `json:"session_id"`
		RolloutPath string `json:"rollout_path"`
	} `json:"payload"`
}

var codexKinds = map[string]Kind{
	"session_start": KindSessionStart,
	"session_end":   KindSessionEnd,
	"turn_complete": KindStop,
	"stop":          KindStop,
}

func (codexAdapter) Tool() string { return ToolCodex }

func (codexAdapter) Normalize(raw []byte) (HookEvent, error) {
	var p codexPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HookEvent{}, &AdapterError{Tool: ToolCodex, Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	sessionID := first(p.SessionID, p.Payload.SessionID, p.Payload.ID)
	if sessionID == "" {
		return HookEvent{}, &AdapterError{Tool: ToolCodex, Reason: "payload has no session id"}
	}
	kind, ok := codexKinds[p.Type]
	if !ok {
		return HookEvent{}, &AdapterError{Tool: ToolCodex, Reason: fmt.Sprintf("unknown payload type %q", p.Type)}
	}
	occurred := time.Now().UTC()
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			occurred = ts.UTC()
		}
	}
	return HookEvent{
		SourceTool:     ToolCodex,
		Kind:           kind,
		SessionID:      sessionID,
		TranscriptPath: first(p.RolloutPath, p.Payload.RolloutPath),
		OccurredAt:     occurred,
		Raw:            json.RawMessage(raw),
	}, nil
}
