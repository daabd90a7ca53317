package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Adapters for tools that expose no transcript. Every lifecycle kind
// each tool can emit is mapped; a coarse tool with an unmapped kind
// would leave invisible gaps between its session_start and session_end.

type cursorAdapter struct{}

type cursorPayload struct {
	ConversationID string `json:"conversation_id"`
	GenerationID   string `json:"generation_id"`
	HookEventName  string `json:"hook_event_name"`
	Status         string `json:"status"`
}

var cursorKinds = map[string]Kind{
	"stop":               KindStop,
	"beforeSubmitPrompt": KindPromptSubmit,
	"afterFileEdit":      KindFileEdit,
}

func (cursorAdapter) Tool() string { return ToolCursor }

func (cursorAdapter) Normalize(raw []byte) (HookEvent, error) {
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HookEvent{}, &AdapterError{Tool: ToolCursor, Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	if p.ConversationID == "" {
		return HookEvent{}, &AdapterError{Tool: ToolCursor, Reason: "payload has no conversation_id"}
	}
	kind, ok := cursorKinds[p.HookEventName]
	if !ok {
		return HookEvent{}, &AdapterError{Tool: ToolCursor, Reason: fmt.Sprintf("unknown hook_event_name %q", p.HookEventName)}
	}
	return HookEvent{
		SourceTool: ToolCursor,
		Kind:       kind,
		SessionID:  p.ConversationID,
		OccurredAt: time.Now().UTC(),
		Raw:        json.RawMessage(raw),
	}, nil
}

type clineAdapter struct{}

type clinePayload struct {
	TaskID string `json:"taskId"`
	Event  string `json:"event"`
}

func (clineAdapter) Tool() string { return ToolCline }

func (clineAdapter) Normalize(raw []byte) (HookEvent, error) {
	var p clinePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HookEvent{}, &AdapterError{Tool: ToolCline, Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	if p.TaskID == "" {
		return HookEvent{}, &AdapterError{Tool: ToolCline, Reason: "payload has no taskId"}
	}
	switch p.Event {
	case "TaskComplete", "taskComplete", "":
		// The TaskComplete hook script omits the event name; it only
		// fires at completion.
	default:
		return HookEvent{}, &AdapterError{Tool: ToolCline, Reason: fmt.Sprintf("unknown event %q", p.Event)}
	}
	return HookEvent{
		SourceTool: ToolCline,
		Kind:       KindTaskComplete,
		SessionID:  p.TaskID,
		OccurredAt: time.Now().UTC(),
		Raw:        json.RawMessage(raw),
	}, nil
}

type copilotAdapter struct{}

type copilotPayload struct {
	SessionID string `json:"sessionId"`
	Event     string `json:"event"`
}

var copilotKinds = map[string]Kind{
	"sessionStart": KindSessionStart,
	"sessionEnd":   KindSessionEnd,
}

func (copilotAdapter) Tool() string { return ToolCopilot }

func (copilotAdapter) Normalize(raw []byte) (HookEvent, error) {
	var p copilotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HookEvent{}, &AdapterError{Tool: ToolCopilot, Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	if p.SessionID == "" {
		return HookEvent{}, &AdapterError{Tool: ToolCopilot, Reason: "payload has no sessionId"}
	}
	kind, ok := copilotKinds[p.Event]
	if !ok {
		return HookEvent{}, &AdapterError{Tool: ToolCopilot, Reason: fmt.Sprintf("unknown event %q", p.Event)}
	}
	return HookEvent{
		SourceTool: ToolCopilot,
		Kind:       kind,
		SessionID:  p.SessionID,
		OccurredAt: time.Now().UTC(),
		Raw:        json.RawMessage(raw),
	}, nil
}

type opencodeAdapter struct{}

type opencodePayload struct {
	Kind       string `json:"kind"`
	SessionID  string `json:"session_id"`
	ToolName   string `json:"tool_name"`
	MetricName string `json:"metric_name"`
	Timestamp  string `json:"timestamp"`
}

var opencodeKinds = map[string]Kind{
	"session_start": KindSessionStart,
	"prompt_submit": KindPromptSubmit,
	"tool_use":      KindToolUse,
	"session_end":   KindSessionEnd,
	"metric":        KindMetric,
}

func (opencodeAdapter) Tool() string { return ToolOpencode }

func (opencodeAdapter) Normalize(raw []byte) (HookEvent, error) {
	var p opencodePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HookEvent{}, &AdapterError{Tool: ToolOpencode, Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	if p.SessionID == "" {
		return HookEvent{}, &AdapterError{Tool: ToolOpencode, Reason: "payload has no session_id"}
	}
	kind, ok := opencodeKinds[p.Kind]
	if !ok {
		return HookEvent{}, &AdapterError{Tool: ToolOpencode, Reason: fmt.Sprintf("unknown kind %q", p.Kind)}
	}
	if kind == KindMetric && p.MetricName == "" {
		return HookEvent{}, &AdapterError{Tool: ToolOpencode, Reason: "metric payload has no metric_name"}
	}
	occurred := time.Now().UTC()
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			occurred = ts.UTC()
		}
	}
	return HookEvent{
		SourceTool: ToolOpencode,
		Kind:       kind,
		SessionID:  p.SessionID,
		OccurredAt: occurred,
		Raw:        json.RawMessage(raw),
	}, nil
}
