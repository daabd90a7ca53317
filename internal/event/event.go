package event

import (
	"encoding/json"
	"time"
)

// Tool identifiers. These are the registry keys and the values accepted
// by the --tool hint; payload shape alone is ambiguous across tools, so
// the hint decides which adapter runs.
const (
	ToolClaude   = "claude"
	ToolGemini   = "gemini"
	ToolKiro     = "kiro"
	ToolCodex    = "codex"
	ToolCursor   = "cursor"
	ToolCline    = "cline"
	ToolCopilot  = "copilot"
	ToolOpencode = "opencode"
)

// Kind is the canonical lifecycle vocabulary. Several tools name the
// same moment differently (Stop vs stop vs TaskComplete); adapters map
// each tool's wording onto these.
type Kind string

const (
	KindSessionStart Kind = "session_start"
	KindSessionEnd   Kind = "session_end"
	KindStop         Kind = "stop"
	KindSubagentStop Kind = "subagent_stop"
	KindPromptSubmit Kind = "prompt_submit"
	KindPreToolUse   Kind = "pre_tool_use"
	KindPostToolUse  Kind = "post_tool_use"
	KindToolUse      Kind = "tool_use"
	KindNotification Kind = "notification"
	KindPreCompact   Kind = "pre_compact"
	KindFileEdit     Kind = "file_edit"
	KindTaskComplete Kind = "task_complete"
	KindMetric       Kind = "metric"
)

// HookEvent is the canonical form of one raw hook payload. Constructed
// once per invocation by the hinted adapter and never mutated after.
// TranscriptPath is empty for tools that only emit lifecycle payloads.
type HookEvent struct {
	SourceTool     string          `json:"sourceTool"`
	Kind           Kind            `json:"kind"`
	SessionID      string          `json:"sessionId"`
	TranscriptPath string          `json:"transcriptPath,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
	Raw            json.RawMessage `json:"-"`
}

var transcriptTools = map[string]struct{}{
	ToolClaude: {},
	ToolGemini: {},
	ToolKiro:   {},
	ToolCodex:  {},
}

// HasTranscript reports whether the tool hands its hooks a transcript
// file to rebuild turns from. Tools without one get coarse synthetic
// turns straight from the event.
func HasTranscript(tool string) bool {
	_, ok := transcriptTools[tool]
	return ok
}

// TriggersRead reports whether kind marks a point where the transcript
// can have newly completed turns. Other kinds from transcript tools are
// recognized but produce no work.
func TriggersRead(kind Kind) bool {
	switch kind {
	case KindStop, KindSubagentStop, KindSessionEnd:
		return true
	}
	return false
}
