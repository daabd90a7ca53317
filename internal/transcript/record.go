package transcript

import "time"

// RecordKind tags what one decoded transcript line represents.
type RecordKind string

const (
	RecordUser       RecordKind = "user"
	RecordAssistant  RecordKind = "assistant"
	RecordToolCall   RecordKind = "tool_call"
	RecordToolResult RecordKind = "tool_result"
	RecordLifecycle  RecordKind = "lifecycle"
)

// ToolCall is one tool invocation decoded out of a record.
type ToolCall struct {
	ID    string
	Name  string
	Input string
}

// ToolResult is the output of a tool invocation, matched to its call
// by ID.
type ToolResult struct {
	ID      string
	Content string
}

// Record is one decoded transcript line. Records are derived fresh on
// every invocation and never persisted; EndOffset is the byte position
// just past the line's terminating newline, which is how far a cursor
// may advance once everything up to and including this record has been
// folded into closed turns.
type Record struct {
	Kind         RecordKind
	Text         string
	Model        string
	MessageID    string
	StopReason   string
	ToolCalls    []ToolCall
	ToolResults  []ToolResult
	InputTokens  int64
	OutputTokens int64
	Timestamp    time.Time
	EndOffset    int64
}

// HasUserText reports whether the record is a user message carrying
// real prompt text, as opposed to a bare tool_result carrier line that
// also arrives under the user role.
func (r Record) HasUserText() bool {
	return r.Kind == RecordUser && r.Text != ""
}

// Terminal reports whether an assistant record closes its turn: the
// model finished with any stop reason other than pausing for a tool.
func (r Record) Terminal() bool {
	return r.Kind == RecordAssistant && r.StopReason != "" && r.StopReason != "tool_use"
}
