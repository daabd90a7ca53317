package providerapi

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider receives built turns for one invocation. EmitTurn is called
// in increasing turn number order; Flush drains anything buffered;
// Shutdown releases resources and is safe to call more than once.
type Provider interface {
	EmitTurn(ctx context.Context, req EmitRequest) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Segment roles.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolUse    = "tool_use"
	RoleToolResult = "tool_result"
	RoleLifecycle  = "lifecycle"
)

// Segment metadata keys written by the turn builder.
const (
	MetaModel        = "model"
	MetaStopReason   = "stop_reason"
	MetaInputTokens  = "tokens.input"
	MetaOutputTokens = "tokens.output"
	MetaToolID       = "tool.id"
	MetaToolName     = "tool.name"
	MetaToolInput    = "tool.input"
	MetaEventKind    = "event.kind"
)

type Segment struct {
	Role     string            `json:"role"`
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Turn struct {
	TurnNum   int       `json:"turnNum"`
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Segments  []Segment `json:"segments"`
}

type EmitRequest struct {
	Turn           Turn   `json:"turn"`
	SourceTool     string `json:"sourceTool"`
	TranscriptPath string `json:"transcriptPath,omitempty"`
	InvocationID   string `json:"invocationId"`
}

// Error wraps a provider failure. The pipeline logs these and keeps
// going; they never fail the hook invocation.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("PRV_%s: %s: %v", strings.ToUpper(e.Op), e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
