package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"hooktrace/pkg/providerapi"
)

// TurnPayload is the provider-neutral view of a turn: the pieces every
// backend renders, extracted from segments once.
type TurnPayload struct {
	UserText      string
	AssistantText string
	Model         string
	InputTokens   int64
	OutputTokens  int64
	ToolCalls     []ToolCallView
	EventMeta     map[string]string
}

// ToolCallView pairs a tool invocation with its result, joined by id.
type ToolCallView struct {
	ID     string
	Name   string
	Input  string
	Result string
}

// ShapeTurn extracts the payload from a turn's segments. The prompt is
// the first user segment; the reply is the last assistant segment; the
// model comes from the first assistant segment that names one. For
// coarse turns only EventMeta is populated.
func ShapeTurn(turn providerapi.Turn) TurnPayload {
	var p TurnPayload
	calls := make(map[string]int)

	for _, seg := range turn.Segments {
		switch seg.Role {
		case providerapi.RoleUser:
			if p.UserText == "" {
				p.UserText = seg.Content
			}
		case providerapi.RoleAssistant:
			p.AssistantText = seg.Content
			if p.Model == "" {
				p.Model = seg.Metadata[providerapi.MetaModel]
			}
			if v := seg.Metadata[providerapi.MetaInputTokens]; v != "" {
				p.InputTokens, _ = strconv.ParseInt(v, 10, 64)
			}
			if v := seg.Metadata[providerapi.MetaOutputTokens]; v != "" {
				p.OutputTokens, _ = strconv.ParseInt(v, 10, 64)
			}
		case providerapi.RoleToolUse:
			view := ToolCallView{
				ID:    seg.Metadata[providerapi.MetaToolID],
				Name:  seg.Metadata[providerapi.MetaToolName],
				Input: seg.Content,
			}
			if view.ID != "" {
				calls[view.ID] = len(p.ToolCalls)
			}
			p.ToolCalls = append(p.ToolCalls, view)
		case providerapi.RoleToolResult:
			id := seg.Metadata[providerapi.MetaToolID]
			if i, ok := calls[id]; ok {
				p.ToolCalls[i].Result = seg.Content
				continue
			}
			// Result without a matching call in this turn; keep it.
			p.ToolCalls = append(p.ToolCalls, ToolCallView{ID: id, Result: seg.Content})
		case providerapi.RoleLifecycle:
			if p.EventMeta == nil {
				p.EventMeta = make(map[string]string)
			}
			for k, v := range seg.Metadata {
				p.EventMeta[k] = v
			}
		}
	}
	return p
}

// Truncation describes what Truncate removed, so the export still
// carries enough to identify the full text.
type Truncation struct {
	Truncated bool
	OrigLen   int
	KeptLen   int
	SHA256    string
}

// Truncate caps s at max characters. The digest always covers the
// complete original text. max <= 0 disables the cap.
func Truncate(s string, max int) (string, Truncation) {
	runes := []rune(s)
	note := Truncation{OrigLen: len(runes), KeptLen: len(runes)}
	if max <= 0 || len(runes) <= max {
		return s, note
	}
	sum := sha256.Sum256([]byte(s))
	note.Truncated = true
	note.KeptLen = max
	note.SHA256 = hex.EncodeToString(sum[:])
	return string(runes[:max]), note
}

// vendorFor maps a source tool to the model vendor it fronts, for the
// gen_ai.system attribute. Tools without a fixed vendor report
// themselves.
func vendorFor(tool string) string {
	switch tool {
	case "claude":
		return "anthropic"
	case "gemini":
		return "google"
	case "codex", "opencode":
		return "openai"
	}
	return tool
}
