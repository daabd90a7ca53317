package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

// claudeLine represents a single line in a Claude Code style JSONL
// transcript. Gemini and Kiro write the same shape.
type claudeLine struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

type claudeMessage struct {
	ID         string          `json:"id"`
	Role       string          `json:"role"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Content    json.RawMessage `json:"content"`
	Usage      claudeUsage     `json:"usage"`
}

type claudeUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

// decodeClaudeLine turns one transcript line into a Record. Structural
// lines (summary, system, file-history-snapshot) and lines that do not
// parse yield no record.
func decodeClaudeLine(data []byte) (Record, bool) {
	var entry claudeLine
	if json.Unmarshal(data, &entry) != nil {
		return Record{}, false
	}
	if entry.Type != "user" && entry.Type != "assistant" {
		return Record{}, false
	}

	var msg claudeMessage
	if json.Unmarshal(entry.Message, &msg) != nil {
		return Record{}, false
	}

	rec := Record{Timestamp: parseTimestamp(entry.Timestamp)}
	switch entry.Type {
	case "user":
		rec.Kind = RecordUser
		text, _, results := splitContent(msg.Content)
		rec.Text = text
		rec.ToolResults = results
	case "assistant":
		rec.Kind = RecordAssistant
		rec.MessageID = msg.ID
		rec.Model = msg.Model
		rec.StopReason = msg.StopReason
		rec.InputTokens = msg.Usage.InputTokens
		rec.OutputTokens = msg.Usage.OutputTokens
		text, calls, _ := splitContent(msg.Content)
		rec.Text = text
		rec.ToolCalls = calls
	}
	return rec, true
}

// splitContent unpacks a message content field, which is either a bare
// string or an array of typed blocks, into the pieces a Record carries.
func splitContent(raw json.RawMessage) (string, []ToolCall, []ToolResult) {
	if len(raw) == 0 {
		return "", nil, nil
	}

	var plain string
	if json.Unmarshal(raw, &plain) == nil {
		return plain, nil, nil
	}

	var blocks []claudeContentBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return "", nil, nil
	}

	var (
		texts   []string
		calls   []ToolCall
		results []ToolResult
	)
	for _, block := range blocks {
		switch block.Type {
		case "text":
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case "tool_use":
			calls = append(calls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: string(block.Input),
			})
		case "tool_result":
			results = append(results, ToolResult{
				ID:      block.ToolUseID,
				Content: blockContentText(block.Content),
			})
		}
	}
	return strings.Join(texts, "\n"), calls, results
}

// blockContentText flattens a tool_result content field, itself either
// a string or nested text blocks, into plain text.
func blockContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if json.Unmarshal(raw, &plain) == nil {
		return plain
	}
	var blocks []claudeContentBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return ""
	}
	var texts []string
	for _, block := range blocks {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.000Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
