package transcript

import "encoding/json"

// codexLine represents a single record in a Codex CLI rollout file.
// Every line wraps a typed payload.
type codexLine struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexEventMsg struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	Message      string `json:"message"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

type codexResponseItem struct {
	Type      string          `json:"type"`
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments string          `json:"arguments"`
	Input     string          `json:"input"`
	Output    json.RawMessage `json:"output"`
}

// decodeCodexLine turns one rollout record into a Record. Prompt and
// reply text is taken from event_msg records only; the response_item
// message records duplicate that stream and are dropped so each
// exchange counts once. Tool activity exists only as response_item
// records, so those are kept.
func decodeCodexLine(data []byte) (Record, bool) {
	var entry codexLine
	if json.Unmarshal(data, &entry) != nil {
		return Record{}, false
	}

	switch entry.Type {
	case "event_msg":
		return decodeCodexEventMsg(entry)
	case "response_item":
		return decodeCodexResponseItem(entry)
	case "session_meta":
		return Record{Kind: RecordLifecycle, Timestamp: parseTimestamp(entry.Timestamp)}, true
	}
	return Record{}, false
}

func decodeCodexEventMsg(entry codexLine) (Record, bool) {
	var payload codexEventMsg
	if json.Unmarshal(entry.Payload, &payload) != nil {
		return Record{}, false
	}

	text := payload.Content
	if text == "" {
		text = payload.Message
	}

	rec := Record{Timestamp: parseTimestamp(entry.Timestamp)}
	switch payload.Type {
	case "user_message":
		rec.Kind = RecordUser
		rec.Text = text
	case "agent_message":
		rec.Kind = RecordAssistant
		rec.Text = text
		// Rollouts carry no stop_reason; a completed agent_message is
		// the end of the reply.
		rec.StopReason = "stop"
	case "token_count":
		rec.Kind = RecordLifecycle
		rec.InputTokens = payload.InputTokens
		rec.OutputTokens = payload.OutputTokens
	default:
		return Record{}, false
	}
	return rec, true
}

func decodeCodexResponseItem(entry codexLine) (Record, bool) {
	var payload codexResponseItem
	if json.Unmarshal(entry.Payload, &payload) != nil {
		return Record{}, false
	}

	rec := Record{Timestamp: parseTimestamp(entry.Timestamp)}
	switch payload.Type {
	case "function_call", "custom_tool_call":
		input := payload.Arguments
		if input == "" {
			input = payload.Input
		}
		rec.Kind = RecordToolCall
		rec.ToolCalls = []ToolCall{{ID: payload.CallID, Name: payload.Name, Input: input}}
	case "function_call_output", "custom_tool_call_output":
		rec.Kind = RecordToolResult
		rec.ToolResults = []ToolResult{{ID: payload.CallID, Content: codexOutputText(payload.Output)}}
	default:
		return Record{}, false
	}
	return rec, true
}

// codexOutputText flattens a tool output, either a bare string or an
// object with a content field, into plain text.
func codexOutputText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if json.Unmarshal(raw, &plain) == nil {
		return plain
	}
	var wrapped struct {
		Content string `json:"content"`
	}
	if json.Unmarshal(raw, &wrapped) == nil {
		return wrapped.Content
	}
	return string(raw)
}
