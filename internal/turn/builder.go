// Package turn folds transcript records into complete turns. A turn
// opens on a user record with real text and closes on the terminal
// assistant record of the reply; everything between belongs to it.
package turn

import (
	"strconv"

	"hooktrace/internal/transcript"
	"hooktrace/pkg/providerapi"
)

// BuiltTurn pairs a turn with the transcript offset just past its
// closing record, so the caller can persist partial progress.
type BuiltTurn struct {
	providerapi.Turn
	EndOffset int64
}

// Build folds records into turns. Turn numbers continue from
// lastTurnNum. The second return value is the consumed offset: it
// advances past records while no turn is open and jumps to the closing
// record on each close, so an unterminated trailing turn is never
// consumed and gets re-read whole on the next invocation. A user
// record with new text while a turn is still open closes the open turn
// as it stands; only the trailing open turn is withheld.
func Build(records []transcript.Record, sessionID string, lastTurnNum int, base int64) ([]BuiltTurn, int64) {
	consumed := base
	turnNum := lastTurnNum
	var turns []BuiltTurn
	var window []transcript.Record

	for _, rec := range records {
		if len(window) > 0 {
			if rec.HasUserText() {
				turnNum++
				end := window[len(window)-1].EndOffset
				turns = append(turns, makeTurn(sessionID, turnNum, window, end))
				consumed = end
				window = []transcript.Record{rec}
				continue
			}
			window = append(window, rec)
			if rec.Terminal() {
				turnNum++
				turns = append(turns, makeTurn(sessionID, turnNum, window, rec.EndOffset))
				consumed = rec.EndOffset
				window = nil
			}
			continue
		}

		if rec.HasUserText() {
			window = append(window, rec)
			continue
		}

		// Stray record outside any turn. Token counts reported just
		// after a close belong to the turn that closed; everything
		// else is structural and dropped.
		consumed = rec.EndOffset
		if rec.Kind == transcript.RecordLifecycle && len(turns) > 0 {
			applyTokens(turns[len(turns)-1].Segments, rec.InputTokens, rec.OutputTokens)
		}
	}
	return turns, consumed
}

func makeTurn(sessionID string, num int, window []transcript.Record, endOffset int64) BuiltTurn {
	t := providerapi.Turn{
		TurnNum:   num,
		SessionID: sessionID,
		StartedAt: window[0].Timestamp,
		EndedAt:   window[len(window)-1].Timestamp,
		Segments:  segmentsFor(dedupeAssistants(window)),
	}
	return BuiltTurn{Turn: t, EndOffset: endOffset}
}

// dedupeAssistants collapses re-sent assistant records sharing a
// message id: the latest content wins, at the first-seen position.
func dedupeAssistants(window []transcript.Record) []transcript.Record {
	seen := make(map[string]int)
	out := make([]transcript.Record, 0, len(window))
	for _, rec := range window {
		if rec.Kind == transcript.RecordAssistant && rec.MessageID != "" {
			if i, ok := seen[rec.MessageID]; ok {
				out[i] = rec
				continue
			}
			seen[rec.MessageID] = len(out)
		}
		out = append(out, rec)
	}
	return out
}

func segmentsFor(records []transcript.Record) []providerapi.Segment {
	var segs []providerapi.Segment
	var tokensIn, tokensOut int64
	for _, rec := range records {
		switch rec.Kind {
		case transcript.RecordUser:
			if rec.Text != "" {
				segs = append(segs, providerapi.Segment{Role: providerapi.RoleUser, Content: rec.Text})
			}
			segs = append(segs, resultSegments(rec.ToolResults)...)
		case transcript.RecordAssistant:
			if rec.Text != "" {
				segs = append(segs, assistantSegment(rec))
			}
			segs = append(segs, callSegments(rec.ToolCalls)...)
		case transcript.RecordToolCall:
			segs = append(segs, callSegments(rec.ToolCalls)...)
		case transcript.RecordToolResult:
			segs = append(segs, resultSegments(rec.ToolResults)...)
		case transcript.RecordLifecycle:
			tokensIn += rec.InputTokens
			tokensOut += rec.OutputTokens
		}
	}
	applyTokens(segs, tokensIn, tokensOut)
	return segs
}

func assistantSegment(rec transcript.Record) providerapi.Segment {
	meta := make(map[string]string)
	if rec.Model != "" {
		meta[providerapi.MetaModel] = rec.Model
	}
	if rec.StopReason != "" {
		meta[providerapi.MetaStopReason] = rec.StopReason
	}
	if rec.InputTokens > 0 {
		meta[providerapi.MetaInputTokens] = strconv.FormatInt(rec.InputTokens, 10)
	}
	if rec.OutputTokens > 0 {
		meta[providerapi.MetaOutputTokens] = strconv.FormatInt(rec.OutputTokens, 10)
	}
	if len(meta) == 0 {
		meta = nil
	}
	return providerapi.Segment{Role: providerapi.RoleAssistant, Content: rec.Text, Metadata: meta}
}

func callSegments(calls []transcript.ToolCall) []providerapi.Segment {
	var segs []providerapi.Segment
	for _, call := range calls {
		meta := map[string]string{providerapi.MetaToolName: call.Name}
		if call.ID != "" {
			meta[providerapi.MetaToolID] = call.ID
		}
		if call.Input != "" {
			meta[providerapi.MetaToolInput] = call.Input
		}
		segs = append(segs, providerapi.Segment{Role: providerapi.RoleToolUse, Content: call.Input, Metadata: meta})
	}
	return segs
}

func resultSegments(results []transcript.ToolResult) []providerapi.Segment {
	var segs []providerapi.Segment
	for _, res := range results {
		var meta map[string]string
		if res.ID != "" {
			meta = map[string]string{providerapi.MetaToolID: res.ID}
		}
		segs = append(segs, providerapi.Segment{Role: providerapi.RoleToolResult, Content: res.Content, Metadata: meta})
	}
	return segs
}

// applyTokens fills token metadata on the last assistant segment when
// the counts arrived as separate lifecycle records instead of riding
// the assistant record itself. Counts already present win.
func applyTokens(segs []providerapi.Segment, in, out int64) {
	if in <= 0 && out <= 0 {
		return
	}
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].Role != providerapi.RoleAssistant {
			continue
		}
		if segs[i].Metadata == nil {
			segs[i].Metadata = make(map[string]string)
		}
		if _, ok := segs[i].Metadata[providerapi.MetaInputTokens]; !ok && in > 0 {
			segs[i].Metadata[providerapi.MetaInputTokens] = strconv.FormatInt(in, 10)
		}
		if _, ok := segs[i].Metadata[providerapi.MetaOutputTokens]; !ok && out > 0 {
			segs[i].Metadata[providerapi.MetaOutputTokens] = strconv.FormatInt(out, 10)
		}
		return
	}
}
