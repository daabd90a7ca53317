package turn

import (
	"encoding/json"
	"strconv"

	"hooktrace/internal/event"
	"hooktrace/pkg/providerapi"
)

// Coarse synthesizes a single-segment turn from one hook event, for
// tools that expose no transcript. The segment carries the event kind
// plus every scalar field of the raw payload, so the provider sees
// whatever the tool chose to report.
func Coarse(ev event.HookEvent, turnNum int) providerapi.Turn {
	meta := liftScalars(ev.Raw)
	if meta == nil {
		meta = make(map[string]string)
	}
	meta[providerapi.MetaEventKind] = string(ev.Kind)

	return providerapi.Turn{
		TurnNum:   turnNum,
		SessionID: ev.SessionID,
		StartedAt: ev.OccurredAt,
		EndedAt:   ev.OccurredAt,
		Segments: []providerapi.Segment{
			{Role: providerapi.RoleLifecycle, Metadata: meta},
		},
	}
}

// liftScalars flattens the top-level scalar fields of a JSON payload
// into strings. Nested objects and arrays are left behind.
func liftScalars(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]any
	if json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	out := make(map[string]string)
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if val != "" {
				out[k] = val
			}
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
