package event

import (
	"fmt"
	"sort"
	"strings"
)

// Adapter translates one tool's raw hook payload into a HookEvent.
// Implementations are pure: field renames, enum mapping, timestamp
// parsing. No I/O.
type Adapter interface {
	Tool() string
	Normalize(raw []byte) (HookEvent, error)
}

// AdapterError reports a payload no registered schema accepts, or a
// hint naming no registered tool. The invocation aborts without state
// changes when it surfaces.
type AdapterError struct {
	Tool   string
	Reason string
}

func (e *AdapterError) Error() string {
	if e.Tool == "" {
		return "ADP_UNKNOWN_TOOL: " + e.Reason
	}
	return fmt.Sprintf("ADP_PAYLOAD: %s: %s", e.Tool, e.Reason)
}

// Registry maps tool identifiers to their adapters. Built once at
// process start and passed by reference into the pipeline; never
// mutated afterwards.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry constructs the full adapter set. Every externally
// observable event kind of every supported tool has a mapping here;
// coarse tools register all their lifecycle kinds, not only the
// terminal one.
func NewRegistry() *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	for _, a := range []Adapter{
		claudeShapedAdapter{tool: ToolClaude},
		claudeShapedAdapter{tool: ToolGemini},
		claudeShapedAdapter{tool: ToolKiro},
		codexAdapter{},
		cursorAdapter{},
		clineAdapter{},
		copilotAdapter{},
		opencodeAdapter{},
	} {
		r.adapters[a.Tool()] = a
	}
	return r
}

// Normalize dispatches raw to the adapter named by hint. The hint is
// authoritative; no payload sniffing happens when one is present.
func (r *Registry) Normalize(hint string, raw []byte) (HookEvent, error) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(hint))]
	if !ok {
		return HookEvent{}, &AdapterError{Reason: fmt.Sprintf("no adapter registered for tool %q", hint)}
	}
	return a.Normalize(raw)
}

// Tools lists the registered tool identifiers, sorted.
func (r *Registry) Tools() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
