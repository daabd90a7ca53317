package hooks

import (
	"fmt"
	"os"

	"hooktrace/internal/config"
)

// groupedTool manages settings files whose hook arrays hold matcher
// groups with nested hook lists, the Claude Code settings.json shape:
//
//	{"hooks": {"Stop": [{"hooks": [{"type": "command", "command": ...}]}]}}
//
// Gemini uses the same nesting under its own event names. Only entries
// carrying our exact command are ever touched.
type groupedTool struct {
	name     string
	eventKey string
	command  string
	async    bool
	scopes   []config.Scope
	paths    map[config.Scope]string
}

func (t *groupedTool) Name() string           { return t.name }
func (t *groupedTool) Scopes() []config.Scope { return t.scopes }

func (t *groupedTool) Enable(opts EnableOptions) (Change, error) {
	path, err := scopePath(t.paths, t.scopes, opts.Scope)
	if err != nil {
		return Change{}, err
	}
	ch := Change{Tool: t.name, Scope: string(scopeOrDefault(opts.Scope, t.scopes)), Path: path}
	doc, err := loadJSON(path)
	if err != nil {
		return ch, err
	}
	hooks, ok := hooksMap(doc)
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: hooks key is not an object", path)
	}
	groups, ok := anySlice(hooks[t.eventKey])
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: %s hooks are not a list", path, t.eventKey)
	}
	if t.findCommand(groups) {
		return ch, nil
	}
	entry := map[string]any{"type": "command", "command": t.command}
	if t.async {
		entry["async"] = true
	}
	hooks[t.eventKey] = append(groups, map[string]any{"hooks": []any{entry}})
	if err := saveJSON(path, doc); err != nil {
		return ch, err
	}
	ch.Changed = true
	return ch, nil
}

func (t *groupedTool) Disable(scope config.Scope) (Change, error) {
	path, err := scopePath(t.paths, t.scopes, scope)
	if err != nil {
		return Change{}, err
	}
	ch := Change{Tool: t.name, Scope: string(scopeOrDefault(scope, t.scopes)), Path: path}
	if !fileExists(path) {
		return ch, nil
	}
	doc, err := loadJSON(path)
	if err != nil {
		return ch, err
	}
	hooks, ok := hooksMap(doc)
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: hooks key is not an object", path)
	}
	groups, ok := anySlice(hooks[t.eventKey])
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: %s hooks are not a list", path, t.eventKey)
	}
	kept, removed := t.stripCommand(groups)
	if !removed {
		return ch, nil
	}
	if len(kept) == 0 {
		delete(hooks, t.eventKey)
	} else {
		hooks[t.eventKey] = kept
	}
	if len(hooks) == 0 {
		delete(doc, "hooks")
	}
	if err := saveJSON(path, doc); err != nil {
		return ch, err
	}
	ch.Changed = true
	return ch, nil
}

func (t *groupedTool) Registered(scope config.Scope) (bool, string, error) {
	path, err := scopePath(t.paths, t.scopes, scope)
	if err != nil {
		return false, "", err
	}
	if !fileExists(path) {
		return false, path, nil
	}
	doc, err := loadJSON(path)
	if err != nil {
		return false, path, err
	}
	hooks, ok := doc["hooks"].(map[string]any)
	if !ok {
		return false, path, nil
	}
	groups, ok := anySlice(hooks[t.eventKey])
	if !ok {
		return false, path, nil
	}
	return t.findCommand(groups), path, nil
}

func (t *groupedTool) findCommand(groups []any) bool {
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		inner, _ := anySlice(group["hooks"])
		for _, h := range inner {
			hook, ok := h.(map[string]any)
			if ok && hook["command"] == t.command {
				return true
			}
		}
	}
	return false
}

// stripCommand drops our hook entries from every group. A group that
// held nothing but our entries is dropped entirely; groups with foreign
// keys (matchers, other hooks) survive with our entries filtered out.
func (t *groupedTool) stripCommand(groups []any) ([]any, bool) {
	kept := make([]any, 0, len(groups))
	removed := false
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			kept = append(kept, g)
			continue
		}
		inner, ok := anySlice(group["hooks"])
		if !ok {
			kept = append(kept, g)
			continue
		}
		filtered := make([]any, 0, len(inner))
		for _, h := range inner {
			hook, isMap := h.(map[string]any)
			if isMap && hook["command"] == t.command {
				removed = true
				continue
			}
			filtered = append(filtered, h)
		}
		if len(filtered) == 0 && onlyHooksKey(group) {
			continue
		}
		group["hooks"] = filtered
		kept = append(kept, group)
	}
	return kept, removed
}

func onlyHooksKey(group map[string]any) bool {
	for k := range group {
		if k != "hooks" {
			return false
		}
	}
	return true
}

func scopeOrDefault(scope config.Scope, scopes []config.Scope) config.Scope {
	if scope == "" && len(scopes) > 0 {
		return scopes[0]
	}
	return scope
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
