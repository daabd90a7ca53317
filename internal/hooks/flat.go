package hooks

import (
	"fmt"
	"os"

	"hooktrace/internal/config"
)

// flatTool manages settings files whose hook arrays hold command
// entries directly, without matcher groups:
//
//	{"hooks": {"stop": [{"type": "command", "command": ...}]}}
//
// Cursor and Kiro share the shape with different entry fields; Copilot
// adds a version field and keys the command under "bash". matchKey
// names the entry field our command lives in, entry builds a fresh
// registration, seed fills in required top-level fields on first write.
type flatTool struct {
	name     string
	eventKey string
	matchKey string
	command  string
	entry    func(cmd string) map[string]any
	seed     func(doc map[string]any)
	// ownFile marks surfaces that exist only for us, removed outright
	// once the last registration goes.
	ownFile bool
	scopes  []config.Scope
	paths   map[config.Scope]string
}

func (t *flatTool) Name() string           { return t.name }
func (t *flatTool) Scopes() []config.Scope { return t.scopes }

func (t *flatTool) Enable(opts EnableOptions) (Change, error) {
	path, err := scopePath(t.paths, t.scopes, opts.Scope)
	if err != nil {
		return Change{}, err
	}
	ch := Change{Tool: t.name, Scope: string(scopeOrDefault(opts.Scope, t.scopes)), Path: path}
	doc, err := loadJSON(path)
	if err != nil {
		return ch, err
	}
	if t.seed != nil {
		t.seed(doc)
	}
	hooks, ok := hooksMap(doc)
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: hooks key is not an object", path)
	}
	entries, ok := anySlice(hooks[t.eventKey])
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: %s hooks are not a list", path, t.eventKey)
	}
	if t.findCommand(entries) {
		return ch, nil
	}
	hooks[t.eventKey] = append(entries, t.entry(t.command))
	if err := saveJSON(path, doc); err != nil {
		return ch, err
	}
	ch.Changed = true
	return ch, nil
}

func (t *flatTool) Disable(scope config.Scope) (Change, error) {
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
	entries, ok := anySlice(hooks[t.eventKey])
	if !ok {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s: %s hooks are not a list", path, t.eventKey)
	}
	kept := make([]any, 0, len(entries))
	removed := false
	for _, e := range entries {
		entry, isMap := e.(map[string]any)
		if isMap && entry[t.matchKey] == t.command {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
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
		if t.ownFile {
			if err := os.Remove(path); err != nil {
				return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
			}
			ch.Changed = true
			return ch, nil
		}
	}
	if err := saveJSON(path, doc); err != nil {
		return ch, err
	}
	ch.Changed = true
	return ch, nil
}

func (t *flatTool) Registered(scope config.Scope) (bool, string, error) {
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
	entries, ok := anySlice(hooks[t.eventKey])
	if !ok {
		return false, path, nil
	}
	return t.findCommand(entries), path, nil
}

func (t *flatTool) findCommand(entries []any) bool {
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if ok && entry[t.matchKey] == t.command {
			return true
		}
	}
	return false
}
