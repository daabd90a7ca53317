package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/pelletier/go-toml/v2"

	"hooktrace/internal/config"
	"hooktrace/internal/event"
	"hooktrace/internal/fsutil"
	"hooktrace/internal/provider"
)

// codexTool is the odd one out: codex runs no hook commands at all.
// Enable writes an [otel] section into ~/.codex/config.toml so codex
// exports its own spans straight to the backend, and disable removes
// it. Foreign keys in the config survive the round trip; comments do
// not, which matches how codex itself rewrites the file.
type codexTool struct {
	cfg             config.Config
	defaultProvider string
	path            string
}

func (t *codexTool) Name() string           { return event.ToolCodex }
func (t *codexTool) Scopes() []config.Scope { return []config.Scope{config.ScopeGlobal} }

func (t *codexTool) Enable(opts EnableOptions) (Change, error) {
	ch := Change{Tool: event.ToolCodex, Scope: string(config.ScopeGlobal), Path: t.path}
	if opts.Scope != "" && opts.Scope != config.ScopeGlobal {
		return ch, fmt.Errorf("HKS_SCOPE: codex config is global only")
	}
	name := opts.Provider
	if name == "" {
		name = t.defaultProvider
	}
	endpoint, headers, err := provider.NativeOTLP(name, t.cfg)
	if err != nil {
		return ch, err
	}
	otel := map[string]any{
		"exporter": "otlp-http",
		"endpoint": endpoint,
	}
	if headers != "" {
		otel["headers"] = headers
	}
	doc, err := t.load()
	if err != nil {
		return ch, err
	}
	if reflect.DeepEqual(doc["otel"], otel) {
		return ch, nil
	}
	doc["otel"] = otel
	if err := t.save(doc); err != nil {
		return ch, err
	}
	ch.Changed = true
	return ch, nil
}

func (t *codexTool) Disable(scope config.Scope) (Change, error) {
	ch := Change{Tool: event.ToolCodex, Scope: string(config.ScopeGlobal), Path: t.path}
	if scope != "" && scope != config.ScopeGlobal {
		return ch, fmt.Errorf("HKS_SCOPE: codex config is global only")
	}
	if !fileExists(t.path) {
		return ch, nil
	}
	doc, err := t.load()
	if err != nil {
		return ch, err
	}
	if _, ok := doc["otel"]; !ok {
		return ch, nil
	}
	delete(doc, "otel")
	if err := t.save(doc); err != nil {
		return ch, err
	}
	ch.Changed = true
	return ch, nil
}

func (t *codexTool) Registered(scope config.Scope) (bool, string, error) {
	if scope != "" && scope != config.ScopeGlobal {
		return false, "", fmt.Errorf("HKS_SCOPE: codex config is global only")
	}
	if !fileExists(t.path) {
		return false, t.path, nil
	}
	doc, err := t.load()
	if err != nil {
		return false, t.path, err
	}
	_, ok := doc["otel"]
	return ok, t.path, nil
}

func (t *codexTool) load() (map[string]any, error) {
	blob, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("HKS_READ: %s: %w", t.path, err)
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("HKS_PARSE: %s: %w", t.path, err)
	}
	return doc, nil
}

func (t *codexTool) save(doc map[string]any) error {
	blob, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("HKS_ENCODE: %s: %w", t.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("HKS_WRITE: %s: %w", t.path, err)
	}
	if err := fsutil.AtomicWrite(t.path, blob, 0o644); err != nil {
		return fmt.Errorf("HKS_WRITE: %s: %w", t.path, err)
	}
	return nil
}
