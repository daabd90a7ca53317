package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"hooktrace/internal/fsutil"
)

// loadJSON reads a settings file into a generic document. A missing
// file is an empty document, not an error: every tool treats absent
// settings as "nothing registered".
func loadJSON(path string) (map[string]any, error) {
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("HKS_READ: %s: %w", path, err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("HKS_PARSE: %s: %w", path, err)
	}
	return doc, nil
}

func saveJSON(path string, doc map[string]any) error {
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("HKS_ENCODE: %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	if err := fsutil.AtomicWrite(path, append(blob, '\n'), 0o644); err != nil {
		return fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	return nil
}

// hooksMap returns doc["hooks"] as a mutable map, creating it when
// absent. Returns ok=false when the key holds something that is not an
// object, which means the file belongs to someone else's schema.
func hooksMap(doc map[string]any) (map[string]any, bool) {
	raw, present := doc["hooks"]
	if !present {
		m := map[string]any{}
		doc["hooks"] = m
		return m, true
	}
	m, ok := raw.(map[string]any)
	return m, ok
}

func anySlice(v any) ([]any, bool) {
	if v == nil {
		return nil, true
	}
	s, ok := v.([]any)
	return s, ok
}
