package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hooktrace/internal/config"
	"hooktrace/internal/fsutil"
)

// scriptTool manages executable hook scripts, the Cline surface: the
// host runs .clinerules/hooks/<Event> as a program when the event
// fires. Our lines carry the shell marker so a script the user wrote
// first keeps everything that is not ours.
type scriptTool struct {
	name    string
	command string
	scopes  []config.Scope
	paths   map[config.Scope]string
}

func (t *scriptTool) Name() string           { return t.name }
func (t *scriptTool) Scopes() []config.Scope { return t.scopes }

func (t *scriptTool) Enable(opts EnableOptions) (Change, error) {
	path, err := scopePath(t.paths, t.scopes, opts.Scope)
	if err != nil {
		return Change{}, err
	}
	ch := Change{Tool: t.name, Scope: string(scopeOrDefault(opts.Scope, t.scopes)), Path: path}
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		script := "#!/bin/sh\n" + fsutil.ManagedMarkerShell + "\n" + t.command + "\n"
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
		}
		if err := fsutil.AtomicWrite(path, []byte(script), 0o755); err != nil {
			return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
		}
		ch.Changed = true
		return ch, nil
	}
	if err != nil {
		return ch, fmt.Errorf("HKS_READ: %s: %w", path, err)
	}
	if containsLine(string(blob), t.command) {
		return ch, nil
	}
	// Foreign script: append our lines, leaving the rest alone.
	text := string(blob)
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	text += fsutil.ManagedMarkerShell + "\n" + t.command + "\n"
	if err := fsutil.AtomicWrite(path, []byte(text), 0o755); err != nil {
		return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	ch.Changed = true
	return ch, nil
}

func (t *scriptTool) Disable(scope config.Scope) (Change, error) {
	path, err := scopePath(t.paths, t.scopes, scope)
	if err != nil {
		return Change{}, err
	}
	ch := Change{Tool: t.name, Scope: string(scopeOrDefault(scope, t.scopes)), Path: path}
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ch, nil
	}
	if err != nil {
		return ch, fmt.Errorf("HKS_READ: %s: %w", path, err)
	}
	lines := strings.Split(string(blob), "\n")
	kept := make([]string, 0, len(lines))
	removed := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == t.command || trimmed == fsutil.ManagedMarkerShell {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return ch, nil
	}
	if scriptIsEmpty(kept) {
		if err := os.Remove(path); err != nil {
			return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
		}
		ch.Changed = true
		return ch, nil
	}
	if err := fsutil.AtomicWrite(path, []byte(strings.Join(kept, "\n")), 0o755); err != nil {
		return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	ch.Changed = true
	return ch, nil
}

func (t *scriptTool) Registered(scope config.Scope) (bool, string, error) {
	path, err := scopePath(t.paths, t.scopes, scope)
	if err != nil {
		return false, "", err
	}
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, path, nil
	}
	if err != nil {
		return false, path, fmt.Errorf("HKS_READ: %s: %w", path, err)
	}
	return containsLine(string(blob), t.command), path, nil
}

func containsLine(text, want string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}

// scriptIsEmpty reports whether only a shebang and blank lines remain,
// meaning the script no longer does anything.
func scriptIsEmpty(lines []string) bool {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(trimmed, "#!") {
			continue
		}
		return false
	}
	return true
}
