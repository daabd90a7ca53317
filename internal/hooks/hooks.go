// Package hooks installs and removes hooktrace's hook registrations in
// each host tool's own settings surface. Every tool writes somewhere
// different: grouped JSON hook arrays, flat JSON hook arrays, shell
// scripts, a JS plugin, or a TOML exporter section. The one shared rule
// is that foreign content in those files is never touched.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hooktrace/internal/config"
	"hooktrace/internal/event"
	"hooktrace/internal/fsutil"
)

// Tool is one host tool's registration surface.
type Tool interface {
	Name() string
	Scopes() []config.Scope
	Enable(opts EnableOptions) (Change, error)
	Disable(scope config.Scope) (Change, error)
	// Registered reports whether the hook is installed at the scope,
	// and the settings path it checked.
	Registered(scope config.Scope) (bool, string, error)
}

// EnableOptions parameterize an install. Provider matters only to
// tools that export natively instead of running a hook command.
type EnableOptions struct {
	Scope    config.Scope
	Provider string
}

// Change reports what Enable or Disable did to a settings surface.
type Change struct {
	Tool    string `json:"tool"`
	Scope   string `json:"scope"`
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
}

// Runtime holds every supported tool, whatever the config says: enable
// has to reach tools that are not configured yet.
type Runtime struct {
	tools map[string]Tool
}

func NewRuntime(cfg config.Config) (*Runtime, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("HKS_HOME: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("HKS_CWD: %w", err)
	}
	return newRuntime(cfg, home, cwd), nil
}

// newRuntime builds the tool set against explicit roots so tests can
// point it at temp dirs.
func newRuntime(cfg config.Config, home, cwd string) *Runtime {
	tools := []Tool{
		&groupedTool{
			name:     event.ToolClaude,
			eventKey: "Stop",
			command:  hookCommand(event.ToolClaude),
			async:    true,
			scopes:   []config.Scope{config.ScopeGlobal, config.ScopeProject, config.ScopeLocal},
			paths: map[config.Scope]string{
				config.ScopeGlobal:  filepath.Join(home, ".claude", "settings.json"),
				config.ScopeProject: filepath.Join(cwd, ".claude", "settings.json"),
				config.ScopeLocal:   filepath.Join(cwd, ".claude", "settings.local.json"),
			},
		},
		&groupedTool{
			name:     event.ToolGemini,
			eventKey: "SessionEnd",
			command:  hookCommand(event.ToolGemini),
			scopes:   []config.Scope{config.ScopeGlobal, config.ScopeProject},
			paths: map[config.Scope]string{
				config.ScopeGlobal:  filepath.Join(home, ".gemini", "settings.json"),
				config.ScopeProject: filepath.Join(cwd, ".gemini", "settings.json"),
			},
		},
		&flatTool{
			name:     event.ToolCursor,
			eventKey: "stop",
			matchKey: "command",
			command:  hookCommand(event.ToolCursor),
			entry: func(cmd string) map[string]any {
				return map[string]any{"type": "command", "command": cmd}
			},
			scopes: []config.Scope{config.ScopeGlobal, config.ScopeProject},
			paths: map[config.Scope]string{
				config.ScopeGlobal:  filepath.Join(home, ".cursor", "hooks.json"),
				config.ScopeProject: filepath.Join(cwd, ".cursor", "hooks.json"),
			},
		},
		&flatTool{
			name:     event.ToolKiro,
			eventKey: "stop",
			matchKey: "command",
			command:  hookCommand(event.ToolKiro),
			entry: func(cmd string) map[string]any {
				return map[string]any{"command": cmd}
			},
			scopes: []config.Scope{config.ScopeGlobal, config.ScopeProject},
			paths: map[config.Scope]string{
				config.ScopeGlobal:  filepath.Join(home, ".kiro", "agents", "default.json"),
				config.ScopeProject: filepath.Join(cwd, ".kiro", "agents", "default.json"),
			},
		},
		&flatTool{
			name:     event.ToolCopilot,
			eventKey: "sessionEnd",
			matchKey: "bash",
			command:  hookCommand(event.ToolCopilot),
			entry: func(cmd string) map[string]any {
				return map[string]any{"type": "command", "bash": cmd, "comment": fsutil.ManagedMarker}
			},
			seed: func(doc map[string]any) {
				if _, ok := doc["version"]; !ok {
					doc["version"] = 1
				}
			},
			ownFile: true,
			scopes:  []config.Scope{config.ScopeProject},
			paths: map[config.Scope]string{
				config.ScopeProject: filepath.Join(cwd, ".github", "hooks", "hooktrace.json"),
			},
		},
		&scriptTool{
			name:    event.ToolCline,
			command: hookCommand(event.ToolCline),
			scopes:  []config.Scope{config.ScopeProject},
			paths: map[config.Scope]string{
				config.ScopeProject: filepath.Join(cwd, ".clinerules", "hooks", "TaskComplete"),
			},
		},
		&pluginTool{
			name:   event.ToolOpencode,
			script: opencodePlugin,
			scopes: []config.Scope{config.ScopeGlobal, config.ScopeProject},
			paths: map[config.Scope]string{
				config.ScopeGlobal:  filepath.Join(home, ".config", "opencode", "plugins", "hooktrace.js"),
				config.ScopeProject: filepath.Join(cwd, ".opencode", "plugins", "hooktrace.js"),
			},
		},
		&codexTool{
			cfg:             cfg,
			defaultProvider: cfg.Pipeline.Provider,
			path:            filepath.Join(home, ".codex", "config.toml"),
		},
	}
	r := &Runtime{tools: map[string]Tool{}}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

func (r *Runtime) Get(name string) (Tool, error) {
	t, ok := r.tools[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("HKS_NOT_SUPPORTED: tool %q has no hook surface", name)
	}
	return t, nil
}

// Names lists the supported tool identifiers, sorted.
func (r *Runtime) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// hookCommand is what each tool's surface invokes. The --tool flag is
// the out-of-band source hint; payload shape alone cannot identify the
// sender.
func hookCommand(tool string) string {
	return "hooktrace hook --tool " + tool
}

func scopePath(paths map[config.Scope]string, scopes []config.Scope, scope config.Scope) (string, error) {
	if scope == "" && len(scopes) > 0 {
		scope = scopes[0]
	}
	p, ok := paths[scope]
	if !ok {
		return "", fmt.Errorf("HKS_SCOPE: scope %q is not supported for this tool", scope)
	}
	return p, nil
}
