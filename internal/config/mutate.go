package config

import (
	"fmt"
	"strings"
)

func FindTool(cfg Config, name string) (ToolConfig, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range cfg.Tools {
		if strings.ToLower(t.Name) == name {
			return t, true
		}
	}
	return ToolConfig{}, false
}

// EnableTool records a hook registration for a tool, adding the entry if
// missing. Returns true when the config was changed.
func EnableTool(cfg *Config, name, scope, provider string) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("CFG_TOOL: nil config")
	}
	if strings.TrimSpace(name) == "" {
		return false, fmt.Errorf("CFG_TOOL: empty tool name")
	}
	if scope == "" {
		scope = string(ScopeGlobal)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range cfg.Tools {
		if strings.ToLower(cfg.Tools[i].Name) != name {
			continue
		}
		changed := false
		if !cfg.Tools[i].Enabled {
			cfg.Tools[i].Enabled = true
			changed = true
		}
		if cfg.Tools[i].Scope != scope {
			cfg.Tools[i].Scope = scope
			changed = true
		}
		if provider != "" && cfg.Tools[i].Provider != provider {
			cfg.Tools[i].Provider = provider
			changed = true
		}
		if !changed {
			return false, nil
		}
		*cfg = Normalize(*cfg)
		return true, Validate(*cfg)
	}
	cfg.Tools = append(cfg.Tools, ToolConfig{Name: name, Enabled: true, Scope: scope, Provider: provider})
	*cfg = Normalize(*cfg)
	return true, Validate(*cfg)
}

// DisableTool marks a tool's registration disabled. The entry is kept so
// status still shows where the hook used to live.
func DisableTool(cfg *Config, name string) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("CFG_TOOL: nil config")
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range cfg.Tools {
		if strings.ToLower(cfg.Tools[i].Name) != name {
			continue
		}
		if !cfg.Tools[i].Enabled {
			return false, nil
		}
		cfg.Tools[i].Enabled = false
		return true, nil
	}
	return false, nil
}

// ToolProvider resolves the provider for a tool: the per-tool override if
// set, otherwise the pipeline default.
func ToolProvider(cfg Config, name string) string {
	if t, ok := FindTool(cfg, name); ok && t.Provider != "" {
		return t.Provider
	}
	return cfg.Pipeline.Provider
}
