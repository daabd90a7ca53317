package hooks

import (
	"os"
	"path/filepath"
	"sort"
)

type Detection struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// DetectAvailable probes the default install roots of every supported
// tool. Presence of a root means the tool is installed, not that a hook
// is registered; Registered answers that per scope.
func DetectAvailable() []Detection {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return detectAvailable(home, cwd)
}

func detectAvailable(home, cwd string) []Detection {
	checks := []struct {
		name   string
		path   string
		reason string
	}{
		{name: "claude", path: filepath.Join(home, ".claude"), reason: "default claude root exists"},
		{name: "codex", path: filepath.Join(home, ".codex"), reason: "default codex root exists"},
		{name: "cursor", path: filepath.Join(home, ".cursor"), reason: "default cursor root exists"},
		{name: "gemini", path: filepath.Join(home, ".gemini"), reason: "default gemini root exists"},
		{name: "kiro", path: filepath.Join(home, ".kiro"), reason: "default kiro root exists"},
		{name: "copilot", path: filepath.Join(home, ".copilot"), reason: "default copilot root exists"},
		{name: "opencode", path: filepath.Join(home, ".config", "opencode"), reason: "default opencode config exists"},
		{name: "cline", path: filepath.Join(cwd, ".clinerules"), reason: "project clinerules dir exists"},
		{name: "copilot", path: filepath.Join(cwd, ".github"), reason: "project github dir exists"},
		{name: "opencode", path: filepath.Join(cwd, ".opencode"), reason: "project opencode dir exists"},
	}
	out := make([]Detection, 0, len(checks))
	seen := map[string]struct{}{}
	for _, c := range checks {
		if _, ok := seen[c.name]; ok {
			continue
		}
		if stat, err := os.Stat(c.path); err == nil && stat.IsDir() {
			seen[c.name] = struct{}{}
			out = append(out, Detection{Name: c.name, Path: c.path, Reason: c.reason})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
