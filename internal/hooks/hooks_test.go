package hooks

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"hooktrace/internal/config"
	"hooktrace/internal/event"
)

func testRuntime(t *testing.T) (*Runtime, string, string) {
	t.Helper()
	home := t.TempDir()
	cwd := t.TempDir()
	return newRuntime(config.DefaultConfig(), home, cwd), home, cwd
}

func TestRuntimeCoversEveryAdapterTool(t *testing.T) {
	r, _, _ := testRuntime(t)
	for _, name := range event.NewRegistry().Tools() {
		tool, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if tool.Name() != name {
			t.Fatalf("tool name = %s, want %s", tool.Name(), name)
		}
		if len(tool.Scopes()) == 0 {
			t.Fatalf("%s declares no scopes", name)
		}
	}
}

func TestRuntimeGetUnknownTool(t *testing.T) {
	r, _, _ := testRuntime(t)

	_, err := r.Get("qwen")
	if err == nil {
		t.Fatal("expected error for unsupported tool")
	}
	if !strings.HasPrefix(err.Error(), "HKS_NOT_SUPPORTED") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRuntimeGetNormalizesName(t *testing.T) {
	r, _, _ := testRuntime(t)

	tool, err := r.Get("  Claude ")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tool.Name() != event.ToolClaude {
		t.Fatalf("tool name = %s", tool.Name())
	}
}

func TestRuntimeNamesSorted(t *testing.T) {
	r, _, _ := testRuntime(t)

	want := []string{"claude", "cline", "codex", "copilot", "cursor", "gemini", "kiro", "opencode"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestRuntimeScopePaths(t *testing.T) {
	r, home, cwd := testRuntime(t)

	cases := []struct {
		tool  string
		scope config.Scope
		want  string
	}{
		{"claude", config.ScopeGlobal, filepath.Join(home, ".claude", "settings.json")},
		{"claude", config.ScopeProject, filepath.Join(cwd, ".claude", "settings.json")},
		{"claude", config.ScopeLocal, filepath.Join(cwd, ".claude", "settings.local.json")},
		{"gemini", config.ScopeGlobal, filepath.Join(home, ".gemini", "settings.json")},
		{"cursor", config.ScopeProject, filepath.Join(cwd, ".cursor", "hooks.json")},
		{"kiro", config.ScopeGlobal, filepath.Join(home, ".kiro", "agents", "default.json")},
		{"copilot", config.ScopeProject, filepath.Join(cwd, ".github", "hooks", "hooktrace.json")},
		{"cline", config.ScopeProject, filepath.Join(cwd, ".clinerules", "hooks", "TaskComplete")},
		{"opencode", config.ScopeGlobal, filepath.Join(home, ".config", "opencode", "plugins", "hooktrace.js")},
		{"codex", config.ScopeGlobal, filepath.Join(home, ".codex", "config.toml")},
	}
	for _, c := range cases {
		tool, err := r.Get(c.tool)
		if err != nil {
			t.Fatalf("Get(%s): %v", c.tool, err)
		}
		_, path, err := tool.Registered(c.scope)
		if err != nil {
			t.Fatalf("%s/%s: %v", c.tool, c.scope, err)
		}
		if path != c.want {
			t.Fatalf("%s/%s path = %s, want %s", c.tool, c.scope, path, c.want)
		}
	}
}

func TestRuntimeRejectsUnsupportedScope(t *testing.T) {
	r, _, _ := testRuntime(t)

	tool, err := r.Get("copilot")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := tool.Enable(EnableOptions{Scope: config.ScopeGlobal}); err == nil {
		t.Fatal("copilot is project-only, global enable must fail")
	} else if !strings.HasPrefix(err.Error(), "HKS_SCOPE") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRuntimeDefaultScopeIsFirstDeclared(t *testing.T) {
	r, home, _ := testRuntime(t)

	tool, err := r.Get("claude")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	ch, err := tool.Enable(EnableOptions{})
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if ch.Scope != string(config.ScopeGlobal) {
		t.Fatalf("default scope = %s", ch.Scope)
	}
	if ch.Path != filepath.Join(home, ".claude", "settings.json") {
		t.Fatalf("default path = %s", ch.Path)
	}
}

func TestHookCommandCarriesToolHint(t *testing.T) {
	if got := hookCommand("cursor"); got != "hooktrace hook --tool cursor" {
		t.Fatalf("hookCommand = %q", got)
	}
}
