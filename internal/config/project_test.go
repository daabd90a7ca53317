package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeOverlay(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, projectOverlayFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindProjectRoot(t *testing.T) {
	t.Run("found at current dir", func(t *testing.T) {
		tmp := t.TempDir()
		writeOverlay(t, tmp, "[pipeline]\nprovider = \"langfuse\"\n")
		root, found := FindProjectRoot(tmp)
		if !found {
			t.Fatal("expected to find project root")
		}
		if root != tmp {
			t.Fatalf("got root %q, want %q", root, tmp)
		}
	})

	t.Run("found in parent dir", func(t *testing.T) {
		tmp := t.TempDir()
		writeOverlay(t, tmp, "[pipeline]\nprovider = \"langfuse\"\n")
		subDir := filepath.Join(tmp, "src", "deep", "nested")
		if err := os.MkdirAll(subDir, 0o755); err != nil {
			t.Fatal(err)
		}
		root, found := FindProjectRoot(subDir)
		if !found {
			t.Fatal("expected to find project root in parent")
		}
		if root != tmp {
			t.Fatalf("got root %q, want %q", root, tmp)
		}
	})

	t.Run("not found", func(t *testing.T) {
		tmp := t.TempDir()
		_, found := FindProjectRoot(tmp)
		if found {
			t.Fatal("expected not to find project root")
		}
	})

	t.Run("nested projects innermost wins", func(t *testing.T) {
		tmp := t.TempDir()
		writeOverlay(t, tmp, "[pipeline]\nprovider = \"otlp\"\n")
		innerDir := filepath.Join(tmp, "sub", "inner")
		if err := os.MkdirAll(innerDir, 0o755); err != nil {
			t.Fatal(err)
		}
		writeOverlay(t, innerDir, "[pipeline]\nprovider = \"datadog\"\n")

		root, found := FindProjectRoot(innerDir)
		if !found {
			t.Fatal("expected to find project root")
		}
		if root != innerDir {
			t.Fatalf("got root %q, want innermost %q", root, innerDir)
		}
	})
}

func TestLoadProjectOverlay(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		tmp := t.TempDir()
		_, err := LoadProjectOverlay(tmp)
		if err == nil {
			t.Fatal("expected error for missing overlay")
		}
	})

	t.Run("corrupt TOML", func(t *testing.T) {
		tmp := t.TempDir()
		writeOverlay(t, tmp, "{{invalid toml")
		_, err := LoadProjectOverlay(tmp)
		if err == nil {
			t.Fatal("expected error for corrupt overlay")
		}
	})

	t.Run("partial overlay parses", func(t *testing.T) {
		tmp := t.TempDir()
		writeOverlay(t, tmp, "[datadog]\nservice = \"my-agents\"\n")
		o, err := LoadProjectOverlay(tmp)
		if err != nil {
			t.Fatal(err)
		}
		if o.Datadog.Service != "my-agents" {
			t.Fatalf("got service %q, want my-agents", o.Datadog.Service)
		}
		if o.Pipeline.Provider != "" {
			t.Fatalf("unset fields should stay zero, got provider %q", o.Pipeline.Provider)
		}
	})
}

func TestMergeOverlay(t *testing.T) {
	t.Run("set fields win", func(t *testing.T) {
		global := DefaultConfig()
		o := ProjectOverlay{}
		o.Pipeline.Provider = "datadog"
		o.Pipeline.MaxChars = 5000
		merged := MergeOverlay(global, o)
		if merged.Pipeline.Provider != "datadog" {
			t.Fatalf("got provider %q, want datadog", merged.Pipeline.Provider)
		}
		if merged.Pipeline.MaxChars != 5000 {
			t.Fatalf("got max_chars %d, want 5000", merged.Pipeline.MaxChars)
		}
	})

	t.Run("zero fields fall through", func(t *testing.T) {
		global := DefaultConfig()
		global.Langfuse.PublicKey = "pk-lf-global"
		merged := MergeOverlay(global, ProjectOverlay{})
		if merged.Langfuse.PublicKey != "pk-lf-global" {
			t.Fatalf("global field lost: got %q", merged.Langfuse.PublicKey)
		}
		if merged.Pipeline.ExportMode != global.Pipeline.ExportMode {
			t.Fatalf("export mode changed: got %q", merged.Pipeline.ExportMode)
		}
	})

	t.Run("attribution can be forced off", func(t *testing.T) {
		global := DefaultConfig()
		global.Attribution.Enabled = true
		off := false
		merged := MergeOverlay(global, ProjectOverlay{Attribution: OverlayAttribution{Enabled: &off}})
		if merged.Attribution.Enabled {
			t.Fatal("expected overlay to force attribution off")
		}
	})

	t.Run("attribution nil leaves global alone", func(t *testing.T) {
		global := DefaultConfig()
		global.Attribution.Enabled = true
		merged := MergeOverlay(global, ProjectOverlay{})
		if !merged.Attribution.Enabled {
			t.Fatal("unset overlay attribution should not disable")
		}
	})

	t.Run("tools override by name and append", func(t *testing.T) {
		global := DefaultConfig()
		global.Tools = []ToolConfig{
			{Name: "claude", Enabled: true, Scope: "global"},
			{Name: "codex", Enabled: true, Scope: "global"},
		}
		o := ProjectOverlay{Tools: []ToolConfig{
			{Name: "claude", Enabled: false, Scope: "project"},
			{Name: "cursor", Enabled: true, Scope: "project"},
		}}
		merged := MergeOverlay(global, o)
		if len(merged.Tools) != 3 {
			t.Fatalf("expected 3 tools, got %d", len(merged.Tools))
		}
		if merged.Tools[0].Name != "claude" || merged.Tools[0].Enabled {
			t.Fatalf("expected claude overridden and disabled, got %+v", merged.Tools[0])
		}
		if merged.Tools[2].Name != "cursor" {
			t.Fatalf("expected cursor appended last, got %q", merged.Tools[2].Name)
		}
	})
}

func TestResolve(t *testing.T) {
	t.Run("global only", func(t *testing.T) {
		tmp := t.TempDir()
		cwd := filepath.Join(tmp, "work")
		if err := os.MkdirAll(cwd, 0o755); err != nil {
			t.Fatal(err)
		}
		cfg, projectRoot, err := Resolve(filepath.Join(tmp, "config.toml"), cwd)
		if err != nil {
			t.Fatal(err)
		}
		if projectRoot != "" {
			t.Fatalf("expected no project root, got %q", projectRoot)
		}
		if cfg.Pipeline.Provider != "otlp" {
			t.Fatalf("got provider %q, want otlp", cfg.Pipeline.Provider)
		}
	})

	t.Run("overlay applies", func(t *testing.T) {
		tmp := t.TempDir()
		projectDir := filepath.Join(tmp, "proj")
		cwd := filepath.Join(projectDir, "src")
		if err := os.MkdirAll(cwd, 0o755); err != nil {
			t.Fatal(err)
		}
		writeOverlay(t, projectDir, "[pipeline]\nprovider = \"datadog\"\n")
		cfg, projectRoot, err := Resolve(filepath.Join(tmp, "config.toml"), cwd)
		if err != nil {
			t.Fatal(err)
		}
		if projectRoot != projectDir {
			t.Fatalf("got project root %q, want %q", projectRoot, projectDir)
		}
		if cfg.Pipeline.Provider != "datadog" {
			t.Fatalf("got provider %q, want datadog from overlay", cfg.Pipeline.Provider)
		}
	})

	t.Run("env wins over overlay", func(t *testing.T) {
		tmp := t.TempDir()
		projectDir := filepath.Join(tmp, "proj")
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			t.Fatal(err)
		}
		writeOverlay(t, projectDir, "[pipeline]\nprovider = \"datadog\"\n")
		t.Setenv(EnvProvider, "langfuse")
		cfg, _, err := Resolve(filepath.Join(tmp, "config.toml"), projectDir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Pipeline.Provider != "langfuse" {
			t.Fatalf("got provider %q, want langfuse from env", cfg.Pipeline.Provider)
		}
	})

	t.Run("invalid overlay value fails resolution", func(t *testing.T) {
		tmp := t.TempDir()
		projectDir := filepath.Join(tmp, "proj")
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			t.Fatal(err)
		}
		writeOverlay(t, projectDir, "[pipeline]\nprovider = \"honeycomb\"\n")
		_, _, err := Resolve(filepath.Join(tmp, "config.toml"), projectDir)
		if err == nil {
			t.Fatal("expected validation error for unknown provider")
		}
	})
}
