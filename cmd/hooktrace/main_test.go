package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"hooktrace/internal/app"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()
	return buf.String()
}

func boolPtr(v bool) *bool { return &v }

func setTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	var err error
	out := captureStdout(t, func() { err = cmd.Execute() })
	return out, err
}

func TestNewRootCmdIncludesCoreCommands(t *testing.T) {
	cmd := newRootCmd()
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}
	for _, want := range []string{"hook", "enable", "disable", "status", "doctor", "version", "self"} {
		if !got[want] {
			t.Fatalf("expected command %q", want)
		}
	}
}

func TestHookCommandRequiresToolFlag(t *testing.T) {
	called := false
	cmd := newHookCmd(func() (*app.Service, error) {
		called = true
		return nil, errors.New("should not be called")
	}, boolPtr(false))
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "tool") {
		t.Fatalf("expected missing --tool error, got %v", err)
	}
	if called {
		t.Fatalf("newSvc should not be called when --tool missing")
	}
}

func TestHookCommandSurvivesProviderFailure(t *testing.T) {
	setTestHome(t)

	// Langfuse without keys fails at provider construction, so nothing
	// reaches the network and the invocation still exits zero.
	out, err := runCLI(t, `{"conversation_id":"c-1","hook_event_name":"stop"}`, "hook", "--tool", "cursor", "--provider", "langfuse")
	if err != nil {
		t.Fatalf("expected provider failure to keep exit zero, got %v", err)
	}
	if !strings.Contains(out, "exported 0/1 turns for cursor session c-1") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "provider error") {
		t.Fatalf("expected provider error note in output: %q", out)
	}
}

func TestHookCommandUnknownToolFails(t *testing.T) {
	setTestHome(t)

	_, err := runCLI(t, `{}`, "hook", "--tool", "qwen")
	if err == nil || !strings.Contains(err.Error(), "ADP_UNKNOWN_TOOL") {
		t.Fatalf("expected ADP_UNKNOWN_TOOL, got %v", err)
	}
}

func TestEnableStatusDisableRoundTrip(t *testing.T) {
	setTestHome(t)

	out, err := runCLI(t, "", "enable", "claude")
	if err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if !strings.Contains(out, "enabled claude at") {
		t.Fatalf("unexpected enable output: %q", out)
	}

	out, err = runCLI(t, "", "status", "--json")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var st app.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, out)
	}
	var claude app.ToolStatus
	for _, row := range st.Tools {
		if row.Name == "claude" {
			claude = row
		}
	}
	if !claude.Enabled || !claude.Registered {
		t.Fatalf("expected claude enabled and registered, got %#v", claude)
	}

	out, err = runCLI(t, "", "disable", "claude")
	if err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if !strings.Contains(out, "disabled claude") {
		t.Fatalf("unexpected disable output: %q", out)
	}

	out, err = runCLI(t, "", "status", "--json")
	if err != nil {
		t.Fatalf("status after disable failed: %v", err)
	}
	st = app.Status{}
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("status output is not JSON: %v", err)
	}
	for _, row := range st.Tools {
		if row.Name == "claude" && (row.Enabled || row.Registered) {
			t.Fatalf("expected claude disabled and unregistered, got %#v", row)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "hooktrace dev") {
		t.Fatalf("unexpected version output: %q", out)
	}

	out, err = runCLI(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not JSON: %v", err)
	}
	if info["version"] != "dev" {
		t.Fatalf("expected dev version, got %q", info["version"])
	}
}

func TestDoctorStrictExitCode(t *testing.T) {
	setTestHome(t)

	out, err := runCLI(t, "", "doctor")
	if err != nil {
		t.Fatalf("doctor without strict should not fail: %v", err)
	}
	if !strings.Contains(out, "DOC_PROVIDER_CREDS") {
		t.Fatalf("expected provider finding in output: %q", out)
	}

	_, err = runCLI(t, "", "doctor", "--strict")
	if err == nil {
		t.Fatalf("expected strict doctor to fail on findings")
	}
	ex, ok := err.(ExitCoder)
	if !ok || ex.ExitCode() != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
}
