package hooks

import (
	"fmt"
	"os"
	"path/filepath"

	"hooktrace/internal/config"
	"hooktrace/internal/fsutil"
)

// opencodePlugin is the JS plugin installed into opencode's plugin
// dir. It bridges the editor's event bus to hook invocations: lifecycle
// kinds only, since opencode exposes no transcript file to read. The
// first line is the ownership marker; disable refuses files without it.
const opencodePlugin = `// hooktrace:managed
import { spawnSync } from "node:child_process"

const seen = new Set()

function send(payload) {
  try {
    spawnSync("hooktrace", ["hook", "--tool", "opencode"], {
      input: JSON.stringify(payload),
      encoding: "utf8",
    })
  } catch (err) {
    // never surface hook failures into the editor
  }
}

function emit(kind, sessionID, extra = {}) {
  if (typeof sessionID !== "string" || sessionID === "") return
  if (!seen.has(sessionID)) {
    seen.add(sessionID)
    send({ kind: "session_start", session_id: sessionID, timestamp: new Date().toISOString() })
  }
  send({ kind, session_id: sessionID, timestamp: new Date().toISOString(), ...extra })
}

export const HooktracePlugin = async () => ({
  event: async (input) => {
    const event = input?.event
    if (!event || typeof event !== "object") return

    if (event.type === "message.updated") {
      const info = event.properties?.info
      if (info?.role === "user") emit("prompt_submit", info.sessionID)
      return
    }

    if (event.type === "message.part.updated") {
      const part = event.properties?.part
      if (!part || part.type !== "tool") return
      const toolName = typeof part.tool === "string" && part.tool ? part.tool : "unknown"
      const status = part.state?.status
      if (status === "completed") {
        emit("tool_use", part.sessionID, { tool_name: toolName })
      } else if (status === "error") {
        emit("metric", part.sessionID, { metric_name: "tool_failed", tool_name: toolName })
      }
      return
    }

    if (event.type === "session.idle") {
      emit("session_end", event.properties?.sessionID)
    }
  },
})
`

// pluginTool owns its settings file outright: the whole file is ours or
// it is not touched at all. Foreign files at the plugin path are an
// error on both enable and disable.
type pluginTool struct {
	name   string
	script string
	scopes []config.Scope
	paths  map[config.Scope]string
}

func (t *pluginTool) Name() string           { return t.name }
func (t *pluginTool) Scopes() []config.Scope { return t.scopes }

func (t *pluginTool) Enable(opts EnableOptions) (Change, error) {
	path, err := scopePath(t.paths, t.scopes, opts.Scope)
	if err != nil {
		return Change{}, err
	}
	ch := Change{Tool: t.name, Scope: string(scopeOrDefault(opts.Scope, t.scopes)), Path: path}
	blob, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return ch, fmt.Errorf("HKS_READ: %s: %w", path, err)
	case !fsutil.IsManagedFile(blob):
		return ch, fmt.Errorf("HKS_UNMANAGED: %s exists and was not written by hooktrace", path)
	case string(blob) == t.script:
		return ch, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	if err := fsutil.AtomicWrite(path, []byte(t.script), 0o644); err != nil {
		return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	ch.Changed = true
	return ch, nil
}

func (t *pluginTool) Disable(scope config.Scope) (Change, error) {
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
	if !fsutil.IsManagedFile(blob) {
		return ch, fmt.Errorf("HKS_UNMANAGED: %s exists and was not written by hooktrace", path)
	}
	if err := os.Remove(path); err != nil {
		return ch, fmt.Errorf("HKS_WRITE: %s: %w", path, err)
	}
	ch.Changed = true
	return ch, nil
}

func (t *pluginTool) Registered(scope config.Scope) (bool, string, error) {
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
	return fsutil.IsManagedFile(blob), path, nil
}
