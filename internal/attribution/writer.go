package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

// RecordFile is the JSONL file trace records append to under the
// attribution output directory.
const RecordFile = "agent-trace.jsonl"

type gitExecFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

func defaultGitExec(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// Writer collects file ops per turn and appends one agent-trace
// record on flush. It satisfies the provider contract, so the
// pipeline treats it as one more turn sink: its failures are logged,
// never fatal.
type Writer struct {
	outputDir string // empty means <repo_root>/.agent-trace
	cwd       string
	execGit   gitExecFunc

	ops []FileOp
}

func NewWriter(outputDir, cwd string) *Writer {
	return &Writer{outputDir: outputDir, cwd: cwd, execGit: defaultGitExec}
}

func (w *Writer) EmitTurn(ctx context.Context, req providerapi.EmitRequest) error {
	w.ops = append(w.ops, ExtractFileOps(req.Turn, req.SourceTool)...)
	return nil
}

// Flush resolves the repo, builds file records from everything
// collected, and appends one trace record. Collecting nothing, or
// finding no git repo to anchor paths to, is a clean no-op.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.ops) == 0 {
		return nil
	}
	ops := w.ops
	w.ops = nil

	repoRoot := w.detectRepoRoot(ctx, ops)
	if repoRoot == "" {
		return nil
	}
	files := BuildFileRecords(ops, repoRoot)
	if len(files) == 0 {
		return nil
	}

	record := TraceRecord{
		Version:   SchemaVersion,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Files:     files,
		Tool:      &ToolInfo{Name: "hooktrace", Version: config.Version},
	}
	if rev := w.gitRevision(ctx, repoRoot); rev != "" {
		record.VCS = &VCSInfo{Type: "git", Revision: rev}
	}

	dir := w.outputDir
	if dir == "" {
		dir = filepath.Join(repoRoot, ".agent-trace")
	}
	if err := w.append(dir, record); err != nil {
		return &providerapi.Error{Provider: "attribution", Op: "flush", Err: err}
	}
	return nil
}

func (w *Writer) Shutdown(ctx context.Context) error {
	return w.Flush(ctx)
}

func (w *Writer) append(dir string, record TraceRecord) error {
	blob, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, RecordFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(blob, '\n'))
	return err
}

// detectRepoRoot asks git for the toplevel of every directory an op
// touched, plus the working directory. With several candidates the
// shallowest wins.
func (w *Writer) detectRepoRoot(ctx context.Context, ops []FileOp) string {
	dirs := make([]string, 0, len(ops)+1)
	for _, op := range ops {
		dirs = append(dirs, filepath.Dir(op.AbsPath))
	}
	if w.cwd != "" {
		dirs = append(dirs, w.cwd)
	}

	seen := make(map[string]bool)
	best := ""
	for _, dir := range dirs {
		out, err := w.execGit(ctx, dir, "rev-parse", "--show-toplevel")
		if err != nil {
			continue
		}
		root := strings.TrimSpace(string(out))
		if root == "" || seen[root] {
			continue
		}
		seen[root] = true
		if best == "" || len(splitPath(root)) < len(splitPath(best)) {
			best = root
		}
	}
	return best
}

func (w *Writer) gitRevision(ctx context.Context, repoRoot string) string {
	out, err := w.execGit(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(filepath.Clean(p)), "/")
}
