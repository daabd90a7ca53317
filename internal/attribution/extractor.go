package attribution

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"hooktrace/pkg/providerapi"
)

// Tool names that replace a whole file; the line count is known from
// the call input itself.
var writeTools = map[string]bool{"Write": true, "write": true}

// Tool names that patch part of a file; the final line count has to
// come from disk.
var editTools = map[string]bool{"Edit": true, "edit": true, "MultiEdit": true, "multi_edit": true}

// modelPrefixes maps a source tool to its models.dev vendor prefix.
var modelPrefixes = map[string]string{
	"claude":   "anthropic",
	"gemini":   "google",
	"codex":    "openai",
	"opencode": "openai",
}

// FileOp is one AI file write or edit found in a turn.
type FileOp struct {
	AbsPath   string
	Kind      string // "write" | "edit"
	Model     string
	LineCount int // set for writes; 0 means unknown
}

// NormalizeModel converts a raw model name to the models.dev
// vendor/model convention.
func NormalizeModel(model, sourceTool string) string {
	if model == "" || model == "unknown" {
		return model
	}
	prefix := modelPrefixes[sourceTool]
	if prefix != "" && !strings.HasPrefix(model, prefix+"/") {
		return prefix + "/" + model
	}
	return model
}

type toolInput struct {
	FilePath string `json:"file_path"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// ExtractFileOps scans a turn's tool calls for file writes and edits.
// The model attributed to every op is the first one the turn's
// assistant segments name.
func ExtractFileOps(turn providerapi.Turn, sourceTool string) []FileOp {
	var model string
	for _, seg := range turn.Segments {
		if seg.Role == providerapi.RoleAssistant && seg.Metadata[providerapi.MetaModel] != "" {
			model = seg.Metadata[providerapi.MetaModel]
			break
		}
	}
	model = NormalizeModel(model, sourceTool)

	var ops []FileOp
	for _, seg := range turn.Segments {
		if seg.Role != providerapi.RoleToolUse {
			continue
		}
		name := seg.Metadata[providerapi.MetaToolName]
		if !writeTools[name] && !editTools[name] {
			continue
		}
		var input toolInput
		if json.Unmarshal([]byte(seg.Metadata[providerapi.MetaToolInput]), &input) != nil {
			continue
		}
		path := input.FilePath
		if path == "" {
			path = input.Path
		}
		if path == "" {
			continue
		}
		abs, err := absolutePath(path)
		if err != nil {
			continue
		}

		if writeTools[name] {
			ops = append(ops, FileOp{AbsPath: abs, Kind: "write", Model: model, LineCount: countLines(input.Content)})
			continue
		}
		ops = append(ops, FileOp{AbsPath: abs, Kind: "edit", Model: model})
	}
	return ops
}

// BuildFileRecords converts ordered ops into agent-trace file records.
// Ops are grouped per file in first-seen order; the last write wins
// the line count, with the file on disk as fallback for edit-only
// files. Files outside repoRoot are skipped.
func BuildFileRecords(ops []FileOp, repoRoot string) []FileRecord {
	var order []string
	grouped := make(map[string][]FileOp)
	for _, op := range ops {
		if _, ok := grouped[op.AbsPath]; !ok {
			order = append(order, op.AbsPath)
		}
		grouped[op.AbsPath] = append(grouped[op.AbsPath], op)
	}

	var records []FileRecord
	for _, abs := range order {
		rel, err := filepath.Rel(repoRoot, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		pathOps := grouped[abs]
		lineCount := resolveLineCount(abs, pathOps)
		if lineCount == 0 {
			continue
		}
		model := pathOps[len(pathOps)-1].Model
		if model == "unknown" {
			model = ""
		}
		records = append(records, FileRecord{
			Path: filepath.ToSlash(rel),
			Conversations: []Conversation{
				{
					Contributor: Contributor{Type: "ai", Model: model},
					Ranges:      []Range{{StartLine: 1, EndLine: lineCount}},
				},
			},
		})
	}
	return records
}

// resolveLineCount prefers the last full write's count over the file
// currently on disk.
func resolveLineCount(absPath string, ops []FileOp) int {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Kind == "write" && ops[i].LineCount > 0 {
			return ops[i].LineCount
		}
	}
	blob, err := os.ReadFile(absPath)
	if err != nil {
		return 0
	}
	return countLines(string(blob))
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func absolutePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
