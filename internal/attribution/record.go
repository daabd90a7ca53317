// Package attribution emits agent-trace records for files the
// assistant wrote or edited, so AI contribution survives in a form
// other tooling can read.
package attribution

// SchemaVersion is the agent-trace schema this package writes.
// Spec: https://agent-trace.dev/
const SchemaVersion = "0.1.0"

type Range struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

type Contributor struct {
	Type  string `json:"type"`
	Model string `json:"model,omitempty"`
}

type Conversation struct {
	Contributor Contributor `json:"contributor"`
	Ranges      []Range     `json:"ranges"`
	URL         string      `json:"url,omitempty"`
}

type FileRecord struct {
	Path          string         `json:"path"`
	Conversations []Conversation `json:"conversations"`
}

type VCSInfo struct {
	Type     string `json:"type"`
	Revision string `json:"revision"`
}

type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TraceRecord is one agent-trace document. The writer appends one per
// flush as a JSON line.
type TraceRecord struct {
	Version   string       `json:"version"`
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Files     []FileRecord `json:"files"`
	VCS       *VCSInfo     `json:"vcs,omitempty"`
	Tool      *ToolInfo    `json:"tool,omitempty"`
}
