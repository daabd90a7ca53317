package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	projectOverlayFile = ".hooktrace.toml"
	maxAncestorSearch  = 50
)

// ProjectOverlayPath returns the overlay file path for a project root.
func ProjectOverlayPath(projectRoot string) string {
	return filepath.Join(projectRoot, projectOverlayFile)
}

// FindProjectRoot walks up from startDir looking for .hooktrace.toml.
// Returns (projectRoot, true) if found, or ("", false) if not.
func FindProjectRoot(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}
	for i := 0; i < maxAncestorSearch; i++ {
		overlay := filepath.Join(dir, projectOverlayFile)
		if _, err := os.Stat(overlay); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", false
}

// LoadProjectOverlay loads .hooktrace.toml from the given project root.
func LoadProjectOverlay(projectRoot string) (ProjectOverlay, error) {
	path := ProjectOverlayPath(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectOverlay{}, fmt.Errorf("PRJ_OVERLAY_READ: %w", err)
	}
	var o ProjectOverlay
	if err := toml.Unmarshal(data, &o); err != nil {
		return ProjectOverlay{}, fmt.Errorf("PRJ_OVERLAY_PARSE: %w", err)
	}
	return o, nil
}

// MergeOverlay applies a project overlay on top of the global config.
// Set fields win; zero values fall through to the global value. Tool
// entries override by name and new ones append, the same ordering rule
// the rest of the document follows.
func MergeOverlay(global Config, o ProjectOverlay) Config {
	merged := global

	if o.Pipeline.Provider != "" {
		merged.Pipeline.Provider = o.Pipeline.Provider
	}
	if o.Pipeline.ExportMode != "" {
		merged.Pipeline.ExportMode = o.Pipeline.ExportMode
	}
	if o.Pipeline.MaxChars != 0 {
		merged.Pipeline.MaxChars = o.Pipeline.MaxChars
	}
	if o.Pipeline.LockTimeout != "" {
		merged.Pipeline.LockTimeout = o.Pipeline.LockTimeout
	}
	if o.Pipeline.LockPoll != "" {
		merged.Pipeline.LockPoll = o.Pipeline.LockPoll
	}
	if o.Storage.Root != "" {
		merged.Storage.Root = o.Storage.Root
	}
	if o.Logging.Level != "" {
		merged.Logging.Level = o.Logging.Level
	}
	if o.Logging.Format != "" {
		merged.Logging.Format = o.Logging.Format
	}
	if o.Logging.File != "" {
		merged.Logging.File = o.Logging.File
	}
	if o.Langfuse.PublicKey != "" {
		merged.Langfuse.PublicKey = o.Langfuse.PublicKey
	}
	if o.Langfuse.SecretKey != "" {
		merged.Langfuse.SecretKey = o.Langfuse.SecretKey
	}
	if o.Langfuse.BaseURL != "" {
		merged.Langfuse.BaseURL = o.Langfuse.BaseURL
	}
	if o.OTLP.Endpoint != "" {
		merged.OTLP.Endpoint = o.OTLP.Endpoint
	}
	if len(o.OTLP.Headers) > 0 {
		merged.OTLP.Headers = o.OTLP.Headers
	}
	if o.OTLP.ServiceName != "" {
		merged.OTLP.ServiceName = o.OTLP.ServiceName
	}
	if o.Datadog.AgentHost != "" {
		merged.Datadog.AgentHost = o.Datadog.AgentHost
	}
	if o.Datadog.AgentPort != 0 {
		merged.Datadog.AgentPort = o.Datadog.AgentPort
	}
	if o.Datadog.Service != "" {
		merged.Datadog.Service = o.Datadog.Service
	}
	if o.Datadog.Env != "" {
		merged.Datadog.Env = o.Datadog.Env
	}
	if o.Attribution.Enabled != nil {
		merged.Attribution.Enabled = *o.Attribution.Enabled
	}
	if o.Attribution.OutputDir != "" {
		merged.Attribution.OutputDir = o.Attribution.OutputDir
	}
	if len(o.Tools) > 0 {
		merged.Tools = mergedTools(global.Tools, o.Tools)
	}

	return Normalize(merged)
}

func mergedTools(global, project []ToolConfig) []ToolConfig {
	byName := make(map[string]ToolConfig, len(global))
	order := make([]string, 0, len(global)+len(project))
	for _, t := range global {
		byName[t.Name] = t
		order = append(order, t.Name)
	}
	for _, t := range project {
		if _, exists := byName[t.Name]; !exists {
			order = append(order, t.Name)
		}
		byName[t.Name] = t // project overrides global
	}
	merged := make([]ToolConfig, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}

// Resolve loads the effective config for a working directory: the global
// file, the nearest project overlay above cwd if any, then environment
// overrides, in that precedence order.
func Resolve(configPath, cwd string) (Config, string, error) {
	cfg, err := Ensure(configPath)
	if err != nil {
		return Config{}, "", err
	}
	projectRoot := ""
	if root, found := FindProjectRoot(cwd); found {
		overlay, err := LoadProjectOverlay(root)
		if err != nil {
			return Config{}, "", err
		}
		cfg = MergeOverlay(cfg, overlay)
		projectRoot = root
	}
	cfg = ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, "", err
	}
	return cfg, projectRoot, nil
}
