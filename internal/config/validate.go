package config

import (
	"fmt"
	"strings"
	"time"
)

var allowedProviders = map[string]struct{}{
	"langfuse": {},
	"otlp":     {},
	"datadog":  {},
}

var allowedExportModes = map[string]struct{}{
	ExportBestEffort:  {},
	ExportAtLeastOnce: {},
}

var allowedScopes = map[string]struct{}{
	string(ScopeGlobal):  {},
	string(ScopeProject): {},
	string(ScopeLocal):   {},
}

// KnownProvider reports whether name is a supported export backend.
func KnownProvider(name string) bool {
	_, ok := allowedProviders[name]
	return ok
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("CFG_VERSION: unsupported version %d", cfg.Version)
	}
	if _, ok := allowedProviders[cfg.Pipeline.Provider]; !ok {
		return fmt.Errorf("CFG_PROVIDER: unsupported provider %q", cfg.Pipeline.Provider)
	}
	if _, ok := allowedExportModes[cfg.Pipeline.ExportMode]; !ok {
		return fmt.Errorf("CFG_EXPORT_MODE: unsupported export mode %q", cfg.Pipeline.ExportMode)
	}
	if cfg.Pipeline.MaxChars < 0 {
		return fmt.Errorf("CFG_MAX_CHARS: negative max_chars %d", cfg.Pipeline.MaxChars)
	}
	if _, err := time.ParseDuration(cfg.Pipeline.LockTimeout); err != nil {
		return fmt.Errorf("CFG_LOCK_TIMEOUT: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Pipeline.LockPoll); err != nil {
		return fmt.Errorf("CFG_LOCK_POLL: %w", err)
	}
	if cfg.Storage.Root == "" {
		return fmt.Errorf("CFG_STORAGE: missing storage root")
	}
	if cfg.Logging.Level == "" || cfg.Logging.Format == "" {
		return fmt.Errorf("CFG_LOGGING: missing logging level/format")
	}
	if cfg.Datadog.AgentPort < 0 || cfg.Datadog.AgentPort > 65535 {
		return fmt.Errorf("CFG_DATADOG: invalid agent port %d", cfg.Datadog.AgentPort)
	}

	names := map[string]struct{}{}
	for _, t := range cfg.Tools {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("CFG_TOOL: tool name is required")
		}
		if _, ok := names[t.Name]; ok {
			return fmt.Errorf("CFG_TOOL: duplicate tool %q", t.Name)
		}
		names[t.Name] = struct{}{}
		if _, ok := allowedScopes[t.Scope]; !ok {
			return fmt.Errorf("CFG_TOOL: invalid scope %q for tool %q", t.Scope, t.Name)
		}
		if t.Provider != "" {
			if _, ok := allowedProviders[t.Provider]; !ok {
				return fmt.Errorf("CFG_TOOL: unsupported provider %q for tool %q", t.Provider, t.Name)
			}
		}
	}

	return nil
}

// LockTimeoutDuration returns the parsed lock timeout, falling back to the
// default when unset or unparseable.
func (p PipelineConfig) LockTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(p.LockTimeout); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultLockTimeout)
	return d
}

// LockPollDuration returns the parsed lock poll interval with the same
// fallback rule.
func (p PipelineConfig) LockPollDuration() time.Duration {
	if d, err := time.ParseDuration(p.LockPoll); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultLockPoll)
	return d
}
