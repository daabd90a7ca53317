package config

import "strings"

func Normalize(cfg Config) Config {
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if cfg.Pipeline.Provider == "" {
		cfg.Pipeline.Provider = "otlp"
	}
	cfg.Pipeline.Provider = strings.ToLower(cfg.Pipeline.Provider)
	if cfg.Pipeline.ExportMode == "" {
		cfg.Pipeline.ExportMode = ExportBestEffort
	}
	cfg.Pipeline.ExportMode = strings.ToLower(cfg.Pipeline.ExportMode)
	if cfg.Pipeline.MaxChars == 0 {
		cfg.Pipeline.MaxChars = DefaultMaxChars
	}
	if cfg.Pipeline.LockTimeout == "" {
		cfg.Pipeline.LockTimeout = DefaultLockTimeout
	}
	if cfg.Pipeline.LockPoll == "" {
		cfg.Pipeline.LockPoll = DefaultLockPoll
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "~/.hooktrace"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Langfuse.BaseURL == "" {
		cfg.Langfuse.BaseURL = DefaultLangfuseBaseURL
	}
	if cfg.OTLP.ServiceName == "" {
		cfg.OTLP.ServiceName = DefaultServiceName
	}
	if cfg.Datadog.AgentHost == "" {
		cfg.Datadog.AgentHost = DefaultDatadogHost
	}
	if cfg.Datadog.AgentPort == 0 {
		cfg.Datadog.AgentPort = DefaultDatadogPort
	}
	if cfg.Datadog.Service == "" {
		cfg.Datadog.Service = DefaultServiceName
	}
	for i := range cfg.Tools {
		cfg.Tools[i].Name = strings.ToLower(strings.TrimSpace(cfg.Tools[i].Name))
		if cfg.Tools[i].Scope == "" {
			cfg.Tools[i].Scope = string(ScopeGlobal)
		}
	}
	return cfg
}
