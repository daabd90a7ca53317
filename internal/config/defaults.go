package config

const (
	SchemaVersion = 1

	// Export modes. Best effort matches the original hook behavior:
	// state advances past every built turn whether or not export
	// succeeded. At least once advances only past confirmed turns.
	ExportBestEffort  = "best-effort"
	ExportAtLeastOnce = "at-least-once"

	DefaultMaxChars    = 20000
	DefaultLockTimeout = "2s"
	DefaultLockPoll    = "50ms"

	DefaultLangfuseBaseURL = "https://cloud.langfuse.com"
	DefaultDatadogHost     = "localhost"
	DefaultDatadogPort     = 8126
	DefaultServiceName     = "hooktrace"
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Pipeline: PipelineConfig{
			Provider:    "otlp",
			ExportMode:  ExportBestEffort,
			MaxChars:    DefaultMaxChars,
			LockTimeout: DefaultLockTimeout,
			LockPoll:    DefaultLockPoll,
		},
		Storage: StorageConfig{
			Root: "~/.hooktrace",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Langfuse: LangfuseConfig{
			BaseURL: DefaultLangfuseBaseURL,
		},
		OTLP: OTLPConfig{
			ServiceName: DefaultServiceName,
		},
		Datadog: DatadogConfig{
			AgentHost: DefaultDatadogHost,
			AgentPort: DefaultDatadogPort,
			Service:   DefaultServiceName,
		},
		Attribution: AttributionConfig{
			Enabled: false,
		},
	}
}
