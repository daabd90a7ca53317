package config

// Config is the frozen v1 global schema.
type Config struct {
	Version     int               `toml:"version"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Langfuse    LangfuseConfig    `toml:"langfuse"`
	OTLP        OTLPConfig        `toml:"otlp"`
	Datadog     DatadogConfig     `toml:"datadog"`
	Attribution AttributionConfig `toml:"attribution"`
	Tools       []ToolConfig      `toml:"tools"`
}

// PipelineConfig controls how one hook invocation is processed.
type PipelineConfig struct {
	Provider    string `toml:"provider" json:"provider"`
	ExportMode  string `toml:"export_mode" json:"exportMode"`
	MaxChars    int    `toml:"max_chars" json:"maxChars"`
	LockTimeout string `toml:"lock_timeout" json:"lockTimeout"`
	LockPoll    string `toml:"lock_poll" json:"lockPoll"`
}

type StorageConfig struct {
	Root string `toml:"root"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file,omitempty"`
}

type LangfuseConfig struct {
	PublicKey string `toml:"public_key,omitempty" json:"publicKey,omitempty"`
	SecretKey string `toml:"secret_key,omitempty" json:"-"`
	BaseURL   string `toml:"base_url,omitempty" json:"baseUrl,omitempty"`
}

type OTLPConfig struct {
	Endpoint    string            `toml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Headers     map[string]string `toml:"headers,omitempty" json:"headers,omitempty"`
	ServiceName string            `toml:"service_name,omitempty" json:"serviceName,omitempty"`
}

type DatadogConfig struct {
	AgentHost string `toml:"agent_host,omitempty" json:"agentHost,omitempty"`
	AgentPort int    `toml:"agent_port,omitempty" json:"agentPort,omitempty"`
	Service   string `toml:"service,omitempty" json:"service,omitempty"`
	Env       string `toml:"env,omitempty" json:"env,omitempty"`
}

// AttributionConfig gates the agent-trace record emitter. Off by default.
type AttributionConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled"`
	OutputDir string `toml:"output_dir,omitempty" json:"outputDir,omitempty"`
}

// ToolConfig records a hook registration for one host tool.
type ToolConfig struct {
	Name     string `toml:"name" json:"name"`
	Enabled  bool   `toml:"enabled" json:"enabled"`
	Scope    string `toml:"scope" json:"scope"`
	Provider string `toml:"provider,omitempty" json:"provider,omitempty"`
}

// Scope represents where a hook registration lives: the user's home
// settings, the project's checked-in settings, or the project's local
// (ignored) settings.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
	ScopeLocal   Scope = "local"
)

// ProjectOverlay is the schema for .hooktrace.toml at a project root.
// Only fields present in the file override the global config; scalar
// zero values mean "not set" except Attribution.Enabled, which is a
// pointer so a project can force attribution off.
type ProjectOverlay struct {
	Pipeline    PipelineConfig     `toml:"pipeline"`
	Storage     StorageConfig      `toml:"storage"`
	Logging     LoggingConfig      `toml:"logging"`
	Langfuse    LangfuseConfig     `toml:"langfuse"`
	OTLP        OTLPConfig         `toml:"otlp"`
	Datadog     DatadogConfig      `toml:"datadog"`
	Attribution OverlayAttribution `toml:"attribution"`
	Tools       []ToolConfig       `toml:"tools"`
}

type OverlayAttribution struct {
	Enabled   *bool  `toml:"enabled"`
	OutputDir string `toml:"output_dir,omitempty"`
}
