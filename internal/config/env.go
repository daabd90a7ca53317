package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables recognized by ApplyEnv. Provider variables follow
// each vendor's own conventions so existing shell setups keep working.
const (
	EnvProvider   = "HOOKTRACE_PROVIDER"
	EnvExportMode = "HOOKTRACE_EXPORT_MODE"
	EnvMaxChars   = "HOOKTRACE_MAX_CHARS"
	EnvStateDir   = "HOOKTRACE_STATE_DIR"
	EnvDebug      = "HOOKTRACE_DEBUG"

	EnvLangfusePublicKey = "LANGFUSE_PUBLIC_KEY"
	EnvLangfuseSecretKey = "LANGFUSE_SECRET_KEY"
	EnvLangfuseBaseURL   = "LANGFUSE_BASE_URL"

	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"

	EnvDatadogAgentHost = "DD_AGENT_HOST"
	EnvDatadogAgentPort = "DD_TRACE_AGENT_PORT"
	EnvDatadogService   = "DD_SERVICE"
	EnvDatadogEnv       = "DD_ENV"
)

// ApplyEnv layers environment overrides on top of cfg. Environment wins
// over both the global file and any project overlay.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Pipeline.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvExportMode); v != "" {
		cfg.Pipeline.ExportMode = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMaxChars); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Pipeline.MaxChars = n
		}
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		cfg.Storage.Root = v
	}
	if envTruthy(os.Getenv(EnvDebug)) {
		cfg.Logging.Level = "debug"
	}

	if v := os.Getenv(EnvLangfusePublicKey); v != "" {
		cfg.Langfuse.PublicKey = v
	}
	if v := os.Getenv(EnvLangfuseSecretKey); v != "" {
		cfg.Langfuse.SecretKey = v
	}
	if v := os.Getenv(EnvLangfuseBaseURL); v != "" {
		cfg.Langfuse.BaseURL = v
	}

	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		cfg.OTLP.Endpoint = v
	}
	if v := os.Getenv(EnvOTLPHeaders); v != "" {
		if headers := ParseHeaderList(v); len(headers) > 0 {
			cfg.OTLP.Headers = headers
		}
	}

	if v := os.Getenv(EnvDatadogAgentHost); v != "" {
		cfg.Datadog.AgentHost = v
	}
	if v := os.Getenv(EnvDatadogAgentPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 65535 {
			cfg.Datadog.AgentPort = n
		}
	}
	if v := os.Getenv(EnvDatadogService); v != "" {
		cfg.Datadog.Service = v
	}
	if v := os.Getenv(EnvDatadogEnv); v != "" {
		cfg.Datadog.Env = v
	}

	return cfg
}

// ParseHeaderList parses the OTLP "k=v,k2=v2" header convention. Entries
// without an = or with an empty key are dropped.
func ParseHeaderList(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func envTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
