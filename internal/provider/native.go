package provider

import (
	"errors"
	"sort"
	"strings"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

// NativeOTLP resolves the endpoint and header list a tool's built-in
// OTLP exporter needs to ship traces straight to the named backend.
// Headers come back in the W3C baggage-style "k=v,k=v" form the OTel
// env convention uses. Backends without an OTLP ingest path error.
func NativeOTLP(name string, cfg config.Config) (endpoint, headers string, err error) {
	switch name {
	case "langfuse":
		if cfg.Langfuse.PublicKey == "" || cfg.Langfuse.SecretKey == "" {
			return "", "", &providerapi.Error{
				Provider: "langfuse",
				Op:       "config",
				Err:      errors.New("public_key and secret_key are required"),
			}
		}
		base := cfg.Langfuse.BaseURL
		if base == "" {
			base = config.DefaultLangfuseBaseURL
		}
		auth := "Authorization=" + langfuseAuth(cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey)
		return langfuseEndpoint(base), auth, nil
	case "otlp":
		return otlpEndpoint(cfg.OTLP.Endpoint), joinHeaders(cfg.OTLP.Headers), nil
	default:
		return "", "", &providerapi.Error{
			Provider: name,
			Op:       "config",
			Err:      errors.New("backend has no OTLP ingest endpoint"),
		}
	}
}

func joinHeaders(h map[string]string) string {
	if len(h) == 0 {
		return ""
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+h[k])
	}
	return strings.Join(pairs, ",")
}
