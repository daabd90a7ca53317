package provider

import (
	"context"
	"strings"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

// newOTLP builds the generic OTLP/HTTP backend. With no configured
// endpoint the exporter falls back to its own defaults, so a plain
// local collector needs no config at all.
func newOTLP(ctx context.Context, cfg config.Config) (providerapi.Provider, error) {
	return newOTelEmitter(ctx, "otlp", otlpEndpoint(cfg.OTLP.Endpoint), cfg.OTLP.Headers, cfg.OTLP.ServiceName, cfg.Pipeline.MaxChars)
}

// otlpEndpoint completes a bare collector URL with the traces path.
// Endpoints that already name a path are passed through.
func otlpEndpoint(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimRight(raw, "/")
	if strings.HasSuffix(trimmed, "/v1/traces") {
		return trimmed
	}
	return trimmed + "/v1/traces"
}
