package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

const langfuseTracePath = "/api/public/otel/v1/traces"

// newLangfuse builds the Langfuse backend: OTLP/HTTP against the
// Langfuse OTel ingest endpoint with Basic auth from the key pair.
func newLangfuse(ctx context.Context, cfg config.Config) (providerapi.Provider, error) {
	if cfg.Langfuse.PublicKey == "" || cfg.Langfuse.SecretKey == "" {
		return nil, &providerapi.Error{
			Provider: "langfuse",
			Op:       "config",
			Err:      errors.New("public_key and secret_key are required"),
		}
	}
	base := cfg.Langfuse.BaseURL
	if base == "" {
		base = config.DefaultLangfuseBaseURL
	}
	headers := map[string]string{
		"Authorization": langfuseAuth(cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey),
	}
	return newOTelEmitter(ctx, "langfuse", langfuseEndpoint(base), headers, cfg.OTLP.ServiceName, cfg.Pipeline.MaxChars)
}

func langfuseEndpoint(base string) string {
	return strings.TrimRight(base, "/") + langfuseTracePath
}

func langfuseAuth(publicKey, secretKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(publicKey+":"+secretKey))
}
