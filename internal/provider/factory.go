// Package provider builds the export backends a hook invocation
// dispatches turns to.
package provider

import (
	"context"
	"errors"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

// New constructs the named provider from config. Construction touches
// no network; a misconfigured backend fails here, before any state is
// locked.
func New(ctx context.Context, name string, cfg config.Config) (providerapi.Provider, error) {
	switch name {
	case "langfuse":
		return newLangfuse(ctx, cfg)
	case "otlp":
		return newOTLP(ctx, cfg)
	case "datadog":
		return newDatadog(cfg), nil
	}
	return nil, &providerapi.Error{Provider: name, Op: "config", Err: errors.New("unknown provider")}
}
