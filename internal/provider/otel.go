package provider

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

const (
	instrumentationName = "hooktrace"

	attrSessionID       = "session.id"
	attrSourceTool      = "source.tool"
	attrTranscriptPath  = "transcript.path"
	attrInvocationID    = "invocation.id"
	attrTurnNum         = "turn.num"
	attrGenAISystem     = "gen_ai.system"
	attrGenAIModel      = "gen_ai.request.model"
	attrGenAIPrompt     = "gen_ai.prompt"
	attrGenAICompletion = "gen_ai.completion"
	attrInputTokens     = "gen_ai.usage.input_tokens"
	attrOutputTokens    = "gen_ai.usage.output_tokens"
)

// otelEmitter renders turns as OTel spans through a batching
// TracerProvider. Langfuse and plain OTLP share it; only endpoint and
// headers differ.
type otelEmitter struct {
	name     string
	tp       *sdktrace.TracerProvider
	tracer   trace.Tracer
	maxChars int

	shutdownOnce sync.Once
}

func newOTelEmitter(ctx context.Context, name, endpointURL string, headers map[string]string, serviceName string, maxChars int) (*otelEmitter, error) {
	opts := []otlptracehttp.Option{}
	if endpointURL != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpointURL))
	}
	if len(headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, &providerapi.Error{Provider: name, Op: "config", Err: err}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return nil, &providerapi.Error{Provider: name, Op: "config", Err: err}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &otelEmitter{
		name:     name,
		tp:       tp,
		tracer:   tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(config.Version)),
		maxChars: maxChars,
	}, nil
}

func (e *otelEmitter) EmitTurn(ctx context.Context, req providerapi.EmitRequest) error {
	payload := ShapeTurn(req.Turn)

	rootCtx, root := e.tracer.Start(ctx,
		fmt.Sprintf("%s - Turn %d", req.SourceTool, req.Turn.TurnNum),
		trace.WithTimestamp(req.Turn.StartedAt),
	)
	root.SetAttributes(
		attribute.String(attrSessionID, req.Turn.SessionID),
		attribute.String(attrSourceTool, req.SourceTool),
		attribute.String(attrInvocationID, req.InvocationID),
		attribute.Int(attrTurnNum, req.Turn.TurnNum),
		attribute.String(attrGenAISystem, vendorFor(req.SourceTool)),
	)
	if req.TranscriptPath != "" {
		root.SetAttributes(attribute.String(attrTranscriptPath, req.TranscriptPath))
	}
	if payload.Model != "" {
		root.SetAttributes(attribute.String(attrGenAIModel, payload.Model))
	}
	if payload.UserText != "" {
		setTextAttr(root, attrGenAIPrompt, payload.UserText, e.maxChars)
	}
	if payload.AssistantText != "" {
		setTextAttr(root, attrGenAICompletion, payload.AssistantText, e.maxChars)
	}
	for k, v := range payload.EventMeta {
		if k == providerapi.MetaEventKind {
			root.SetAttributes(attribute.String(k, v))
			continue
		}
		root.SetAttributes(attribute.String("payload."+k, v))
	}

	if payload.AssistantText != "" || payload.InputTokens > 0 || payload.OutputTokens > 0 {
		_, resp := e.tracer.Start(rootCtx, "Assistant Response",
			trace.WithTimestamp(req.Turn.StartedAt),
		)
		if payload.Model != "" {
			resp.SetAttributes(attribute.String(attrGenAIModel, payload.Model))
		}
		if payload.AssistantText != "" {
			setTextAttr(resp, attrGenAICompletion, payload.AssistantText, e.maxChars)
		}
		if payload.InputTokens > 0 {
			resp.SetAttributes(attribute.Int64(attrInputTokens, payload.InputTokens))
		}
		if payload.OutputTokens > 0 {
			resp.SetAttributes(attribute.Int64(attrOutputTokens, payload.OutputTokens))
		}
		resp.End(trace.WithTimestamp(req.Turn.EndedAt))
	}

	for _, call := range payload.ToolCalls {
		name := call.Name
		if name == "" {
			name = "unknown"
		}
		_, span := e.tracer.Start(rootCtx, "Tool: "+name,
			trace.WithTimestamp(req.Turn.StartedAt),
		)
		if call.ID != "" {
			span.SetAttributes(attribute.String("tool.id", call.ID))
		}
		if call.Input != "" {
			setTextAttr(span, "tool.input", call.Input, e.maxChars)
		}
		if call.Result != "" {
			setTextAttr(span, "tool.result", call.Result, e.maxChars)
		}
		span.End(trace.WithTimestamp(req.Turn.EndedAt))
	}

	root.End(trace.WithTimestamp(req.Turn.EndedAt))
	return nil
}

func (e *otelEmitter) Flush(ctx context.Context) error {
	if err := e.tp.ForceFlush(ctx); err != nil {
		return &providerapi.Error{Provider: e.name, Op: "flush", Err: err}
	}
	return nil
}

func (e *otelEmitter) Shutdown(ctx context.Context) error {
	var err error
	e.shutdownOnce.Do(func() {
		if shutdownErr := e.tp.Shutdown(ctx); shutdownErr != nil {
			err = &providerapi.Error{Provider: e.name, Op: "shutdown", Err: shutdownErr}
		}
	})
	return err
}

// setTextAttr records a possibly-truncated text attribute. When text
// is cut, companion attributes identify the full original.
func setTextAttr(span trace.Span, key, text string, max int) {
	kept, note := Truncate(text, max)
	span.SetAttributes(attribute.String(key, kept))
	if note.Truncated {
		span.SetAttributes(
			attribute.Bool(key+".truncated", true),
			attribute.Int(key+".orig_len", note.OrigLen),
			attribute.Int(key+".kept_len", note.KeptLen),
			attribute.String(key+".sha256", note.SHA256),
		)
	}
}
