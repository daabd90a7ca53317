package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"hooktrace/internal/config"
	"hooktrace/pkg/providerapi"
)

const datadogTracePath = "/v0.3/traces"

// ddSpan is the Datadog agent trace wire format. Ids are 63-bit, all
// timestamps nanoseconds, all meta values strings.
type ddSpan struct {
	TraceID  uint64             `json:"trace_id"`
	SpanID   uint64             `json:"span_id"`
	ParentID uint64             `json:"parent_id,omitempty"`
	Name     string             `json:"name"`
	Resource string             `json:"resource"`
	Service  string             `json:"service"`
	Type     string             `json:"type"`
	Start    int64              `json:"start"`
	Duration int64              `json:"duration"`
	Meta     map[string]string  `json:"meta,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Error    int32              `json:"error"`
}

// datadogProvider buffers one trace per turn and PUTs the batch to the
// local agent on Flush. No Datadog SDK involved; the v0.3 JSON API is
// small enough to speak directly.
type datadogProvider struct {
	url      string
	service  string
	env      string
	maxChars int
	client   *http.Client

	traces [][]ddSpan
}

func newDatadog(cfg config.Config) *datadogProvider {
	host := cfg.Datadog.AgentHost
	if host == "" {
		host = config.DefaultDatadogHost
	}
	port := cfg.Datadog.AgentPort
	if port == 0 {
		port = config.DefaultDatadogPort
	}
	service := cfg.Datadog.Service
	if service == "" {
		service = config.DefaultServiceName
	}
	return &datadogProvider{
		url:      fmt.Sprintf("http://%s:%d%s", host, port, datadogTracePath),
		service:  service,
		env:      cfg.Datadog.Env,
		maxChars: cfg.Pipeline.MaxChars,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *datadogProvider) EmitTurn(ctx context.Context, req providerapi.EmitRequest) error {
	payload := ShapeTurn(req.Turn)
	traceID := newDDID()
	start := req.Turn.StartedAt.UnixNano()
	duration := req.Turn.EndedAt.Sub(req.Turn.StartedAt).Nanoseconds()
	if duration <= 0 {
		duration = 1
	}

	rootMeta := map[string]string{
		"session.id":    req.Turn.SessionID,
		"source.tool":   req.SourceTool,
		"invocation.id": req.InvocationID,
		"gen_ai.system": vendorFor(req.SourceTool),
	}
	if req.TranscriptPath != "" {
		rootMeta["transcript.path"] = req.TranscriptPath
	}
	if d.env != "" {
		rootMeta["env"] = d.env
	}
	if payload.Model != "" {
		rootMeta["gen_ai.request.model"] = payload.Model
	}
	putTextMeta(rootMeta, "gen_ai.prompt", payload.UserText, d.maxChars)
	putTextMeta(rootMeta, "gen_ai.completion", payload.AssistantText, d.maxChars)
	for k, v := range payload.EventMeta {
		if k == providerapi.MetaEventKind {
			rootMeta[k] = v
			continue
		}
		rootMeta["payload."+k] = v
	}

	root := ddSpan{
		TraceID:  traceID,
		SpanID:   newDDID(),
		Name:     "hooktrace.turn",
		Resource: fmt.Sprintf("%s - Turn %d", req.SourceTool, req.Turn.TurnNum),
		Service:  d.service,
		Type:     "custom",
		Start:    start,
		Duration: duration,
		Meta:     rootMeta,
	}

	spans := []ddSpan{root}
	if payload.AssistantText != "" || payload.InputTokens > 0 || payload.OutputTokens > 0 {
		meta := map[string]string{}
		if payload.Model != "" {
			meta["gen_ai.request.model"] = payload.Model
		}
		putTextMeta(meta, "gen_ai.completion", payload.AssistantText, d.maxChars)
		span := ddSpan{
			TraceID:  traceID,
			SpanID:   newDDID(),
			ParentID: root.SpanID,
			Name:     "hooktrace.response",
			Resource: "Assistant Response",
			Service:  d.service,
			Type:     "custom",
			Start:    start,
			Duration: duration,
			Meta:     meta,
		}
		if payload.InputTokens > 0 || payload.OutputTokens > 0 {
			span.Metrics = map[string]float64{}
			if payload.InputTokens > 0 {
				span.Metrics["gen_ai.usage.input_tokens"] = float64(payload.InputTokens)
			}
			if payload.OutputTokens > 0 {
				span.Metrics["gen_ai.usage.output_tokens"] = float64(payload.OutputTokens)
			}
		}
		spans = append(spans, span)
	}
	for _, call := range payload.ToolCalls {
		name := call.Name
		if name == "" {
			name = "unknown"
		}
		meta := map[string]string{}
		if call.ID != "" {
			meta["tool.id"] = call.ID
		}
		putTextMeta(meta, "tool.input", call.Input, d.maxChars)
		putTextMeta(meta, "tool.result", call.Result, d.maxChars)
		spans = append(spans, ddSpan{
			TraceID:  traceID,
			SpanID:   newDDID(),
			ParentID: root.SpanID,
			Name:     "hooktrace.tool",
			Resource: "Tool: " + name,
			Service:  d.service,
			Type:     "custom",
			Start:    start,
			Duration: duration,
			Meta:     meta,
		})
	}

	d.traces = append(d.traces, spans)
	return nil
}

func (d *datadogProvider) Flush(ctx context.Context) error {
	if len(d.traces) == 0 {
		return nil
	}

	body, err := json.Marshal(d.traces)
	if err != nil {
		return &providerapi.Error{Provider: "datadog", Op: "flush", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.url, bytes.NewReader(body))
	if err != nil {
		return &providerapi.Error{Provider: "datadog", Op: "flush", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Datadog-Trace-Count", strconv.Itoa(len(d.traces)))

	resp, err := d.client.Do(req)
	if err != nil {
		return &providerapi.Error{Provider: "datadog", Op: "flush", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &providerapi.Error{
			Provider: "datadog",
			Op:       "flush",
			Err:      fmt.Errorf("agent returned %d: %s", resp.StatusCode, msg),
		}
	}

	d.traces = nil
	return nil
}

func (d *datadogProvider) Shutdown(ctx context.Context) error {
	return d.Flush(ctx)
}

func putTextMeta(meta map[string]string, key, text string, max int) {
	if text == "" {
		return
	}
	kept, note := Truncate(text, max)
	meta[key] = kept
	if note.Truncated {
		meta[key+".truncated"] = "true"
		meta[key+".orig_len"] = strconv.Itoa(note.OrigLen)
		meta[key+".kept_len"] = strconv.Itoa(note.KeptLen)
		meta[key+".sha256"] = note.SHA256
	}
}

// newDDID draws a random 63-bit id. The agent API rejects ids with the
// high bit set.
func newDDID() uint64 {
	id := rand.Uint64() >> 1
	if id == 0 {
		id = 1
	}
	return id
}
