// Package pipeline runs one hook invocation end to end: normalize the
// raw payload, serialize on the session lock, read what the transcript
// gained since the last committed offset, fold it into turns, hand the
// turns to the configured provider, and commit the advanced cursor.
// Everything is synchronous; nothing outlives the invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"hooktrace/internal/audit"
	"hooktrace/internal/config"
	"hooktrace/internal/event"
	"hooktrace/internal/logging"
	"hooktrace/internal/provider"
	"hooktrace/internal/state"
	"hooktrace/internal/transcript"
	"hooktrace/internal/turn"
	"hooktrace/pkg/providerapi"
)

type Service struct {
	Registry *event.Registry
	Store    *state.Store
	Config   config.Config
	Log      *slog.Logger
	Audit    *audit.Logger

	// Attribution is the optional agent-trace sink. Nil when the
	// feature is off. Coarse turns carry no tool calls, so only the
	// transcript path feeds it.
	Attribution providerapi.Provider

	// NewProvider builds the named export backend. Tests swap it for
	// fakes; nil means the real provider factory.
	NewProvider func(ctx context.Context, name string, cfg config.Config) (providerapi.Provider, error)
}

type Request struct {
	Tool    string
	Payload []byte

	// Provider overrides the configured backend for this invocation.
	Provider string
}

// Report is what one invocation did, for CLI output and the audit log.
type Report struct {
	InvocationID   string   `json:"invocationId"`
	Tool           string   `json:"tool"`
	SessionID      string   `json:"sessionId,omitempty"`
	Kind           string   `json:"kind,omitempty"`
	Skipped        bool     `json:"skipped,omitempty"`
	Turns          int      `json:"turns"`
	Emitted        int      `json:"emitted"`
	ProviderErrors []string `json:"providerErrors,omitempty"`
	Offset         int64    `json:"offset"`
	TurnCount      int      `json:"turnCount"`
}

// Run handles one raw hook payload. The returned error is one of the
// aborting kinds (adapter, lock, transcript read, state commit) and
// maps to a non-zero exit; export failures are folded into the report
// instead, because telemetry must never fail the host tool.
func (s *Service) Run(ctx context.Context, req Request) (Report, error) {
	report := Report{InvocationID: uuid.NewString(), Tool: req.Tool}
	if s.Registry == nil || s.Store == nil {
		return report, fmt.Errorf("PIPE_SETUP: pipeline dependencies not configured")
	}
	log := s.logger().With("invocation_id", report.InvocationID, "tool", req.Tool)

	ev, err := s.Registry.Normalize(req.Tool, req.Payload)
	if err != nil {
		s.audit("complete", report, audit.StatusError, errorCode(err))
		return report, err
	}
	report.Tool = ev.SourceTool
	report.SessionID = ev.SessionID
	report.Kind = string(ev.Kind)
	log = log.With("session_id", ev.SessionID, "kind", ev.Kind)
	s.audit("start", report, audit.StatusOK, "")

	full := event.HasTranscript(ev.SourceTool)
	if full && !event.TriggersRead(ev.Kind) {
		report.Skipped = true
		log.Debug("event kind closes no turns")
		s.audit("complete", report, audit.StatusSkipped, "")
		return report, nil
	}

	providerName := req.Provider
	if providerName == "" {
		providerName = config.ToolProvider(s.Config, ev.SourceTool)
	}
	// Built before the lock so a misconfigured backend fails without
	// touching any state.
	exporter := s.buildExporter(ctx, log, &report, providerName)
	if exporter != nil {
		defer func() {
			if err := exporter.Shutdown(ctx); err != nil {
				log.Error("provider shutdown failed", "provider", providerName, "error", err)
			}
		}()
	}

	sess, err := s.Store.Acquire(ev.SourceTool, ev.SessionID)
	if err != nil {
		s.audit("complete", report, audit.StatusError, errorCode(err))
		return report, err
	}
	defer sess.Release()
	report.Offset = sess.State.Offset
	report.TurnCount = sess.State.TurnCount

	if full {
		err = s.runFull(ctx, log, &report, ev, sess, exporter)
	} else {
		err = s.runCoarse(ctx, log, &report, ev, sess, exporter)
	}
	if err != nil {
		s.audit("complete", report, audit.StatusError, errorCode(err))
		return report, err
	}
	s.audit("complete", report, audit.StatusOK, "")
	return report, nil
}

// runFull is the transcript path: read from the committed offset, fold
// records into turns, dispatch in turn order, commit per export mode.
func (s *Service) runFull(ctx context.Context, log *slog.Logger, report *Report, ev event.HookEvent, sess *state.Session, exporter providerapi.Provider) error {
	if ev.TranscriptPath == "" {
		return &transcript.ReadError{Path: "", Err: errors.New("hook payload names no transcript")}
	}
	res, err := transcript.ReadNew(ev.SourceTool, ev.TranscriptPath, sess.State.Offset)
	if err != nil {
		return err
	}
	built, consumed := turn.Build(res.Records, ev.SessionID, sess.State.TurnCount, res.Base)
	report.Turns = len(built)
	log.Debug("transcript read",
		"records", len(res.Records),
		"turns", len(built),
		"from", res.Base,
		"consumed", consumed)

	attrib := s.Attribution
	atLeastOnce := s.Config.Pipeline.ExportMode == config.ExportAtLeastOnce

	// confirmedEnd tracks the offset just past the last turn the
	// exporter accepted, for the partial commit in at-least-once mode.
	confirmed := 0
	confirmedEnd := res.Base
	for _, bt := range built {
		emitReq := providerapi.EmitRequest{
			Turn:           bt.Turn,
			SourceTool:     ev.SourceTool,
			TranscriptPath: ev.TranscriptPath,
			InvocationID:   report.InvocationID,
		}
		if exporter == nil {
			if atLeastOnce {
				break
			}
		} else if err := exporter.EmitTurn(ctx, emitReq); err != nil {
			s.noteProviderError(log, report, err)
			if atLeastOnce {
				// The failed turn stays unconsumed; the next
				// invocation re-reads it from confirmedEnd.
				break
			}
		} else {
			report.Emitted++
			confirmed++
			confirmedEnd = bt.EndOffset
		}
		if attrib != nil {
			if err := attrib.EmitTurn(ctx, emitReq); err != nil {
				s.noteProviderError(log, report, err)
			}
		}
	}

	flushOK := s.flushSinks(ctx, log, report, exporter, attrib)

	next := sess.State
	switch {
	case !atLeastOnce:
		next.Offset = consumed
		next.TurnCount += len(built)
	case flushOK && confirmed == len(built):
		next.Offset = consumed
		next.TurnCount += len(built)
	case flushOK:
		next.Offset = confirmedEnd
		next.TurnCount += confirmed
	default:
		// Flush failed with buffered turns in flight; nothing is
		// known delivered, so the whole invocation re-runs later.
	}
	if next.Offset != sess.State.Offset || next.TurnCount != sess.State.TurnCount {
		if err := sess.Commit(next); err != nil {
			return err
		}
	}
	report.Offset = next.Offset
	report.TurnCount = next.TurnCount
	return nil
}

// runCoarse is the no-transcript path: one synthetic turn per event,
// only the turn count advances.
func (s *Service) runCoarse(ctx context.Context, log *slog.Logger, report *Report, ev event.HookEvent, sess *state.Session, exporter providerapi.Provider) error {
	turnNum := sess.State.TurnCount + 1
	report.Turns = 1

	emitReq := providerapi.EmitRequest{
		Turn:         turn.Coarse(ev, turnNum),
		SourceTool:   ev.SourceTool,
		InvocationID: report.InvocationID,
	}
	confirmed := false
	if exporter != nil {
		if err := exporter.EmitTurn(ctx, emitReq); err != nil {
			s.noteProviderError(log, report, err)
		} else {
			report.Emitted++
			confirmed = true
		}
	}
	flushOK := s.flushSinks(ctx, log, report, exporter, nil)

	next := sess.State
	if s.Config.Pipeline.ExportMode != config.ExportAtLeastOnce || (confirmed && flushOK) {
		next.TurnCount = turnNum
	}
	if next.TurnCount != sess.State.TurnCount {
		if err := sess.Commit(next); err != nil {
			return err
		}
	}
	report.TurnCount = next.TurnCount
	return nil
}

func (s *Service) buildExporter(ctx context.Context, log *slog.Logger, report *Report, name string) providerapi.Provider {
	factory := s.NewProvider
	if factory == nil {
		factory = provider.New
	}
	p, err := factory(ctx, name, s.Config)
	if err != nil {
		s.noteProviderError(log, report, err)
		return nil
	}
	return p
}

// flushSinks flushes both sinks but only the exporter's outcome gates
// the state commit.
func (s *Service) flushSinks(ctx context.Context, log *slog.Logger, report *Report, exporter, attrib providerapi.Provider) bool {
	ok := true
	if exporter != nil {
		if err := exporter.Flush(ctx); err != nil {
			s.noteProviderError(log, report, err)
			ok = false
		}
	}
	if attrib != nil {
		if err := attrib.Flush(ctx); err != nil {
			s.noteProviderError(log, report, err)
		}
	}
	return ok
}

func (s *Service) noteProviderError(log *slog.Logger, report *Report, err error) {
	report.ProviderErrors = append(report.ProviderErrors, err.Error())
	log.Error("provider export failed", "error", err)
}

func (s *Service) audit(phase string, report Report, status, code string) {
	fields := map[string]string{}
	if report.Kind != "" {
		fields["kind"] = report.Kind
	}
	if report.Turns > 0 {
		fields["turns"] = strconv.Itoa(report.Turns)
		fields["emitted"] = strconv.Itoa(report.Emitted)
	}
	if n := len(report.ProviderErrors); n > 0 {
		fields["provider_errors"] = strconv.Itoa(n)
	}
	_ = s.Audit.Log(audit.Event{
		Operation:  audit.OpHookInvocation,
		Phase:      phase,
		Status:     status,
		Tool:       report.Tool,
		SessionID:  report.SessionID,
		Invocation: report.InvocationID,
		Code:       code,
		Fields:     fields,
	})
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logging.Discard()
}

// errorCode pulls the CODE_PREFIX off a taxonomy error message.
func errorCode(err error) string {
	msg := err.Error()
	for i := 0; i < len(msg); i++ {
		if msg[i] == ':' {
			return msg[:i]
		}
	}
	return ""
}
