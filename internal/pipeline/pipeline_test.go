package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hooktrace/internal/audit"
	"hooktrace/internal/config"
	"hooktrace/internal/event"
	"hooktrace/internal/state"
	"hooktrace/internal/transcript"
	"hooktrace/pkg/providerapi"
)

// sinkRecorder is a provider that remembers everything and fails on
// demand.
type sinkRecorder struct {
	emits     []providerapi.EmitRequest
	flushes   int
	shutdowns int

	failTurns map[int]bool
	failFlush bool
}

func (r *sinkRecorder) EmitTurn(ctx context.Context, req providerapi.EmitRequest) error {
	if r.failTurns[req.Turn.TurnNum] {
		return &providerapi.Error{Provider: "fake", Op: "emit", Err: errors.New("transient")}
	}
	r.emits = append(r.emits, req)
	return nil
}

func (r *sinkRecorder) Flush(ctx context.Context) error {
	r.flushes++
	if r.failFlush {
		return &providerapi.Error{Provider: "fake", Op: "flush", Err: errors.New("backend down")}
	}
	return nil
}

func (r *sinkRecorder) Shutdown(ctx context.Context) error {
	r.shutdowns++
	return nil
}

func (r *sinkRecorder) turnNums() []int {
	nums := make([]int, 0, len(r.emits))
	for _, e := range r.emits {
		nums = append(nums, e.Turn.TurnNum)
	}
	return nums
}

type fixture struct {
	svc          *Service
	rec          *sinkRecorder
	root         string
	factoryCalls int
	factoryName  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := state.NewStore(root, 250*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Storage.Root = root

	f := &fixture{rec: &sinkRecorder{}, root: root}
	f.svc = &Service{
		Registry: event.NewRegistry(),
		Store:    store,
		Config:   cfg,
		NewProvider: func(ctx context.Context, name string, cfg config.Config) (providerapi.Provider, error) {
			f.factoryCalls++
			f.factoryName = name
			return f.rec, nil
		},
	}
	return f
}

// states returns all committed session states under the fixture root.
func (f *fixture) states(t *testing.T) []state.SessionState {
	t.Helper()
	out, err := state.ListSessions(f.root)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	return out
}

func (f *fixture) state(t *testing.T) state.SessionState {
	t.Helper()
	out := f.states(t)
	if len(out) != 1 {
		t.Fatalf("expected 1 session state, got %d", len(out))
	}
	return out[0]
}

func userLine(text string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":"2025-03-01T10:00:00Z","message":{"role":"user","content":%q}}`, text)
}

func assistantLine(id, text string) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":"2025-03-01T10:00:05Z","message":{"id":%q,"role":"assistant","model":"claude-sonnet-4-5","stop_reason":"end_turn","content":[{"type":"text","text":%q}],"usage":{"input_tokens":9,"output_tokens":4}}}`, id, text)
}

func writeTranscript(t *testing.T, path string, lines ...string) string {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return content
}

func appendTranscript(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("append transcript: %v", err)
	}
}

func stopPayload(session, transcriptPath string) []byte {
	return []byte(fmt.Sprintf(`{"session_id":%q,"transcript_path":%q,"hook_event_name":"Stop"}`, session, transcriptPath))
}

func TestRunStopEmitsClosedTurns(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := writeTranscript(t, path,
		userLine("hello"),
		assistantLine("msg_1", "hi there"),
		userLine("and again"),
		assistantLine("msg_2", "still here"),
	)

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Turns != 2 || report.Emitted != 2 {
		t.Fatalf("report turns/emitted = %d/%d, want 2/2", report.Turns, report.Emitted)
	}
	if len(report.ProviderErrors) != 0 {
		t.Fatalf("unexpected provider errors: %v", report.ProviderErrors)
	}
	if report.InvocationID == "" {
		t.Error("report has no invocation id")
	}

	if len(f.rec.emits) != 2 {
		t.Fatalf("expected 2 emits, got %d", len(f.rec.emits))
	}
	first := f.rec.emits[0]
	if first.Turn.TurnNum != 1 || first.SourceTool != "claude" || first.TranscriptPath != path {
		t.Errorf("unexpected first emit: %+v", first)
	}
	if first.InvocationID != report.InvocationID {
		t.Errorf("emit invocation id %q != report %q", first.InvocationID, report.InvocationID)
	}
	segs := first.Turn.Segments
	if len(segs) != 2 || segs[0].Role != providerapi.RoleUser || segs[1].Role != providerapi.RoleAssistant {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if segs[0].Content != "hello" {
		t.Errorf("user content = %q", segs[0].Content)
	}
	if f.rec.flushes != 1 || f.rec.shutdowns != 1 {
		t.Errorf("flushes/shutdowns = %d/%d, want 1/1", f.rec.flushes, f.rec.shutdowns)
	}

	st := f.state(t)
	if st.Offset != int64(len(content)) || st.TurnCount != 2 {
		t.Errorf("state = offset %d turns %d, want %d/2", st.Offset, st.TurnCount, len(content))
	}
	if report.Offset != st.Offset || report.TurnCount != st.TurnCount {
		t.Errorf("report cursor %d/%d does not match state %d/%d", report.Offset, report.TurnCount, st.Offset, st.TurnCount)
	}
}

func TestRunSecondInvocationReadsOnlyNewContent(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path, userLine("one"), assistantLine("msg_1", "first"))

	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	appendTranscript(t, path, userLine("two"), assistantLine("msg_2", "second"))
	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Turns != 1 {
		t.Fatalf("second run built %d turns, want 1", report.Turns)
	}

	nums := f.rec.turnNums()
	if len(nums) != 2 || nums[0] != 1 || nums[1] != 2 {
		t.Fatalf("turn numbers = %v, want [1 2]", nums)
	}
	if got := f.rec.emits[1].Turn.Segments[0].Content; got != "two" {
		t.Errorf("second turn user content = %q", got)
	}
	if st := f.state(t); st.TurnCount != 2 {
		t.Errorf("turn count = %d, want 2", st.TurnCount)
	}
}

func TestRunWithholdsOpenTrailingTurn(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	closed := writeTranscript(t, path,
		userLine("done question"),
		assistantLine("msg_1", "done answer"),
		userLine("still thinking about this one"),
	)
	closedLen := int64(len(closed)) - int64(len(userLine("still thinking about this one"))+1)

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Turns != 1 {
		t.Fatalf("turns = %d, want 1 (trailing open turn withheld)", report.Turns)
	}
	if st := f.state(t); st.Offset != closedLen {
		t.Fatalf("offset = %d, want %d (start of the open turn)", st.Offset, closedLen)
	}

	appendTranscript(t, path, assistantLine("msg_2", "now closed"))
	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	nums := f.rec.turnNums()
	if len(nums) != 2 || nums[1] != 2 {
		t.Fatalf("turn numbers = %v, want [1 2]", nums)
	}
}

func TestRunNonTriggeringKindIsRecognizedNoop(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`{"session_id":"sess-1","transcript_path":"/nowhere.jsonl","hook_event_name":"PreToolUse"}`)

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: payload})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Skipped || report.Turns != 0 {
		t.Fatalf("expected skipped zero-turn report, got %+v", report)
	}
	if f.factoryCalls != 0 {
		t.Errorf("provider constructed for a non-triggering kind")
	}
	if got := len(f.states(t)); got != 0 {
		t.Errorf("state committed for a non-triggering kind (%d files)", got)
	}
}

func TestRunUnknownToolHintFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Run(context.Background(), Request{Tool: "vimgpt", Payload: []byte(`{}`)})
	var aerr *event.AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "ADP_") {
		t.Errorf("error = %q, want ADP_ prefix", err)
	}
}

func TestRunMalformedPayloadFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: []byte(`{"hook_event_name":"Stop"}`)})
	var aerr *event.AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AdapterError for missing session, got %v", err)
	}
	if got := len(f.states(t)); got != 0 {
		t.Errorf("state committed on adapter failure")
	}
}

func TestRunMissingTranscriptFailsWithoutStateChange(t *testing.T) {
	f := newFixture(t)
	payload := stopPayload("sess-1", filepath.Join(t.TempDir(), "gone.jsonl"))

	_, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: payload})
	var rerr *transcript.ReadError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if got := len(f.states(t)); got != 0 {
		t.Errorf("state committed on read failure")
	}
}

func TestRunLockTimeoutLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))

	holder, err := f.svc.Store.Acquire("claude", "sess-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer holder.Release()

	_, err = f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	var lerr *state.LockTimeoutError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LockTimeoutError, got %v", err)
	}
	if got := len(f.states(t)); got != 0 {
		t.Errorf("state committed by the losing invocation")
	}
	if len(f.rec.emits) != 0 {
		t.Errorf("turns emitted without the lock")
	}
}

func TestRunProviderFailureBestEffortAdvancesPastAll(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := writeTranscript(t, path,
		userLine("a"), assistantLine("msg_1", "1"),
		userLine("b"), assistantLine("msg_2", "2"),
		userLine("c"), assistantLine("msg_3", "3"),
	)
	f.rec.failTurns = map[int]bool{3: true}

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Emitted != 2 || len(report.ProviderErrors) != 1 {
		t.Fatalf("emitted/errors = %d/%d, want 2/1", report.Emitted, len(report.ProviderErrors))
	}
	st := f.state(t)
	if st.Offset != int64(len(content)) || st.TurnCount != 3 {
		t.Errorf("state = %d/%d, want %d/3 (failed turn dropped, cursor advanced)", st.Offset, st.TurnCount, len(content))
	}
}

func TestRunAtLeastOnceRetriesFailedTurn(t *testing.T) {
	f := newFixture(t)
	f.svc.Config.Pipeline.ExportMode = config.ExportAtLeastOnce
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path,
		userLine("a"), assistantLine("msg_1", "1"),
		userLine("b"), assistantLine("msg_2", "2"),
		userLine("c"), assistantLine("msg_3", "3"),
	)
	turn1End := int64(len(userLine("a")) + 1 + len(assistantLine("msg_1", "1")) + 1)
	f.rec.failTurns = map[int]bool{2: true}

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if report.Emitted != 1 {
		t.Fatalf("emitted = %d, want 1 (dispatch stops at the failed turn)", report.Emitted)
	}
	st := f.state(t)
	if st.Offset != turn1End || st.TurnCount != 1 {
		t.Fatalf("state = %d/%d, want %d/1", st.Offset, st.TurnCount, turn1End)
	}

	f.rec.failTurns = nil
	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	nums := f.rec.turnNums()
	if len(nums) != 3 || nums[0] != 1 || nums[1] != 2 || nums[2] != 3 {
		t.Fatalf("turn numbers = %v, want contiguous [1 2 3] with no repeats", nums)
	}
	if st := f.state(t); st.TurnCount != 3 {
		t.Errorf("final turn count = %d, want 3", st.TurnCount)
	}
}

func TestRunAtLeastOnceFlushFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.svc.Config.Pipeline.ExportMode = config.ExportAtLeastOnce
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))
	f.rec.failFlush = true

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.ProviderErrors) != 1 {
		t.Fatalf("provider errors = %v, want the flush failure", report.ProviderErrors)
	}
	if got := len(f.states(t)); got != 0 {
		t.Fatalf("state committed despite failed flush")
	}

	f.rec.failFlush = false
	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	// The turn exports again; duplicates are the documented cost.
	if len(f.rec.emits) != 2 {
		t.Fatalf("expected re-emission after rollback, emits = %d", len(f.rec.emits))
	}
	if st := f.state(t); st.TurnCount != 1 {
		t.Errorf("turn count = %d, want 1", st.TurnCount)
	}
}

func TestRunBestEffortFlushFailureStillCommits(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))
	f.rec.failFlush = true

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.ProviderErrors) != 1 {
		t.Fatalf("provider errors = %v", report.ProviderErrors)
	}
	if st := f.state(t); st.Offset != int64(len(content)) {
		t.Errorf("offset = %d, want %d", st.Offset, len(content))
	}
}

func TestRunProviderConstructionFailure(t *testing.T) {
	t.Run("best effort commits", func(t *testing.T) {
		f := newFixture(t)
		f.svc.NewProvider = func(ctx context.Context, name string, cfg config.Config) (providerapi.Provider, error) {
			return nil, &providerapi.Error{Provider: name, Op: "config", Err: errors.New("missing keys")}
		}
		path := filepath.Join(t.TempDir(), "session.jsonl")
		content := writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))

		report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(report.ProviderErrors) != 1 || !strings.HasPrefix(report.ProviderErrors[0], "PRV_CONFIG") {
			t.Fatalf("provider errors = %v", report.ProviderErrors)
		}
		if st := f.state(t); st.Offset != int64(len(content)) {
			t.Errorf("offset = %d, want %d", st.Offset, len(content))
		}
	})

	t.Run("at least once holds position", func(t *testing.T) {
		f := newFixture(t)
		f.svc.Config.Pipeline.ExportMode = config.ExportAtLeastOnce
		f.svc.NewProvider = func(ctx context.Context, name string, cfg config.Config) (providerapi.Provider, error) {
			return nil, &providerapi.Error{Provider: name, Op: "config", Err: errors.New("missing keys")}
		}
		path := filepath.Join(t.TempDir(), "session.jsonl")
		writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))

		if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := len(f.states(t)); got != 0 {
			t.Errorf("state committed with no exporter in at-least-once mode")
		}
	})
}

func TestRunCoarseToolEmitsOneTurnPerKind(t *testing.T) {
	f := newFixture(t)
	payloads := [][]byte{
		[]byte(`{"conversation_id":"conv-1","hook_event_name":"beforeSubmitPrompt"}`),
		[]byte(`{"conversation_id":"conv-1","hook_event_name":"afterFileEdit"}`),
		[]byte(`{"conversation_id":"conv-1","hook_event_name":"stop","status":"completed"}`),
	}
	for i, payload := range payloads {
		report, err := f.svc.Run(context.Background(), Request{Tool: "cursor", Payload: payload})
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if report.Turns != 1 || report.Emitted != 1 {
			t.Fatalf("run %d turns/emitted = %d/%d, want 1/1", i, report.Turns, report.Emitted)
		}
	}

	if len(f.rec.emits) != 3 {
		t.Fatalf("expected 3 coarse turns, got %d", len(f.rec.emits))
	}
	nums := f.rec.turnNums()
	for i, n := range nums {
		if n != i+1 {
			t.Fatalf("turn numbers = %v, want [1 2 3]", nums)
		}
	}
	for _, e := range f.rec.emits {
		if e.SourceTool != "cursor" || e.TranscriptPath != "" {
			t.Errorf("unexpected coarse emit: tool %q path %q", e.SourceTool, e.TranscriptPath)
		}
	}
	last := f.rec.emits[2].Turn
	if len(last.Segments) != 1 || last.Segments[0].Role != providerapi.RoleLifecycle {
		t.Fatalf("unexpected coarse segments: %+v", last.Segments)
	}
	if got := last.Segments[0].Metadata[providerapi.MetaEventKind]; got != "stop" {
		t.Errorf("event kind = %q", got)
	}

	st := f.state(t)
	if st.Offset != 0 || st.TurnCount != 3 {
		t.Errorf("state = %d/%d, want 0/3 (no transcript cursor for coarse tools)", st.Offset, st.TurnCount)
	}
}

func TestRunSameKindNameDistinctTools(t *testing.T) {
	f := newFixture(t)
	cursorStop := []byte(`{"conversation_id":"conv-1","hook_event_name":"stop"}`)
	if _, err := f.svc.Run(context.Background(), Request{Tool: "cursor", Payload: cursorStop}); err != nil {
		t.Fatalf("cursor run: %v", err)
	}

	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))
	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("conv-1", path)}); err != nil {
		t.Fatalf("claude run: %v", err)
	}

	if len(f.rec.emits) != 2 {
		t.Fatalf("expected 2 emits, got %d", len(f.rec.emits))
	}
	if f.rec.emits[0].SourceTool != "cursor" || f.rec.emits[1].SourceTool != "claude" {
		t.Errorf("source tools = %q/%q; the hint must disambiguate", f.rec.emits[0].SourceTool, f.rec.emits[1].SourceTool)
	}
	if got := len(f.states(t)); got != 2 {
		t.Errorf("expected 2 independent session states, got %d", got)
	}
}

func TestRunProviderOverride(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))

	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("s", path), Provider: "datadog"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.factoryName != "datadog" {
		t.Errorf("factory got provider %q, want the override", f.factoryName)
	}

	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("s2", path)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.factoryName != f.svc.Config.Pipeline.Provider {
		t.Errorf("factory got %q, want configured default %q", f.factoryName, f.svc.Config.Pipeline.Provider)
	}
}

func TestRunFansOutToAttributionSink(t *testing.T) {
	f := newFixture(t)
	attrib := &sinkRecorder{}
	f.svc.Attribution = attrib
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path,
		userLine("a"), assistantLine("msg_1", "1"),
		userLine("b"), assistantLine("msg_2", "2"),
	)

	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(attrib.emits) != 2 || attrib.flushes != 1 {
		t.Fatalf("attribution emits/flushes = %d/%d, want 2/1", len(attrib.emits), attrib.flushes)
	}
}

func TestRunAttributionFailureNeverGatesCommit(t *testing.T) {
	f := newFixture(t)
	attrib := &sinkRecorder{failFlush: true, failTurns: map[int]bool{1: true}}
	f.svc.Attribution = attrib
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))

	report, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Emitted != 1 {
		t.Fatalf("emitted = %d, want 1 (exporter unaffected)", report.Emitted)
	}
	if len(report.ProviderErrors) != 2 {
		t.Fatalf("provider errors = %v, want emit and flush failures recorded", report.ProviderErrors)
	}
	if st := f.state(t); st.Offset != int64(len(content)) {
		t.Errorf("offset = %d, want %d", st.Offset, len(content))
	}
}

func TestRunWritesAuditTrail(t *testing.T) {
	f := newFixture(t)
	auditPath := filepath.Join(f.root, "audit.log")
	f.svc.Audit = audit.New(auditPath)
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeTranscript(t, path, userLine("hi"), assistantLine("msg_1", "hello"))

	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: stopPayload("sess-1", path)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	skipPayload := []byte(`{"session_id":"sess-1","transcript_path":"x","hook_event_name":"PreToolUse"}`)
	if _, err := f.svc.Run(context.Background(), Request{Tool: "claude", Payload: skipPayload}); err != nil {
		t.Fatalf("skip Run: %v", err)
	}

	blob, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(blob)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected a start/complete pair per run, got %d events", len(lines))
	}
	events := make([]audit.Event, len(lines))
	for i, line := range lines {
		if err := json.Unmarshal([]byte(line), &events[i]); err != nil {
			t.Fatalf("decode event %d: %v", i, err)
		}
	}
	if events[0].Phase != "start" || events[1].Phase != "complete" {
		t.Errorf("first run phases = %s/%s", events[0].Phase, events[1].Phase)
	}
	if events[1].Operation != audit.OpHookInvocation || events[1].Status != audit.StatusOK {
		t.Errorf("first completion = %s/%s", events[1].Operation, events[1].Status)
	}
	if events[1].Tool != "claude" || events[1].SessionID != "sess-1" || events[1].Invocation == "" {
		t.Errorf("first completion missing correlation fields: %+v", events[1])
	}
	if events[0].Invocation != events[1].Invocation {
		t.Errorf("pair not correlated: %q vs %q", events[0].Invocation, events[1].Invocation)
	}
	if events[3].Phase != "complete" || events[3].Status != audit.StatusSkipped {
		t.Errorf("second completion = %s/%s, want complete/skipped", events[3].Phase, events[3].Status)
	}
	if events[2].Invocation == events[0].Invocation {
		t.Errorf("runs share an invocation id: %q", events[2].Invocation)
	}
}
