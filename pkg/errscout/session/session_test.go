package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
	"github.com/randalmurphal/errscout/pkg/errscout/classify"
	"github.com/randalmurphal/errscout/pkg/errscout/journal"
	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/planner"
	"github.com/randalmurphal/errscout/pkg/errscout/probe"
	"github.com/randalmurphal/errscout/pkg/errscout/retry"
	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
	"github.com/randalmurphal/errscout/pkg/errscout/transport"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// notFoundDoer answers every request with a 404 and provider code 10013.
type notFoundDoer struct {
	mu       sync.Mutex
	requests []transport.Request
}

func (d *notFoundDoer) Do(_ context.Context, req transport.Request) (*transport.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return &transport.Response{
		Status: 404,
		Envelope: classify.Envelope{
			Errors: []classify.ProviderError{{Code: 10013, Message: "namespace not found"}},
		},
	}, nil
}

func newTools(t *testing.T) (*Tools, *notFoundDoer) {
	t.Helper()
	doer := &notFoundDoer{}
	exec := probe.New(catalog.Default(), doer, ledger.New(),
		probe.WithPathParams(map[string]string{"account_id": "acct"}),
		probe.WithRetry(retry.None),
		probe.WithClock(func() time.Time { return fixedNow }),
		probe.WithLogger(nil),
	)
	return NewTools(catalog.Default(), exec, WithAnnotationClock(func() time.Time { return fixedNow })), doer
}

func newSession(t *testing.T, opts ...Option) (*Session, *Tools, *notFoundDoer) {
	t.Helper()
	tools, doer := newTools(t)
	base := []Option{WithLogger(nil), WithClock(func() time.Time { return fixedNow })}
	return New(tools, append(base, opts...)...), tools, doer
}

var getValue = planner.Call("KV", "getValue", map[string]any{"namespace_id": "n", "key_name": "k"})

func TestTools_ListServices(t *testing.T) {
	tools, _ := newTools(t)
	text := tools.ListServices()
	assert.True(t, strings.HasPrefix(text, "Services ("))
	assert.Contains(t, text, "- KV: Workers KV namespaces and key-value pairs")
	assert.Contains(t, text, "- R2:")
}

func TestTools_ListOperations(t *testing.T) {
	tools, _ := newTools(t)

	text := tools.ListOperations("KV")
	assert.Contains(t, text, "KV operations (")
	assert.Contains(t, text, "- getValue: GET /accounts/{account_id}/storage/kv/namespaces/{namespace_id}/values/{key_name}")

	bad := tools.ListOperations("kv")
	assert.True(t, strings.HasPrefix(bad, "Usage error: "), bad)
	assert.Contains(t, bad, "Available services: KV")
}

func TestTools_DescribeOperation_ShowsObservedErrors(t *testing.T) {
	tools, _ := newTools(t)
	ctx := context.Background()

	before := tools.DescribeOperation("KV", "getValue")
	assert.Contains(t, before, "Documented errors: AuthenticationError, NotFoundError")
	assert.Contains(t, before, "Observed errors: (none yet)")
	assert.Contains(t, before, "Known provider codes:\n")
	assert.Contains(t, before, "10009, 10013")

	tools.Dispatch(ctx, getValue)

	after := tools.DescribeOperation("KV", "getValue")
	assert.Contains(t, after, "NotFoundError code 10013, 1 occurrences, documented: namespace not found")

	assert.True(t, strings.HasPrefix(tools.DescribeOperation("KV", "nope"), "Usage error: "))
}

func TestTools_DispatchCall(t *testing.T) {
	tools, doer := newTools(t)
	text := tools.Dispatch(context.Background(), getValue)

	assert.Contains(t, text, "Error on KV.getValue")
	assert.Contains(t, text, "Status: documented")
	require.Len(t, doer.requests, 1)
	assert.Equal(t, "/accounts/acct/storage/kv/namespaces/n/values/k", doer.requests[0].Path)
	assert.Equal(t, 1, tools.Ledger().Len())
}

func TestTools_CallAcceptsStringInput(t *testing.T) {
	tools, doer := newTools(t)
	out := tools.Call(context.Background(), "KV", "getValue", json.RawMessage(`"{\"namespace_id\":\"a\",\"key_name\":\"b\"}"`))
	assert.Equal(t, probe.KindDocumented, out.Kind, out.Text)
	require.Len(t, doer.requests, 1)
	assert.Equal(t, "/accounts/acct/storage/kv/namespaces/a/values/b", doer.requests[0].Path)
}

func TestTools_CallNullInput(t *testing.T) {
	tools, _ := newTools(t)
	out := tools.Call(context.Background(), "KV", "listNamespaces", json.RawMessage(`null`))
	assert.Equal(t, probe.KindUndocumented, out.Kind, out.Text)
}

func TestTools_DispatchUsageErrors(t *testing.T) {
	tools, doer := newTools(t)
	ctx := context.Background()

	text := tools.Dispatch(ctx, planner.Action{Tool: "drop_tables"})
	assert.True(t, strings.HasPrefix(text, "Usage error: unknown tool"), text)
	assert.Contains(t, text, "call_operation")

	text = tools.Dispatch(ctx, planner.Action{Tool: planner.ToolCallOperation, Args: json.RawMessage(`[1,2]`)})
	assert.True(t, strings.HasPrefix(text, "Usage error: "), text)

	text = tools.Dispatch(ctx, planner.Call("KV", "getValue", `[1]`))
	assert.True(t, strings.HasPrefix(text, "Usage error: "), text)

	assert.Empty(t, doer.requests)
	assert.Zero(t, tools.Ledger().Len())
}

func TestTools_ReportRename(t *testing.T) {
	tools, _ := newTools(t)
	ctx := context.Background()
	tools.Dispatch(ctx, getValue)
	before := tools.Ledger().Entries()

	text := tools.Dispatch(ctx, planner.Rename("KV", "getValue", "NotFoundError", "NamespaceNotFoundError", "code 10013 means the namespace"))
	assert.Contains(t, text, "Rename suggestion recorded for KV.getValue: NotFoundError -> NamespaceNotFoundError")
	assert.NotContains(t, text, "Note:")

	anns := tools.Ledger().Annotations()
	require.Len(t, anns, 1)
	assert.Equal(t, ledger.Annotation{
		Service:      "KV",
		Operation:    "getValue",
		CurrentTag:   "NotFoundError",
		SuggestedTag: "NamespaceNotFoundError",
		Reason:       "code 10013 means the namespace",
		Timestamp:    fixedNow,
	}, anns[0])
	assert.Equal(t, before, tools.Ledger().Entries())

	text = tools.ReportRename(planner.RenameArgs{Service: "KV", Operation: "putValue", CurrentTag: "UnknownError", SuggestedTag: "KeyTooLongError"})
	assert.Contains(t, text, "Note: no UnknownError entries have been recorded for KV.putValue yet.")
	assert.NotContains(t, text, "already documented")

	text = tools.ReportRename(planner.RenameArgs{Service: "KV", Operation: "getValue", CurrentTag: "UnknownError", SuggestedTag: "NotFoundError"})
	assert.Contains(t, text, "Note: NotFoundError is already documented for KV.getValue.")
}

func TestTools_ReportRename_Invalid(t *testing.T) {
	tools, _ := newTools(t)
	for _, args := range []planner.RenameArgs{
		{Service: "KV", Operation: "nope", CurrentTag: "A", SuggestedTag: "B"},
		{Service: "KV", Operation: "getValue", SuggestedTag: "B"},
		{Service: "KV", Operation: "getValue", CurrentTag: "A"},
		{Service: "KV", Operation: "getValue", CurrentTag: "A", SuggestedTag: " A "},
	} {
		text := tools.ReportRename(args)
		assert.True(t, strings.HasPrefix(text, "Usage error: "), text)
	}
	assert.Empty(t, tools.Ledger().Annotations())
}

func TestRun_Done(t *testing.T) {
	store := journal.NewMemoryStore()
	s, tools, _ := newSession(t, WithJournal(store), WithRunID("run-1"))

	script := planner.NewScript(planner.ListServices(), getValue, planner.Done("seen enough"))
	result, err := s.Run(context.Background(), script)
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "script", result.Planner)
	assert.Equal(t, StopDone, result.StopReason)
	assert.Equal(t, "seen enough", result.DoneReason)
	assert.Equal(t, 2, result.Rounds)
	require.Len(t, result.History, 2)
	assert.Equal(t, planner.ToolCallOperation, result.History[1].Action.Tool)
	assert.Contains(t, result.History[1].Outcome, "Error on KV.getValue")
	assert.Same(t, tools.Ledger(), result.Ledger)
	assert.Equal(t, 1, result.Ledger.Len())
	assert.Equal(t, fixedNow, result.Started)
	assert.Zero(t, result.Duration())

	turns, err := store.Turns("run-1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "list_services", turns[0].Tool)
	assert.Equal(t, "call_operation", turns[1].Tool)
	assert.Equal(t, "done", turns[2].Tool)
	assert.Equal(t, "seen enough", turns[2].Outcome)
}

func TestRun_IterationCapIsNotAnError(t *testing.T) {
	s, _, doer := newSession(t, WithMaxIterations(3))

	script := planner.NewScript(getValue, getValue, getValue, getValue, getValue)
	result, err := s.Run(context.Background(), script)
	require.NoError(t, err)

	assert.Equal(t, StopIterationCap, result.StopReason)
	assert.Equal(t, 3, result.Rounds)
	assert.Len(t, doer.requests, 3)

	entries := result.Ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Occurrences)
	assert.Equal(t, taxonomy.NotFound, entries[0].Category)
}

func TestRun_DefaultCap(t *testing.T) {
	s, _, _ := newSession(t)
	actions := make([]planner.Action, DefaultMaxIterations+5)
	for i := range actions {
		actions[i] = planner.ListServices()
	}
	result, err := s.Run(context.Background(), planner.NewScript(actions...))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, result.Rounds)
}

func TestRun_Cancelled(t *testing.T) {
	s, _, doer := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx, planner.NewScript(getValue))
	require.Error(t, err)

	var ce *CancellationError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, StopCancelled, result.StopReason)
	assert.Zero(t, result.Rounds)
	assert.Empty(t, doer.requests)
}

// cancellingPlanner cancels the session after a fixed number of actions.
type cancellingPlanner struct {
	after  int
	cancel context.CancelFunc
	calls  int
}

func (p *cancellingPlanner) Name() string { return "cancelling" }

func (p *cancellingPlanner) Next(context.Context, planner.View) (planner.Action, error) {
	p.calls++
	if p.calls == p.after {
		p.cancel()
	}
	return getValue, nil
}

func TestRun_CancelledMidSessionKeepsPartialLedger(t *testing.T) {
	s, _, _ := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &cancellingPlanner{after: 2, cancel: cancel}
	result, err := s.Run(ctx, p)

	var ce *CancellationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Round)
	assert.Equal(t, StopCancelled, result.StopReason)
	assert.Equal(t, 2, result.Rounds)
	// the second probe saw a cancelled context and was not recorded
	require.Equal(t, 1, result.Ledger.Len())
	assert.Contains(t, result.History[1].Outcome, "Request failed (cancelled)")
}

type failingPlanner struct{ err error }

func (p failingPlanner) Name() string { return "failing" }

func (p failingPlanner) Next(context.Context, planner.View) (planner.Action, error) {
	return planner.Action{}, p.err
}

func TestRun_PlannerError(t *testing.T) {
	s, _, _ := newSession(t)
	boom := errors.New("model unavailable")

	result, err := s.Run(context.Background(), failingPlanner{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var pe *PlannerError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "failing", pe.Planner)
	assert.Equal(t, 0, pe.Round)
	assert.Contains(t, err.Error(), "planner failing failed in round 1")

	require.NotNil(t, result)
	assert.Equal(t, StopPlannerError, result.StopReason)
}

func TestRun_NilPlanner(t *testing.T) {
	s, _, _ := newSession(t)
	result, err := s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilPlanner)
	assert.Nil(t, result)
}

func TestRun_JournalFailureIsNotFatal(t *testing.T) {
	store := journal.NewMemoryStore()
	require.NoError(t, store.Close())
	s, _, _ := newSession(t, WithJournal(store))

	result, err := s.Run(context.Background(), planner.NewScript(getValue))
	require.NoError(t, err)
	assert.Equal(t, StopDone, result.StopReason)
	assert.Equal(t, 1, result.Rounds)
}

func TestRun_GeneratesRunID(t *testing.T) {
	s, _, _ := newSession(t)
	result, err := s.Run(context.Background(), planner.NewScript())
	require.NoError(t, err)
	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)
}

// viewRecorder captures the views it is shown.
type viewRecorder struct {
	actions []planner.Action
	views   []planner.View
}

func (p *viewRecorder) Name() string { return "recorder" }

func (p *viewRecorder) Next(_ context.Context, v planner.View) (planner.Action, error) {
	p.views = append(p.views, v)
	if len(p.views) > len(p.actions) {
		return planner.Done("finished"), nil
	}
	return p.actions[len(p.views)-1], nil
}

func TestRun_ViewReflectsLedger(t *testing.T) {
	s, _, _ := newSession(t, WithMaxIterations(10))
	p := &viewRecorder{actions: []planner.Action{getValue, planner.ListServices()}}

	_, err := s.Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, p.views, 3)

	first := p.views[0]
	assert.Equal(t, 0, first.Round)
	assert.Equal(t, 10, first.MaxRounds)
	assert.Empty(t, first.History)
	assert.Zero(t, first.Entries)
	assert.Empty(t, first.Summaries)

	second := p.views[1]
	assert.Equal(t, 1, second.Round)
	require.Len(t, second.History, 1)
	assert.Equal(t, 1, second.Entries)
	assert.Equal(t, ledger.Summary{Total: 1, Documented: 1, Coverage: "100%"}, second.Summaries["KV"])

	assert.Len(t, p.views[2].History, 2)
}

func TestRun_TurnHook(t *testing.T) {
	var seen []planner.Turn
	s, _, _ := newSession(t, WithTurnHook(func(turn planner.Turn) { seen = append(seen, turn) }))

	_, err := s.Run(context.Background(), planner.NewScript(planner.ListServices(), getValue))
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 0, seen[0].Round)
	assert.Equal(t, planner.ToolCallOperation, seen[1].Action.Tool)
}
