// Package session runs the bounded discovery loop.
//
// A Session asks a planner for one action at a time, executes it through
// Tools and feeds the outcome back, until the planner is done, the round
// cap is reached or the context is cancelled. Whatever stopped it, the
// ledger it leaves behind is valid export input.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/errscout/pkg/errscout/journal"
	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/observability"
	"github.com/randalmurphal/errscout/pkg/errscout/planner"
)

// DefaultMaxIterations bounds a session that sets no cap.
const DefaultMaxIterations = 50

// StopReason says why a session ended.
type StopReason string

// Stop reasons.
const (
	StopDone         StopReason = "done"
	StopIterationCap StopReason = "iteration_cap"
	StopCancelled    StopReason = "cancelled"
	StopPlannerError StopReason = "planner_error"
)

// Result is what a session leaves behind. It is returned for every stop
// reason, including the error ones.
type Result struct {
	RunID      string
	Planner    string
	StopReason StopReason

	// DoneReason is the planner's own explanation when it stopped.
	DoneReason string

	Rounds   int
	History  []planner.Turn
	Ledger   *ledger.Ledger
	Started  time.Time
	Finished time.Time
}

// Duration returns the wall time of the session.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Session drives a planner against Tools.
type Session struct {
	tools         *Tools
	maxIterations int
	journal       journal.Store
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	now           func() time.Time
	newID         func() string
	onTurn        func(planner.Turn)
}

// Option configures a Session.
type Option func(*Session)

// WithMaxIterations sets the round cap. Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithJournal records every turn to store.
func WithJournal(store journal.Store) Option {
	return func(s *Session) {
		s.journal = store
	}
}

// WithLogger sets the logger. nil disables session logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithSpans sets the span manager.
func WithSpans(sm observability.SpanManager) Option {
	return func(s *Session) {
		s.spans = sm
	}
}

// WithClock sets the time source for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.newID = func() string { return id }
		}
	}
}

// WithTurnHook calls fn after every executed turn.
func WithTurnHook(fn func(planner.Turn)) Option {
	return func(s *Session) {
		s.onTurn = fn
	}
}

// New creates a session over tools.
func New(tools *Tools, opts ...Option) *Session {
	s := &Session{
		tools:         tools,
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the loop until the planner is done, the round cap is hit or
// ctx is cancelled.
//
// Reaching the cap is a normal stop and returns a nil error. Cancellation
// returns a *CancellationError and a planner failure a *PlannerError; in
// both cases the partial Result is returned too.
func (s *Session) Run(ctx context.Context, p planner.Planner) (result *Result, runErr error) {
	if p == nil {
		return nil, ErrNilPlanner
	}

	result = &Result{
		RunID:   s.newID(),
		Planner: p.Name(),
		Ledger:  s.tools.Ledger(),
		Started: s.now(),
	}

	ctx, span := s.spans.StartSessionSpan(ctx, result.RunID, result.Planner)
	defer func() {
		s.spans.EndSpanWithError(span, runErr)
	}()

	observability.LogSessionStart(s.logger, result.RunID, result.Planner, s.maxIterations)
	start := time.Now()

	runErr = s.loop(ctx, p, result)
	result.Finished = s.now()

	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())
	s.metrics.RecordSession(ctx, string(result.StopReason), result.Rounds, duration)
	if runErr != nil {
		observability.LogSessionError(s.logger, result.RunID, runErr, result.Rounds)
	}
	observability.LogSessionComplete(s.logger, result.RunID, string(result.StopReason), result.Rounds, result.Ledger.Len(), durationMs)

	return result, runErr
}

func (s *Session) loop(ctx context.Context, p planner.Planner, result *Result) error {
	for round := 0; round < s.maxIterations; round++ {
		if err := ctx.Err(); err != nil {
			result.StopReason = StopCancelled
			return &CancellationError{Round: round, Cause: err}
		}

		action, err := p.Next(ctx, s.view(round, result))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				result.StopReason = StopCancelled
				return &CancellationError{Round: round, Cause: err}
			}
			result.StopReason = StopPlannerError
			return &PlannerError{Planner: result.Planner, Round: round, Err: err}
		}

		if action.Done {
			result.StopReason = StopDone
			result.DoneReason = action.Reason
			s.record(ctx, result.RunID, round, "done", nil, action.Reason)
			return nil
		}

		logger := observability.EnrichLogger(s.logger, result.RunID, round)
		if logger != nil {
			logger.Debug("dispatching", slog.String("action", action.String()))
		}

		text := s.tools.Dispatch(ctx, action)
		turn := planner.Turn{Round: round, Action: action, Outcome: text}
		result.History = append(result.History, turn)
		result.Rounds++
		s.record(ctx, result.RunID, round, string(action.Tool), action.Args, text)
		if s.onTurn != nil {
			s.onTurn(turn)
		}
	}

	result.StopReason = StopIterationCap
	return nil
}

func (s *Session) view(round int, result *Result) planner.View {
	l := result.Ledger
	summaries := make(map[string]ledger.Summary)
	for _, svc := range l.Services() {
		summaries[svc] = l.Summary(svc)
	}
	return planner.View{
		Round:     round,
		MaxRounds: s.maxIterations,
		History:   slices.Clone(result.History),
		Summaries: summaries,
		Entries:   l.Len(),
	}
}

// record journals a turn. A failed write is logged and otherwise ignored.
func (s *Session) record(ctx context.Context, runID string, round int, tool string, args json.RawMessage, outcome string) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(journal.Turn{
		RunID:     runID,
		Seq:       round,
		Tool:      tool,
		Args:      args,
		Outcome:   outcome,
		Timestamp: s.now(),
	})
	if err != nil {
		observability.LogJournalError(s.logger, runID, tool, err)
		s.spans.AddSpanEvent(ctx, "journal_error")
	}
}
