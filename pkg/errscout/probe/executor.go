// Package probe executes single probes against the provider API and folds
// failures into the discovery ledger.
//
// A probe resolves an operation, validates the input, performs the call
// (retrying only rate-limit failures), classifies a failed response and
// records it. Every path produces a human-readable Outcome. Nothing a single
// probe does can abort a session.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
	"github.com/randalmurphal/errscout/pkg/errscout/classify"
	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
	"github.com/randalmurphal/errscout/pkg/errscout/observability"
	"github.com/randalmurphal/errscout/pkg/errscout/pathtemplate"
	"github.com/randalmurphal/errscout/pkg/errscout/retry"
	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
	"github.com/randalmurphal/errscout/pkg/errscout/transport"
)

// DefaultResultLimit bounds the result excerpt in success outcomes, in bytes.
const DefaultResultLimit = 500

// Kind classifies a probe outcome.
type Kind int

const (
	// KindSuccess means the call succeeded. Nothing was recorded.
	KindSuccess Kind = iota

	// KindDocumented means a failure was recorded that the operation lists.
	KindDocumented

	// KindUndocumented means a failure was recorded that the operation does
	// not list. These are the discoveries.
	KindUndocumented

	// KindRequestFailed means the call could not be completed. Nothing was
	// recorded.
	KindRequestFailed

	// KindUsageError means the caller named an unknown operation or sent
	// malformed input. No request was made.
	KindUsageError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindDocumented:
		return "documented"
	case KindUndocumented:
		return "undocumented"
	case KindRequestFailed:
		return "request_failed"
	case KindUsageError:
		return "usage_error"
	default:
		return "unknown"
	}
}

// Recorded reports whether outcomes of this kind wrote to the ledger.
func (k Kind) Recorded() bool {
	return k == KindDocumented || k == KindUndocumented
}

// Outcome is the result of one probe.
type Outcome struct {
	Kind Kind

	// Text is the planner-facing summary.
	Text string

	// Observation and Entry are set when the failure was recorded.
	Observation *ledger.Observation
	Entry       *ledger.Entry

	// NewEntry is true when the observation created its ledger entry.
	NewEntry bool

	HTTPStatus int
	Attempts   int
	Duration   time.Duration
}

// Resolver finds operations by service and name. *catalog.Catalog
// implements it.
type Resolver interface {
	Lookup(service, operation string) (catalog.Operation, error)
}

// Executor runs probes. It is not safe for concurrent use because the
// ledger it writes to is not.
type Executor struct {
	resolver    Resolver
	doer        transport.Doer
	ledger      *ledger.Ledger
	retry       retry.Config
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	now         func() time.Time
	pathParams  map[string]string
	resultLimit int
	expander    *pathtemplate.Expander
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetry sets the rate-limit retry schedule. The retryability check is
// always replaced with the rate-limit predicate.
func WithRetry(cfg retry.Config) Option {
	return func(e *Executor) {
		e.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(e *Executor) {
		e.spans = s
	}
}

// WithClock sets the time source for observation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithPathParams sets default values for path placeholders the input
// leaves unset, such as account_id.
func WithPathParams(params map[string]string) Option {
	return func(e *Executor) {
		for k, v := range params {
			e.pathParams[k] = v
		}
	}
}

// WithResultLimit bounds the result excerpt in success outcomes.
func WithResultLimit(n int) Option {
	return func(e *Executor) {
		e.resultLimit = n
	}
}

// New creates an Executor writing to l.
func New(resolver Resolver, doer transport.Doer, l *ledger.Ledger, opts ...Option) *Executor {
	e := &Executor{
		resolver:    resolver,
		doer:        doer,
		ledger:      l,
		retry:       retry.Default,
		logger:      slog.Default(),
		metrics:     observability.NoopMetrics{},
		spans:       observability.NoopSpanManager{},
		now:         time.Now,
		pathParams:  make(map[string]string),
		resultLimit: DefaultResultLimit,
		expander:    pathtemplate.New(pathtemplate.WithMissingAction(pathtemplate.MissingError)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry.RetryableFunc = rateLimited
	return e
}

// rateLimited reports whether err signals a rate limit: a RateLimit
// classification, or a 429 whose body was not an envelope (edge rate
// limiters answer in plain text).
func rateLimited(err error) bool {
	if classify.IsRateLimited(err) {
		return true
	}
	var te *transport.Error
	return errors.As(err, &te) && te.Kind == transport.KindParse && te.Status == http.StatusTooManyRequests
}

// Ledger returns the ledger the executor records into.
func (e *Executor) Ledger() *ledger.Ledger {
	return e.ledger
}

// Probe calls service.operation with input and records a failure.
func (e *Executor) Probe(ctx context.Context, service, operation string, input any) Outcome {
	start := time.Now()
	ref := service + "." + operation

	ctx, span := e.spans.StartProbeSpan(ctx, service, operation)
	out := e.probe(ctx, service, operation, input)
	out.Duration = time.Since(start)

	var spanErr error
	if out.Kind != KindSuccess {
		spanErr = errors.New(out.Kind.String())
	}
	e.spans.EndSpanWithError(span, spanErr)

	e.metrics.RecordProbe(ctx, service, operation, out.Kind.String(), out.Duration, out.Attempts)
	observability.LogProbe(e.logger, ref, out.Kind.String(), out.HTTPStatus, out.Attempts, float64(out.Duration.Milliseconds()))
	if out.NewEntry && out.Entry != nil {
		e.metrics.RecordDiscovery(ctx, service, out.Entry.Category.Tag(), out.Entry.IsDocumented)
		observability.LogDiscovery(e.logger, out.Entry.Key.String(), out.Entry.IsDocumented)
	}
	return out
}

func (e *Executor) probe(ctx context.Context, service, operation string, input any) Outcome {
	op, err := e.resolver.Lookup(service, operation)
	if err != nil {
		return usage(fmt.Sprintf("operation not found: %v", err))
	}

	fields, raw, err := ParseInput(input)
	if err != nil {
		return usage(fmt.Sprintf("%s: %v", op.Ref(), err))
	}

	req, err := e.buildRequest(op, fields)
	if err != nil {
		return usage(fmt.Sprintf("%s: %v", op.Ref(), err))
	}

	cfg := e.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		observability.LogRetry(e.logger, op.Ref(), attempt, delay, err)
		e.spans.AddSpanEvent(ctx, "rate_limited",
			attribute.Int("attempt", attempt),
			attribute.Int64("delay_ms", delay.Milliseconds()),
		)
	}

	res := retry.Do(ctx, cfg, func(ctx context.Context) (*transport.Response, error) {
		resp, err := e.doer.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if ce, failed := classify.Evaluate(resp.Status, resp.Envelope); failed {
			return resp, ce
		}
		return resp, nil
	})

	status := 0
	if res.Value != nil {
		status = res.Value.Status
	}

	if res.Err == nil {
		return Outcome{
			Kind:       KindSuccess,
			Text:       e.successText(op, res.Value),
			HTTPStatus: status,
			Attempts:   res.Attempts,
		}
	}

	var ce classify.CanonicalError
	switch {
	case errors.As(res.Err, &ce):
	case res.Value != nil && ctx.Err() != nil:
		// cancelled while backing off: the last answer was still an API error
		ce, _ = classify.Evaluate(res.Value.Status, res.Value.Envelope)
	default:
		return Outcome{
			Kind:       KindRequestFailed,
			Text:       requestFailedText(op, res.Err),
			HTTPStatus: status,
			Attempts:   res.Attempts,
		}
	}

	return e.record(op, ce, raw, res.Attempts)
}

// record folds the failure into the ledger. It runs exactly once per failed
// probe, after retries are spent.
func (e *Executor) record(op catalog.Operation, ce classify.CanonicalError, raw []byte, attempts int) Outcome {
	documented := ce.Category != taxonomy.Unknown && op.Spec().Expects(ce.Category)

	obs := ledger.Observation{
		Service:      op.Service,
		Operation:    op.Name,
		Category:     ce.Category,
		ProviderCode: ce.ProviderCode,
		Message:      ce.Message,
		HTTPStatus:   ce.HTTPStatus,
		TriggerInput: raw,
		Timestamp:    e.now(),
		IsDocumented: documented,
	}

	before := e.ledger.Len()
	entry := e.ledger.Record(obs)

	kind := KindUndocumented
	if entry.IsDocumented {
		kind = KindDocumented
	}

	return Outcome{
		Kind:        kind,
		Text:        failureText(op, ce, entry, attempts),
		Observation: &obs,
		Entry:       &entry,
		NewEntry:    e.ledger.Len() > before,
		HTTPStatus:  ce.HTTPStatus,
		Attempts:    attempts,
	}
}

// buildRequest places input fields: path placeholders first, then declared
// query params, then everything else in the JSON body. GET and HEAD have no
// body, so leftover fields go to the query string instead.
func (e *Executor) buildRequest(op catalog.Operation, fields map[string]any) (transport.Request, error) {
	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		rest[k] = v
	}

	vars := make(map[string]any)
	for k, v := range e.pathParams {
		vars[k] = v
	}
	for _, name := range pathtemplate.Params(op.Path) {
		if v, ok := rest[name]; ok {
			vars[name] = stringify(v)
			delete(rest, name)
		}
	}
	path, err := e.expander.Expand(op.Path, vars)
	if err != nil {
		return transport.Request{}, err
	}

	query := url.Values{}
	for _, p := range op.Params {
		if p.In != catalog.InQuery {
			continue
		}
		if v, ok := rest[p.Name]; ok {
			query.Set(p.Name, stringify(v))
			delete(rest, p.Name)
		}
	}

	req := transport.Request{Method: op.Method, Path: path}
	switch op.Method {
	case http.MethodGet, http.MethodHead:
		for _, k := range sortedKeys(rest) {
			query.Set(k, stringify(rest[k]))
		}
	case http.MethodDelete:
		if len(rest) > 0 {
			req.Body = rest
		}
	default:
		req.Body = rest
	}
	if len(query) > 0 {
		req.Query = query
	}
	return req, nil
}

func (e *Executor) successText(op catalog.Operation, resp *transport.Response) string {
	result := strings.TrimSpace(string(resp.Envelope.Result))
	return fmt.Sprintf("Success: %s returned HTTP %d\nResult: %s", op.Ref(), resp.Status, truncate(result, e.resultLimit))
}

func failureText(op catalog.Operation, ce classify.CanonicalError, entry ledger.Entry, attempts int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error on %s: %s\n", op.Ref(), ce.Error())
	if entry.IsDocumented {
		fmt.Fprintf(&b, "Status: documented (%s is listed for %s)", ce.Category.Tag(), op.Ref())
	} else {
		fmt.Fprintf(&b, "Status: UNDOCUMENTED (%s is not listed for %s)", ce.Category.Tag(), op.Ref())
	}
	fmt.Fprintf(&b, "\nOccurrences: %d", entry.Occurrences)
	if attempts > 1 {
		fmt.Fprintf(&b, "\nAttempts: %d (rate limited)", attempts)
	}
	return b.String()
}

func requestFailedText(op catalog.Operation, err error) string {
	kind := "error"
	var te *transport.Error
	switch {
	case errors.As(err, &te) && te.Timeout():
		kind = "timeout"
	case errors.As(err, &te):
		kind = te.Kind.String()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "cancelled"
	}
	return fmt.Sprintf("Request failed (%s) on %s: %v\nNot recorded: this is a transport problem, not an API error.", kind, op.Ref(), err)
}

func usage(msg string) Outcome {
	return Outcome{Kind: KindUsageError, Text: "Usage error: " + msg}
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
