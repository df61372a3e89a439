package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records errscout metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordProbe records one executed probe. attempts includes the initial
	// call, so attempts-1 rate-limit retries happened.
	RecordProbe(ctx context.Context, service, operation, outcome string, duration time.Duration, attempts int)

	// RecordDiscovery records a newly created ledger entry.
	RecordDiscovery(ctx context.Context, service, category string, documented bool)

	// RecordSession records a finished session.
	RecordSession(ctx context.Context, stopReason string, rounds int, duration time.Duration)
}

type otelMetrics struct {
	probeCalls    metric.Int64Counter
	probeLatency  metric.Float64Histogram
	probeRetries  metric.Int64Counter
	discoveries   metric.Int64Counter
	sessionRuns   metric.Int64Counter
	sessionRounds metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("errscout")

	probeCalls, err := meter.Int64Counter("errscout.probe.calls",
		metric.WithDescription("Number of probes executed"),
	)
	if err != nil {
		return nil, err
	}

	probeLatency, err := meter.Float64Histogram("errscout.probe.latency_ms",
		metric.WithDescription("Probe latency including backoff, in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	probeRetries, err := meter.Int64Counter("errscout.probe.retries",
		metric.WithDescription("Number of rate-limit retries"),
	)
	if err != nil {
		return nil, err
	}

	discoveries, err := meter.Int64Counter("errscout.discoveries",
		metric.WithDescription("Number of distinct ledger entries created"),
	)
	if err != nil {
		return nil, err
	}

	sessionRuns, err := meter.Int64Counter("errscout.session.runs",
		metric.WithDescription("Number of discovery sessions"),
	)
	if err != nil {
		return nil, err
	}

	sessionRounds, err := meter.Int64Histogram("errscout.session.rounds",
		metric.WithDescription("Planner rounds per session"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		probeCalls:    probeCalls,
		probeLatency:  probeLatency,
		probeRetries:  probeRetries,
		discoveries:   discoveries,
		sessionRuns:   sessionRuns,
		sessionRounds: sessionRounds,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordProbe(ctx context.Context, service, operation, outcome string, duration time.Duration, attempts int) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.probeCalls.Add(ctx, 1, attrs)
	m.probeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if attempts > 1 {
		m.probeRetries.Add(ctx, int64(attempts-1), attrs)
	}
}

func (m *otelMetrics) RecordDiscovery(ctx context.Context, service, category string, documented bool) {
	m.discoveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("category", category),
		attribute.Bool("documented", documented),
	))
}

func (m *otelMetrics) RecordSession(ctx context.Context, stopReason string, rounds int, _ time.Duration) {
	attrs := metric.WithAttributes(attribute.String("stop_reason", stopReason))
	m.sessionRuns.Add(ctx, 1, attrs)
	m.sessionRounds.Record(ctx, int64(rounds), attrs)
}
