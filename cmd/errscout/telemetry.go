package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// telemetry owns the in-process OpenTelemetry providers of a run. Metrics
// are read back at the end of the run; finished spans are logged at debug
// level.
type telemetry struct {
	reader *sdkmetric.ManualReader
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
}

// setupTelemetry installs global meter and tracer providers.
func setupTelemetry(logger *slog.Logger) *telemetry {
	reader := sdkmetric.NewManualReader()
	t := &telemetry{
		reader: reader,
		meters: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		traces: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanLogger{logger: logger})),
	}
	otel.SetMeterProvider(t.meters)
	otel.SetTracerProvider(t.traces)
	return t
}

// metricTotal is one instrument's value summed over all attribute sets.
// Histograms report their observation count.
type metricTotal struct {
	Name  string
	Value float64
}

// Collect reads the current metric totals, sorted by name.
func (t *telemetry) Collect(ctx context.Context) []metricTotal {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil
	}

	var totals []metricTotal
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			var v float64
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					v += float64(dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					v += dp.Value
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					v += float64(dp.Count)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					v += float64(dp.Count)
				}
			default:
				continue
			}
			totals = append(totals, metricTotal{Name: m.Name, Value: v})
		}
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Name < totals[j].Name })
	return totals
}

// Shutdown flushes and stops both providers.
func (t *telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.traces.Shutdown(ctx), t.meters.Shutdown(ctx))
}

func printMetrics(w io.Writer, totals []metricTotal) {
	if len(totals) == 0 {
		return
	}
	rows := make([][]string, 0, len(totals))
	for _, m := range totals {
		rows = append(rows, []string{m.Name, fmt.Sprintf("%g", m.Value)})
	}
	fmt.Fprintln(w, titleStyle.Render("Metrics"))
	fmt.Fprintln(w, renderTable([]string{"METRIC", "TOTAL"}, rows))
}

// spanLogger is a SpanProcessor that logs each finished span.
type spanLogger struct {
	logger *slog.Logger
}

var _ sdktrace.SpanProcessor = spanLogger{}

func (spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p spanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("span finished",
		slog.String("span", s.Name()),
		slog.Int64("duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds()),
		slog.String("status", s.Status().Code.String()),
	)
}

func (spanLogger) Shutdown(context.Context) error { return nil }

func (spanLogger) ForceFlush(context.Context) error { return nil }
