// Package observability provides logging, metrics and tracing for errscout.
//
// Logging uses log/slog. Metrics and tracing use OpenTelemetry through the
// global providers, with no-op implementations for when they are disabled.
package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger builds a logger writing to w. Format "json" selects the JSON
// handler; anything else selects the text handler.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnrichLogger adds session context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", 4)
//	enriched.Info("probing") // includes run_id, round
func EnrichLogger(logger *slog.Logger, runID string, round int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("round", round),
	)
}

// LogSessionStart logs the start of a discovery session.
func LogSessionStart(logger *slog.Logger, runID, planner string, maxIterations int) {
	if logger == nil {
		return
	}
	logger.Info("session starting",
		slog.String("run_id", runID),
		slog.String("planner", planner),
		slog.Int("max_iterations", maxIterations),
	)
}

// LogSessionComplete logs the end of a session, whatever stopped it.
func LogSessionComplete(logger *slog.Logger, runID, stopReason string, rounds, entries int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("session completed",
		slog.String("run_id", runID),
		slog.String("stop_reason", stopReason),
		slog.Int("rounds", rounds),
		slog.Int("entries", entries),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSessionError logs a session that ended on an error.
func LogSessionError(logger *slog.Logger, runID string, err error, rounds int) {
	if logger == nil {
		return
	}
	logger.Error("session failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Int("rounds", rounds),
	)
}

// LogProbe logs one executed probe.
func LogProbe(logger *slog.Logger, operation, outcome string, httpStatus, attempts int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("probe executed",
		slog.String("operation", operation),
		slog.String("outcome", outcome),
		slog.Int("http_status", httpStatus),
		slog.Int("attempts", attempts),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDiscovery logs a new ledger entry.
func LogDiscovery(logger *slog.Logger, key string, documented bool) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	msg := "documented error observed"
	if !documented {
		level = slog.LevelWarn
		msg = "undocumented error discovered"
	}
	logger.Log(context.Background(), level, msg, slog.String("key", key))
}

// LogRetry logs a scheduled rate-limit retry.
func LogRetry(logger *slog.Logger, operation string, attempt int, delay time.Duration, err error) {
	if logger == nil {
		return
	}
	logger.Warn("rate limited, backing off",
		slog.String("operation", operation),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a transcript write failure (non-fatal).
func LogJournalError(logger *slog.Logger, runID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("run_id", runID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
