package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/conblem/acmon/internal/kv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type logging struct {
	next   kv.Service
	logger *zap.Logger
}

// Logging writes a debug line per call and an error line per failed call or readiness check.
func Logging(logger *zap.Logger) kv.Middleware {
	return func(next kv.Service) kv.Service {
		return &logging{next: next, logger: logger}
	}
}

func (l *logging) Ready(ctx context.Context) error {
	err := l.next.Ready(ctx)
	if err != nil {
		l.logger.Error("kv not ready", zap.Error(err))
	}

	return err
}

func (l *logging) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	start := time.Now()
	res, err := l.next.Call(ctx, req)

	fields := []zap.Field{
		zap.String("op", string(req.Op())),
		zap.ByteString("key", req.RequestKey()),
		zap.Duration("took", time.Since(start)),
	}

	if err != nil {
		l.logger.Error("kv call failed", append(fields, zap.Error(err))...)

		return res, err
	}

	l.logger.Debug("kv call", fields...)

	return res, nil
}

type metered struct {
	next     kv.Service
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// Metrics records the kv.calls counter and kv.call.duration histogram,
// both tagged with op and outcome.
func Metrics(meter metric.Meter) (kv.Middleware, error) {
	calls, err := meter.Int64Counter("kv.calls",
		metric.WithDescription("Key-value store calls."))
	if err != nil {
		return nil, fmt.Errorf("kv.calls counter: %w", err)
	}

	duration, err := meter.Float64Histogram("kv.call.duration",
		metric.WithDescription("Key-value store call latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("kv.call.duration histogram: %w", err)
	}

	return func(next kv.Service) kv.Service {
		return &metered{next: next, calls: calls, duration: duration}
	}, nil
}

func (m *metered) Ready(ctx context.Context) error {
	return m.next.Ready(ctx)
}

func (m *metered) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	start := time.Now()
	res, err := m.next.Call(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("op", string(req.Op())),
		attribute.String("outcome", outcome),
	)

	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	return res, err
}
