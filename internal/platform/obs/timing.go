package obs

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

const tracerName = "ice-route-service"

// WithRequestID stores the request ID used to correlate timing logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Span starts a span and returns a closer that records duration, logs the
// outcome, and ends the span.
func Span(ctx context.Context, name string) (context.Context, func(errp *error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)

	reqID, _ := ctx.Value(RequestIDKey).(string)

	return ctx, func(errp *error) {
		dur := time.Since(start)
		defer span.End()

		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
			slog.DebugContext(ctx, "op", "req_id", reqID, "op", name, "dur_ms", dur.Milliseconds(), "err", *errp)
			return
		}
		slog.DebugContext(ctx, "op", "req_id", reqID, "op", name, "dur_ms", dur.Milliseconds())
	}
}

func Time(ctx context.Context, name string) func(errp *error) {
	_, done := Span(ctx, name)
	return done
}

// SpanFromContext exposes the active span for attribute tagging.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
