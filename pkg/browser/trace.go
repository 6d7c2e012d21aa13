package browser

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/entrhq/chromectl/pkg/browser"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// observe opens a span for op and returns the function that ends it,
// recording latency, outcome and a warning log for failures.
func (m *Manager) observe(ctx context.Context, op, sessionID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer().Start(ctx, "browser."+op, trace.WithAttributes(
		attribute.String("browser.op", op),
	))
	if sessionID != "" {
		span.SetAttributes(attribute.String("browser.session_id", sessionID))
	}
	return ctx, func(err error) {
		elapsed := time.Since(start)
		if op == "launch" {
			m.metrics.recordLaunch(err)
		} else {
			m.metrics.recordCommand(op, err, elapsed.Seconds())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.logger.Warnf("%s failed after %s: %v", op, elapsed.Round(time.Millisecond), err)
		}
		span.End()
	}
}
