package postgres

import (
	"context"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// track starts a span for method and returns a func that records the call
// outcome in the span and in the repository metrics.
func track(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer("postgres-repository").Start(ctx, method, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}
