package observability

import (
	"context"
	"fmt"

	"github.com/honeynil/UsersLedgerService/internal/config"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Setup initialises logging, metrics and tracing from cfg and returns the
// tracer shutdown.
func Setup(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	observability.InitLogger(cfg.LogLevel)
	if err := observability.InitMetrics(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	tracerShutdown, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	return tracerShutdown, nil
}
