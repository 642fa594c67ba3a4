package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Счётчик вызовов методов репозитория
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	// Гистограмма времени выполнения запросов
	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Исходы транзакций ledger по типу
	LedgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Total number of ledger transactions by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

// InitMetrics registers the collectors on reg. The router serves them on /metrics.
func InitMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{RepositoryCalls, RepositoryDuration, LedgerTransactions} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
