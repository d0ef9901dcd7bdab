package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry           *prometheus.Registry
	mutationsCommitted *prometheus.CounterVec
	mutationsFailed    *prometheus.CounterVec
	mutationDuration   prometheus.Histogram
	accountBalance     *prometheus.GaugeVec
	logger             *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &MetricsCollector{
		registry: registry,
		mutationsCommitted: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_committed_total",
			Help: "Total number of committed ledger mutations",
		}, []string{"kind"}),
		mutationsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_failed_total",
			Help: "Total number of failed ledger mutations",
		}, []string{"kind"}),
		mutationDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_mutation_duration_seconds",
			Help:    "Time taken to apply a ledger mutation",
			Buckets: prometheus.DefBuckets,
		}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_balance",
			Help: "Current account balance",
		}, []string{"account_id"}),
		logger: logger,
	}

	return collector
}

func (m *MetricsCollector) RecordMutation(kind string, duration time.Duration, success bool) {
	if success {
		m.mutationsCommitted.WithLabelValues(kind).Inc()
	} else {
		m.mutationsFailed.WithLabelValues(kind).Inc()
	}
	m.mutationDuration.Observe(duration.Seconds())
}

func (m *MetricsCollector) UpdateAccountBalance(accountID string, balance float64) {
	m.accountBalance.WithLabelValues(accountID).Set(balance)
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
