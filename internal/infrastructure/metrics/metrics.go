package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	TransfersApplied  prometheus.Counter
	TransfersReplayed prometheus.Counter
	TransferDuration  prometheus.Histogram
	TransferAmount    prometheus.Histogram
	TransferErrors    *prometheus.CounterVec

	// Account metrics
	AccountsOpened prometheus.Counter

	// Ledger verification metrics
	LedgerVerifications *prometheus.CounterVec
	LedgerDiscrepancies prometheus.Gauge

	// Outbox metrics
	OutboxDelivered     prometheus.Counter
	OutboxFailed        *prometheus.CounterVec
	OutboxBatchDuration prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Result cache metrics
	ResultCacheLookups *prometheus.CounterVec
}

// New creates all Prometheus metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Transfer metrics
		TransfersApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_transfers_applied_total",
			Help: "Total number of transfer commands applied",
		}),
		TransfersReplayed: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_transfers_replayed_total",
			Help: "Total number of transfer commands answered from an earlier result",
		}),
		TransferDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgercore_transfer_duration_seconds",
			Help:    "Duration of transfer commands including retries",
			Buckets: prometheus.DefBuckets,
		}),
		TransferAmount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgercore_transfer_amount_minor",
			Help:    "Transfer amounts in minor units",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 100000000},
		}),
		TransferErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_transfer_errors_total",
				Help: "Total number of transfer errors by type",
			},
			[]string{"error_type"},
		),

		// Account metrics
		AccountsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_accounts_opened_total",
			Help: "Total number of accounts opened",
		}),

		// Ledger verification metrics
		LedgerVerifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_ledger_verifications_total",
				Help: "Total ledger verification runs by result",
			},
			[]string{"scope", "result"},
		),
		LedgerDiscrepancies: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledgercore_ledger_discrepancies",
			Help: "Number of discrepancies found by the last full verification",
		}),

		// Outbox metrics
		OutboxDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_outbox_delivered_total",
			Help: "Total outbox events delivered",
		}),
		OutboxFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_outbox_failed_total",
				Help: "Total outbox delivery failures",
			},
			[]string{"final"},
		),
		OutboxBatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgercore_outbox_batch_duration_seconds",
			Help:    "Duration of outbox relay batches",
			Buckets: prometheus.DefBuckets,
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgercore_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Result cache metrics
		ResultCacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_result_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}
