package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for SpotLedger.
type Metrics struct {
	// --- Wallet operation processing ---
	OperationsApplied  *prometheus.CounterVec
	OperationsRejected *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ForceApplied       *prometheus.CounterVec
	BalanceUpdates     prometheus.Counter
	Sequence           prometheus.Gauge

	// --- Deduplication ---
	DedupDuplicates *prometheus.CounterVec
	DedupLRUSize    prometheus.Gauge

	// --- Persistence ---
	PersistDuration     prometheus.Histogram
	PersistErrors       *prometheus.CounterVec
	PersistLastSequence prometheus.Gauge
	PersistBalances     prometheus.Counter

	// --- Outbound events ---
	EventsPublished prometheus.Counter
	PublishDrops    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OperationsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_operations_applied_total",
			Help: "Wallet operation batches successfully applied",
		}, []string{"operation"}),

		OperationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_operations_rejected_total",
			Help: "Wallet operation batches rejected (duplicate, invariant, low balance)",
		}, []string{"operation", "reason"}),

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spot_operation_duration_seconds",
			Help:    "Time to process one operation batch in the core",
			Buckets: latencyBuckets,
		}, []string{"operation"}),

		ForceApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_force_applied_total",
			Help: "Invariant violations applied anyway under force-apply",
		}, []string{"operation"}),

		BalanceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_balance_updates_total",
			Help: "ClientBalanceUpdate events produced",
		}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spot_sequence",
			Help: "Current transaction sequence number",
		}),

		DedupDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_dedup_duplicates_total",
			Help: "Duplicate messages caught (lru/postgres)",
		}, []string{"operation", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spot_dedup_lru_size",
			Help: "Current dedup LRU occupancy",
		}),

		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "spot_persist_duration_seconds",
			Help:    "Durable transactional write duration",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spot_persist_last_sequence",
			Help: "Last durably persisted sequence",
		}),

		PersistBalances: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_persist_balances_total",
			Help: "AssetBalance rows written",
		}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_events_published_total",
			Help: "Balance update envelopes published to NATS",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_publish_drops_total",
			Help: "Envelopes dropped due to full publish channel",
		}),
	}
}
