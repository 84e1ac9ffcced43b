package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the Manager
// Managerが更新するPrometheusメトリクスを保持
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations     *prometheus.CounterVec
	storeDuration  *prometheus.HistogramVec
	batchesMerged  prometheus.Counter
	batchesRemoved prometheus.Counter
	batchesUpdated prometheus.Counter
	shortfalls     prometheus.Counter
	malformed      prometheus.Counter
}

// NewMetrics creates the collectors and registers them when reg is non-nil
// メトリクスを作成し、reg が指定されていれば登録する
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pantry",
			Name:      "operations_total",
			Help:      "Inventory operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pantry",
			Name:      "store_request_duration_seconds",
			Help:      "Latency of document store round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		batchesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pantry",
			Name:      "batches_merged_total",
			Help:      "Batches appended by merge operations.",
		}),
		batchesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pantry",
			Name:      "batches_removed_total",
			Help:      "Batches fully consumed and removed.",
		}),
		batchesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pantry",
			Name:      "batches_updated_total",
			Help:      "Batches partially consumed.",
		}),
		shortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pantry",
			Name:      "consumption_shortfalls_total",
			Help:      "Requested names that could not be fully satisfied.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pantry",
			Name:      "malformed_batches_skipped_total",
			Help:      "Batches skipped during consumption because of an invalid quantity.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.operations,
			m.storeDuration,
			m.batchesMerged,
			m.batchesRemoved,
			m.batchesUpdated,
			m.shortfalls,
			m.malformed,
		)
	}

	return m
}

func (m *Metrics) observeOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) observeStore(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeMerge(added int) {
	if m == nil {
		return
	}
	m.batchesMerged.Add(float64(added))
}

func (m *Metrics) observeReconciliation(rec *Reconciliation) {
	if m == nil {
		return
	}
	m.batchesRemoved.Add(float64(rec.BatchesRemoved))
	m.batchesUpdated.Add(float64(rec.BatchesUpdated))
	m.malformed.Add(float64(rec.MalformedSkipped))
	for _, item := range rec.Items {
		if item.Status == ConsumptionStatusPartial || item.Status == ConsumptionStatusNotFound {
			m.shortfalls.Inc()
		}
	}
}
