package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder backed by Prometheus instruments.
// Registered once at startup via NewPrometheus; passed wherever needed.
type PrometheusRecorder struct {
	recordsSaved     *prometheus.CounterVec
	recordsDuplicate *prometheus.CounterVec
	savesRejected    *prometheus.CounterVec
	claims           *prometheus.CounterVec
	claimShortfalls  *prometheus.CounterVec
	claimBatchSize   *prometheus.HistogramVec
	claimDuration    *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
}

// NewPrometheus registers all instruments with the given registerer and
// returns the populated recorder.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		recordsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_records_saved_total",
			Help: "Total number of new records accepted into a queue.",
		}, []string{"queue"}),

		recordsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_records_duplicate_total",
			Help: "Total number of submitted records skipped as duplicates.",
		}, []string{"queue"}),

		savesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_saves_rejected_total",
			Help: "Total number of save batches rejected before storage.",
		}, []string{"queue"}),

		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_claims_total",
			Help: "Total number of claim requests served.",
		}, []string{"queue"}),

		claimShortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_claim_shortfalls_total",
			Help: "Total number of claims that delivered fewer records than requested.",
		}, []string{"queue"}),

		claimBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_claim_batch_size",
			Help:    "Number of records delivered per claim.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"queue"}),

		claimDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_claim_duration_seconds",
			Help:    "Duration of the claim transaction from lock to commit.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vault_queue_depth",
			Help: "Current number of unclaimed records per queue and user.",
		}, []string{"queue", "user_id"}),
	}

	reg.MustRegister(
		r.recordsSaved,
		r.recordsDuplicate,
		r.savesRejected,
		r.claims,
		r.claimShortfalls,
		r.claimBatchSize,
		r.claimDuration,
		r.queueDepth,
	)

	return r
}

// IncRecordsSaved adds to the saved records counter.
func (r *PrometheusRecorder) IncRecordsSaved(queue string, count int) {
	r.recordsSaved.WithLabelValues(queue).Add(float64(count))
}

// IncRecordsDuplicate adds to the duplicate records counter.
func (r *PrometheusRecorder) IncRecordsDuplicate(queue string, count int) {
	r.recordsDuplicate.WithLabelValues(queue).Add(float64(count))
}

// IncSaveRejected increments the rejected batch counter.
func (r *PrometheusRecorder) IncSaveRejected(queue string) {
	r.savesRejected.WithLabelValues(queue).Inc()
}

// IncClaims increments the claim counter.
func (r *PrometheusRecorder) IncClaims(queue string) {
	r.claims.WithLabelValues(queue).Inc()
}

// IncClaimShortfall increments the shortfall counter.
func (r *PrometheusRecorder) IncClaimShortfall(queue string) {
	r.claimShortfalls.WithLabelValues(queue).Inc()
}

// ObserveClaimBatchSize records a delivered claim batch size.
func (r *PrometheusRecorder) ObserveClaimBatchSize(queue string, size int) {
	r.claimBatchSize.WithLabelValues(queue).Observe(float64(size))
}

// ObserveClaimDuration records claim transaction duration.
func (r *PrometheusRecorder) ObserveClaimDuration(queue string, duration time.Duration) {
	r.claimDuration.WithLabelValues(queue).Observe(duration.Seconds())
}

// SetQueueDepth sets the current queue depth gauge.
func (r *PrometheusRecorder) SetQueueDepth(queue string, userID string, depth int64) {
	r.queueDepth.WithLabelValues(queue, userID).Set(float64(depth))
}
