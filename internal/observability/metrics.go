// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stats fetch metrics
	StatsRequests       *prometheus.CounterVec
	StatsRequestLatency prometheus.Histogram
	StatsRetries        prometheus.Counter

	// Reconciliation metrics
	CandidatesRead      prometheus.Counter
	CandidatesSkipped   prometheus.Counter
	CandidatesPrefilter prometheus.Counter
	CandidatesDuplicate prometheus.Counter
	RemoteOverrides     prometheus.Counter
	AmbiguousRemotes    prometheus.Counter
	MalformedRemotes    prometheus.Counter
	RecordsFiltered     *prometheus.CounterVec
	RecordsKept         prometheus.Counter
	ExclusionSetSize    prometheus.Gauge

	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastTotalTokens *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "airdrop_reconciler"
	}

	return &Metrics{
		StatsRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statsapi",
			Name:      "requests_total",
			Help:      "Total number of stats API requests by outcome",
		}, []string{"outcome"}),
		StatsRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "statsapi",
			Name:      "request_latency_seconds",
			Help:      "Stats API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		StatsRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statsapi",
			Name:      "retries_total",
			Help:      "Total number of retried stats API requests",
		}),

		CandidatesRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "candidates_read_total",
			Help:      "Total number of candidate rows read",
		}),
		CandidatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "candidates_skipped_total",
			Help:      "Total number of unparsable candidate rows",
		}),
		CandidatesPrefilter: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "candidates_prefiltered_total",
			Help:      "Total number of candidates dropped before reconciliation",
		}),
		CandidatesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "candidates_duplicate_total",
			Help:      "Total number of candidate rows dropped as repeated addresses",
		}),
		RemoteOverrides: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "remote_overrides_total",
			Help:      "Total number of base totals taken from remote stats",
		}),
		AmbiguousRemotes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "ambiguous_remotes_total",
			Help:      "Total number of remote records without revisedTokens or totalTokens",
		}),
		MalformedRemotes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "malformed_remotes_total",
			Help:      "Total number of remote records with unparsable figures",
		}),
		RecordsFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eligibility",
			Name:      "records_filtered_total",
			Help:      "Total number of records dropped by reason",
		}, []string{"reason"}),
		RecordsKept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eligibility",
			Name:      "records_kept_total",
			Help:      "Total number of records in final reward tables",
		}),
		ExclusionSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eligibility",
			Name:      "exclusion_set_size",
			Help:      "Number of addresses in the last exclusion set",
		}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of reconciliation runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Reconciliation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		LastTotalTokens: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_total_tokens",
			Help:      "Aggregate token totals of the last completed run by category",
		}, []string{"category"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordStatsRequest records one stats API request.
func RecordStatsRequest(outcome string, seconds float64) {
	DefaultMetrics.StatsRequests.WithLabelValues(outcome).Inc()
	DefaultMetrics.StatsRequestLatency.Observe(seconds)
}

// RecordStatsRetry increments the stats retry counter.
func RecordStatsRetry() {
	DefaultMetrics.StatsRetries.Inc()
}

// RecordCandidates records candidate table parsing results.
func RecordCandidates(read, skipped, duplicates, prefiltered int) {
	DefaultMetrics.CandidatesRead.Add(float64(read))
	DefaultMetrics.CandidatesSkipped.Add(float64(skipped))
	DefaultMetrics.CandidatesDuplicate.Add(float64(duplicates))
	DefaultMetrics.CandidatesPrefilter.Add(float64(prefiltered))
}

// RecordReconciliation records reconciliation outcomes.
func RecordReconciliation(overrides, ambiguous, malformed int) {
	DefaultMetrics.RemoteOverrides.Add(float64(overrides))
	DefaultMetrics.AmbiguousRemotes.Add(float64(ambiguous))
	DefaultMetrics.MalformedRemotes.Add(float64(malformed))
}

// RecordFilter records eligibility filter outcomes.
func RecordFilter(invalid, excluded, belowThreshold, kept int) {
	DefaultMetrics.RecordsFiltered.WithLabelValues("invalid_address").Add(float64(invalid))
	DefaultMetrics.RecordsFiltered.WithLabelValues("excluded").Add(float64(excluded))
	DefaultMetrics.RecordsFiltered.WithLabelValues("below_threshold").Add(float64(belowThreshold))
	DefaultMetrics.RecordsKept.Add(float64(kept))
}

// UpdateExclusionSetSize sets the exclusion set size gauge.
func UpdateExclusionSetSize(n int) {
	DefaultMetrics.ExclusionSetSize.Set(float64(n))
}

// RecordRun records a finished run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// UpdateTotals sets the token totals of the last completed run.
func UpdateTotals(waifu, llama, base float64) {
	DefaultMetrics.LastTotalTokens.WithLabelValues("waifu").Set(waifu)
	DefaultMetrics.LastTotalTokens.WithLabelValues("llama").Set(llama)
	DefaultMetrics.LastTotalTokens.WithLabelValues("base").Set(base)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
