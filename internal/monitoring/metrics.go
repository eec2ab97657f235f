package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics of a migration run
type Metrics struct {
	Registry *prometheus.Registry

	// Extraction metrics
	RowsRead     *prometheus.CounterVec
	ReadDuration *prometheus.HistogramVec

	// Transformation metrics
	DocumentsTransformed *prometheus.CounterVec
	TransformFailures    *prometheus.CounterVec

	// Load metrics
	DocumentsInserted  *prometheus.CounterVec
	DocumentsFailed    *prometheus.CounterVec
	DuplicateConflicts *prometheus.CounterVec
	BatchDuration      *prometheus.HistogramVec

	// Verification metrics
	SourceCount      *prometheus.GaugeVec
	DestinationCount *prometheus.GaugeVec
	VerificationPass prometheus.Gauge

	// Run metrics
	LastRunTimestamp prometheus.Gauge
	RunDuration      prometheus.Gauge
}

var (
	metrics *Metrics
	mu      sync.Mutex
)

// Init initializes all Prometheus metrics on a private registry
func Init() *Metrics {
	mu.Lock()
	defer mu.Unlock()

	if metrics != nil {
		return metrics
	}
	metrics = newMetrics()
	return metrics
}

// Reset replaces the metrics with a fresh registry
func Reset() *Metrics {
	mu.Lock()
	defer mu.Unlock()

	metrics = newMetrics()
	return metrics
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RowsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_migration_rows_read_total",
				Help: "Total number of rows read from the source store",
			},
			[]string{"entity"},
		),
		ReadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_migration_read_duration_seconds",
				Help:    "Source query duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
			[]string{"entity"},
		),

		DocumentsTransformed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_migration_documents_transformed_total",
				Help: "Total number of rows transformed into documents",
			},
			[]string{"entity"},
		),
		TransformFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_migration_transform_failures_total",
				Help: "Total number of rows dropped by the transformer",
			},
			[]string{"entity"},
		),

		DocumentsInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_migration_documents_inserted_total",
				Help: "Total number of documents inserted into the destination",
			},
			[]string{"collection"},
		),
		DocumentsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_migration_documents_failed_total",
				Help: "Total number of documents the destination rejected",
			},
			[]string{"collection"},
		),
		DuplicateConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_migration_duplicate_conflicts_total",
				Help: "Total number of duplicate identity conflicts",
			},
			[]string{"collection"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_migration_batch_duration_seconds",
				Help:    "Bulk insert duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"collection"},
		),

		SourceCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "review_migration_source_count",
				Help: "Source row count observed by the verifier",
			},
			[]string{"entity"},
		),
		DestinationCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "review_migration_destination_count",
				Help: "Destination document count observed by the verifier",
			},
			[]string{"entity"},
		),
		VerificationPass: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "review_migration_verification_pass",
				Help: "1 if source and destination counts matched, 0 otherwise",
			},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "review_migration_last_run_timestamp_seconds",
				Help: "Unix time the last migration run finished",
			},
		),
		RunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "review_migration_run_duration_seconds",
				Help: "Duration of the last migration run in seconds",
			},
		),
	}
}

// Get returns the global metrics instance
func Get() *Metrics {
	mu.Lock()
	m := metrics
	mu.Unlock()
	if m == nil {
		return Init()
	}
	return m
}

// RecordRead records a source extraction
func RecordRead(entity string, rows int, duration time.Duration) {
	m := Get()
	m.RowsRead.WithLabelValues(entity).Add(float64(rows))
	m.ReadDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordTransform records transformer output for one entity
func RecordTransform(entity string, transformed, failed int) {
	m := Get()
	m.DocumentsTransformed.WithLabelValues(entity).Add(float64(transformed))
	m.TransformFailures.WithLabelValues(entity).Add(float64(failed))
}

// RecordBatch records the outcome of one bulk insert
func RecordBatch(collection string, inserted, failed, duplicates int, duration time.Duration) {
	m := Get()
	m.DocumentsInserted.WithLabelValues(collection).Add(float64(inserted))
	m.DocumentsFailed.WithLabelValues(collection).Add(float64(failed))
	m.DuplicateConflicts.WithLabelValues(collection).Add(float64(duplicates))
	m.BatchDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

// RecordCounts records the counts compared by the verifier
func RecordCounts(entity string, source, destination int64) {
	m := Get()
	m.SourceCount.WithLabelValues(entity).Set(float64(source))
	m.DestinationCount.WithLabelValues(entity).Set(float64(destination))
}

// SetVerificationPass records the verifier verdict
func SetVerificationPass(pass bool) {
	v := 0.0
	if pass {
		v = 1
	}
	Get().VerificationPass.Set(v)
}

// RecordRun records run completion
func RecordRun(finished time.Time, duration time.Duration) {
	m := Get()
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	m.RunDuration.Set(duration.Seconds())
}

// Push sends all collected metrics to a Prometheus Pushgateway
func Push(ctx context.Context, url, job, runID string) error {
	return push.New(url, job).
		Gatherer(Get().Registry).
		Grouping("run_id", runID).
		PushContext(ctx)
}
