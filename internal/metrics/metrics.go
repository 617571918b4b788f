package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all riskserver metrics
const namespace = "riskserver"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthStatus is a gauge that tracks overall server health status
// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
var HealthStatus = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_status",
		Help:      "Overall server health status (0=unhealthy, 1=degraded, 2=healthy)",
	},
)

// HealthCheckStatus tracks individual health check results
// Values: 0 = fail, 1 = warn, 2 = pass
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

// HealthCheckLatency tracks the latency of individual health checks in milliseconds
var HealthCheckLatency = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_latency_ms",
		Help:      "Health check latency in milliseconds",
	},
	[]string{"check"},
)

// Prediction metrics

// PredictionsTotal counts scored predictions by risk level and how they were
// served (computed fresh or reused from a recent snapshot)
var PredictionsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Total number of risk predictions served",
	},
	[]string{"risk_level", "source"}, // source: computed|reused
)

// Batch upload metrics

// UploadsSubmitted counts accepted batch uploads by file format
var UploadsSubmitted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_submitted_total",
		Help:      "Total number of batch uploads accepted",
	},
	[]string{"format"}, // format: csv|xlsx
)

// UploadSizeBytes records the size of accepted upload files
var UploadSizeBytes = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_size_bytes",
		Help:      "Accepted upload file size in bytes",
		// Buckets: 1KB, 10KB, 100KB, 1MB, 5MB, 10MB
		Buckets: []float64{1000, 10000, 100000, 1000000, 5000000, 10000000},
	},
)

// BatchRecordsProcessed counts records processed by batch runs
var BatchRecordsProcessed = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_records_processed_total",
		Help:      "Total number of batch records processed",
	},
	[]string{"result"}, // result: succeeded|failed
)

// BatchRunDuration records end-to-end batch run duration
var BatchRunDuration = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_run_duration_seconds",
		Help:      "Batch run duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	},
)

// BatchUploadsCompleted counts finished batch uploads by terminal status
var BatchUploadsCompleted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_uploads_completed_total",
		Help:      "Total number of batch uploads reaching a terminal status",
	},
	[]string{"status"}, // status: succeeded|failed
)

// Cleanup metrics

// CleanupFilesRemoved counts staged files removed by the cleanup job
var CleanupFilesRemoved = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_files_removed_total",
		Help:      "Total number of staged upload files removed by cleanup",
	},
)

// CleanupUploadsAbandoned counts uploads failed by cleanup as abandoned
var CleanupUploadsAbandoned = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_uploads_abandoned_total",
		Help:      "Total number of stale uploads marked failed by cleanup",
	},
)

// CleanupRowsPruned counts terminal upload rows deleted by cleanup
var CleanupRowsPruned = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_rows_pruned_total",
		Help:      "Total number of terminal upload rows pruned by cleanup",
	},
)

// Init initializes the metrics registry and sets version information
func Init(version, commit, buildDate string) {
	// Register default Go metrics (memory, goroutines, GC, etc.)
	Registry.MustRegister(collectors.NewGoCollector())

	// Register process metrics (CPU, memory, file descriptors)
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Set application version info (value is always 1, info is in labels)
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
