package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesDiscovered counts new parquet files found per ingestion type
	FilesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_files_discovered_total",
			Help: "Total number of new parquet files discovered",
		},
		[]string{"type"},
	)

	// FilesProcessed counts files by outcome (success, failed)
	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_files_processed_total",
			Help: "Total number of parquet files processed",
		},
		[]string{"type", "status"},
	)

	// FileDuration tracks load, enrich and promote time per file
	FileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farcaster_file_duration_seconds",
			Help:    "Time to load, enrich and promote one parquet file",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	// RowsStaged counts rows copied into staging tables
	RowsStaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_rows_staged_total",
			Help: "Total number of rows copied into staging",
		},
		[]string{"table"},
	)

	// Watermark tracks the last processed source timestamp in epoch milliseconds
	Watermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "farcaster_watermark_ms",
			Help: "Last fully processed source file timestamp by ingestion type",
		},
		[]string{"type"},
	)

	// JobsDispatched counts payloads accepted by the embeddings queue
	JobsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_jobs_dispatched_total",
			Help: "Total number of payloads sent to the embeddings queue",
		},
		[]string{"endpoint"},
	)

	// DispatchFailures counts failed queue requests
	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_dispatch_failures_total",
			Help: "Total number of failed embeddings queue requests",
		},
		[]string{"endpoint", "category"},
	)

	// BatchDuration tracks queue request latency
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farcaster_dispatch_duration_seconds",
			Help:    "Embeddings queue request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// RecordsRejected counts rows dropped as malformed
	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_records_rejected_total",
			Help: "Total number of malformed records skipped",
		},
		[]string{"reason"},
	)

	// JobRuns counts scheduler ticks by outcome
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)

	// JobSkipped counts ticks dropped because the previous run was still active
	JobSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_job_skipped_total",
			Help: "Total number of scheduled runs skipped because the job was busy",
		},
		[]string{"job"},
	)

	// JobDuration tracks scheduled job run time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farcaster_job_duration_seconds",
			Help:    "Scheduled job run duration in seconds",
			Buckets: []float64{0.1, 1, 10, 60, 300, 900, 3600},
		},
		[]string{"job"},
	)

	// SnapshotRows counts rows written to reference data snapshots
	SnapshotRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farcaster_snapshot_rows_total",
			Help: "Total number of rows written to CSV snapshots",
		},
		[]string{"file"},
	)
)
