package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "railwatch_"

	resultSuccess = "success"
	resultError   = "error"

	identityInserted = "inserted"
	identityReused   = "reused"
	identityRace     = "race"

	recordArrival      = "arrival"
	recordCancellation = "cancellation"
	recordDuplicate    = "duplicate"
	recordSkipped      = "skipped"
	recordFailed       = "failed"
)

var (
	registerOnce sync.Once

	pipelineRunsTotal      *prometheus.CounterVec
	pipelineRunLatency     *prometheus.HistogramVec
	pipelineStationsTotal  *prometheus.CounterVec
	pipelineStationLatency *prometheus.HistogramVec
	pipelineRecordsTotal   *prometheus.CounterVec

	identityTotal *prometheus.CounterVec

	feedRequestsTotal *prometheus.CounterVec
	feedRetriesTotal  prometheus.Counter

	archiveRunsTotal  *prometheus.CounterVec
	archiveRunLatency *prometheus.HistogramVec
	archiveRowsTotal  *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		pipelineRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		)
		pipelineRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_run_latency_seconds",
				Help:    "Pipeline run latency in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		)
		pipelineStationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_stations_total",
				Help: "Total stations processed by status",
			},
			[]string{"status"},
		)
		pipelineStationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_station_latency_seconds",
				Help:    "Per-station processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)
		pipelineRecordsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_records_total",
				Help: "Total feed records by outcome",
			},
			[]string{"outcome"},
		)

		identityTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "identity_resolutions_total",
				Help: "Identity resolutions by entity and outcome",
			},
			[]string{"entity", "outcome"},
		)

		feedRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "feed_requests_total",
				Help: "Feed requests by result",
			},
			[]string{"result"},
		)
		feedRetriesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "feed_retries_total",
				Help: "Feed request retries",
			},
		)

		archiveRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "archive_runs_total",
				Help: "Total archive runs by result",
			},
			[]string{"result"},
		)
		archiveRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "archive_run_latency_seconds",
				Help:    "Archive run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		archiveRowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "archive_rows_total",
				Help: "Rows rolled up or deleted by the archive job",
			},
			[]string{"kind"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			pipelineRunsTotal,
			pipelineRunLatency,
			pipelineStationsTotal,
			pipelineStationLatency,
			pipelineRecordsTotal,
			identityTotal,
			feedRequestsTotal,
			feedRetriesTotal,
			archiveRunsTotal,
			archiveRunLatency,
			archiveRowsTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObservePipelineRun records run latency and result.
func ObservePipelineRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pipelineRunsTotal != nil {
		pipelineRunsTotal.WithLabelValues(result).Inc()
	}
	if pipelineRunLatency != nil {
		pipelineRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePipelineStation records one station outcome.
func ObservePipelineStation(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if pipelineStationsTotal != nil {
		pipelineStationsTotal.WithLabelValues(status).Inc()
	}
	if pipelineStationLatency != nil {
		pipelineStationLatency.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// AddPipelineRecords adds count records with outcome.
func AddPipelineRecords(outcome string, count int) {
	if count <= 0 {
		return
	}
	if pipelineRecordsTotal != nil {
		pipelineRecordsTotal.WithLabelValues(outcome).Add(float64(count))
	}
}

// IncIdentity counts one identity resolution.
func IncIdentity(entity, outcome string) {
	if identityTotal != nil {
		identityTotal.WithLabelValues(entity, outcome).Inc()
	}
}

// IncFeedRequest counts one feed request attempt.
func IncFeedRequest(result string) {
	if result == "" {
		result = resultSuccess
	}
	if feedRequestsTotal != nil {
		feedRequestsTotal.WithLabelValues(result).Inc()
	}
}

// IncFeedRetry counts one feed retry.
func IncFeedRetry() {
	if feedRetriesTotal != nil {
		feedRetriesTotal.Inc()
	}
}

// ObserveArchive records archive latency and result.
func ObserveArchive(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if archiveRunsTotal != nil {
		archiveRunsTotal.WithLabelValues(result).Inc()
	}
	if archiveRunLatency != nil {
		archiveRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddArchiveRows adds count rows of kind.
func AddArchiveRows(kind string, count int64) {
	if count <= 0 {
		return
	}
	if archiveRowsTotal != nil {
		archiveRowsTotal.WithLabelValues(kind).Add(float64(count))
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	IdentityInserted = identityInserted
	IdentityReused   = identityReused
	IdentityRace     = identityRace

	RecordArrival      = recordArrival
	RecordCancellation = recordCancellation
	RecordDuplicate    = recordDuplicate
	RecordSkipped      = recordSkipped
	RecordFailed       = recordFailed
)
