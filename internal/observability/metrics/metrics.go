package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "platform_"

	resultSuccess = "success"
	resultError   = "error"

	rowOutcomeOK     = "ok"
	rowOutcomeFailed = "failed"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	entityCreateTotal   *prometheus.CounterVec
	entityCreateLatency *prometheus.HistogramVec

	identifierOpsTotal *prometheus.CounterVec

	lookupTotal   *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec

	viewRequests *prometheus.CounterVec
	viewLatency  *prometheus.HistogramVec

	importJobsTotal  *prometheus.CounterVec
	importJobLatency *prometheus.HistogramVec
	importRowsTotal  *prometheus.CounterVec

	registerExportTotal   *prometheus.CounterVec
	registerExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total scan ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total scan ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Scan ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		entityCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "entity_create_total",
				Help: "Total entity create operations by kind and result",
			},
			[]string{"kind", "result"},
		)
		entityCreateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "entity_create_latency_seconds",
				Help:    "Entity create latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		identifierOpsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "identifier_ops_total",
				Help: "Total identifier attach/remove operations by op and result",
			},
			[]string{"op", "result"},
		)

		lookupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "identifier_lookup_total",
				Help: "Total identifier lookups by result",
			},
			[]string{"result"},
		)
		lookupLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "identifier_lookup_latency_seconds",
				Help:    "Identifier lookup latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		viewRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "view_requests_total",
				Help: "Total entity view reads by op and result",
			},
			[]string{"op", "result"},
		)
		viewLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "view_latency_seconds",
				Help:    "Entity view read latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)

		importJobsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_jobs_total",
				Help: "Total completed import jobs by result",
			},
			[]string{"result"},
		)
		importJobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "import_job_latency_seconds",
				Help:    "Import job processing latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"result"},
		)
		importRowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_rows_total",
				Help: "Total processed import rows by outcome",
			},
			[]string{"outcome"},
		)

		registerExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "register_export_total",
				Help: "Total register export operations by format and result",
			},
			[]string{"format", "result"},
		)
		registerExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "register_export_latency_seconds",
				Help:    "Register export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			entityCreateTotal,
			entityCreateLatency,
			identifierOpsTotal,
			lookupTotal,
			lookupLatency,
			viewRequests,
			viewLatency,
			importJobsTotal,
			importJobLatency,
			importRowsTotal,
			registerExportTotal,
			registerExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records scan ingest duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments the scan ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveEntityCreate records entity creation latency and result.
func ObserveEntityCreate(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if entityCreateTotal != nil {
		entityCreateTotal.WithLabelValues(kind, result).Inc()
	}
	if entityCreateLatency != nil {
		entityCreateLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// IncIdentifierOp increments the identifier operation counter.
func IncIdentifierOp(op, result string) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if identifierOpsTotal != nil {
		identifierOpsTotal.WithLabelValues(op, result).Inc()
	}
}

// ObserveLookup records identifier lookup latency and result.
func ObserveLookup(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if lookupTotal != nil {
		lookupTotal.WithLabelValues(result).Inc()
	}
	if lookupLatency != nil {
		lookupLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveViewRequest records entity view read latency and result.
func ObserveViewRequest(op, result string, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if viewRequests != nil {
		viewRequests.WithLabelValues(op, result).Inc()
	}
	if viewLatency != nil {
		viewLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// ObserveImportJob records import job processing latency and result.
func ObserveImportJob(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if importJobsTotal != nil {
		importJobsTotal.WithLabelValues(result).Inc()
	}
	if importJobLatency != nil {
		importJobLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddImportRows increments the import row counter by count.
func AddImportRows(outcome string, count int) {
	if count <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if importRowsTotal != nil {
		importRowsTotal.WithLabelValues(outcome).Add(float64(count))
	}
}

// ObserveRegisterExport records export latency and result.
func ObserveRegisterExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if registerExportTotal != nil {
		registerExportTotal.WithLabelValues(format, result).Inc()
	}
	if registerExportLatency != nil {
		registerExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	RowOutcomeOK     = rowOutcomeOK
	RowOutcomeFailed = rowOutcomeFailed
)
