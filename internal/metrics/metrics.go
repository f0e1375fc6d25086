// Package metrics provides Prometheus collectors for the CRM core
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/straye-as/solar-crm-api/internal/domain"
)

// Status label values
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
	StatusConflict = "conflict"
)

// KPI computation modes
const (
	KPIModeSingle = "single"
	KPIModeBatch  = "batch"
)

// CRMMetrics contains the Prometheus metrics of the CRM core.
// All Record methods are safe to call on a nil receiver, which records nothing.
type CRMMetrics struct {
	registry *prometheus.Registry

	// Cascade deletion metrics
	cascadeOperationsTotal *prometheus.CounterVec
	cascadeDuration        *prometheus.HistogramVec
	cascadeRowsDeleted     *prometheus.CounterVec
	blobCleanupFailures    prometheus.Counter

	// Portfolio KPI metrics
	kpiComputationsTotal   *prometheus.CounterVec
	kpiComputationDuration *prometheus.HistogramVec
	kpiPortfoliosComputed  prometheus.Counter

	// Pipeline snapshot gauges
	pipelineValue         *prometheus.GaugeVec
	pipelineStageCount    *prometheus.GaugeVec
	pipelineAtRisk        prometheus.Gauge
	pipelineActive        prometheus.Gauge
	pipelineSnapshotTime  prometheus.Gauge
	pipelineSnapshotTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewCRMMetrics creates and registers the CRM metrics
func NewCRMMetrics(registry *prometheus.Registry) (*CRMMetrics, error) {
	m := &CRMMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CRMMetrics) initMetrics() {
	m.cascadeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_cascade_operations_total",
			Help: "Total number of cascade deletions",
		},
		[]string{"plan", "status"}, // status: success, not_found, conflict, error
	)

	m.cascadeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_cascade_duration_seconds",
			Help:    "Time taken for cascade deletions including the transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"plan"},
	)

	m.cascadeRowsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_cascade_rows_deleted_total",
			Help: "Rows removed by cascade deletions per entity",
		},
		[]string{"plan", "entity"},
	)

	m.blobCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_blob_cleanup_failures_total",
			Help: "Meter file blobs that could not be removed after a cascade",
		},
	)

	m.kpiComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_portfolio_kpi_computations_total",
			Help: "Total number of portfolio KPI computations",
		},
		[]string{"mode", "status"},
	)

	m.kpiComputationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_portfolio_kpi_duration_seconds",
			Help:    "Time taken to compute portfolio KPIs",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"mode"},
	)

	m.kpiPortfoliosComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_portfolio_kpi_portfolios_total",
			Help: "Number of portfolios aggregated across all KPI computations",
		},
	)

	m.pipelineValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crm_pipeline_value",
			Help: "Pipeline value from the latest snapshot",
		},
		[]string{"kind"}, // kind: total, weighted, won, lost, delivery_backlog, delivered
	)

	m.pipelineStageCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crm_pipeline_stage_opportunities",
			Help: "Number of opportunities per stage from the latest snapshot",
		},
		[]string{"stage"},
	)

	m.pipelineAtRisk = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_pipeline_at_risk_opportunities",
			Help: "At-risk opportunities listed in the latest snapshot",
		},
	)

	m.pipelineActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_pipeline_active_opportunities",
			Help: "Active opportunities in the latest snapshot",
		},
	)

	m.pipelineSnapshotTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_pipeline_snapshot_timestamp_seconds",
			Help: "Unix time of the latest successful pipeline snapshot",
		},
	)

	m.pipelineSnapshotTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_snapshots_total",
			Help: "Total number of pipeline snapshot runs",
		},
		[]string{"status"},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.collectors = []prometheus.Collector{
		m.cascadeOperationsTotal,
		m.cascadeDuration,
		m.cascadeRowsDeleted,
		m.blobCleanupFailures,
		m.kpiComputationsTotal,
		m.kpiComputationDuration,
		m.kpiPortfoliosComputed,
		m.pipelineValue,
		m.pipelineStageCount,
		m.pipelineAtRisk,
		m.pipelineActive,
		m.pipelineSnapshotTime,
		m.pipelineSnapshotTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	}
}

// Describe implements the Collector interface
func (m *CRMMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *CRMMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *CRMMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// RecordCascade records the outcome and duration of one cascade deletion
func (m *CRMMetrics) RecordCascade(plan, status string, duration time.Duration, deleted map[string]int64) {
	if m == nil {
		return
	}
	m.cascadeOperationsTotal.WithLabelValues(plan, status).Inc()
	m.cascadeDuration.WithLabelValues(plan).Observe(duration.Seconds())
	if status != StatusSuccess {
		return
	}
	for entity, n := range deleted {
		if n > 0 {
			m.cascadeRowsDeleted.WithLabelValues(plan, entity).Add(float64(n))
		}
	}
}

// RecordBlobCleanupFailure counts a blob left behind after a committed cascade
func (m *CRMMetrics) RecordBlobCleanupFailure() {
	if m == nil {
		return
	}
	m.blobCleanupFailures.Inc()
}

// RecordKPIComputation records one aggregation over portfolios
func (m *CRMMetrics) RecordKPIComputation(mode, status string, portfolios int, duration time.Duration) {
	if m == nil {
		return
	}
	m.kpiComputationsTotal.WithLabelValues(mode, status).Inc()
	m.kpiComputationDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if status == StatusSuccess {
		m.kpiPortfoliosComputed.Add(float64(portfolios))
	}
}

// RecordPipelineSnapshot publishes a pipeline stats result as gauges
func (m *CRMMetrics) RecordPipelineSnapshot(stats *domain.PipelineStatsResult, at time.Time) {
	if m == nil || stats == nil {
		return
	}
	m.pipelineValue.WithLabelValues("total").Set(stats.TotalPipelineValue)
	m.pipelineValue.WithLabelValues("weighted").Set(stats.WeightedPipelineValue)
	m.pipelineValue.WithLabelValues("won").Set(stats.WonValue)
	m.pipelineValue.WithLabelValues("lost").Set(stats.LostValue)
	m.pipelineValue.WithLabelValues("delivery_backlog").Set(stats.DeliveryBacklogValue)
	m.pipelineValue.WithLabelValues("delivered").Set(stats.DeliveredValue)

	for _, sb := range stats.StageBreakdown {
		m.pipelineStageCount.WithLabelValues(string(sb.Stage)).Set(float64(sb.Count))
	}

	m.pipelineAtRisk.Set(float64(len(stats.AtRiskOpportunities)))
	m.pipelineActive.Set(float64(stats.ActiveOpportunityCount))
	m.pipelineSnapshotTime.Set(float64(at.Unix()))
	m.pipelineSnapshotTotal.WithLabelValues(StatusSuccess).Inc()
}

// RecordPipelineSnapshotError counts a failed snapshot run
func (m *CRMMetrics) RecordPipelineSnapshotError() {
	if m == nil {
		return
	}
	m.pipelineSnapshotTotal.WithLabelValues(StatusError).Inc()
}

// RecordHTTPRequest records a served request by route pattern
func (m *CRMMetrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
