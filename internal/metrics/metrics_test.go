package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *CRMMetrics {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := NewCRMMetrics(registry)
	require.NoError(t, err)
	return m
}

func TestNewCRMMetrics_DoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewCRMMetrics(registry)
	require.NoError(t, err)

	_, err = NewCRMMetrics(registry)
	assert.Error(t, err)
}

func TestRecordCascade(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCascade("site", StatusSuccess, 20*time.Millisecond, map[string]int64{
		"sites":      1,
		"meterFiles": 3,
		"designs":    0,
	})
	m.RecordCascade("site", StatusNotFound, time.Millisecond, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.cascadeOperationsTotal.WithLabelValues("site", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cascadeOperationsTotal.WithLabelValues("site", StatusNotFound)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.cascadeRowsDeleted.WithLabelValues("site", "meterFiles")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cascadeRowsDeleted.WithLabelValues("site", "sites")))
}

func TestRecordKPIComputation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordKPIComputation(KPIModeBatch, StatusSuccess, 4, time.Millisecond)
	m.RecordKPIComputation(KPIModeSingle, StatusSuccess, 1, time.Millisecond)
	m.RecordKPIComputation(KPIModeBatch, StatusError, 7, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.kpiComputationsTotal.WithLabelValues(KPIModeBatch, StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.kpiComputationsTotal.WithLabelValues(KPIModeBatch, StatusError)))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.kpiPortfoliosComputed))
}

func TestRecordPipelineSnapshot(t *testing.T) {
	m := newTestMetrics(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stats := &domain.PipelineStatsResult{
		TotalPipelineValue:     300000,
		WeightedPipelineValue:  145000,
		WonValue:               50000,
		ActiveOpportunityCount: 2,
		StageBreakdown: []domain.StageBreakdown{
			{Stage: domain.StageProposal, Count: 1},
			{Stage: domain.StageNegotiation, Count: 1},
		},
		AtRiskOpportunities: []domain.AtRiskOpportunity{{Name: "stale"}},
	}
	m.RecordPipelineSnapshot(stats, at)

	assert.Equal(t, 145000.0, testutil.ToFloat64(m.pipelineValue.WithLabelValues("weighted")))
	assert.Equal(t, 300000.0, testutil.ToFloat64(m.pipelineValue.WithLabelValues("total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineStageCount.WithLabelValues(string(domain.StageProposal))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineAtRisk))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelineActive))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.pipelineSnapshotTime))

	m.RecordPipelineSnapshotError()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineSnapshotTotal.WithLabelValues(StatusError)))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *CRMMetrics

	assert.NotPanics(t, func() {
		m.RecordCascade("site", StatusSuccess, time.Second, map[string]int64{"sites": 1})
		m.RecordBlobCleanupFailure()
		m.RecordKPIComputation(KPIModeSingle, StatusSuccess, 1, time.Second)
		m.RecordPipelineSnapshot(&domain.PipelineStatsResult{}, time.Now())
		m.RecordPipelineSnapshotError()
		m.RecordHTTPRequest(http.MethodGet, "/health", 200, time.Second)
	})
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/clients", http.StatusOK, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "crm_http_requests_total")
	assert.Contains(t, rr.Body.String(), `route="/api/v1/clients"`)
}
