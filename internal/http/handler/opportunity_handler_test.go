package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpportunityHandler_PipelineStats(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Pipeline Client")
	cid := testutil.UUID(client.ID)

	testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{Name: "Proposal", ClientID: cid, Stage: domain.StageProposal, EstimatedValue: testutil.Float(100000)})
	testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{Name: "Negotiation", ClientID: cid, Stage: domain.StageNegotiation, EstimatedValue: testutil.Float(40000), Probability: testutil.Int(50)})
	testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{Name: "Won", ClientID: cid, Stage: domain.StageWonInConstruction, EstimatedValue: testutil.Float(80000)})
	testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{Name: "Lost", ClientID: cid, Stage: domain.StageLost, EstimatedValue: testutil.Float(30000)})

	rr := httptest.NewRecorder()
	h.opportunity.PipelineStats(rr, httptest.NewRequest(http.MethodGet, "/opportunities/pipeline-stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var stats domain.PipelineStatsResult
	decodeBody(t, rr, &stats)
	assert.Equal(t, 2, stats.ActiveOpportunityCount)
	assert.InDelta(t, 140000, stats.TotalPipelineValue, 0.001)
	// 100000 * 25% stage default + 40000 * 50% explicit
	assert.InDelta(t, 45000, stats.WeightedPipelineValue, 0.001)
	assert.InDelta(t, 80000, stats.WonValue, 0.001)
	assert.InDelta(t, 80000, stats.DeliveryBacklogValue, 0.001)
	assert.InDelta(t, 30000, stats.LostValue, 0.001)
	assert.Len(t, stats.StageBreakdown, len(domain.AllStages))
	require.Len(t, stats.TopOpportunities, 2)
	assert.Equal(t, "Proposal", stats.TopOpportunities[0].Name)
	require.NotNil(t, stats.TopOpportunities[0].ClientName)
	assert.Equal(t, "Pipeline Client", *stats.TopOpportunities[0].ClientName)
	require.Len(t, stats.RecentWins, 1)
}

func TestOpportunityHandler_List(t *testing.T) {
	h := setupHandlers(t)
	testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{Name: "A", Stage: domain.StageQualified})
	testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{Name: "B", Stage: domain.StageProposal})

	t.Run("filter by stage", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.opportunity.List(rr, httptest.NewRequest(http.MethodGet, "/opportunities?stage=proposal", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var opps []domain.OpportunityDTO
		decodeBody(t, rr, &opps)
		require.Len(t, opps, 1)
		assert.Equal(t, "B", opps[0].Name)
		assert.Equal(t, 25, opps[0].EffectiveProbability)
	})

	t.Run("unknown stage", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.opportunity.List(rr, httptest.NewRequest(http.MethodGet, "/opportunities?stage=won", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed client filter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.opportunity.List(rr, httptest.NewRequest(http.MethodGet, "/opportunities?clientId=abc", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOpportunityHandler_CreateAndDelete(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Client")

	body := `{"name":"Carport array","clientId":"` + client.ID.String() + `","stage":"qualified","estimatedValue":55000}`
	rr := httptest.NewRecorder()
	h.opportunity.Create(rr, httptest.NewRequest(http.MethodPost, "/opportunities", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var dto domain.OpportunityDTO
	decodeBody(t, rr, &dto)
	assert.Equal(t, domain.StageQualified, dto.Stage)

	t.Run("probability above 100 is rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.opportunity.Create(rr, httptest.NewRequest(http.MethodPost, "/opportunities", strings.NewReader(`{"name":"X","probability":120}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown client reference", func(t *testing.T) {
		body := `{"name":"Orphan","clientId":"` + uuid.New().String() + `"}`
		rr := httptest.NewRecorder()
		h.opportunity.Create(rr, httptest.NewRequest(http.MethodPost, "/opportunities", strings.NewReader(body)))
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, rr.Code)
	})

	id := dto.ID.String()
	rr = httptest.NewRecorder()
	h.opportunity.Delete(rr, withURLParams(httptest.NewRequest(http.MethodDelete, "/opportunities/"+id, nil), map[string]string{"id": id}))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.opportunity.GetByID(rr, withURLParams(httptest.NewRequest(http.MethodGet, "/opportunities/"+id, nil), map[string]string{"id": id}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
