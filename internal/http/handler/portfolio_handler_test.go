package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioHandler_SitesAndKPIs(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Client")
	portfolio := testutil.CreateTestPortfolio(t, h.db, client.ID, "Retail")
	site := testutil.CreateTestSite(t, h.db, client.ID, "Store 1")
	testutil.CreateTestSimulationRun(t, h.db, site.ID, testutil.Float(120000), testutil.Float(250), time.Now().UTC())
	pid := portfolio.ID.String()

	addSite := func() *httptest.ResponseRecorder {
		body := `{"siteId":"` + site.ID.String() + `"}`
		req := withURLParams(httptest.NewRequest(http.MethodPost, "/portfolios/"+pid+"/sites", strings.NewReader(body)), map[string]string{"id": pid})
		rr := httptest.NewRecorder()
		h.portfolio.AddSite(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, addSite().Code)
	assert.Equal(t, http.StatusConflict, addSite().Code, "a site joins a portfolio once")

	rr := httptest.NewRecorder()
	h.portfolio.KPIs(rr, withURLParams(httptest.NewRequest(http.MethodGet, "/portfolios/"+pid+"/kpis", nil), map[string]string{"id": pid}))
	require.Equal(t, http.StatusOK, rr.Code)
	var kpis domain.PortfolioKPIs
	decodeBody(t, rr, &kpis)
	assert.Equal(t, portfolio.ID, kpis.PortfolioID)
	assert.Equal(t, 1, kpis.SiteCount)
	assert.InDelta(t, 120000, kpis.TotalCapex, 0.001)
	assert.InDelta(t, 250, kpis.TotalPvKW, 0.001)
	assert.True(t, kpis.HasData)

	rr = httptest.NewRecorder()
	h.portfolio.GetByID(rr, withURLParams(httptest.NewRequest(http.MethodGet, "/portfolios/"+pid, nil), map[string]string{"id": pid}))
	require.Equal(t, http.StatusOK, rr.Code)
	var dto domain.PortfolioDTO
	decodeBody(t, rr, &dto)
	assert.Len(t, dto.Sites, 1)
	require.NotNil(t, dto.KPIs)
	assert.Equal(t, 1, dto.KPIs.SiteCount)

	rr = httptest.NewRecorder()
	params := map[string]string{"id": pid, "siteId": site.ID.String()}
	h.portfolio.RemoveSite(rr, withURLParams(httptest.NewRequest(http.MethodDelete, "/portfolios/"+pid+"/sites/"+site.ID.String(), nil), params))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, int64(0), testutil.CountRows(t, h.db, &domain.PortfolioSite{}, ""))
}

func TestPortfolioHandler_AddSiteOfOtherClient(t *testing.T) {
	h := setupHandlers(t)
	owner := testutil.CreateTestClient(t, h.db, "Owner")
	other := testutil.CreateTestClient(t, h.db, "Other")
	portfolio := testutil.CreateTestPortfolio(t, h.db, owner.ID, "Retail")
	site := testutil.CreateTestSite(t, h.db, other.ID, "Foreign site")
	pid := portfolio.ID.String()

	body := `{"siteId":"` + site.ID.String() + `"}`
	rr := httptest.NewRecorder()
	h.portfolio.AddSite(rr, withURLParams(httptest.NewRequest(http.MethodPost, "/portfolios/"+pid+"/sites", strings.NewReader(body)), map[string]string{"id": pid}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPortfolioHandler_DeleteDetachesOpportunities(t *testing.T) {
	h := setupHandlers(t)
	client := testutil.CreateTestClient(t, h.db, "Client")
	portfolio := testutil.CreateTestPortfolio(t, h.db, client.ID, "Retail")
	opp := testutil.CreateTestOpportunity(t, h.db, &domain.Opportunity{ClientID: testutil.UUID(client.ID), PortfolioID: testutil.UUID(portfolio.ID)})
	pid := portfolio.ID.String()

	rr := httptest.NewRecorder()
	h.portfolio.Delete(rr, withURLParams(httptest.NewRequest(http.MethodDelete, "/portfolios/"+pid, nil), map[string]string{"id": pid}))
	require.Equal(t, http.StatusNoContent, rr.Code)

	var reloaded domain.Opportunity
	require.NoError(t, h.db.First(&reloaded, "id = ?", opp.ID).Error)
	assert.Nil(t, reloaded.PortfolioID)
}
