package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/service"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// siteDependents are the row kinds that must disappear with a site
var siteDependents = []struct {
	name   string
	model  interface{}
	column string
}{
	{"simulation runs", &domain.SimulationRun{}, "site_id"},
	{"meter files", &domain.MeterFile{}, "site_id"},
	{"site visits", &domain.SiteVisit{}, "site_id"},
	{"design agreements", &domain.DesignAgreement{}, "site_id"},
	{"construction agreements", &domain.ConstructionAgreement{}, "site_id"},
	{"om contracts", &domain.OmContract{}, "site_id"},
	{"portfolio sites", &domain.PortfolioSite{}, "site_id"},
}

func TestCascadeService_DeleteSite(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the full graph and leaves no orphans", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Northwind Solar")
		graph := testutil.CreateTestSiteGraph(t, svc.db, client.ID, "Warehouse Roof")
		other := testutil.CreateTestSiteGraph(t, svc.db, client.ID, "Office Roof")
		portfolio := testutil.CreateTestPortfolio(t, svc.db, client.ID, "Ontario")
		testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, graph.Site.ID, nil, nil)

		ok, err := svc.cascade.DeleteSite(ctx, graph.Site.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Site{}, "id = ?", graph.Site.ID))
		for _, dep := range siteDependents {
			assert.Zero(t, testutil.CountRows(t, svc.db, dep.model, dep.column+" = ?", graph.Site.ID), dep.name)
		}
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Design{}, "simulation_run_id IN ?", graph.SimulationRunIDs))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.BomItem{}, "design_id IN ?", graph.DesignIDs))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.MeterReading{}, "meter_file_id IN ?", graph.MeterFileIDs))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.ConstructionMilestone{}, "construction_agreement_id = ?", graph.ConstructionID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.OmVisit{}, "om_contract_id = ?", graph.OmContractID))

		// The other site and the portfolio are untouched
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Site{}, "id = ?", other.Site.ID))
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.SimulationRun{}, "site_id = ?", other.Site.ID))
		assert.Equal(t, int64(6), testutil.CountRows(t, svc.db, &domain.MeterReading{}, "meter_file_id IN ?", other.MeterFileIDs))
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Portfolio{}, "id = ?", portfolio.ID))
	})

	t.Run("detaches opportunities instead of deleting them", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Detach Co")
		site := testutil.CreateTestSite(t, svc.db, client.ID, "Barn")
		opp := testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{
			ClientID:       testutil.UUID(client.ID),
			SiteID:         testutil.UUID(site.ID),
			EstimatedValue: testutil.Float(42000),
		})

		ok, err := svc.cascade.DeleteSite(ctx, site.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		var stored domain.Opportunity
		require.NoError(t, svc.db.First(&stored, "id = ?", opp.ID).Error)
		assert.Nil(t, stored.SiteID)
		require.NotNil(t, stored.ClientID)
		assert.Equal(t, client.ID, *stored.ClientID)
		require.NotNil(t, stored.EstimatedValue)
		assert.Equal(t, 42000.0, *stored.EstimatedValue)
	})

	t.Run("removes stored meter files after commit", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Blob Co")
		site := testutil.CreateTestSite(t, svc.db, client.ID, "Plant")

		csv := "timestamp,kwh\n2024-01-01 00:00,1.5\n2024-01-01 00:15,2.0\n"
		file, readings, err := svc.sites.UploadMeterFile(ctx, site.ID, "usage.csv", "text/csv", bytes.NewBufferString(csv))
		require.NoError(t, err)
		assert.Equal(t, 2, readings)

		rc, err := svc.storage.Download(ctx, file.StoragePath)
		require.NoError(t, err)
		rc.Close()

		ok, err := svc.cascade.DeleteSite(ctx, site.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = svc.storage.Download(ctx, file.StoragePath)
		assert.ErrorIs(t, err, storage.ErrFileNotFound)
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.MeterReading{}, "meter_file_id = ?", file.ID))
	})

	t.Run("missing site returns false", func(t *testing.T) {
		svc := setupServices(t)

		ok, err := svc.cascade.DeleteSite(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCascadeService_DeletePortfolio(t *testing.T) {
	ctx := context.Background()

	t.Run("stores final kpis on linked opportunities and detaches them", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Snapshot Co")
		siteA := testutil.CreateTestSite(t, svc.db, client.ID, "A")
		siteB := testutil.CreateTestSite(t, svc.db, client.ID, "B")
		portfolio := testutil.CreateTestPortfolio(t, svc.db, client.ID, "Bundle")
		testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, siteA.ID, nil, nil)
		testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, siteB.ID, testutil.Float(50000), nil)
		testutil.CreateTestSimulationRun(t, svc.db, siteA.ID, testutil.Float(100000), testutil.Float(200), time.Now().UTC())
		testutil.CreateTestSimulationRun(t, svc.db, siteB.ID, testutil.Float(80000), testutil.Float(150), time.Now().UTC())

		opp := testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{
			ClientID:       testutil.UUID(client.ID),
			PortfolioID:    testutil.UUID(portfolio.ID),
			EstimatedValue: testutil.Float(999),
		})

		ok, err := svc.cascade.DeletePortfolio(ctx, portfolio.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Portfolio{}, "id = ?", portfolio.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.PortfolioSite{}, "portfolio_id = ?", portfolio.ID))
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.Site{}, "client_id = ?", client.ID))

		var stored domain.Opportunity
		require.NoError(t, svc.db.First(&stored, "id = ?", opp.ID).Error)
		assert.Nil(t, stored.PortfolioID)
		require.NotNil(t, stored.EstimatedValue)
		assert.Equal(t, 150000.0, *stored.EstimatedValue)
		require.NotNil(t, stored.PvSizeKW)
		assert.Equal(t, 350.0, *stored.PvSizeKW)
	})

	t.Run("portfolio without data keeps stored values", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Empty Co")
		portfolio := testutil.CreateTestPortfolio(t, svc.db, client.ID, "Empty")
		opp := testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{
			PortfolioID:    testutil.UUID(portfolio.ID),
			EstimatedValue: testutil.Float(999),
		})

		ok, err := svc.cascade.DeletePortfolio(ctx, portfolio.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		var stored domain.Opportunity
		require.NoError(t, svc.db.First(&stored, "id = ?", opp.ID).Error)
		assert.Nil(t, stored.PortfolioID)
		require.NotNil(t, stored.EstimatedValue)
		assert.Equal(t, 999.0, *stored.EstimatedValue)
	})
}

func TestCascadeService_DetachKeepsLastActivity(t *testing.T) {
	ctx := context.Background()
	stale := time.Now().UTC().AddDate(0, 0, -90).Truncate(time.Second)

	makeStale := func(t *testing.T, svc *testServices, id uuid.UUID) {
		t.Helper()
		require.NoError(t, svc.db.Model(&domain.Opportunity{}).Where("id = ?", id).UpdateColumn("updated_at", stale).Error)
	}

	assertStillAtRisk := func(t *testing.T, svc *testServices, id uuid.UUID) {
		t.Helper()
		var stored domain.Opportunity
		require.NoError(t, svc.db.First(&stored, "id = ?", id).Error)
		require.NotNil(t, stored.UpdatedAt)
		assert.WithinDuration(t, stale, *stored.UpdatedAt, time.Second)

		stats, err := svc.pipeline.GetPipelineStats(ctx)
		require.NoError(t, err)
		require.Len(t, stats.AtRiskOpportunities, 1)
		assert.Equal(t, id, stats.AtRiskOpportunities[0].ID)
		assert.Equal(t, 90, stats.AtRiskOpportunities[0].DaysSinceUpdate)
	}

	t.Run("site delete", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Quiet Co")
		site := testutil.CreateTestSite(t, svc.db, client.ID, "Shed")
		opp := testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{
			ClientID:       testutil.UUID(client.ID),
			SiteID:         testutil.UUID(site.ID),
			Stage:          domain.StageProposal,
			EstimatedValue: testutil.Float(30000),
		})
		makeStale(t, svc, opp.ID)

		ok, err := svc.cascade.DeleteSite(ctx, site.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		assertStillAtRisk(t, svc, opp.ID)
	})

	t.Run("portfolio delete with kpi snapshot", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Dormant Co")
		site := testutil.CreateTestSite(t, svc.db, client.ID, "Depot")
		portfolio := testutil.CreateTestPortfolio(t, svc.db, client.ID, "Depots")
		testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, site.ID, nil, nil)
		testutil.CreateTestSimulationRun(t, svc.db, site.ID, testutil.Float(64000), testutil.Float(120), time.Now().UTC())
		opp := testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{
			ClientID:    testutil.UUID(client.ID),
			PortfolioID: testutil.UUID(portfolio.ID),
			Stage:       domain.StageNegotiation,
		})
		makeStale(t, svc, opp.ID)

		ok, err := svc.cascade.DeletePortfolio(ctx, portfolio.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		var stored domain.Opportunity
		require.NoError(t, svc.db.First(&stored, "id = ?", opp.ID).Error)
		require.NotNil(t, stored.EstimatedValue)
		assert.Equal(t, 64000.0, *stored.EstimatedValue)
		assertStillAtRisk(t, svc, opp.ID)
	})
}

func TestCascadeService_DeleteAgreements(t *testing.T) {
	ctx := context.Background()
	svc := setupServices(t)
	client := testutil.CreateTestClient(t, svc.db, "Contracts Co")
	graph := testutil.CreateTestSiteGraph(t, svc.db, client.ID, "Rooftop")

	t.Run("construction agreement with milestones", func(t *testing.T) {
		ok, err := svc.cascade.DeleteConstructionAgreement(ctx, graph.ConstructionID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.ConstructionAgreement{}, "id = ?", graph.ConstructionID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.ConstructionMilestone{}, "construction_agreement_id = ?", graph.ConstructionID))
	})

	t.Run("om contract with visits", func(t *testing.T) {
		ok, err := svc.cascade.DeleteOmContract(ctx, graph.OmContractID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.OmContract{}, "id = ?", graph.OmContractID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.OmVisit{}, "om_contract_id = ?", graph.OmContractID))
	})

	t.Run("site survives", func(t *testing.T) {
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Site{}, "id = ?", graph.Site.ID))
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.SimulationRun{}, "site_id = ?", graph.Site.ID))
	})

	t.Run("second delete reports missing", func(t *testing.T) {
		ok, err := svc.cascade.DeleteConstructionAgreement(ctx, graph.ConstructionID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCascadeService_DeleteClient(t *testing.T) {
	ctx := context.Background()

	t.Run("client without dependents is deleted", func(t *testing.T) {
		svc := setupServices(t)
		client, err := svc.clients.Create(ctx, &domain.CreateClientRequest{Name: "Lonely Co"})
		require.NoError(t, err)

		require.NoError(t, svc.cascade.DeleteClient(ctx, client.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Client{}, "id = ?", client.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Activity{}, "target_id = ?", client.ID))
	})

	t.Run("client with dependents is refused and left intact", func(t *testing.T) {
		svc := setupServices(t)
		client := testutil.CreateTestClient(t, svc.db, "Busy Co")
		graph := testutil.CreateTestSiteGraph(t, svc.db, client.ID, "Roof")
		portfolio := testutil.CreateTestPortfolio(t, svc.db, client.ID, "All")
		testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, graph.Site.ID, nil, nil)
		testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{ClientID: testutil.UUID(client.ID)})

		err := svc.cascade.DeleteClient(ctx, client.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrConflict))

		var depErr *service.DependentsError
		require.True(t, errors.As(err, &depErr))
		assert.Equal(t, int64(1), depErr.Counts.Sites)
		assert.Equal(t, int64(1), depErr.Counts.Portfolios)
		assert.Equal(t, int64(1), depErr.Counts.Opportunities)
		assert.Equal(t, int64(1), depErr.Counts.PortfolioSites)
		assert.Equal(t, int64(2), depErr.Counts.SimulationRuns)
		assert.Equal(t, int64(6), depErr.Counts.MeterReadings)

		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Client{}, "id = ?", client.ID))
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Site{}, "id = ?", graph.Site.ID))
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.Design{}, "simulation_run_id IN ?", graph.SimulationRunIDs))
	})

	t.Run("missing client", func(t *testing.T) {
		svc := setupServices(t)
		err := svc.cascade.DeleteClient(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrClientNotFound)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestCascadeService_CascadeDeleteClient(t *testing.T) {
	ctx := context.Background()
	svc := setupServices(t)

	client := testutil.CreateTestClient(t, svc.db, "Doomed Co")
	graphA := testutil.CreateTestSiteGraph(t, svc.db, client.ID, "A")
	graphB := testutil.CreateTestSiteGraph(t, svc.db, client.ID, "B")
	portfolio := testutil.CreateTestPortfolio(t, svc.db, client.ID, "Both")
	testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, graphA.Site.ID, nil, nil)
	testutil.AddTestPortfolioSite(t, svc.db, portfolio.ID, graphB.Site.ID, nil, nil)
	opp := testutil.CreateTestOpportunity(t, svc.db, &domain.Opportunity{
		ClientID:    testutil.UUID(client.ID),
		PortfolioID: testutil.UUID(portfolio.ID),
	})
	require.NoError(t, svc.activities.Create(ctx, &domain.Activity{
		TargetType: domain.ActivityTargetOpportunity, TargetID: opp.ID, Title: "Call",
	}))
	require.NoError(t, svc.activities.Create(ctx, &domain.Activity{
		TargetType: domain.ActivityTargetClient, TargetID: client.ID, Title: "Intro",
	}))

	bystander := testutil.CreateTestClient(t, svc.db, "Bystander Co")
	bystanderGraph := testutil.CreateTestSiteGraph(t, svc.db, bystander.ID, "Safe")

	t.Run("counts match what the cascade removes", func(t *testing.T) {
		counts, err := svc.cascade.GetClientCascadeCounts(ctx, client.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts.Sites)
		assert.Equal(t, int64(1), counts.Portfolios)
		assert.Equal(t, int64(1), counts.Opportunities)
		assert.Equal(t, int64(2), counts.PortfolioSites)
		assert.Equal(t, int64(4), counts.SimulationRuns)
		assert.Equal(t, int64(4), counts.Designs)
		assert.Equal(t, int64(8), counts.BomItems)
		assert.Equal(t, int64(4), counts.MeterFiles)
		assert.Equal(t, int64(12), counts.MeterReadings)
		assert.Equal(t, int64(4), counts.SiteVisits)
		assert.Equal(t, int64(2), counts.DesignAgreements)
		assert.Equal(t, int64(2), counts.ConstructionAgreements)
		assert.Equal(t, int64(2), counts.OmContracts)
		assert.Equal(t, int64(2), counts.Activities)

		// Counting changes nothing
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Client{}, "id = ?", client.ID))
	})

	t.Run("removes the client graph", func(t *testing.T) {
		ok, err := svc.cascade.CascadeDeleteClient(ctx, client.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Client{}, "id = ?", client.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Site{}, "client_id = ?", client.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Portfolio{}, "client_id = ?", client.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Opportunity{}, "id = ?", opp.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.PortfolioSite{}, "portfolio_id = ?", portfolio.ID))
		assert.Zero(t, testutil.CountRows(t, svc.db, &domain.Activity{}, "target_id IN ?", []uuid.UUID{client.ID, opp.ID}))
		for _, g := range []*testutil.SiteGraph{graphA, graphB} {
			assert.Zero(t, testutil.CountRows(t, svc.db, &domain.BomItem{}, "design_id IN ?", g.DesignIDs))
			assert.Zero(t, testutil.CountRows(t, svc.db, &domain.MeterReading{}, "meter_file_id IN ?", g.MeterFileIDs))
		}
	})

	t.Run("other clients are untouched", func(t *testing.T) {
		assert.Equal(t, int64(1), testutil.CountRows(t, svc.db, &domain.Client{}, "id = ?", bystander.ID))
		assert.Equal(t, int64(2), testutil.CountRows(t, svc.db, &domain.Design{}, "simulation_run_id IN ?", bystanderGraph.SimulationRunIDs))
		assert.Equal(t, int64(4), testutil.CountRows(t, svc.db, &domain.BomItem{}, "design_id IN ?", bystanderGraph.DesignIDs))
	})

	t.Run("counts for a missing client", func(t *testing.T) {
		_, err := svc.cascade.GetClientCascadeCounts(ctx, client.ID)
		assert.ErrorIs(t, err, service.ErrClientNotFound)
	})

	t.Run("second cascade reports missing", func(t *testing.T) {
		ok, err := svc.cascade.CascadeDeleteClient(ctx, client.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
