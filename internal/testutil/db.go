package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so every query sees the same memory
// database; code under test must use the transaction handle it is given
// rather than the outer *gorm.DB while a transaction is open.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "failed to open in-memory sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(domain.AllModels()...), "failed to migrate test schema")

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CountRows counts the rows of model matching an optional condition
func CountRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }

func UUID(v uuid.UUID) *uuid.UUID { return &v }

func Time(v time.Time) *time.Time { return &v }

func CreateTestClient(t *testing.T, db *gorm.DB, name string) *domain.Client {
	t.Helper()
	client := &domain.Client{
		Name:    name,
		Email:   "test@example.com",
		Phone:   "555-0100",
		Country: "Canada",
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

func CreateTestSite(t *testing.T, db *gorm.DB, clientID uuid.UUID, name string) *domain.Site {
	t.Helper()
	site := &domain.Site{
		ClientID: clientID,
		Name:     name,
		Address:  "1 Solar Way",
		City:     "Toronto",
	}
	require.NoError(t, db.Create(site).Error)
	return site
}

func CreateTestPortfolio(t *testing.T, db *gorm.DB, clientID uuid.UUID, name string) *domain.Portfolio {
	t.Helper()
	portfolio := &domain.Portfolio{
		ClientID: clientID,
		Name:     name,
	}
	require.NoError(t, db.Create(portfolio).Error)
	return portfolio
}

func AddTestPortfolioSite(t *testing.T, db *gorm.DB, portfolioID, siteID uuid.UUID, overrideCapex, overridePv *float64) *domain.PortfolioSite {
	t.Helper()
	ps := &domain.PortfolioSite{
		PortfolioID:      portfolioID,
		SiteID:           siteID,
		OverrideCapexNet: overrideCapex,
		OverridePvSizeKW: overridePv,
	}
	require.NoError(t, db.Create(ps).Error)
	return ps
}

// CreateTestSimulationRun inserts a run with an explicit creation time
func CreateTestSimulationRun(t *testing.T, db *gorm.DB, siteID uuid.UUID, capex, pv *float64, createdAt time.Time) *domain.SimulationRun {
	t.Helper()
	run := &domain.SimulationRun{
		SiteID:   siteID,
		Label:    fmt.Sprintf("run %s", createdAt.Format(time.RFC3339)),
		CapexNet: capex,
		PvSizeKW: pv,
	}
	run.CreatedAt = createdAt
	run.UpdatedAt = createdAt
	require.NoError(t, db.Create(run).Error)
	return run
}

func CreateTestOpportunity(t *testing.T, db *gorm.DB, opp *domain.Opportunity) *domain.Opportunity {
	t.Helper()
	if opp.Name == "" {
		opp.Name = "Test Opportunity"
	}
	if opp.Stage == "" {
		opp.Stage = domain.StageProspect
	}
	require.NoError(t, db.Create(opp).Error)
	return opp
}

// SiteGraph holds the ids of a fully populated site
type SiteGraph struct {
	Site             *domain.Site
	SimulationRunIDs []uuid.UUID
	DesignIDs        []uuid.UUID
	MeterFileIDs     []uuid.UUID
	ConstructionID   uuid.UUID
	OmContractID     uuid.UUID
}

// CreateTestSiteGraph creates a site with every kind of dependent row:
// two simulation runs with a design and two BOM items each, two meter files
// with three readings each, two site visits, a design agreement, a
// construction agreement with two milestones and an O&M contract with one visit.
func CreateTestSiteGraph(t *testing.T, db *gorm.DB, clientID uuid.UUID, name string) *SiteGraph {
	t.Helper()
	site := CreateTestSite(t, db, clientID, name)
	graph := &SiteGraph{Site: site}
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		run := CreateTestSimulationRun(t, db, site.ID, Float(100000), Float(200), now.Add(-time.Duration(i)*time.Hour))
		graph.SimulationRunIDs = append(graph.SimulationRunIDs, run.ID)

		design := &domain.Design{SimulationRunID: run.ID, Name: fmt.Sprintf("Design %d", i), ModuleCount: 400}
		require.NoError(t, db.Create(design).Error)
		graph.DesignIDs = append(graph.DesignIDs, design.ID)

		for j := 0; j < 2; j++ {
			item := &domain.BomItem{DesignID: design.ID, Category: "modules", Description: "Panel", Quantity: 200, UnitCost: 180}
			require.NoError(t, db.Create(item).Error)
		}

		file := &domain.MeterFile{SiteID: site.ID, FileName: fmt.Sprintf("meter-%d.csv", i), StoragePath: fmt.Sprintf("meter-files/%s/%d.csv", site.ID, i)}
		require.NoError(t, db.Create(file).Error)
		graph.MeterFileIDs = append(graph.MeterFileIDs, file.ID)

		for k := 0; k < 3; k++ {
			reading := &domain.MeterReading{MeterFileID: file.ID, ReadingAt: now.Add(time.Duration(k) * 15 * time.Minute), KWh: 12.5}
			require.NoError(t, db.Create(reading).Error)
		}

		visit := &domain.SiteVisit{SiteID: site.ID, Notes: "roof inspection"}
		require.NoError(t, db.Create(visit).Error)
	}

	agreement := &domain.DesignAgreement{SiteID: site.ID, Status: domain.DesignAgreementStatusSigned, Fee: 2500}
	require.NoError(t, db.Create(agreement).Error)

	construction := &domain.ConstructionAgreement{SiteID: site.ID, ContractValue: 150000}
	require.NoError(t, db.Create(construction).Error)
	graph.ConstructionID = construction.ID
	for _, name := range []string{"Mobilization", "Commissioning"} {
		milestone := &domain.ConstructionMilestone{ConstructionAgreementID: construction.ID, Name: name, PercentOfValue: 50}
		require.NoError(t, db.Create(milestone).Error)
	}

	om := &domain.OmContract{SiteID: site.ID, AnnualFee: 3000}
	require.NoError(t, db.Create(om).Error)
	graph.OmContractID = om.ID
	omVisit := &domain.OmVisit{OmContractID: om.ID, Findings: "clean"}
	require.NoError(t, db.Create(omVisit).Error)

	return graph
}
