package service_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/straye-as/solar-crm-api/internal/cascade"
	"github.com/straye-as/solar-crm-api/internal/metrics"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/service"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testMaxUploadSize = 1 << 20

type testServices struct {
	db         *gorm.DB
	storage    *storage.LocalStorage
	metrics    *metrics.CRMMetrics
	clients    *service.ClientService
	sites      *service.SiteService
	portfolios *service.PortfolioService
	kpis       *service.PortfolioKPIService
	cascade    *service.CascadeService
	opps       *service.OpportunityService
	pipeline   *service.PipelineService
	meterFiles *repository.MeterFileRepository
	activities *repository.ActivityRepository
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	crmMetrics, err := metrics.NewCRMMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	clientRepo := repository.NewClientRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	portfolioSiteRepo := repository.NewPortfolioSiteRepository(db)
	runRepo := repository.NewSimulationRunRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	meterFileRepo := repository.NewMeterFileRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	kpiService := service.NewPortfolioKPIService(portfolioRepo, portfolioSiteRepo, runRepo, crmMetrics, logger)
	cascadeService := service.NewCascadeService(
		cascade.NewExecutor(logger),
		clientRepo,
		siteRepo,
		portfolioRepo,
		opportunityRepo,
		meterFileRepo,
		kpiService,
		fileStorage,
		crmMetrics,
		logger,
		db,
	)
	opportunityService := service.NewOpportunityService(
		opportunityRepo, clientRepo, siteRepo, portfolioRepo, activityRepo, kpiService, cascadeService, logger,
	)

	return &testServices{
		db:         db,
		storage:    fileStorage,
		metrics:    crmMetrics,
		clients:    service.NewClientService(clientRepo, activityRepo, logger),
		sites:      service.NewSiteService(siteRepo, clientRepo, meterFileRepo, fileStorage, testMaxUploadSize, logger),
		portfolios: service.NewPortfolioService(portfolioRepo, portfolioSiteRepo, clientRepo, siteRepo, kpiService, logger),
		kpis:       kpiService,
		cascade:    cascadeService,
		opps:       opportunityService,
		pipeline:   service.NewPipelineService(opportunityService, clientRepo, logger),
		meterFiles: meterFileRepo,
		activities: activityRepo,
	}
}
