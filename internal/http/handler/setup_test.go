package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/solar-crm-api/internal/cascade"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/http/handler"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/service"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testMaxUploadSize = 1 << 10

type testHandlers struct {
	db          *gorm.DB
	storage     *storage.LocalStorage
	client      *handler.ClientHandler
	site        *handler.SiteHandler
	portfolio   *handler.PortfolioHandler
	opportunity *handler.OpportunityHandler
	contract    *handler.ContractHandler
	health      *handler.HealthHandler

	clientActivities      *handler.ActivityHandler
	opportunityActivities *handler.ActivityHandler
}

func setupHandlers(t *testing.T) *testHandlers {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	clientRepo := repository.NewClientRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	portfolioSiteRepo := repository.NewPortfolioSiteRepository(db)
	runRepo := repository.NewSimulationRunRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	meterFileRepo := repository.NewMeterFileRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// nil metrics are ignored by every recorder
	kpiService := service.NewPortfolioKPIService(portfolioRepo, portfolioSiteRepo, runRepo, nil, logger)
	cascadeService := service.NewCascadeService(
		cascade.NewExecutor(logger),
		clientRepo,
		siteRepo,
		portfolioRepo,
		opportunityRepo,
		meterFileRepo,
		kpiService,
		fileStorage,
		nil,
		logger,
		db,
	)
	opportunityService := service.NewOpportunityService(
		opportunityRepo, clientRepo, siteRepo, portfolioRepo, activityRepo, kpiService, cascadeService, logger,
	)
	clientService := service.NewClientService(clientRepo, activityRepo, logger)
	siteService := service.NewSiteService(siteRepo, clientRepo, meterFileRepo, fileStorage, testMaxUploadSize, logger)
	portfolioService := service.NewPortfolioService(portfolioRepo, portfolioSiteRepo, clientRepo, siteRepo, kpiService, logger)
	pipelineService := service.NewPipelineService(opportunityService, clientRepo, logger)
	activityService := service.NewActivityService(activityRepo, clientRepo, opportunityRepo, logger)

	return &testHandlers{
		db:          db,
		storage:     fileStorage,
		client:      handler.NewClientHandler(clientService, cascadeService, opportunityService, logger),
		site:        handler.NewSiteHandler(siteService, cascadeService, opportunityService, testMaxUploadSize, logger),
		portfolio:   handler.NewPortfolioHandler(portfolioService, kpiService, cascadeService, logger),
		opportunity: handler.NewOpportunityHandler(opportunityService, pipelineService, logger),
		contract:    handler.NewContractHandler(cascadeService, logger),
		health:      handler.NewHealthHandler(db, fileStorage, logger),

		clientActivities:      handler.NewActivityHandler(activityService, domain.ActivityTargetClient, logger),
		opportunityActivities: handler.NewActivityHandler(activityService, domain.ActivityTargetOpportunity, logger),
	}
}

// withURLParams attaches chi route parameters to a request built outside the router
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), "body: %s", rr.Body.String())
}
