package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/straye-as/solar-crm-api/docs"
	"github.com/straye-as/solar-crm-api/internal/cascade"
	"github.com/straye-as/solar-crm-api/internal/config"
	"github.com/straye-as/solar-crm-api/internal/database"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/http/handler"
	"github.com/straye-as/solar-crm-api/internal/http/middleware"
	"github.com/straye-as/solar-crm-api/internal/http/router"
	"github.com/straye-as/solar-crm-api/internal/jobs"
	"github.com/straye-as/solar-crm-api/internal/logger"
	"github.com/straye-as/solar-crm-api/internal/metrics"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/service"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"go.uber.org/zap"
)

// @title Solar CRM API
// @version 1.0
// @description CRM for commercial solar: clients, sites, portfolios and the sales pipeline

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

const snapshotJobTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Basic configuration first, for the logger
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "local" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	} else {
		docs.SwaggerInfo.Host = ""
	}

	// Development reads secrets from the environment, staging/production from Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	crmMetrics, err := metrics.NewCRMMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Repositories
	clientRepo := repository.NewClientRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	portfolioSiteRepo := repository.NewPortfolioSiteRepository(db)
	runRepo := repository.NewSimulationRunRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	meterFileRepo := repository.NewMeterFileRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Services
	kpiService := service.NewPortfolioKPIService(portfolioRepo, portfolioSiteRepo, runRepo, crmMetrics, log)
	cascadeService := service.NewCascadeService(
		cascade.NewExecutor(log),
		clientRepo,
		siteRepo,
		portfolioRepo,
		opportunityRepo,
		meterFileRepo,
		kpiService,
		fileStorage,
		crmMetrics,
		log,
		db,
	)
	clientService := service.NewClientService(clientRepo, activityRepo, log)
	siteService := service.NewSiteService(siteRepo, clientRepo, meterFileRepo, fileStorage, cfg.Storage.MaxUploadSizeBytes(), log)
	portfolioService := service.NewPortfolioService(portfolioRepo, portfolioSiteRepo, clientRepo, siteRepo, kpiService, log)
	opportunityService := service.NewOpportunityService(
		opportunityRepo, clientRepo, siteRepo, portfolioRepo, activityRepo, kpiService, cascadeService, log,
	)
	pipelineService := service.NewPipelineService(opportunityService, clientRepo, log)

	activityService := service.NewActivityService(activityRepo, clientRepo, opportunityRepo, log)

	rt := router.NewRouter(cfg, log, middleware.NewRateLimiter(&cfg.RateLimit, log), crmMetrics, router.Handlers{
		Health:      handler.NewHealthHandler(db, fileStorage, log),
		Client:      handler.NewClientHandler(clientService, cascadeService, opportunityService, log),
		Site:        handler.NewSiteHandler(siteService, cascadeService, opportunityService, cfg.Storage.MaxUploadSizeBytes(), log),
		Portfolio:   handler.NewPortfolioHandler(portfolioService, kpiService, cascadeService, log),
		Opportunity: handler.NewOpportunityHandler(opportunityService, pipelineService, log),
		Contract:    handler.NewContractHandler(cascadeService, log),

		ClientActivities:      handler.NewActivityHandler(activityService, domain.ActivityTargetClient, log),
		OpportunityActivities: handler.NewActivityHandler(activityService, domain.ActivityTargetOpportunity, log),
	})

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		snapshot := jobs.NewPipelineSnapshotJob(pipelineService, crmMetrics, logger.WithJob(log, jobs.PipelineSnapshotJobName), snapshotJobTimeout)
		if err := scheduler.AddJob(jobs.PipelineSnapshotJobName, cfg.Jobs.PipelineSnapshotSchedule, snapshot.Run); err != nil {
			return fmt.Errorf("failed to register pipeline snapshot job: %w", err)
		}
		scheduler.Start()
		// Publish gauges right away instead of waiting for the first tick
		go snapshot.Run()
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
