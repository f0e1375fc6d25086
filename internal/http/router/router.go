package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/straye-as/solar-crm-api/internal/config"
	"github.com/straye-as/solar-crm-api/internal/http/handler"
	"github.com/straye-as/solar-crm-api/internal/http/middleware"
	"github.com/straye-as/solar-crm-api/internal/metrics"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/straye-as/solar-crm-api/docs" // registers swagger docs
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Health      *handler.HealthHandler
	Client      *handler.ClientHandler
	Site        *handler.SiteHandler
	Portfolio   *handler.PortfolioHandler
	Opportunity *handler.OpportunityHandler
	Contract    *handler.ContractHandler

	ClientActivities      *handler.ActivityHandler
	OpportunityActivities *handler.ActivityHandler
}

type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	rateLimiter *middleware.RateLimiter
	metrics     *metrics.CRMMetrics
	handlers    Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	rateLimiter *middleware.RateLimiter,
	crmMetrics *metrics.CRMMetrics,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		rateLimiter: rateLimiter,
		metrics:     crmMetrics,
		handlers:    handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.Metrics(rt.metrics))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.Limit)

	r.Get("/health", rt.handlers.Health.Live)
	r.Get("/health/db", rt.handlers.Health.Database)
	r.Get("/health/ready", rt.handlers.Health.Ready)

	if rt.cfg.Metrics.Enabled && rt.metrics != nil {
		r.Handle(rt.cfg.Metrics.Path, rt.metrics.Handler())
	}

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
			r.Use(chimiddleware.Timeout(timeout))
		}

		r.Route("/clients", func(r chi.Router) {
			h := rt.handlers.Client
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/{id}/cascade-counts", h.CascadeCounts)
			r.Get("/{id}/opportunities", h.Opportunities)
			r.Get("/{id}/activities", rt.handlers.ClientActivities.List)
			r.Post("/{id}/activities", rt.handlers.ClientActivities.Create)
		})

		r.Route("/sites", func(r chi.Router) {
			h := rt.handlers.Site
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/{id}/opportunities", h.Opportunities)
			r.Get("/{id}/meter-files", h.ListMeterFiles)
			r.Post("/{id}/meter-files", h.UploadMeterFile)
		})

		r.Route("/portfolios", func(r chi.Router) {
			h := rt.handlers.Portfolio
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/{id}/kpis", h.KPIs)
			r.Post("/{id}/sites", h.AddSite)
			r.Put("/{id}/sites/{siteId}", h.UpdateSite)
			r.Delete("/{id}/sites/{siteId}", h.RemoveSite)
		})

		r.Route("/opportunities", func(r chi.Router) {
			h := rt.handlers.Opportunity
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/pipeline-stats", h.PipelineStats)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/{id}/activities", rt.handlers.OpportunityActivities.List)
			r.Post("/{id}/activities", rt.handlers.OpportunityActivities.Create)
		})

		r.Delete("/construction-agreements/{id}", rt.handlers.Contract.DeleteConstructionAgreement)
		r.Delete("/om-contracts/{id}", rt.handlers.Contract.DeleteOmContract)
	})

	return r
}
