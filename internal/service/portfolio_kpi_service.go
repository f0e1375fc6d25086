package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/metrics"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PortfolioKPIService aggregates capital cost and PV capacity over a portfolio's sites.
// Results are recomputed from current rows on every call and never cached.
type PortfolioKPIService struct {
	portfolioRepo     *repository.PortfolioRepository
	portfolioSiteRepo *repository.PortfolioSiteRepository
	simulationRunRepo *repository.SimulationRunRepository
	metrics           *metrics.CRMMetrics
	logger            *zap.Logger
}

func NewPortfolioKPIService(
	portfolioRepo *repository.PortfolioRepository,
	portfolioSiteRepo *repository.PortfolioSiteRepository,
	simulationRunRepo *repository.SimulationRunRepository,
	crmMetrics *metrics.CRMMetrics,
	logger *zap.Logger,
) *PortfolioKPIService {
	return &PortfolioKPIService{
		portfolioRepo:     portfolioRepo,
		portfolioSiteRepo: portfolioSiteRepo,
		simulationRunRepo: simulationRunRepo,
		metrics:           crmMetrics,
		logger:            logger,
	}
}

// ComputePortfolioKPIs returns the live KPIs of one portfolio
func (s *PortfolioKPIService) ComputePortfolioKPIs(ctx context.Context, portfolioID uuid.UUID) (*domain.PortfolioKPIs, error) {
	start := time.Now()

	if _, err := s.portfolioRepo.GetByID(ctx, portfolioID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.RecordKPIComputation(metrics.KPIModeSingle, metrics.StatusNotFound, 0, time.Since(start))
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	result, err := s.compute(ctx, nil, []uuid.UUID{portfolioID})
	if err != nil {
		s.metrics.RecordKPIComputation(metrics.KPIModeSingle, metrics.StatusError, 0, time.Since(start))
		return nil, err
	}
	s.metrics.RecordKPIComputation(metrics.KPIModeSingle, metrics.StatusSuccess, 1, time.Since(start))

	kpis := result[portfolioID]
	return &kpis, nil
}

// ComputePortfolioKPIsBatch computes KPIs for many portfolios with two store
// round-trips in total. Every requested id gets an entry; unknown portfolios
// come back empty with HasData false.
func (s *PortfolioKPIService) ComputePortfolioKPIsBatch(ctx context.Context, portfolioIDs []uuid.UUID) (map[uuid.UUID]domain.PortfolioKPIs, error) {
	start := time.Now()
	result, err := s.compute(ctx, nil, portfolioIDs)
	if err != nil {
		s.metrics.RecordKPIComputation(metrics.KPIModeBatch, metrics.StatusError, 0, time.Since(start))
		return nil, err
	}
	s.metrics.RecordKPIComputation(metrics.KPIModeBatch, metrics.StatusSuccess, len(portfolioIDs), time.Since(start))
	return result, nil
}

// compute runs the batched aggregation, optionally inside a transaction
func (s *PortfolioKPIService) compute(ctx context.Context, tx *gorm.DB, portfolioIDs []uuid.UUID) (map[uuid.UUID]domain.PortfolioKPIs, error) {
	portfolioIDs = uniqueIDs(portfolioIDs)
	if len(portfolioIDs) == 0 {
		return map[uuid.UUID]domain.PortfolioKPIs{}, nil
	}

	memberships, err := s.portfolioSiteRepo.ListByPortfolioIDs(ctx, tx, portfolioIDs)
	if err != nil {
		return nil, err
	}

	siteIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		siteIDs = append(siteIDs, m.SiteID)
	}

	runs, err := s.simulationRunRepo.ListBySiteIDs(ctx, tx, uniqueIDs(siteIDs))
	if err != nil {
		return nil, err
	}

	return AggregatePortfolioKPIs(portfolioIDs, memberships, runs), nil
}

// AggregatePortfolioKPIs is the pure aggregation over already loaded rows.
//
// For each membership the site's latest run is the one with the greatest
// CreatedAt; equal timestamps are resolved by the greater id. The effective
// capex is the membership override, else the latest run's CapexNet, else 0,
// and PV size likewise. Capex totals are rounded to cents.
func AggregatePortfolioKPIs(portfolioIDs []uuid.UUID, memberships []domain.PortfolioSite, runs []domain.SimulationRun) map[uuid.UUID]domain.PortfolioKPIs {
	latest := LatestRunBySite(runs)

	type acc struct {
		capex   decimal.Decimal
		pv      decimal.Decimal
		sites   int
		hasData bool
	}
	sums := make(map[uuid.UUID]*acc, len(portfolioIDs))
	for _, id := range portfolioIDs {
		sums[id] = &acc{}
	}

	for _, m := range memberships {
		a, ok := sums[m.PortfolioID]
		if !ok {
			continue
		}
		a.sites++

		run, hasRun := latest[m.SiteID]

		var capex, pv *float64
		if m.OverrideCapexNet != nil {
			capex = m.OverrideCapexNet
		} else if hasRun {
			capex = run.CapexNet
		}
		if m.OverridePvSizeKW != nil {
			pv = m.OverridePvSizeKW
		} else if hasRun {
			pv = run.PvSizeKW
		}

		if capex != nil {
			a.capex = a.capex.Add(decimal.NewFromFloat(*capex))
			a.hasData = true
		}
		if pv != nil {
			a.pv = a.pv.Add(decimal.NewFromFloat(*pv))
			a.hasData = true
		}
	}

	result := make(map[uuid.UUID]domain.PortfolioKPIs, len(sums))
	for id, a := range sums {
		result[id] = domain.PortfolioKPIs{
			PortfolioID: id,
			TotalCapex:  a.capex.Round(2).InexactFloat64(),
			TotalPvKW:   a.pv.Round(3).InexactFloat64(),
			SiteCount:   a.sites,
			HasData:     a.hasData,
		}
	}
	return result
}

// LatestRunBySite picks the latest run of each site
func LatestRunBySite(runs []domain.SimulationRun) map[uuid.UUID]domain.SimulationRun {
	latest := make(map[uuid.UUID]domain.SimulationRun)
	for _, run := range runs {
		current, ok := latest[run.SiteID]
		if !ok || isLaterRun(run, current) {
			latest[run.SiteID] = run
		}
	}
	return latest
}

func isLaterRun(a, b domain.SimulationRun) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
