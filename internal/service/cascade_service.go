package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/cascade"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/metrics"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CascadeService deletes entity graphs without leaving orphans.
//
// Every cascade runs in one transaction: either the whole graph is gone or
// nothing changed. Blobs of deleted meter files are removed after commit on
// a best-effort basis.
type CascadeService struct {
	executor        *cascade.Executor
	clientRepo      *repository.ClientRepository
	siteRepo        *repository.SiteRepository
	portfolioRepo   *repository.PortfolioRepository
	opportunityRepo *repository.OpportunityRepository
	meterFileRepo   *repository.MeterFileRepository
	kpiService      *PortfolioKPIService
	storage         storage.Storage
	metrics         *metrics.CRMMetrics
	logger          *zap.Logger
	db              *gorm.DB
}

func NewCascadeService(
	executor *cascade.Executor,
	clientRepo *repository.ClientRepository,
	siteRepo *repository.SiteRepository,
	portfolioRepo *repository.PortfolioRepository,
	opportunityRepo *repository.OpportunityRepository,
	meterFileRepo *repository.MeterFileRepository,
	kpiService *PortfolioKPIService,
	fileStorage storage.Storage,
	crmMetrics *metrics.CRMMetrics,
	logger *zap.Logger,
	db *gorm.DB,
) *CascadeService {
	return &CascadeService{
		executor:        executor,
		clientRepo:      clientRepo,
		siteRepo:        siteRepo,
		portfolioRepo:   portfolioRepo,
		opportunityRepo: opportunityRepo,
		meterFileRepo:   meterFileRepo,
		kpiService:      kpiService,
		storage:         fileStorage,
		metrics:         crmMetrics,
		logger:          logger,
		db:              db,
	}
}

// DeleteSite removes a site with its simulation runs, designs, BOM items,
// meter files and readings, visits, agreements, construction and O&M
// contracts and portfolio memberships. Opportunities pointing at the site are
// kept and detached. Returns false when the site did not exist.
func (s *CascadeService) DeleteSite(ctx context.Context, siteID uuid.UUID) (bool, error) {
	var blobPaths []string
	ok, err := s.run(ctx, sitePlan(), func(tx *gorm.DB) error {
		var err error
		blobPaths, err = s.meterFileRepo.StoragePathsBySiteIDs(ctx, tx, []uuid.UUID{siteID})
		return err
	}, siteID)
	if err != nil || !ok {
		return ok, err
	}

	s.cleanupBlobs(ctx, blobPaths)
	return true, nil
}

// DeletePortfolio removes a portfolio and its memberships. Linked
// opportunities first receive the final KPI values as their stored values
// and are then detached. Sites are not touched.
func (s *CascadeService) DeletePortfolio(ctx context.Context, portfolioID uuid.UUID) (bool, error) {
	return s.run(ctx, portfolioPlan(), func(tx *gorm.DB) error {
		return s.snapshotPortfolios(ctx, tx, []uuid.UUID{portfolioID})
	}, portfolioID)
}

// DeleteConstructionAgreement removes an agreement and its milestones
func (s *CascadeService) DeleteConstructionAgreement(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.run(ctx, constructionAgreementPlan(), nil, id)
}

// DeleteOmContract removes an O&M contract and its visits
func (s *CascadeService) DeleteOmContract(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.run(ctx, omContractPlan(), nil, id)
}

// DeleteOpportunity removes an opportunity and its activities
func (s *CascadeService) DeleteOpportunity(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.run(ctx, opportunityPlan(), nil, id)
}

// CascadeDeleteClient removes a client with all of its sites (site cascade),
// portfolios (portfolio cascade), opportunities and activities. If any part
// fails the transaction rolls back and the client stays in place.
func (s *CascadeService) CascadeDeleteClient(ctx context.Context, clientID uuid.UUID) (bool, error) {
	var blobPaths []string
	ok, err := s.run(ctx, clientPlan(), func(tx *gorm.DB) error {
		siteIDs, err := s.siteRepo.IDsByClient(ctx, tx, clientID)
		if err != nil {
			return err
		}
		blobPaths, err = s.meterFileRepo.StoragePathsBySiteIDs(ctx, tx, siteIDs)
		if err != nil {
			return err
		}

		portfolioIDs, err := s.portfolioRepo.IDsByClient(ctx, tx, clientID)
		if err != nil {
			return err
		}
		return s.snapshotPortfolios(ctx, tx, portfolioIDs)
	}, clientID)
	if err != nil || !ok {
		return ok, err
	}

	s.cleanupBlobs(ctx, blobPaths)
	return true, nil
}

// DeleteClient removes a client that has no sites, portfolios or
// opportunities. Otherwise it returns a *DependentsError carrying the counts a
// cascade would remove, and nothing is deleted.
func (s *CascadeService) DeleteClient(ctx context.Context, clientID uuid.UUID) error {
	ok, err := s.run(ctx, clientPlan(), func(tx *gorm.DB) error {
		sites, err := s.clientRepo.CountSites(ctx, tx, clientID)
		if err != nil {
			return fmt.Errorf("failed to count client sites: %w", err)
		}
		portfolios, err := s.clientRepo.CountPortfolios(ctx, tx, clientID)
		if err != nil {
			return fmt.Errorf("failed to count client portfolios: %w", err)
		}
		opportunities, err := s.clientRepo.CountOpportunities(ctx, tx, clientID)
		if err != nil {
			return fmt.Errorf("failed to count client opportunities: %w", err)
		}
		if sites == 0 && portfolios == 0 && opportunities == 0 {
			return nil
		}

		counts, err := s.executor.Count(ctx, tx, clientPlan(), clientID)
		if err != nil {
			return err
		}
		return &DependentsError{Entity: "client", Counts: countsFromMap(counts)}
	}, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClientNotFound
	}
	return nil
}

// GetClientCascadeCounts reports what CascadeDeleteClient would remove. It does not modify anything.
func (s *CascadeService) GetClientCascadeCounts(ctx context.Context, clientID uuid.UUID) (*domain.CascadeCounts, error) {
	exists, err := s.clientRepo.Exists(ctx, nil, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if !exists {
		return nil, ErrClientNotFound
	}

	counts, err := s.executor.Count(ctx, s.db, clientPlan(), clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to count client dependents: %w", err)
	}

	result := countsFromMap(counts)
	return &result, nil
}

// run executes plan in a transaction, after the optional before hook has run
// inside the same transaction. It reports whether the root row was removed.
func (s *CascadeService) run(ctx context.Context, plan cascade.Plan, before func(tx *gorm.DB) error, rootID uuid.UUID) (bool, error) {
	start := time.Now()
	var res *cascade.Result

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if before != nil {
			if err := before(tx); err != nil {
				return err
			}
		}
		r, err := s.executor.Execute(ctx, tx, plan, rootID)
		if err != nil {
			return err
		}
		res = r
		return nil
	})

	if err != nil {
		var depErr *DependentsError
		status := metrics.StatusError
		if errors.As(err, &depErr) {
			status = metrics.StatusConflict
		} else {
			s.logger.Error("cascade delete rolled back",
				zap.String("plan", plan.Name),
				zap.String("id", rootID.String()),
				zap.Error(err),
			)
		}
		s.metrics.RecordCascade(plan.Name, status, time.Since(start), nil)
		return false, err
	}

	if res.RootDeleted() == 0 {
		s.metrics.RecordCascade(plan.Name, metrics.StatusNotFound, time.Since(start), nil)
		return false, nil
	}

	s.metrics.RecordCascade(plan.Name, metrics.StatusSuccess, time.Since(start), res.Deleted)
	s.logger.Info("cascade delete completed",
		zap.String("plan", plan.Name),
		zap.String("id", rootID.String()),
		zap.Int64("rowsDeleted", res.TotalDeleted()),
		zap.Any("detached", res.Detached),
		zap.Duration("duration", time.Since(start)),
	)
	return true, nil
}

// snapshotPortfolios writes the current KPIs into the stored values of the
// portfolios' opportunities so they survive the detach. Portfolios without
// data leave the stored values as they are.
func (s *CascadeService) snapshotPortfolios(ctx context.Context, tx *gorm.DB, portfolioIDs []uuid.UUID) error {
	if len(portfolioIDs) == 0 {
		return nil
	}

	kpis, err := s.kpiService.compute(ctx, tx, portfolioIDs)
	if err != nil {
		return fmt.Errorf("failed to compute portfolio kpis for snapshot: %w", err)
	}

	for _, id := range portfolioIDs {
		k, ok := kpis[id]
		if !ok || !k.HasData {
			continue
		}
		updated, err := s.opportunityRepo.StoreFallbackValues(ctx, tx, id, k.TotalCapex, k.TotalPvKW)
		if err != nil {
			return err
		}
		if updated > 0 {
			s.logger.Debug("stored portfolio kpis on opportunities",
				zap.String("portfolioId", id.String()),
				zap.Int64("opportunities", updated),
			)
		}
	}
	return nil
}

func (s *CascadeService) cleanupBlobs(ctx context.Context, paths []string) {
	if s.storage == nil || len(paths) == 0 {
		return
	}
	failed := storage.DeleteAll(ctx, s.storage, paths, s.logger)
	for range failed {
		s.metrics.RecordBlobCleanupFailure()
	}
}
