package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpportunityService owns every read path for opportunities. Each reader
// loads raw rows, batches the KPIs of the referenced portfolios and returns
// projected copies, so a portfolio-linked opportunity is never observed with
// its stored fallback values while its portfolio has data.
type OpportunityService struct {
	opportunityRepo *repository.OpportunityRepository
	clientRepo      *repository.ClientRepository
	siteRepo        *repository.SiteRepository
	portfolioRepo   *repository.PortfolioRepository
	activityRepo    *repository.ActivityRepository
	kpiService      *PortfolioKPIService
	cascadeService  *CascadeService
	logger          *zap.Logger
}

func NewOpportunityService(
	opportunityRepo *repository.OpportunityRepository,
	clientRepo *repository.ClientRepository,
	siteRepo *repository.SiteRepository,
	portfolioRepo *repository.PortfolioRepository,
	activityRepo *repository.ActivityRepository,
	kpiService *PortfolioKPIService,
	cascadeService *CascadeService,
	logger *zap.Logger,
) *OpportunityService {
	return &OpportunityService{
		opportunityRepo: opportunityRepo,
		clientRepo:      clientRepo,
		siteRepo:        siteRepo,
		portfolioRepo:   portfolioRepo,
		activityRepo:    activityRepo,
		kpiService:      kpiService,
		cascadeService:  cascadeService,
		logger:          logger,
	}
}

// List returns projected opportunities matching filters; nil lists everything
func (s *OpportunityService) List(ctx context.Context, filters *repository.OpportunityFilters) ([]domain.Opportunity, error) {
	opps, err := s.opportunityRepo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, opps)
}

// GetByID returns one projected opportunity or ErrOpportunityNotFound
func (s *OpportunityService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	opp, err := s.opportunityRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOpportunityNotFound
		}
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}

	projected, err := s.project(ctx, []domain.Opportunity{*opp})
	if err != nil {
		return nil, err
	}
	return &projected[0], nil
}

func (s *OpportunityService) GetByStage(ctx context.Context, stage domain.OpportunityStage) ([]domain.Opportunity, error) {
	return s.List(ctx, &repository.OpportunityFilters{Stage: &stage})
}

func (s *OpportunityService) GetByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Opportunity, error) {
	return s.List(ctx, &repository.OpportunityFilters{ClientID: &clientID})
}

func (s *OpportunityService) GetBySite(ctx context.Context, siteID uuid.UUID) ([]domain.Opportunity, error) {
	return s.List(ctx, &repository.OpportunityFilters{SiteID: &siteID})
}

func (s *OpportunityService) GetByOwner(ctx context.Context, ownerID string) ([]domain.Opportunity, error) {
	return s.List(ctx, &repository.OpportunityFilters{OwnerID: &ownerID})
}

func (s *OpportunityService) GetByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]domain.Opportunity, error) {
	return s.List(ctx, &repository.OpportunityFilters{PortfolioID: &portfolioID})
}

// Create inserts an opportunity. Referenced client, site and portfolio must exist.
func (s *OpportunityService) Create(ctx context.Context, req *domain.CreateOpportunityRequest) (*domain.Opportunity, error) {
	stage := req.Stage
	if stage == "" {
		stage = domain.StageProspect
	}
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, stage)
	}

	if err := s.checkReferences(ctx, req.ClientID, req.SiteID, req.PortfolioID); err != nil {
		return nil, err
	}

	opp := &domain.Opportunity{
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		LeadID:            req.LeadID,
		ClientID:          req.ClientID,
		SiteID:            req.SiteID,
		PortfolioID:       req.PortfolioID,
		Stage:             stage,
		Probability:       req.Probability,
		EstimatedValue:    req.EstimatedValue,
		PvSizeKW:          req.PvSizeKW,
		OwnerID:           req.OwnerID,
		ExpectedCloseDate: req.ExpectedCloseDate,
	}
	if req.Qualification != nil {
		opp.Qualification = *req.Qualification
	}

	if err := s.opportunityRepo.Create(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to create opportunity: %w", err)
	}

	s.recordActivity(ctx, opp.ID, fmt.Sprintf("Opportunity created in stage %s", stage))

	s.logger.Info("opportunity created",
		zap.String("id", opp.ID.String()),
		zap.String("stage", string(stage)),
	)

	return s.GetByID(ctx, opp.ID)
}

// Update applies only the supplied fields and refreshes updatedAt
func (s *OpportunityService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOpportunityRequest) (*domain.Opportunity, error) {
	existing, err := s.opportunityRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOpportunityNotFound
		}
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}

	if (req.ClearSiteID && req.SiteID != nil) ||
		(req.ClearPortfolioID && req.PortfolioID != nil) ||
		(req.ClearProbability && req.Probability != nil) {
		return nil, fmt.Errorf("%w: a field cannot be both set and cleared", ErrInvalidInput)
	}

	if err := s.checkReferences(ctx, req.ClientID, req.SiteID, req.PortfolioID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ClientID != nil {
		updates["client_id"] = *req.ClientID
	}
	if req.SiteID != nil {
		updates["site_id"] = *req.SiteID
	}
	if req.PortfolioID != nil {
		updates["portfolio_id"] = *req.PortfolioID
	}
	if req.Stage != nil {
		if !req.Stage.IsValid() {
			return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, *req.Stage)
		}
		updates["stage"] = *req.Stage
	}
	if req.Probability != nil {
		updates["probability"] = *req.Probability
	}
	if req.ClearSiteID {
		updates["site_id"] = nil
	}
	if req.ClearPortfolioID {
		updates["portfolio_id"] = nil
	}
	if req.ClearProbability {
		updates["probability"] = nil
	}
	if req.EstimatedValue != nil {
		updates["estimated_value"] = *req.EstimatedValue
	}
	if req.PvSizeKW != nil {
		updates["pv_size_kw"] = *req.PvSizeKW
	}
	if req.OwnerID != nil {
		updates["owner_id"] = *req.OwnerID
	}
	if req.ExpectedCloseDate != nil {
		updates["expected_close_date"] = *req.ExpectedCloseDate
	}
	if req.LostReason != nil {
		updates["lost_reason"] = *req.LostReason
	}
	if req.Qualification != nil {
		updates["qualification"] = *req.Qualification
	}

	if len(updates) > 0 {
		if err := s.opportunityRepo.Updates(ctx, id, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrOpportunityNotFound
			}
			return nil, err
		}
	}

	if req.Stage != nil && *req.Stage != existing.Stage {
		s.recordActivity(ctx, id, fmt.Sprintf("Stage changed from %s to %s", existing.Stage, *req.Stage))
	}

	return s.GetByID(ctx, id)
}

// Delete removes an opportunity together with its activities
func (s *OpportunityService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.cascadeService.DeleteOpportunity(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOpportunityNotFound
	}
	return nil
}

// project applies the live portfolio KPIs to opps
func (s *OpportunityService) project(ctx context.Context, opps []domain.Opportunity) ([]domain.Opportunity, error) {
	ids := portfolioIDsOf(opps)
	if len(ids) == 0 {
		return ProjectOpportunities(opps, nil), nil
	}

	kpis, err := s.kpiService.ComputePortfolioKPIsBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to compute portfolio kpis: %w", err)
	}
	return ProjectOpportunities(opps, kpis), nil
}

func (s *OpportunityService) checkReferences(ctx context.Context, clientID, siteID, portfolioID *uuid.UUID) error {
	if clientID != nil {
		if _, err := s.clientRepo.GetByID(ctx, *clientID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %v", ErrInvalidInput, ErrClientNotFound)
			}
			return fmt.Errorf("failed to get client: %w", err)
		}
	}
	if siteID != nil {
		if _, err := s.siteRepo.GetByID(ctx, *siteID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %v", ErrInvalidInput, ErrSiteNotFound)
			}
			return fmt.Errorf("failed to get site: %w", err)
		}
	}
	if portfolioID != nil {
		if _, err := s.portfolioRepo.GetByID(ctx, *portfolioID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %v", ErrInvalidInput, ErrPortfolioNotFound)
			}
			return fmt.Errorf("failed to get portfolio: %w", err)
		}
	}
	return nil
}

func (s *OpportunityService) recordActivity(ctx context.Context, oppID uuid.UUID, title string) {
	activity := &domain.Activity{
		TargetType:  domain.ActivityTargetOpportunity,
		TargetID:    oppID,
		Title:       title,
		CreatorName: "system",
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to create activity", zap.Error(err))
	}
}
