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

type PortfolioService struct {
	portfolioRepo     *repository.PortfolioRepository
	portfolioSiteRepo *repository.PortfolioSiteRepository
	clientRepo        *repository.ClientRepository
	siteRepo          *repository.SiteRepository
	kpiService        *PortfolioKPIService
	logger            *zap.Logger
}

func NewPortfolioService(
	portfolioRepo *repository.PortfolioRepository,
	portfolioSiteRepo *repository.PortfolioSiteRepository,
	clientRepo *repository.ClientRepository,
	siteRepo *repository.SiteRepository,
	kpiService *PortfolioKPIService,
	logger *zap.Logger,
) *PortfolioService {
	return &PortfolioService{
		portfolioRepo:     portfolioRepo,
		portfolioSiteRepo: portfolioSiteRepo,
		clientRepo:        clientRepo,
		siteRepo:          siteRepo,
		kpiService:        kpiService,
		logger:            logger,
	}
}

func (s *PortfolioService) Create(ctx context.Context, req *domain.CreatePortfolioRequest) (*domain.Portfolio, error) {
	exists, err := s.clientRepo.Exists(ctx, nil, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, ErrClientNotFound)
	}

	portfolio := &domain.Portfolio{
		ClientID:    req.ClientID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}
	if err := s.portfolioRepo.Create(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return portfolio, nil
}

// GetByID returns the portfolio with its memberships in display order and its live KPIs
func (s *PortfolioService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PortfolioDetails, error) {
	portfolio, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	sites, err := s.portfolioSiteRepo.ListByPortfolio(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio sites: %w", err)
	}

	kpis, err := s.kpiService.ComputePortfolioKPIs(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.PortfolioDetails{
		Portfolio: *portfolio,
		Sites:     sites,
		KPIs:      *kpis,
	}, nil
}

func (s *PortfolioService) List(ctx context.Context, page, pageSize int, clientID *uuid.UUID) ([]domain.Portfolio, int64, error) {
	page, pageSize = repository.NormalizePagination(page, pageSize)
	portfolios, total, err := s.portfolioRepo.List(ctx, page, pageSize, clientID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, total, nil
}

func (s *PortfolioService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdatePortfolioRequest) (*domain.Portfolio, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if len(updates) > 0 {
		if err := s.portfolioRepo.Updates(ctx, id, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPortfolioNotFound
			}
			return nil, err
		}
	}
	return s.get(ctx, id)
}

// AddSite links a site of the same client to the portfolio. Without an
// explicit display order the site is appended after the current last member.
func (s *PortfolioService) AddSite(ctx context.Context, portfolioID uuid.UUID, req *domain.AddPortfolioSiteRequest) (*domain.PortfolioSite, error) {
	portfolio, err := s.get(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	site, err := s.siteRepo.GetByID(ctx, req.SiteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, ErrSiteNotFound)
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	if site.ClientID != portfolio.ClientID {
		return nil, fmt.Errorf("%w: site belongs to another client", ErrInvalidInput)
	}

	if _, err := s.portfolioSiteRepo.GetByPair(ctx, portfolioID, req.SiteID); err == nil {
		return nil, ErrDuplicatePortfolioSite
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get portfolio site: %w", err)
	}

	order := 0
	if req.DisplayOrder != nil {
		order = *req.DisplayOrder
	} else {
		order, err = s.portfolioSiteRepo.NextDisplayOrder(ctx, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("failed to get display order: %w", err)
		}
	}

	membership := &domain.PortfolioSite{
		PortfolioID:      portfolioID,
		SiteID:           req.SiteID,
		DisplayOrder:     order,
		OverrideCapexNet: req.OverrideCapexNet,
		OverridePvSizeKW: req.OverridePvSizeKW,
	}
	if err := s.portfolioSiteRepo.Create(ctx, membership); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePortfolioSite
		}
		return nil, fmt.Errorf("failed to add site to portfolio: %w", err)
	}

	s.logger.Info("site added to portfolio",
		zap.String("portfolioId", portfolioID.String()),
		zap.String("siteId", req.SiteID.String()),
		zap.Int("displayOrder", order),
	)
	return membership, nil
}

// UpdateSite changes display order and overrides of a membership.
// The clear flags reset an override to NULL and win over a supplied value.
func (s *PortfolioService) UpdateSite(ctx context.Context, portfolioID, siteID uuid.UUID, req *domain.UpdatePortfolioSiteRequest) (*domain.PortfolioSite, error) {
	updates := map[string]interface{}{}
	if req.DisplayOrder != nil {
		updates["display_order"] = *req.DisplayOrder
	}
	if req.ClearOverrideCapexNet {
		updates["override_capex_net"] = nil
	} else if req.OverrideCapexNet != nil {
		updates["override_capex_net"] = *req.OverrideCapexNet
	}
	if req.ClearOverridePvSizeKW {
		updates["override_pv_size_kw"] = nil
	} else if req.OverridePvSizeKW != nil {
		updates["override_pv_size_kw"] = *req.OverridePvSizeKW
	}

	if len(updates) > 0 {
		if err := s.portfolioSiteRepo.UpdateByPair(ctx, portfolioID, siteID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPortfolioSiteNotFound
			}
			return nil, err
		}
	}

	membership, err := s.portfolioSiteRepo.GetByPair(ctx, portfolioID, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioSiteNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio site: %w", err)
	}
	return membership, nil
}

func (s *PortfolioService) RemoveSite(ctx context.Context, portfolioID, siteID uuid.UUID) error {
	if err := s.portfolioSiteRepo.DeleteByPair(ctx, portfolioID, siteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPortfolioSiteNotFound
		}
		return fmt.Errorf("failed to remove site from portfolio: %w", err)
	}
	return nil
}

func (s *PortfolioService) get(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	portfolio, err := s.portfolioRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return portfolio, nil
}
