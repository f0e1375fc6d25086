package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

// OpportunityFilters contains the filter options for listing opportunities.
// Rows come back raw; estimated value and PV size of portfolio-linked rows
// must go through the service projection before leaving the service layer.
type OpportunityFilters struct {
	Stage       *domain.OpportunityStage
	OwnerID     *string
	ClientID    *uuid.UUID
	SiteID      *uuid.UUID
	PortfolioID *uuid.UUID
	Search      string
}

type OpportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

func (r *OpportunityRepository) Create(ctx context.Context, opp *domain.Opportunity) error {
	return r.db.WithContext(ctx).Create(opp).Error
}

func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&opp).Error
	if err != nil {
		return nil, err
	}
	return &opp, nil
}

// List returns every opportunity matching the filters, newest first
func (r *OpportunityRepository) List(ctx context.Context, filters *OpportunityFilters) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	query := r.applyFilters(r.db.WithContext(ctx).Model(&domain.Opportunity{}), filters)
	if err := query.Order("created_at DESC, id ASC").Find(&opps).Error; err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	return opps, nil
}

// Updates applies a partial update. Returns gorm.ErrRecordNotFound when no row matched.
func (r *OpportunityRepository) Updates(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Opportunity{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update opportunity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IDsByPortfolioIDs returns the ids of opportunities linked to any of the portfolios
func (r *OpportunityRepository) IDsByPortfolioIDs(ctx context.Context, tx *gorm.DB, portfolioIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(portfolioIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("portfolio_id IN ?", portfolioIDs).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity ids by portfolio: %w", err)
	}
	return ids, nil
}

// StoreFallbackValues writes a portfolio aggregate into the stored estimated value and
// PV size of the portfolio's opportunities, so they keep it once detached.
func (r *OpportunityRepository) StoreFallbackValues(ctx context.Context, tx *gorm.DB, portfolioID uuid.UUID, estimatedValue, pvSizeKW float64) (int64, error) {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("portfolio_id = ?", portfolioID).
		UpdateColumns(map[string]interface{}{
			"estimated_value": estimatedValue,
			"pv_size_kw":      pvSizeKW,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to store opportunity fallback values: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// applyFilters applies all filter criteria to the query
func (r *OpportunityRepository) applyFilters(query *gorm.DB, filters *OpportunityFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.Stage != nil {
		query = query.Where("stage = ?", *filters.Stage)
	}
	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.SiteID != nil {
		query = query.Where("site_id = ?", *filters.SiteID)
	}
	if filters.PortfolioID != nil {
		query = query.Where("portfolio_id = ?", *filters.PortfolioID)
	}
	return applySearch(query, filters.Search, "name", "description")
}
