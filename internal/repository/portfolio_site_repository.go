package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

// PortfolioSiteRepository manages the portfolio membership join rows.
// The (portfolio_id, site_id) pair is unique; Create surfaces gorm.ErrDuplicatedKey
// when the database connection translates errors.
type PortfolioSiteRepository struct {
	db *gorm.DB
}

func NewPortfolioSiteRepository(db *gorm.DB) *PortfolioSiteRepository {
	return &PortfolioSiteRepository{db: db}
}

func (r *PortfolioSiteRepository) Create(ctx context.Context, ps *domain.PortfolioSite) error {
	return r.db.WithContext(ctx).Create(ps).Error
}

// GetByPair returns the membership row for a portfolio and site
func (r *PortfolioSiteRepository) GetByPair(ctx context.Context, portfolioID, siteID uuid.UUID) (*domain.PortfolioSite, error) {
	var ps domain.PortfolioSite
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND site_id = ?", portfolioID, siteID).
		First(&ps).Error
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// ListByPortfolio returns the portfolio's rows in display order
func (r *PortfolioSiteRepository) ListByPortfolio(ctx context.Context, portfolioID uuid.UUID) ([]domain.PortfolioSite, error) {
	var rows []domain.PortfolioSite
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("display_order ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio sites: %w", err)
	}
	return rows, nil
}

// ListByPortfolioIDs loads the join rows of many portfolios in one query
func (r *PortfolioSiteRepository) ListByPortfolioIDs(ctx context.Context, tx *gorm.DB, portfolioIDs []uuid.UUID) ([]domain.PortfolioSite, error) {
	if len(portfolioIDs) == 0 {
		return []domain.PortfolioSite{}, nil
	}
	var rows []domain.PortfolioSite
	err := conn(r.db, tx).WithContext(ctx).
		Where("portfolio_id IN ?", portfolioIDs).
		Order("display_order ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio sites by portfolio ids: %w", err)
	}
	return rows, nil
}

// NextDisplayOrder returns one past the highest display order in the portfolio
func (r *PortfolioSiteRepository) NextDisplayOrder(ctx context.Context, portfolioID uuid.UUID) (int, error) {
	var maxOrder *int
	err := r.db.WithContext(ctx).
		Model(&domain.PortfolioSite{}).
		Where("portfolio_id = ?", portfolioID).
		Select("MAX(display_order)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max display order: %w", err)
	}
	if maxOrder == nil {
		return 0, nil
	}
	return *maxOrder + 1, nil
}

// UpdateByPair applies a partial update to a membership row. Nil map values clear the column.
func (r *PortfolioSiteRepository) UpdateByPair(ctx context.Context, portfolioID, siteID uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&domain.PortfolioSite{}).
		Where("portfolio_id = ? AND site_id = ?", portfolioID, siteID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update portfolio site: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByPair removes a site from a portfolio. Returns gorm.ErrRecordNotFound when it was not a member.
func (r *PortfolioSiteRepository) DeleteByPair(ctx context.Context, portfolioID, siteID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND site_id = ?", portfolioID, siteID).
		Delete(&domain.PortfolioSite{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete portfolio site: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
