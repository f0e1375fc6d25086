package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

type PortfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepository(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) Create(ctx context.Context, portfolio *domain.Portfolio) error {
	return r.db.WithContext(ctx).Create(portfolio).Error
}

func (r *PortfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portfolio, error) {
	var portfolio domain.Portfolio
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&portfolio).Error
	if err != nil {
		return nil, err
	}
	return &portfolio, nil
}

func (r *PortfolioRepository) Updates(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Portfolio{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update portfolio: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IDsByClient returns the ids of a client's portfolios, optionally inside a transaction
func (r *PortfolioRepository) IDsByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Portfolio{}).
		Where("client_id = ?", clientID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio ids for client: %w", err)
	}
	return ids, nil
}

func (r *PortfolioRepository) List(ctx context.Context, page, pageSize int, clientID *uuid.UUID) ([]domain.Portfolio, int64, error) {
	var portfolios []domain.Portfolio
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Portfolio{})
	if clientID != nil {
		query = query.Where("client_id = ?", *clientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&portfolios).Error

	return portfolios, total, err
}
