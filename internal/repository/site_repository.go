package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

// SiteFilters narrows site list queries
type SiteFilters struct {
	ClientID        *uuid.UUID
	IncludeArchived bool
	Search          string
}

type SiteRepository struct {
	db *gorm.DB
}

func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) Create(ctx context.Context, site *domain.Site) error {
	return r.db.WithContext(ctx).Create(site).Error
}

func (r *SiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	var site domain.Site
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&site).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *SiteRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Site, error) {
	if len(ids) == 0 {
		return []domain.Site{}, nil
	}
	var sites []domain.Site
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to get sites by ids: %w", err)
	}
	return sites, nil
}

// ListByClient returns every site of a client, archived ones included
func (r *SiteRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Site, error) {
	var sites []domain.Site
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("name ASC").
		Find(&sites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sites for client: %w", err)
	}
	return sites, nil
}

// IDsByClient returns the ids of a client's sites, optionally inside a transaction
func (r *SiteRepository) IDsByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Site{}).
		Where("client_id = ?", clientID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get site ids for client: %w", err)
	}
	return ids, nil
}

func (r *SiteRepository) Updates(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.Site{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update site: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SiteRepository) List(ctx context.Context, page, pageSize int, filters SiteFilters) ([]domain.Site, int64, error) {
	var sites []domain.Site
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Site{})
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if !filters.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	query = applySearch(query, filters.Search, "name", "address", "city")

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&sites).Error

	return sites, total, err
}
