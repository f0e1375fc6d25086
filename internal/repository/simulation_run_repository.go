package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

type SimulationRunRepository struct {
	db *gorm.DB
}

func NewSimulationRunRepository(db *gorm.DB) *SimulationRunRepository {
	return &SimulationRunRepository{db: db}
}

func (r *SimulationRunRepository) Create(ctx context.Context, run *domain.SimulationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// ListBySite returns a site's runs, newest first
func (r *SimulationRunRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]domain.SimulationRun, error) {
	var runs []domain.SimulationRun
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at DESC, id DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list simulation runs: %w", err)
	}
	return runs, nil
}

// ListBySiteIDs loads the runs of many sites in one query
func (r *SimulationRunRepository) ListBySiteIDs(ctx context.Context, tx *gorm.DB, siteIDs []uuid.UUID) ([]domain.SimulationRun, error) {
	if len(siteIDs) == 0 {
		return []domain.SimulationRun{}, nil
	}
	var runs []domain.SimulationRun
	err := conn(r.db, tx).WithContext(ctx).
		Where("site_id IN ?", siteIDs).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list simulation runs by site ids: %w", err)
	}
	return runs, nil
}
