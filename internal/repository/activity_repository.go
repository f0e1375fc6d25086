package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

// ActivityRepository handles database operations for timeline activities.
// Activities are removed together with their target by the cascade plans.
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// CreateTx inserts an activity inside a caller's transaction
func (r *ActivityRepository) CreateTx(ctx context.Context, tx *gorm.DB, activity *domain.Activity) error {
	return conn(r.db, tx).WithContext(ctx).Create(activity).Error
}

func (r *ActivityRepository) ListByTarget(ctx context.Context, targetType domain.ActivityTargetType, targetID uuid.UUID, limit int) ([]domain.Activity, error) {
	var activities []domain.Activity
	query := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}
