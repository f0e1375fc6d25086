package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"gorm.io/gorm"
)

type MeterFileRepository struct {
	db *gorm.DB
}

func NewMeterFileRepository(db *gorm.DB) *MeterFileRepository {
	return &MeterFileRepository{db: db}
}

func (r *MeterFileRepository) Create(ctx context.Context, tx *gorm.DB, file *domain.MeterFile) error {
	return conn(r.db, tx).WithContext(ctx).Create(file).Error
}

// CreateWithReadings inserts a meter file and its readings in one transaction.
// The readings are assigned the new file's id.
func (r *MeterFileRepository) CreateWithReadings(ctx context.Context, file *domain.MeterFile, readings []domain.MeterReading) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.Create(ctx, tx, file); err != nil {
			return fmt.Errorf("failed to save meter file: %w", err)
		}
		for i := range readings {
			readings[i].MeterFileID = file.ID
		}
		if err := r.CreateReadings(ctx, tx, readings); err != nil {
			return fmt.Errorf("failed to save meter readings: %w", err)
		}
		return nil
	})
}

func (r *MeterFileRepository) ListBySite(ctx context.Context, siteID uuid.UUID) ([]domain.MeterFile, error) {
	var files []domain.MeterFile
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meter files: %w", err)
	}
	return files, nil
}

// StoragePathsBySiteIDs returns the blob paths of every meter file of the given sites
func (r *MeterFileRepository) StoragePathsBySiteIDs(ctx context.Context, tx *gorm.DB, siteIDs []uuid.UUID) ([]string, error) {
	if len(siteIDs) == 0 {
		return []string{}, nil
	}
	var paths []string
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.MeterFile{}).
		Where("site_id IN ? AND storage_path <> ''", siteIDs).
		Pluck("storage_path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get meter file storage paths: %w", err)
	}
	return paths, nil
}

// CreateReadings inserts parsed interval readings in batches
func (r *MeterFileRepository) CreateReadings(ctx context.Context, tx *gorm.DB, readings []domain.MeterReading) error {
	if len(readings) == 0 {
		return nil
	}
	return conn(r.db, tx).WithContext(ctx).CreateInBatches(readings, 500).Error
}

func (r *MeterFileRepository) CountReadings(ctx context.Context, meterFileID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MeterReading{}).Where("meter_file_id = ?", meterFileID).Count(&count).Error
	return count, err
}
