package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Allowed meter file extensions
var meterFileExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xml":  true,
	".xlsx": true,
	".json": true,
}

type SiteService struct {
	siteRepo      *repository.SiteRepository
	clientRepo    *repository.ClientRepository
	meterFileRepo *repository.MeterFileRepository
	storage       storage.Storage
	maxUploadSize int64
	logger        *zap.Logger
}

func NewSiteService(
	siteRepo *repository.SiteRepository,
	clientRepo *repository.ClientRepository,
	meterFileRepo *repository.MeterFileRepository,
	fileStorage storage.Storage,
	maxUploadSize int64,
	logger *zap.Logger,
) *SiteService {
	return &SiteService{
		siteRepo:      siteRepo,
		clientRepo:    clientRepo,
		meterFileRepo: meterFileRepo,
		storage:       fileStorage,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

func (s *SiteService) Create(ctx context.Context, req *domain.CreateSiteRequest) (*domain.Site, error) {
	exists, err := s.clientRepo.Exists(ctx, nil, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, ErrClientNotFound)
	}

	site := &domain.Site{
		ClientID:   req.ClientID,
		Name:       strings.TrimSpace(req.Name),
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		RoofAreaM2: req.RoofAreaM2,
	}
	if err := s.siteRepo.Create(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}
	return site, nil
}

func (s *SiteService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	site, err := s.siteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

func (s *SiteService) List(ctx context.Context, page, pageSize int, filters repository.SiteFilters) ([]domain.Site, int64, error) {
	page, pageSize = repository.NormalizePagination(page, pageSize)
	sites, total, err := s.siteRepo.List(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, total, nil
}

// Update changes only the supplied fields
func (s *SiteService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateSiteRequest) (*domain.Site, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
	}
	if req.Latitude != nil {
		updates["latitude"] = *req.Latitude
	}
	if req.Longitude != nil {
		updates["longitude"] = *req.Longitude
	}
	if req.RoofAreaM2 != nil {
		updates["roof_area_m2"] = *req.RoofAreaM2
	}
	if req.IsArchived != nil {
		updates["is_archived"] = *req.IsArchived
	}

	if len(updates) > 0 {
		if err := s.siteRepo.Updates(ctx, id, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSiteNotFound
			}
			return nil, err
		}
	}
	return s.GetByID(ctx, id)
}

// UploadMeterFile stores a raw meter export for a site. CSV exports are
// parsed into interval readings; other formats are stored as-is.
func (s *SiteService) UploadMeterFile(ctx context.Context, siteID uuid.UUID, filename, contentType string, data io.Reader) (*domain.MeterFile, int, error) {
	if _, err := s.GetByID(ctx, siteID); err != nil {
		return nil, 0, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !meterFileExtensions[ext] {
		return nil, 0, fmt.Errorf("%w: unsupported meter file type %q", ErrInvalidInput, ext)
	}

	content, err := io.ReadAll(io.LimitReader(data, s.maxUploadSize+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > s.maxUploadSize {
		return nil, 0, fmt.Errorf("%w: maximum is %d bytes", ErrFileTooLarge, s.maxUploadSize)
	}

	var readings []domain.MeterReading
	if ext == ".csv" {
		readings, err = ParseMeterReadings(bytes.NewReader(content))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	storagePath, size, err := s.storage.Upload(ctx, storage.MeterFilePrefix(siteID), filename, contentType, bytes.NewReader(content))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to store meter file: %w", err)
	}

	file := &domain.MeterFile{
		SiteID:      siteID,
		FileName:    filepath.Base(filename),
		ContentType: contentType,
		StoragePath: storagePath,
		Size:        size,
	}
	if err := s.meterFileRepo.CreateWithReadings(ctx, file, readings); err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned meter file", zap.String("storagePath", storagePath), zap.Error(delErr))
		}
		return nil, 0, err
	}

	s.logger.Info("meter file uploaded",
		zap.String("siteId", siteID.String()),
		zap.String("fileName", file.FileName),
		zap.Int64("size", size),
		zap.Int("readings", len(readings)),
	)

	return file, len(readings), nil
}

func (s *SiteService) ListMeterFiles(ctx context.Context, siteID uuid.UUID) ([]domain.MeterFile, error) {
	if _, err := s.GetByID(ctx, siteID); err != nil {
		return nil, err
	}
	return s.meterFileRepo.ListBySite(ctx, siteID)
}
