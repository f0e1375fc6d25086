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

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityService reads and writes the timeline of clients and opportunities
type ActivityService struct {
	activityRepo    *repository.ActivityRepository
	clientRepo      *repository.ClientRepository
	opportunityRepo *repository.OpportunityRepository
	logger          *zap.Logger
}

func NewActivityService(
	activityRepo *repository.ActivityRepository,
	clientRepo *repository.ClientRepository,
	opportunityRepo *repository.OpportunityRepository,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo:    activityRepo,
		clientRepo:      clientRepo,
		opportunityRepo: opportunityRepo,
		logger:          logger,
	}
}

// List returns the newest activities of a target first
func (s *ActivityService) List(ctx context.Context, targetType domain.ActivityTargetType, targetID uuid.UUID, limit int) ([]domain.Activity, error) {
	if err := s.ensureTarget(ctx, targetType, targetID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	activities, err := s.activityRepo.ListByTarget(ctx, targetType, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

// AddNote writes a user entry to the timeline. Notes do not count as an
// update of the opportunity itself.
func (s *ActivityService) AddNote(ctx context.Context, targetType domain.ActivityTargetType, targetID uuid.UUID, req *domain.CreateActivityRequest) (*domain.Activity, error) {
	if err := s.ensureTarget(ctx, targetType, targetID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	creator := strings.TrimSpace(req.CreatorName)
	if creator == "" {
		creator = "anonymous"
	}

	activity := &domain.Activity{
		TargetType:  targetType,
		TargetID:    targetID,
		Title:       title,
		Body:        req.Body,
		CreatorName: creator,
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.logger.Debug("activity added",
		zap.String("targetType", string(targetType)),
		zap.String("targetId", targetID.String()),
	)
	return activity, nil
}

func (s *ActivityService) ensureTarget(ctx context.Context, targetType domain.ActivityTargetType, targetID uuid.UUID) error {
	switch targetType {
	case domain.ActivityTargetClient:
		exists, err := s.clientRepo.Exists(ctx, nil, targetID)
		if err != nil {
			return fmt.Errorf("failed to get client: %w", err)
		}
		if !exists {
			return ErrClientNotFound
		}
		return nil

	case domain.ActivityTargetOpportunity:
		if _, err := s.opportunityRepo.GetByID(ctx, targetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return fmt.Errorf("failed to get opportunity: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown activity target %q", ErrInvalidInput, targetType)
	}
}
