package service

import (
	"errors"
	"fmt"

	"github.com/straye-as/solar-crm-api/internal/domain"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., live dependents or a duplicate)
	ErrConflict = errors.New("resource conflict")
)

// Entity errors. Each wraps ErrNotFound or ErrConflict so callers can match on the kind.
var (
	ErrClientNotFound        = fmt.Errorf("client %w", ErrNotFound)
	ErrSiteNotFound          = fmt.Errorf("site %w", ErrNotFound)
	ErrPortfolioNotFound     = fmt.Errorf("portfolio %w", ErrNotFound)
	ErrPortfolioSiteNotFound = fmt.Errorf("portfolio site %w", ErrNotFound)
	ErrOpportunityNotFound   = fmt.Errorf("opportunity %w", ErrNotFound)
	ErrAgreementNotFound     = fmt.Errorf("construction agreement %w", ErrNotFound)
	ErrOmContractNotFound    = fmt.Errorf("o&m contract %w", ErrNotFound)

	ErrDuplicatePortfolioSite = fmt.Errorf("site already in portfolio: %w", ErrConflict)
	ErrFileTooLarge           = fmt.Errorf("file too large: %w", ErrInvalidInput)
)

// DependentsError is returned by a non-cascading delete that was refused because
// the entity still has dependents. Counts lists what a cascade would remove.
type DependentsError struct {
	Entity string
	Counts domain.CascadeCounts
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s has dependents (sites=%d, portfolios=%d, opportunities=%d): %v",
		e.Entity, e.Counts.Sites, e.Counts.Portfolios, e.Counts.Opportunities, ErrConflict)
}

func (e *DependentsError) Unwrap() error {
	return ErrConflict
}
