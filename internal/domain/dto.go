package domain

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Response DTOs
// ============================================================================

type ClientDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	OrgNumber  string    `json:"orgNumber,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	Country    string    `json:"country"`
	CreatedAt  string    `json:"createdAt"`
	UpdatedAt  string    `json:"updatedAt"`
}

type SiteDTO struct {
	ID         uuid.UUID `json:"id"`
	ClientID   uuid.UUID `json:"clientId"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	RoofAreaM2 *float64  `json:"roofAreaM2,omitempty"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  string    `json:"createdAt"`
	UpdatedAt  string    `json:"updatedAt"`
}

type PortfolioSiteDTO struct {
	ID               uuid.UUID `json:"id"`
	PortfolioID      uuid.UUID `json:"portfolioId"`
	SiteID           uuid.UUID `json:"siteId"`
	DisplayOrder     int       `json:"displayOrder"`
	OverrideCapexNet *float64  `json:"overrideCapexNet"`
	OverridePvSizeKW *float64  `json:"overridePvSizeKW"`
}

type PortfolioDTO struct {
	ID          uuid.UUID          `json:"id"`
	ClientID    uuid.UUID          `json:"clientId"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Sites       []PortfolioSiteDTO `json:"sites,omitempty"`
	KPIs        *PortfolioKPIs     `json:"kpis,omitempty"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

type OpportunityDTO struct {
	ID                   uuid.UUID        `json:"id"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	LeadID               *uuid.UUID       `json:"leadId"`
	ClientID             *uuid.UUID       `json:"clientId"`
	SiteID               *uuid.UUID       `json:"siteId"`
	PortfolioID          *uuid.UUID       `json:"portfolioId"`
	Stage                OpportunityStage `json:"stage"`
	Probability          *int             `json:"probability"`
	EffectiveProbability int              `json:"effectiveProbability"`
	EstimatedValue       *float64         `json:"estimatedValue"`
	PvSizeKW             *float64         `json:"pvSizeKW"`
	OwnerID              *string          `json:"ownerId"`
	ExpectedCloseDate    *string          `json:"expectedCloseDate"`
	LostReason           string           `json:"lostReason,omitempty"`
	Qualification        Qualification    `json:"qualification"`
	CreatedAt            *string          `json:"createdAt"`
	UpdatedAt            *string          `json:"updatedAt"`
}

type MeterFileDTO struct {
	ID          uuid.UUID `json:"id"`
	SiteID      uuid.UUID `json:"siteId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   string    `json:"createdAt"`
}

type ActivityDTO struct {
	ID          uuid.UUID          `json:"id"`
	TargetType  ActivityTargetType `json:"targetType"`
	TargetID    uuid.UUID          `json:"targetId"`
	Title       string             `json:"title"`
	Body        string             `json:"body,omitempty"`
	CreatorName string             `json:"creatorName"`
	CreatedAt   string             `json:"createdAt"`
}

// CascadeCounts lists how many records a client cascade would remove
type CascadeCounts struct {
	Sites                  int64 `json:"sites"`
	Portfolios             int64 `json:"portfolios"`
	Opportunities          int64 `json:"opportunities"`
	PortfolioSites         int64 `json:"portfolioSites"`
	SimulationRuns         int64 `json:"simulationRuns"`
	Designs                int64 `json:"designs"`
	BomItems               int64 `json:"bomItems"`
	MeterFiles             int64 `json:"meterFiles"`
	MeterReadings          int64 `json:"meterReadings"`
	SiteVisits             int64 `json:"siteVisits"`
	DesignAgreements       int64 `json:"designAgreements"`
	ConstructionAgreements int64 `json:"constructionAgreements"`
	OmContracts            int64 `json:"omContracts"`
	Activities             int64 `json:"activities"`
}

// HasBlockingDependents reports whether a plain (non-cascading) client delete must be refused
func (c CascadeCounts) HasBlockingDependents() bool {
	return c.Sites > 0 || c.Portfolios > 0 || c.Opportunities > 0
}

// ============================================================================
// Pipeline statistics
// ============================================================================

type StageBreakdown struct {
	Stage         OpportunityStage `json:"stage"`
	Count         int              `json:"count"`
	TotalValue    float64          `json:"totalValue"`
	WeightedValue float64          `json:"weightedValue"`
}

type TopOpportunity struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	ClientName     *string          `json:"clientName"`
	Stage          OpportunityStage `json:"stage"`
	Probability    int              `json:"probability"`
	EstimatedValue float64          `json:"estimatedValue"`
	UpdatedAt      *time.Time       `json:"updatedAt"`
}

type AtRiskOpportunity struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	ClientName      *string          `json:"clientName"`
	Stage           OpportunityStage `json:"stage"`
	EstimatedValue  float64          `json:"estimatedValue"`
	DaysSinceUpdate int              `json:"daysSinceUpdate"`
}

type RecentWin struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	ClientName     *string    `json:"clientName"`
	EstimatedValue float64    `json:"estimatedValue"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

// PipelineStatsResult is the sales funnel snapshot returned by the pipeline stats endpoint
type PipelineStatsResult struct {
	TotalPipelineValue     float64             `json:"totalPipelineValue"`
	WeightedPipelineValue  float64             `json:"weightedPipelineValue"`
	WonValue               float64             `json:"wonValue"`
	LostValue              float64             `json:"lostValue"`
	DeliveryBacklogValue   float64             `json:"deliveryBacklogValue"`
	DeliveryBacklogCount   int                 `json:"deliveryBacklogCount"`
	DeliveredValue         float64             `json:"deliveredValue"`
	DeliveredCount         int                 `json:"deliveredCount"`
	ActiveOpportunityCount int                 `json:"activeOpportunityCount"`
	StageBreakdown         []StageBreakdown    `json:"stageBreakdown"`
	TopOpportunities       []TopOpportunity    `json:"topOpportunities"`
	AtRiskOpportunities    []AtRiskOpportunity `json:"atRiskOpportunities"`
	RecentWins             []RecentWin         `json:"recentWins"`
}

// ============================================================================
// Requests
// ============================================================================

type CreateClientRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	OrgNumber  string `json:"orgNumber,omitempty" validate:"max=20"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty" validate:"max=50"`
	Address    string `json:"address,omitempty" validate:"max=500"`
	City       string `json:"city,omitempty" validate:"max=100"`
	PostalCode string `json:"postalCode,omitempty" validate:"max=20"`
	Country    string `json:"country,omitempty" validate:"max=100"`
}

type UpdateClientRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	OrgNumber  *string `json:"orgNumber,omitempty" validate:"omitempty,max=20"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address    *string `json:"address,omitempty" validate:"omitempty,max=500"`
	City       *string `json:"city,omitempty" validate:"omitempty,max=100"`
	PostalCode *string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	Country    *string `json:"country,omitempty" validate:"omitempty,max=100"`
}

type CreateSiteRequest struct {
	ClientID   uuid.UUID `json:"clientId" validate:"required"`
	Name       string    `json:"name" validate:"required,max=200"`
	Address    string    `json:"address,omitempty" validate:"max=500"`
	City       string    `json:"city,omitempty" validate:"max=100"`
	PostalCode string    `json:"postalCode,omitempty" validate:"max=20"`
	Latitude   *float64  `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64  `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RoofAreaM2 *float64  `json:"roofAreaM2,omitempty" validate:"omitempty,gte=0"`
}

type UpdateSiteRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Address    *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	City       *string  `json:"city,omitempty" validate:"omitempty,max=100"`
	PostalCode *string  `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RoofAreaM2 *float64 `json:"roofAreaM2,omitempty" validate:"omitempty,gte=0"`
	IsArchived *bool    `json:"isArchived,omitempty"`
}

type CreatePortfolioRequest struct {
	ClientID    uuid.UUID `json:"clientId" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description,omitempty"`
}

type UpdatePortfolioRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty"`
}

type AddPortfolioSiteRequest struct {
	SiteID           uuid.UUID `json:"siteId" validate:"required"`
	DisplayOrder     *int      `json:"displayOrder,omitempty" validate:"omitempty,gte=0"`
	OverrideCapexNet *float64  `json:"overrideCapexNet,omitempty" validate:"omitempty,gte=0"`
	OverridePvSizeKW *float64  `json:"overridePvSizeKW,omitempty" validate:"omitempty,gte=0"`
}

// UpdatePortfolioSiteRequest changes the order or overrides of a membership.
// ClearOverrideCapexNet / ClearOverridePvSizeKW reset an override back to null.
type UpdatePortfolioSiteRequest struct {
	DisplayOrder          *int     `json:"displayOrder,omitempty" validate:"omitempty,gte=0"`
	OverrideCapexNet      *float64 `json:"overrideCapexNet,omitempty" validate:"omitempty,gte=0"`
	OverridePvSizeKW      *float64 `json:"overridePvSizeKW,omitempty" validate:"omitempty,gte=0"`
	ClearOverrideCapexNet bool     `json:"clearOverrideCapexNet,omitempty"`
	ClearOverridePvSizeKW bool     `json:"clearOverridePvSizeKW,omitempty"`
}

type CreateOpportunityRequest struct {
	Name              string           `json:"name" validate:"required,max=200"`
	Description       string           `json:"description,omitempty"`
	LeadID            *uuid.UUID       `json:"leadId,omitempty"`
	ClientID          *uuid.UUID       `json:"clientId,omitempty"`
	SiteID            *uuid.UUID       `json:"siteId,omitempty"`
	PortfolioID       *uuid.UUID       `json:"portfolioId,omitempty"`
	Stage             OpportunityStage `json:"stage,omitempty"`
	Probability       *int             `json:"probability,omitempty" validate:"omitempty,gte=0,lte=100"`
	EstimatedValue    *float64         `json:"estimatedValue,omitempty" validate:"omitempty,gte=0"`
	PvSizeKW          *float64         `json:"pvSizeKW,omitempty" validate:"omitempty,gte=0"`
	OwnerID           *string          `json:"ownerId,omitempty" validate:"omitempty,max=100"`
	ExpectedCloseDate *time.Time       `json:"expectedCloseDate,omitempty"`
	Qualification     *Qualification   `json:"qualification,omitempty"`
}

// UpdateOpportunityRequest is a partial update. ClearSiteID, ClearPortfolioID
// and ClearProbability reset the field to null, which cannot be expressed by
// omitting it.
type UpdateOpportunityRequest struct {
	Name              *string           `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description       *string           `json:"description,omitempty"`
	ClientID          *uuid.UUID        `json:"clientId,omitempty"`
	SiteID            *uuid.UUID        `json:"siteId,omitempty"`
	PortfolioID       *uuid.UUID        `json:"portfolioId,omitempty"`
	Stage             *OpportunityStage `json:"stage,omitempty"`
	Probability       *int              `json:"probability,omitempty" validate:"omitempty,gte=0,lte=100"`
	EstimatedValue    *float64          `json:"estimatedValue,omitempty" validate:"omitempty,gte=0"`
	PvSizeKW          *float64          `json:"pvSizeKW,omitempty" validate:"omitempty,gte=0"`
	OwnerID           *string           `json:"ownerId,omitempty" validate:"omitempty,max=100"`
	ExpectedCloseDate *time.Time        `json:"expectedCloseDate,omitempty"`
	LostReason        *string           `json:"lostReason,omitempty" validate:"omitempty,max=500"`
	Qualification     *Qualification    `json:"qualification,omitempty"`
	ClearSiteID       bool              `json:"clearSiteId,omitempty"`
	ClearPortfolioID  bool              `json:"clearPortfolioId,omitempty"`
	ClearProbability  bool              `json:"clearProbability,omitempty"`
}

type CreateActivityRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Body        string `json:"body,omitempty" validate:"max=10000"`
	CreatorName string `json:"creatorName,omitempty" validate:"max=200"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// DeleteClientConflictResponse is returned with 409 when a client still has dependents
type DeleteClientConflictResponse struct {
	APIError
	Counts CascadeCounts `json:"counts"`
}

// MeterFileUploadResponse reports a stored meter file and how many readings were parsed from it
type MeterFileUploadResponse struct {
	File     MeterFileDTO `json:"file"`
	Readings int          `json:"readings"`
}
