package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpportunityStage represents the position of an opportunity in the sales pipeline
type OpportunityStage string

const (
	StageProspect          OpportunityStage = "prospect"
	StageQualified         OpportunityStage = "qualified"
	StageProposal          OpportunityStage = "proposal"
	StageDesignSigned      OpportunityStage = "design_signed"
	StageNegotiation       OpportunityStage = "negotiation"
	StageWonToBeDelivered  OpportunityStage = "won_to_be_delivered"
	StageWonInConstruction OpportunityStage = "won_in_construction"
	StageWonDelivered      OpportunityStage = "won_delivered"
	StageLost              OpportunityStage = "lost"
)

// AllStages lists every stage in pipeline order
var AllStages = []OpportunityStage{
	StageProspect,
	StageQualified,
	StageProposal,
	StageDesignSigned,
	StageNegotiation,
	StageWonToBeDelivered,
	StageWonInConstruction,
	StageWonDelivered,
	StageLost,
}

// stageDefaultProbability is used when an opportunity has no explicit probability
var stageDefaultProbability = map[OpportunityStage]int{
	StageProspect:          10,
	StageQualified:         20,
	StageProposal:          25,
	StageDesignSigned:      50,
	StageNegotiation:       75,
	StageWonToBeDelivered:  100,
	StageWonInConstruction: 100,
	StageWonDelivered:      100,
	StageLost:              0,
}

// IsValid checks if the stage is a known enum value
func (s OpportunityStage) IsValid() bool {
	_, ok := stageDefaultProbability[s]
	return ok
}

// DefaultProbability returns the stage's default win probability (0-100)
func (s OpportunityStage) DefaultProbability() int {
	return stageDefaultProbability[s]
}

// IsWon reports whether the stage is one of the three won sub-stages
func (s OpportunityStage) IsWon() bool {
	switch s {
	case StageWonToBeDelivered, StageWonInConstruction, StageWonDelivered:
		return true
	}
	return false
}

// IsLost reports whether the stage is exactly "lost"
func (s OpportunityStage) IsLost() bool {
	return s == StageLost
}

// IsActive reports whether the opportunity is still open (neither won nor lost)
func (s OpportunityStage) IsActive() bool {
	return !s.IsWon() && !s.IsLost()
}

// IsDeliveryBacklog reports whether a won opportunity still awaits or is under construction
func (s OpportunityStage) IsDeliveryBacklog() bool {
	return s == StageWonToBeDelivered || s == StageWonInConstruction
}

// Qualification holds the typed qualification answers collected for a lead or opportunity
type Qualification struct {
	DecisionMaker     *bool    `json:"decisionMaker,omitempty"`
	BudgetConfirmed   *bool    `json:"budgetConfirmed,omitempty"`
	AnnualBillAmount  *float64 `json:"annualBillAmount,omitempty"`
	RoofAgeYears      *int     `json:"roofAgeYears,omitempty"`
	OwnsBuilding      *bool    `json:"ownsBuilding,omitempty"`
	TimelineMonths    *int     `json:"timelineMonths,omitempty"`
	FinancingInterest string   `json:"financingInterest,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// Value implements the driver.Valuer interface
func (q Qualification) Value() (driver.Value, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (q *Qualification) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*q = Qualification{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported qualification type %T", value)
	}

	if len(raw) == 0 {
		*q = Qualification{}
		return nil
	}

	var result Qualification
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*q = result
	return nil
}

// Opportunity is a sales-pipeline deal.
//
// When PortfolioID is set, EstimatedValue and PvSizeKW as returned by every
// reader are the live portfolio aggregate (see WithPortfolioKPIs). The stored
// columns are only a fallback for when the portfolio has no data.
type Opportunity struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Name              string           `gorm:"type:varchar(200);not null"`
	Description       string           `gorm:"type:text"`
	LeadID            *uuid.UUID       `gorm:"type:uuid;index;column:lead_id"`
	ClientID          *uuid.UUID       `gorm:"type:uuid;index;column:client_id"`
	SiteID            *uuid.UUID       `gorm:"type:uuid;index;column:site_id"`
	PortfolioID       *uuid.UUID       `gorm:"type:uuid;index;column:portfolio_id"`
	Stage             OpportunityStage `gorm:"type:varchar(50);not null;default:'prospect';index"`
	Probability       *int             `gorm:"type:int"`
	EstimatedValue    *float64         `gorm:"type:decimal(15,2);column:estimated_value"`
	PvSizeKW          *float64         `gorm:"type:decimal(12,3);column:pv_size_kw"`
	OwnerID           *string          `gorm:"type:varchar(100);index;column:owner_id"`
	ExpectedCloseDate *time.Time       `gorm:"type:date;column:expected_close_date"`
	LostReason        string           `gorm:"type:varchar(500);column:lost_reason"`
	Qualification     Qualification    `gorm:"type:text"`
	CreatedAt         *time.Time
	UpdatedAt         *time.Time
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (o *Opportunity) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// EffectiveProbability returns the explicit probability or the stage default
func (o *Opportunity) EffectiveProbability() int {
	if o.Probability != nil {
		return *o.Probability
	}
	return o.Stage.DefaultProbability()
}

// ValueOrZero returns the estimated value, treating nil as zero
func (o *Opportunity) ValueOrZero() float64 {
	if o.EstimatedValue == nil {
		return 0
	}
	return *o.EstimatedValue
}

// LastActivityAt returns UpdatedAt, falling back to CreatedAt. Nil when neither is set.
func (o *Opportunity) LastActivityAt() *time.Time {
	if o.UpdatedAt != nil {
		return o.UpdatedAt
	}
	return o.CreatedAt
}

// WithPortfolioKPIs returns a copy of the opportunity whose EstimatedValue and
// PvSizeKW reflect the portfolio aggregate. The receiver is not modified.
// Opportunities without a portfolio, and aggregates without data, leave the
// stored values in place.
func (o Opportunity) WithPortfolioKPIs(kpis PortfolioKPIs) Opportunity {
	if o.PortfolioID == nil || !kpis.HasData {
		return o
	}
	capex := kpis.TotalCapex
	pv := kpis.TotalPvKW
	o.EstimatedValue = &capex
	o.PvSizeKW = &pv
	return o
}

// PortfolioKPIs is the rolled-up capital cost and PV capacity of a portfolio
type PortfolioKPIs struct {
	PortfolioID uuid.UUID `json:"portfolioId"`
	TotalCapex  float64   `json:"totalCapex"`
	TotalPvKW   float64   `json:"totalPvKW"`
	SiteCount   int       `json:"siteCount"`
	HasData     bool      `json:"hasData"`
}
