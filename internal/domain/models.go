package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Client is the billing/contact entity owning sites, portfolios and opportunities
type Client struct {
	BaseModel
	Name       string `gorm:"type:varchar(200);not null;index"`
	OrgNumber  string `gorm:"type:varchar(20);column:org_number"`
	Email      string `gorm:"type:varchar(255)"`
	Phone      string `gorm:"type:varchar(50)"`
	Address    string `gorm:"type:varchar(500)"`
	City       string `gorm:"type:varchar(100)"`
	PostalCode string `gorm:"type:varchar(20);column:postal_code"`
	Country    string `gorm:"type:varchar(100);not null;default:'Canada'"`
}

// Site is a physical building belonging to exactly one client
type Site struct {
	BaseModel
	ClientID   uuid.UUID `gorm:"type:uuid;not null;index;column:client_id"`
	Name       string    `gorm:"type:varchar(200);not null"`
	Address    string    `gorm:"type:varchar(500)"`
	City       string    `gorm:"type:varchar(100)"`
	PostalCode string    `gorm:"type:varchar(20);column:postal_code"`
	Latitude   *float64  `gorm:"type:decimal(10,7)"`
	Longitude  *float64  `gorm:"type:decimal(10,7)"`
	RoofAreaM2 *float64  `gorm:"type:decimal(12,2);column:roof_area_m2"`
	IsArchived bool      `gorm:"not null;default:false;column:is_archived"`
}

// Portfolio is a named grouping of a client's sites
type Portfolio struct {
	BaseModel
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index;column:client_id"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text"`
}

// PortfolioDetails is a portfolio read together with its ordered memberships and live KPIs
type PortfolioDetails struct {
	Portfolio Portfolio
	Sites     []PortfolioSite
	KPIs      PortfolioKPIs
}

// PortfolioSite joins a site to a portfolio. Override values, when set,
// replace the simulation-derived value for that site during aggregation.
type PortfolioSite struct {
	BaseModel
	PortfolioID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_site_pair;column:portfolio_id"`
	SiteID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_site_pair;index;column:site_id"`
	DisplayOrder     int       `gorm:"not null;default:0;column:display_order"`
	OverrideCapexNet *float64  `gorm:"type:decimal(15,2);column:override_capex_net"`
	OverridePvSizeKW *float64  `gorm:"type:decimal(12,3);column:override_pv_size_kw"`
}

// SimulationRun is a financial/technical scenario computed for a site
type SimulationRun struct {
	BaseModel
	SiteID              uuid.UUID `gorm:"type:uuid;not null;index;column:site_id"`
	Label               string    `gorm:"type:varchar(200)"`
	CapexNet            *float64  `gorm:"type:decimal(15,2);column:capex_net"`
	PvSizeKW            *float64  `gorm:"type:decimal(12,3);column:pv_size_kw"`
	AnnualProductionKWh *float64  `gorm:"type:decimal(15,2);column:annual_production_kwh"`
	PaybackYears        *float64  `gorm:"type:decimal(6,2);column:payback_years"`
}

// Design belongs to one simulation run
type Design struct {
	BaseModel
	SimulationRunID uuid.UUID `gorm:"type:uuid;not null;index;column:simulation_run_id"`
	Name            string    `gorm:"type:varchar(200);not null"`
	ModuleCount     int       `gorm:"not null;default:0;column:module_count"`
	Notes           string    `gorm:"type:text"`
}

// BomItem is a bill-of-materials line of a design
type BomItem struct {
	BaseModel
	DesignID    uuid.UUID `gorm:"type:uuid;not null;index;column:design_id"`
	Category    string    `gorm:"type:varchar(100)"`
	Description string    `gorm:"type:varchar(500);not null"`
	Quantity    float64   `gorm:"type:decimal(12,3);not null;default:0"`
	UnitCost    float64   `gorm:"type:decimal(15,2);not null;default:0;column:unit_cost"`
}

// MeterFile is an uploaded utility meter export for a site
type MeterFile struct {
	BaseModel
	SiteID      uuid.UUID `gorm:"type:uuid;not null;index;column:site_id"`
	FileName    string    `gorm:"type:varchar(500);not null;column:file_name"`
	ContentType string    `gorm:"type:varchar(100);column:content_type"`
	StoragePath string    `gorm:"type:varchar(1000);column:storage_path"`
	Size        int64     `gorm:"not null;default:0"`
}

// MeterReading is one interval reading parsed from a meter file
type MeterReading struct {
	BaseModel
	MeterFileID uuid.UUID `gorm:"type:uuid;not null;index;column:meter_file_id"`
	ReadingAt   time.Time `gorm:"not null;column:reading_at"`
	KWh         float64   `gorm:"type:decimal(12,4);not null;column:kwh"`
	KW          *float64  `gorm:"type:decimal(12,4);column:kw"`
}

// DesignAgreementStatus represents the state of a design agreement
type DesignAgreementStatus string

const (
	DesignAgreementStatusDraft    DesignAgreementStatus = "draft"
	DesignAgreementStatusSent     DesignAgreementStatus = "sent"
	DesignAgreementStatusSigned   DesignAgreementStatus = "signed"
	DesignAgreementStatusCanceled DesignAgreementStatus = "canceled"
)

// DesignAgreement is the paid design-phase contract for a site
type DesignAgreement struct {
	BaseModel
	SiteID   uuid.UUID             `gorm:"type:uuid;not null;index;column:site_id"`
	Status   DesignAgreementStatus `gorm:"type:varchar(50);not null;default:'draft'"`
	Fee      float64               `gorm:"type:decimal(15,2);not null;default:0"`
	SignedAt *time.Time            `gorm:"column:signed_at"`
}

// SiteVisit is an on-site technical inspection
type SiteVisit struct {
	BaseModel
	SiteID      uuid.UUID  `gorm:"type:uuid;not null;index;column:site_id"`
	ScheduledAt *time.Time `gorm:"column:scheduled_at"`
	VisitedAt   *time.Time `gorm:"column:visited_at"`
	Notes       string     `gorm:"type:text"`
}

// ConstructionAgreement is the EPC contract for building a site's system
type ConstructionAgreement struct {
	BaseModel
	SiteID        uuid.UUID  `gorm:"type:uuid;not null;index;column:site_id"`
	ContractValue float64    `gorm:"type:decimal(15,2);not null;default:0;column:contract_value"`
	SignedAt      *time.Time `gorm:"column:signed_at"`
}

// ConstructionMilestone is a payment/progress milestone of a construction agreement
type ConstructionMilestone struct {
	BaseModel
	ConstructionAgreementID uuid.UUID  `gorm:"type:uuid;not null;index;column:construction_agreement_id"`
	Name                    string     `gorm:"type:varchar(200);not null"`
	PercentOfValue          float64    `gorm:"type:decimal(5,2);not null;default:0;column:percent_of_value"`
	CompletedAt             *time.Time `gorm:"column:completed_at"`
}

// OmContract is an operations and maintenance contract for a site
type OmContract struct {
	BaseModel
	SiteID    uuid.UUID  `gorm:"type:uuid;not null;index;column:site_id"`
	AnnualFee float64    `gorm:"type:decimal(15,2);not null;default:0;column:annual_fee"`
	StartsAt  *time.Time `gorm:"column:starts_at"`
	EndsAt    *time.Time `gorm:"column:ends_at"`
}

// OmVisit is a maintenance visit performed under an O&M contract
type OmVisit struct {
	BaseModel
	OmContractID uuid.UUID  `gorm:"type:uuid;not null;index;column:om_contract_id"`
	VisitedAt    *time.Time `gorm:"column:visited_at"`
	Findings     string     `gorm:"type:text"`
}

// Lead is an inbound prospect before it becomes a client
type Lead struct {
	BaseModel
	CompanyName   string        `gorm:"type:varchar(200);not null;column:company_name"`
	ContactName   string        `gorm:"type:varchar(200);column:contact_name"`
	Email         string        `gorm:"type:varchar(255)"`
	Qualification Qualification `gorm:"type:text"`
}

// ActivityTargetType represents what an activity is attached to
type ActivityTargetType string

const (
	ActivityTargetClient      ActivityTargetType = "client"
	ActivityTargetOpportunity ActivityTargetType = "opportunity"
)

// Activity is a timeline entry for a client or opportunity
type Activity struct {
	BaseModel
	TargetType  ActivityTargetType `gorm:"type:varchar(50);not null;index:idx_activity_target;column:target_type"`
	TargetID    uuid.UUID          `gorm:"type:uuid;not null;index:idx_activity_target;column:target_id"`
	Title       string             `gorm:"type:varchar(200);not null"`
	Body        string             `gorm:"type:text"`
	CreatorName string             `gorm:"type:varchar(200);column:creator_name"`
}

// AllModels lists every persisted model in dependency order (parents first)
func AllModels() []interface{} {
	return []interface{}{
		&Client{},
		&Lead{},
		&Site{},
		&Portfolio{},
		&PortfolioSite{},
		&SimulationRun{},
		&Design{},
		&BomItem{},
		&MeterFile{},
		&MeterReading{},
		&DesignAgreement{},
		&SiteVisit{},
		&ConstructionAgreement{},
		&ConstructionMilestone{},
		&OmContract{},
		&OmVisit{},
		&Opportunity{},
		&Activity{},
	}
}
