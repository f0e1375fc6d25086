package mapper

import (
	"time"

	"github.com/straye-as/solar-crm-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	return domain.ClientDTO{
		ID:         client.ID,
		Name:       client.Name,
		OrgNumber:  client.OrgNumber,
		Email:      client.Email,
		Phone:      client.Phone,
		Address:    client.Address,
		City:       client.City,
		PostalCode: client.PostalCode,
		Country:    client.Country,
		CreatedAt:  formatTime(client.CreatedAt),
		UpdatedAt:  formatTime(client.UpdatedAt),
	}
}

// ToSiteDTO converts Site to SiteDTO
func ToSiteDTO(site *domain.Site) domain.SiteDTO {
	return domain.SiteDTO{
		ID:         site.ID,
		ClientID:   site.ClientID,
		Name:       site.Name,
		Address:    site.Address,
		City:       site.City,
		PostalCode: site.PostalCode,
		Latitude:   site.Latitude,
		Longitude:  site.Longitude,
		RoofAreaM2: site.RoofAreaM2,
		IsArchived: site.IsArchived,
		CreatedAt:  formatTime(site.CreatedAt),
		UpdatedAt:  formatTime(site.UpdatedAt),
	}
}

func ToPortfolioSiteDTO(ps *domain.PortfolioSite) domain.PortfolioSiteDTO {
	return domain.PortfolioSiteDTO{
		ID:               ps.ID,
		PortfolioID:      ps.PortfolioID,
		SiteID:           ps.SiteID,
		DisplayOrder:     ps.DisplayOrder,
		OverrideCapexNet: ps.OverrideCapexNet,
		OverridePvSizeKW: ps.OverridePvSizeKW,
	}
}

// ToPortfolioDTO converts a bare Portfolio (list views) to PortfolioDTO
func ToPortfolioDTO(portfolio *domain.Portfolio) domain.PortfolioDTO {
	return domain.PortfolioDTO{
		ID:          portfolio.ID,
		ClientID:    portfolio.ClientID,
		Name:        portfolio.Name,
		Description: portfolio.Description,
		CreatedAt:   formatTime(portfolio.CreatedAt),
		UpdatedAt:   formatTime(portfolio.UpdatedAt),
	}
}

// ToPortfolioDetailsDTO includes the memberships and live KPIs
func ToPortfolioDetailsDTO(details *domain.PortfolioDetails) domain.PortfolioDTO {
	dto := ToPortfolioDTO(&details.Portfolio)
	dto.Sites = make([]domain.PortfolioSiteDTO, len(details.Sites))
	for i := range details.Sites {
		dto.Sites[i] = ToPortfolioSiteDTO(&details.Sites[i])
	}
	kpis := details.KPIs
	dto.KPIs = &kpis
	return dto
}

// ToOpportunityDTO converts an already projected Opportunity to OpportunityDTO
func ToOpportunityDTO(opp *domain.Opportunity) domain.OpportunityDTO {
	dto := domain.OpportunityDTO{
		ID:                   opp.ID,
		Name:                 opp.Name,
		Description:          opp.Description,
		LeadID:               opp.LeadID,
		ClientID:             opp.ClientID,
		SiteID:               opp.SiteID,
		PortfolioID:          opp.PortfolioID,
		Stage:                opp.Stage,
		Probability:          opp.Probability,
		EffectiveProbability: opp.EffectiveProbability(),
		EstimatedValue:       opp.EstimatedValue,
		PvSizeKW:             opp.PvSizeKW,
		OwnerID:              opp.OwnerID,
		LostReason:           opp.LostReason,
		Qualification:        opp.Qualification,
		CreatedAt:            formatTimePtr(opp.CreatedAt),
		UpdatedAt:            formatTimePtr(opp.UpdatedAt),
	}
	if opp.ExpectedCloseDate != nil {
		d := opp.ExpectedCloseDate.Format("2006-01-02")
		dto.ExpectedCloseDate = &d
	}
	return dto
}

func ToOpportunityDTOs(opps []domain.Opportunity) []domain.OpportunityDTO {
	dtos := make([]domain.OpportunityDTO, len(opps))
	for i := range opps {
		dtos[i] = ToOpportunityDTO(&opps[i])
	}
	return dtos
}

// ToMeterFileDTO converts MeterFile to MeterFileDTO. The storage path stays internal.
func ToMeterFileDTO(file *domain.MeterFile) domain.MeterFileDTO {
	return domain.MeterFileDTO{
		ID:          file.ID,
		SiteID:      file.SiteID,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Size:        file.Size,
		CreatedAt:   formatTime(file.CreatedAt),
	}
}

func ToActivityDTO(activity *domain.Activity) domain.ActivityDTO {
	return domain.ActivityDTO{
		ID:          activity.ID,
		TargetType:  activity.TargetType,
		TargetID:    activity.TargetID,
		Title:       activity.Title,
		Body:        activity.Body,
		CreatorName: activity.CreatorName,
		CreatedAt:   formatTime(activity.CreatedAt),
	}
}

func ToActivityDTOs(activities []domain.Activity) []domain.ActivityDTO {
	dtos := make([]domain.ActivityDTO, len(activities))
	for i := range activities {
		dtos[i] = ToActivityDTO(&activities[i])
	}
	return dtos
}
