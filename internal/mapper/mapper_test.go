package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/mapper"
	"github.com/straye-as/solar-crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToOpportunityDTO(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	closeDate := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
	opp := &domain.Opportunity{
		ID:                uuid.New(),
		Name:              "Warehouse rooftop",
		Stage:             domain.StageNegotiation,
		EstimatedValue:    testutil.Float(150000),
		ExpectedCloseDate: &closeDate,
		CreatedAt:         &created,
	}

	dto := mapper.ToOpportunityDTO(opp)

	assert.Nil(t, dto.Probability)
	assert.Equal(t, 75, dto.EffectiveProbability, "falls back to the stage default")
	assert.Equal(t, 150000.0, *dto.EstimatedValue)
	require.NotNil(t, dto.ExpectedCloseDate)
	assert.Equal(t, "2024-09-30", *dto.ExpectedCloseDate)
	require.NotNil(t, dto.CreatedAt)
	assert.Equal(t, "2024-03-01T09:30:00Z", *dto.CreatedAt)
	assert.Nil(t, dto.UpdatedAt)

	opp.Probability = testutil.Int(60)
	assert.Equal(t, 60, mapper.ToOpportunityDTO(opp).EffectiveProbability)
}

func TestToPortfolioDetailsDTO(t *testing.T) {
	pid := uuid.New()
	details := &domain.PortfolioDetails{
		Portfolio: domain.Portfolio{BaseModel: domain.BaseModel{ID: pid}, Name: "North"},
		Sites: []domain.PortfolioSite{
			{PortfolioID: pid, SiteID: uuid.New(), DisplayOrder: 0},
			{PortfolioID: pid, SiteID: uuid.New(), DisplayOrder: 1, OverrideCapexNet: testutil.Float(10)},
		},
		KPIs: domain.PortfolioKPIs{PortfolioID: pid, TotalCapex: 10, SiteCount: 2, HasData: true},
	}

	dto := mapper.ToPortfolioDetailsDTO(details)

	require.Len(t, dto.Sites, 2)
	assert.Equal(t, 1, dto.Sites[1].DisplayOrder)
	assert.Equal(t, 10.0, *dto.Sites[1].OverrideCapexNet)
	require.NotNil(t, dto.KPIs)
	assert.Equal(t, 2, dto.KPIs.SiteCount)
	assert.Empty(t, mapper.ToPortfolioDTO(&details.Portfolio).Sites)
}
