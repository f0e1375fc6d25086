package service

import (
	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/domain"
)

// ProjectOpportunities returns copies of opps with portfolio-linked values
// replaced by the matching KPIs. The input slice is left untouched.
// Opportunities whose portfolio is missing from kpis keep their stored values.
func ProjectOpportunities(opps []domain.Opportunity, kpis map[uuid.UUID]domain.PortfolioKPIs) []domain.Opportunity {
	projected := make([]domain.Opportunity, len(opps))
	for i, opp := range opps {
		projected[i] = projectOpportunity(opp, kpis)
	}
	return projected
}

func projectOpportunity(opp domain.Opportunity, kpis map[uuid.UUID]domain.PortfolioKPIs) domain.Opportunity {
	if opp.PortfolioID == nil {
		return opp
	}
	k, ok := kpis[*opp.PortfolioID]
	if !ok {
		return opp
	}
	return opp.WithPortfolioKPIs(k)
}

// portfolioIDsOf collects the distinct portfolio ids referenced by opps
func portfolioIDsOf(opps []domain.Opportunity) []uuid.UUID {
	ids := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]struct{})
	for _, opp := range opps {
		if opp.PortfolioID == nil {
			continue
		}
		if _, ok := seen[*opp.PortfolioID]; ok {
			continue
		}
		seen[*opp.PortfolioID] = struct{}{}
		ids = append(ids, *opp.PortfolioID)
	}
	return ids
}
