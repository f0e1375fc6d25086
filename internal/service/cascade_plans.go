package service

import (
	"github.com/straye-as/solar-crm-api/internal/cascade"
	"github.com/straye-as/solar-crm-api/internal/domain"
)

// Plan names, also used as metric labels
const (
	PlanSite                  = "site"
	PlanPortfolio             = "portfolio"
	PlanConstructionAgreement = "construction_agreement"
	PlanOmContract            = "om_contract"
	PlanOpportunity           = "opportunity"
	PlanClient                = "client"
)

// Step names. They double as the keys of cascade.Result and of count maps.
const (
	stepClients                = "clients"
	stepSites                  = "sites"
	stepPortfolios             = "portfolios"
	stepPortfolioSites         = "portfolioSites"
	stepOpportunities          = "opportunities"
	stepActivities             = "activities"
	stepDesignAgreements       = "designAgreements"
	stepSiteVisits             = "siteVisits"
	stepSimulationRuns         = "simulationRuns"
	stepDesigns                = "designs"
	stepBomItems               = "bomItems"
	stepMeterFiles             = "meterFiles"
	stepMeterReadings          = "meterReadings"
	stepConstructionAgreements = "constructionAgreements"
	stepMilestones             = "constructionMilestones"
	stepOmContracts            = "omContracts"
	stepOmVisits               = "omVisits"
)

// The builders below return fresh trees on every call.

func constructionAgreementStep(foreignKey string) *cascade.Step {
	return &cascade.Step{
		Name:       stepConstructionAgreements,
		Model:      &domain.ConstructionAgreement{},
		ForeignKey: foreignKey,
		Children: []*cascade.Step{
			{Name: stepMilestones, Model: &domain.ConstructionMilestone{}, ForeignKey: "construction_agreement_id"},
		},
	}
}

func omContractStep(foreignKey string) *cascade.Step {
	return &cascade.Step{
		Name:       stepOmContracts,
		Model:      &domain.OmContract{},
		ForeignKey: foreignKey,
		Children: []*cascade.Step{
			{Name: stepOmVisits, Model: &domain.OmVisit{}, ForeignKey: "om_contract_id"},
		},
	}
}

// siteChildren lists a site's dependents in removal order
func siteChildren() []*cascade.Step {
	return []*cascade.Step{
		{Name: stepDesignAgreements, Model: &domain.DesignAgreement{}, ForeignKey: "site_id"},
		{Name: stepSiteVisits, Model: &domain.SiteVisit{}, ForeignKey: "site_id"},
		{
			Name:       stepSimulationRuns,
			Model:      &domain.SimulationRun{},
			ForeignKey: "site_id",
			Children: []*cascade.Step{
				{
					Name:       stepDesigns,
					Model:      &domain.Design{},
					ForeignKey: "simulation_run_id",
					Children: []*cascade.Step{
						{Name: stepBomItems, Model: &domain.BomItem{}, ForeignKey: "design_id"},
					},
				},
			},
		},
		{
			Name:       stepMeterFiles,
			Model:      &domain.MeterFile{},
			ForeignKey: "site_id",
			Children: []*cascade.Step{
				{Name: stepMeterReadings, Model: &domain.MeterReading{}, ForeignKey: "meter_file_id"},
			},
		},
		constructionAgreementStep("site_id"),
		omContractStep("site_id"),
		{Name: stepPortfolioSites, Model: &domain.PortfolioSite{}, ForeignKey: "site_id"},
		{Name: stepOpportunities, Model: &domain.Opportunity{}, ForeignKey: "site_id", Action: cascade.Detach},
	}
}

func portfolioChildren() []*cascade.Step {
	return []*cascade.Step{
		{Name: stepPortfolioSites, Model: &domain.PortfolioSite{}, ForeignKey: "portfolio_id"},
		{Name: stepOpportunities, Model: &domain.Opportunity{}, ForeignKey: "portfolio_id", Action: cascade.Detach},
	}
}

func opportunityChildren() []*cascade.Step {
	return []*cascade.Step{
		{
			Name:       stepActivities,
			Model:      &domain.Activity{},
			ForeignKey: "target_id",
			Where:      "target_type = ?",
			Args:       []interface{}{domain.ActivityTargetOpportunity},
		},
	}
}

func sitePlan() cascade.Plan {
	return cascade.Plan{
		Name: PlanSite,
		Root: &cascade.Step{Name: stepSites, Model: &domain.Site{}, Children: siteChildren()},
	}
}

func portfolioPlan() cascade.Plan {
	return cascade.Plan{
		Name: PlanPortfolio,
		Root: &cascade.Step{Name: stepPortfolios, Model: &domain.Portfolio{}, Children: portfolioChildren()},
	}
}

func constructionAgreementPlan() cascade.Plan {
	root := constructionAgreementStep("")
	return cascade.Plan{Name: PlanConstructionAgreement, Root: root}
}

func omContractPlan() cascade.Plan {
	root := omContractStep("")
	return cascade.Plan{Name: PlanOmContract, Root: root}
}

func opportunityPlan() cascade.Plan {
	return cascade.Plan{
		Name: PlanOpportunity,
		Root: &cascade.Step{Name: stepOpportunities, Model: &domain.Opportunity{}, Children: opportunityChildren()},
	}
}

// clientPlan removes sites first, then portfolios, then the client's own
// opportunities, then client activities, then the client row.
func clientPlan() cascade.Plan {
	return cascade.Plan{
		Name: PlanClient,
		Root: &cascade.Step{
			Name:  stepClients,
			Model: &domain.Client{},
			Children: []*cascade.Step{
				{Name: stepSites, Model: &domain.Site{}, ForeignKey: "client_id", Children: siteChildren()},
				{Name: stepPortfolios, Model: &domain.Portfolio{}, ForeignKey: "client_id", Children: portfolioChildren()},
				{Name: stepOpportunities, Model: &domain.Opportunity{}, ForeignKey: "client_id", Children: opportunityChildren()},
				{
					Name:       stepActivities,
					Model:      &domain.Activity{},
					ForeignKey: "target_id",
					Where:      "target_type = ?",
					Args:       []interface{}{domain.ActivityTargetClient},
				},
			},
		},
	}
}

// countsFromMap maps executor counts onto the public counts shape
func countsFromMap(m map[string]int64) domain.CascadeCounts {
	return domain.CascadeCounts{
		Sites:                  m[stepSites],
		Portfolios:             m[stepPortfolios],
		Opportunities:          m[stepOpportunities],
		PortfolioSites:         m[stepPortfolioSites],
		SimulationRuns:         m[stepSimulationRuns],
		Designs:                m[stepDesigns],
		BomItems:               m[stepBomItems],
		MeterFiles:             m[stepMeterFiles],
		MeterReadings:          m[stepMeterReadings],
		SiteVisits:             m[stepSiteVisits],
		DesignAgreements:       m[stepDesignAgreements],
		ConstructionAgreements: m[stepConstructionAgreements],
		OmContracts:            m[stepOmContracts],
		Activities:             m[stepActivities],
	}
}
