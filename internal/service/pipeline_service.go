package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"go.uber.org/zap"
)

const (
	// AtRiskThreshold is how long an active opportunity may go without activity
	AtRiskThreshold = 30 * 24 * time.Hour

	pipelineListLimit = 5
)

var hundred = decimal.NewFromInt(100)

// PipelineService computes sales funnel statistics over projected opportunities
type PipelineService struct {
	opportunityService *OpportunityService
	clientRepo         *repository.ClientRepository
	logger             *zap.Logger
	now                func() time.Time
}

func NewPipelineService(
	opportunityService *OpportunityService,
	clientRepo *repository.ClientRepository,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		opportunityService: opportunityService,
		clientRepo:         clientRepo,
		logger:             logger,
		now:                time.Now,
	}
}

// GetPipelineStats loads every opportunity through the projection and the
// names of the clients they reference, then computes the statistics.
func (s *PipelineService) GetPipelineStats(ctx context.Context) (*domain.PipelineStatsResult, error) {
	opps, err := s.opportunityService.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunities: %w", err)
	}

	names, err := s.clientRepo.GetNamesByIDs(ctx, clientIDsOf(opps))
	if err != nil {
		return nil, err
	}

	stats := ComputePipelineStats(opps, names, s.now())
	s.logger.Debug("pipeline stats computed",
		zap.Int("opportunities", len(opps)),
		zap.Int("active", stats.ActiveOpportunityCount),
	)
	return stats, nil
}

// ComputePipelineStats derives the pipeline statistics from opportunities
// that have already been projected. It is pure: now is the reference time
// for at-risk detection.
func ComputePipelineStats(opps []domain.Opportunity, clientNames map[uuid.UUID]string, now time.Time) *domain.PipelineStatsResult {
	var (
		total, weighted, won, lost decimal.Decimal
		backlog, delivered         decimal.Decimal
		backlogCount, deliveredCnt int
		activeCount                int
	)

	type stageAcc struct {
		count    int
		total    decimal.Decimal
		weighted decimal.Decimal
	}
	stages := make(map[domain.OpportunityStage]*stageAcc, len(domain.AllStages))
	for _, st := range domain.AllStages {
		stages[st] = &stageAcc{}
	}

	var active, wins []domain.Opportunity

	for _, opp := range opps {
		value := decimal.NewFromFloat(opp.ValueOrZero())
		weightedValue := value.Mul(decimal.NewFromInt(int64(opp.EffectiveProbability()))).Div(hundred)

		if acc, ok := stages[opp.Stage]; ok {
			acc.count++
			acc.total = acc.total.Add(value)
			acc.weighted = acc.weighted.Add(weightedValue)
		}

		switch {
		case opp.Stage.IsWon():
			won = won.Add(value)
			wins = append(wins, opp)
			if opp.Stage.IsDeliveryBacklog() {
				backlog = backlog.Add(value)
				backlogCount++
			} else {
				delivered = delivered.Add(value)
				deliveredCnt++
			}
		case opp.Stage.IsLost():
			lost = lost.Add(value)
		default:
			activeCount++
			total = total.Add(value)
			weighted = weighted.Add(weightedValue)
			active = append(active, opp)
		}
	}

	result := &domain.PipelineStatsResult{
		TotalPipelineValue:     total.InexactFloat64(),
		WeightedPipelineValue:  weighted.InexactFloat64(),
		WonValue:               won.InexactFloat64(),
		LostValue:              lost.InexactFloat64(),
		DeliveryBacklogValue:   backlog.InexactFloat64(),
		DeliveryBacklogCount:   backlogCount,
		DeliveredValue:         delivered.InexactFloat64(),
		DeliveredCount:         deliveredCnt,
		ActiveOpportunityCount: activeCount,
		StageBreakdown:         make([]domain.StageBreakdown, 0, len(domain.AllStages)),
	}

	for _, st := range domain.AllStages {
		acc := stages[st]
		result.StageBreakdown = append(result.StageBreakdown, domain.StageBreakdown{
			Stage:         st,
			Count:         acc.count,
			TotalValue:    acc.total.InexactFloat64(),
			WeightedValue: acc.weighted.InexactFloat64(),
		})
	}

	result.TopOpportunities = topOpportunities(active, clientNames)
	result.AtRiskOpportunities = atRiskOpportunities(active, clientNames, now)
	result.RecentWins = recentWins(wins, clientNames)

	return result
}

func topOpportunities(active []domain.Opportunity, clientNames map[uuid.UUID]string) []domain.TopOpportunity {
	candidates := make([]domain.Opportunity, 0, len(active))
	for _, opp := range active {
		if opp.ValueOrZero() > 0 {
			candidates = append(candidates, opp)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		vi, vj := candidates[i].ValueOrZero(), candidates[j].ValueOrZero()
		if vi != vj {
			return vi > vj
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	out := make([]domain.TopOpportunity, 0, pipelineListLimit)
	for _, opp := range limit(candidates) {
		out = append(out, domain.TopOpportunity{
			ID:             opp.ID,
			Name:           opp.Name,
			ClientName:     clientName(opp.ClientID, clientNames),
			Stage:          opp.Stage,
			Probability:    opp.EffectiveProbability(),
			EstimatedValue: opp.ValueOrZero(),
			UpdatedAt:      opp.UpdatedAt,
		})
	}
	return out
}

func atRiskOpportunities(active []domain.Opportunity, clientNames map[uuid.UUID]string, now time.Time) []domain.AtRiskOpportunity {
	type risk struct {
		opp  domain.Opportunity
		days int
	}

	cutoff := now.Add(-AtRiskThreshold)
	var risks []risk
	for _, opp := range active {
		last := opp.LastActivityAt()
		if last == nil || !last.Before(cutoff) {
			continue
		}
		days := int(now.Sub(*last).Hours() / 24)
		risks = append(risks, risk{opp: opp, days: days})
	}

	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].days != risks[j].days {
			return risks[i].days > risks[j].days
		}
		return risks[i].opp.ID.String() < risks[j].opp.ID.String()
	})

	out := make([]domain.AtRiskOpportunity, 0, pipelineListLimit)
	for i, r := range risks {
		if i == pipelineListLimit {
			break
		}
		out = append(out, domain.AtRiskOpportunity{
			ID:              r.opp.ID,
			Name:            r.opp.Name,
			ClientName:      clientName(r.opp.ClientID, clientNames),
			Stage:           r.opp.Stage,
			EstimatedValue:  r.opp.ValueOrZero(),
			DaysSinceUpdate: r.days,
		})
	}
	return out
}

func recentWins(wins []domain.Opportunity, clientNames map[uuid.UUID]string) []domain.RecentWin {
	sorted := make([]domain.Opportunity, len(wins))
	copy(sorted, wins)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].UpdatedAt, sorted[j].UpdatedAt
		switch {
		case a == nil && b == nil:
			return sorted[i].ID.String() < sorted[j].ID.String()
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return sorted[i].ID.String() < sorted[j].ID.String()
		}
	})

	out := make([]domain.RecentWin, 0, pipelineListLimit)
	for _, opp := range limit(sorted) {
		out = append(out, domain.RecentWin{
			ID:             opp.ID,
			Name:           opp.Name,
			ClientName:     clientName(opp.ClientID, clientNames),
			EstimatedValue: opp.ValueOrZero(),
			UpdatedAt:      opp.UpdatedAt,
		})
	}
	return out
}

func limit(opps []domain.Opportunity) []domain.Opportunity {
	if len(opps) > pipelineListLimit {
		return opps[:pipelineListLimit]
	}
	return opps
}

func clientName(clientID *uuid.UUID, names map[uuid.UUID]string) *string {
	if clientID == nil {
		return nil
	}
	name, ok := names[*clientID]
	if !ok {
		return nil
	}
	return &name
}

func clientIDsOf(opps []domain.Opportunity) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(opps))
	for _, opp := range opps {
		if opp.ClientID != nil {
			ids = append(ids, *opp.ClientID)
		}
	}
	return uniqueIDs(ids)
}
