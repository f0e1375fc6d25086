package jobs

import (
	"context"
	"time"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"go.uber.org/zap"
)

// PipelineSnapshotJobName is the scheduler name of the pipeline snapshot job
const PipelineSnapshotJobName = "pipeline_snapshot"

// PipelineStatsSource computes the current pipeline statistics
type PipelineStatsSource interface {
	GetPipelineStats(ctx context.Context) (*domain.PipelineStatsResult, error)
}

// SnapshotRecorder publishes snapshot results
type SnapshotRecorder interface {
	RecordPipelineSnapshot(stats *domain.PipelineStatsResult, at time.Time)
	RecordPipelineSnapshotError()
}

// PipelineSnapshotJob periodically computes pipeline stats and publishes them
// as gauges so dashboards do not have to hit the API.
type PipelineSnapshotJob struct {
	source   PipelineStatsSource
	recorder SnapshotRecorder
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewPipelineSnapshotJob(source PipelineStatsSource, recorder SnapshotRecorder, logger *zap.Logger, timeout time.Duration) *PipelineSnapshotJob {
	return &PipelineSnapshotJob{
		source:   source,
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Run is invoked by the scheduler
func (j *PipelineSnapshotJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_ = j.RunOnce(ctx)
}

// RunOnce takes a single snapshot
func (j *PipelineSnapshotJob) RunOnce(ctx context.Context) error {
	start := j.now()

	stats, err := j.source.GetPipelineStats(ctx)
	if err != nil {
		j.recorder.RecordPipelineSnapshotError()
		j.logger.Error("pipeline snapshot failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return err
	}

	j.recorder.RecordPipelineSnapshot(stats, start)
	j.logger.Info("pipeline snapshot recorded",
		zap.Int("active", stats.ActiveOpportunityCount),
		zap.Int("at_risk", len(stats.AtRiskOpportunities)),
		zap.Float64("weighted_value", stats.WeightedPipelineValue),
		zap.Duration("duration", time.Since(start)))
	return nil
}
