package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	stats *domain.PipelineStatsResult
	err   error
}

func (f *fakeSource) GetPipelineStats(context.Context) (*domain.PipelineStatsResult, error) {
	return f.stats, f.err
}

type fakeRecorder struct {
	snapshots []*domain.PipelineStatsResult
	at        []time.Time
	errors    int
}

func (f *fakeRecorder) RecordPipelineSnapshot(stats *domain.PipelineStatsResult, at time.Time) {
	f.snapshots = append(f.snapshots, stats)
	f.at = append(f.at, at)
}

func (f *fakeRecorder) RecordPipelineSnapshotError() { f.errors++ }

func TestPipelineSnapshotJob_RecordsStats(t *testing.T) {
	stats := &domain.PipelineStatsResult{ActiveOpportunityCount: 3, WeightedPipelineValue: 145000}
	rec := &fakeRecorder{}
	job := NewPipelineSnapshotJob(&fakeSource{stats: stats}, rec, zap.NewNop(), time.Second)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	require.NoError(t, job.RunOnce(context.Background()))
	require.Len(t, rec.snapshots, 1)
	assert.Same(t, stats, rec.snapshots[0])
	assert.Equal(t, fixed, rec.at[0])
	assert.Zero(t, rec.errors)
}

func TestPipelineSnapshotJob_CountsFailures(t *testing.T) {
	rec := &fakeRecorder{}
	job := NewPipelineSnapshotJob(&fakeSource{err: errors.New("db down")}, rec, zap.NewNop(), time.Second)

	job.Run()

	assert.Empty(t, rec.snapshots)
	assert.Equal(t, 1, rec.errors)
}

func TestScheduler_AddAndRemoveJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("b", "*/5 * * * *", func() {}))
	require.NoError(t, s.AddJob("a", "0 15 * * * *", func() {}))
	assert.Error(t, s.AddJob("a", "@hourly", func() {}), "duplicate name")
	assert.Error(t, s.AddJob("c", "not a schedule", func() {}))

	assert.Equal(t, []string{"a", "b"}, s.GetJobNames())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetJobNames())
}

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 15 * * * *", "@every 1m"} {
		_, err := parseSchedule(expr)
		assert.NoError(t, err, expr)
	}
	_, err := parseSchedule("61 * * * *")
	assert.Error(t, err)
}

func TestScheduler_RejectsInvalidScheduleWithoutRegistering(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	err := s.AddJob("snapshot", "61 * * * *", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
	assert.Empty(t, s.GetJobNames())
}
