package payments

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOverdueMilestone(ds *mockDataSource, id, projectID string, daysOverdue int) *model.Milestone {
	m := seedMilestone(ds, id, projectID, 50_000)
	m.DueDate = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, -daysOverdue)
	ds.projects[projectID] = model.ProjectActive
	return m
}

func TestOverdueTenDaysWarnsAndPauses(t *testing.T) {
	ds := newMockDataSource()
	seedOverdueMilestone(ds, "ms_1", "proj_1", 10)

	engine, notifier, _ := newTestEngine(t, ds)

	result, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warned)
	assert.Equal(t, 1, result.Paused)
	assert.Zero(t, result.Escalated)

	status, _ := ds.GetProjectStatus(context.Background(), "proj_1")
	assert.Equal(t, model.ProjectPaused, status)
	assert.Empty(t, ds.disputes)
	assert.NotZero(t, notifier.count())
}

func TestOverdueFifteenDaysOpensExactlyOneDispute(t *testing.T) {
	ds := newMockDataSource()
	seedOverdueMilestone(ds, "ms_1", "proj_1", 15)

	engine, _, _ := newTestEngine(t, ds)

	result, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warned)
	assert.Equal(t, 1, result.Paused)
	assert.Equal(t, 1, result.Escalated)
	require.Len(t, ds.disputes, 1)
	for _, d := range ds.disputes {
		assert.Equal(t, model.DisputePaymentDelay, d.DisputeType)
		assert.Equal(t, "ms_1", d.MilestoneID)
		assert.Equal(t, int64(50_000), d.DisputedAmount)
	}

	milestone, _ := ds.GetMilestone(context.Background(), "ms_1")
	assert.Equal(t, model.MilestoneDisputed, milestone.Status)

	// the milestone left the overdue set when it became disputed
	rerun, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rerun.Examined)
	assert.Len(t, ds.disputes, 1)
}

func TestOverdueSweepIsIdempotent(t *testing.T) {
	ds := newMockDataSource()
	seedOverdueMilestone(ds, "ms_1", "proj_1", 10)

	engine, notifier, _ := newTestEngine(t, ds)

	_, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	firstNotifications := notifier.count()

	rerun, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rerun.Warned)
	assert.Zero(t, rerun.Paused)
	assert.Equal(t, firstNotifications, notifier.count())
}

// flakyProjectStore fails a scripted number of project updates before
// delegating to the in-memory store.
type flakyProjectStore struct {
	*mockDataSource
	failures int
}

func (f *flakyProjectStore) UpdateProjectStatus(ctx context.Context, projectID, target string, from []string) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("connection reset by peer")
	}
	return f.mockDataSource.UpdateProjectStatus(ctx, projectID, target, from)
}

func TestPauseRungRefiresAfterFailedSideEffect(t *testing.T) {
	ds := newMockDataSource()
	seedOverdueMilestone(ds, "ms_1", "proj_1", 10)

	engine, _, _ := newTestEngine(t, ds)
	engine.datasource = &flakyProjectStore{mockDataSource: ds, failures: 1}

	_, err := engine.CheckOverdueMilestones(context.Background())
	require.Error(t, err)

	status, _ := ds.GetProjectStatus(context.Background(), "proj_1")
	assert.Equal(t, model.ProjectActive, status)

	// the rung was handed back, so a healthy sweep still pauses the project
	result, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Paused)
	assert.Zero(t, result.Warned)

	status, _ = ds.GetProjectStatus(context.Background(), "proj_1")
	assert.Equal(t, model.ProjectPaused, status)
}

func TestOverdueUnderThreeDaysDoesNothing(t *testing.T) {
	ds := newMockDataSource()
	seedOverdueMilestone(ds, "ms_1", "proj_1", 2)

	engine, notifier, _ := newTestEngine(t, ds)

	result, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Zero(t, result.Warned)
	assert.Zero(t, notifier.count())

	status, _ := ds.GetProjectStatus(context.Background(), "proj_1")
	assert.Equal(t, model.ProjectActive, status)
}

func TestResumeAfterPayment(t *testing.T) {
	ds := newMockDataSource()
	ds.projects["proj_1"] = model.ProjectPaused

	engine, notifier, _ := newTestEngine(t, ds)

	require.NoError(t, engine.ResumeAfterPayment(context.Background(), "proj_1"))
	status, _ := ds.GetProjectStatus(context.Background(), "proj_1")
	assert.Equal(t, model.ProjectActive, status)
	assert.NotZero(t, notifier.count())

	err := engine.ResumeAfterPayment(context.Background(), "proj_1")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
