package payments

import (
	"context"
	"testing"
	"time"

	"github.com/nexusworks/payments/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySchedulesWithGrowingDelay(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 20_000)
	p1 := seedPendingPayment(ds, "pay_1", "alice")
	p1.Attempts = 1
	p1.CreatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p2 := seedPendingPayment(ds, "pay_2", "bob")
	p2.Attempts = 3
	p2.CreatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	engine, _, scheduler := newTestEngine(t, ds)

	result, err := engine.RetryPendingPayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 2, result.Scheduled)
	assert.Zero(t, result.Demoted)

	require.Contains(t, scheduler.scheduled, "pay_1")
	require.Contains(t, scheduler.scheduled, "pay_2")
	assert.Greater(t, scheduler.scheduled["pay_2"], scheduler.scheduled["pay_1"])
}

func TestRetryExhaustedBudgetDemotesToFailed(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 10_000)
	p := seedPendingPayment(ds, "pay_1", "alice")
	p.Attempts = 5 // default budget
	p.CreatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	engine, notifier, scheduler := newTestEngine(t, ds)

	result, err := engine.RetryPendingPayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Demoted)
	assert.Empty(t, scheduler.scheduled)

	reloaded, _ := ds.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, model.StatusFailed, reloaded.Status)
	assert.NotZero(t, notifier.count())
}

func TestRetryIgnoresDispatchedPayments(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 10_000)
	p := seedPendingPayment(ds, "pay_1", "alice")
	p.ExternalID = "ext_1" // already reached the provider
	p.CreatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	engine, _, scheduler := newTestEngine(t, ds)

	result, err := engine.RetryPendingPayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Examined)
	assert.Empty(t, scheduler.scheduled)
}

func TestRetryDelayGrows(t *testing.T) {
	initial := time.Minute
	d0 := retryDelay(initial, 0)
	d1 := retryDelay(initial, 1)
	d3 := retryDelay(initial, 3)

	assert.Equal(t, initial, d0)
	assert.Greater(t, d1, d0)
	assert.Greater(t, d3, d1)
}

func TestDispatchQueuedSkipsNonPending(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 10_000)
	p := seedPendingPayment(ds, "pay_1", "alice")
	p.Status = model.StatusProcessing
	p.ExternalID = "ext_1"

	engine, _, _ := newTestEngine(t, ds)

	require.NoError(t, engine.DispatchQueued(context.Background(), "pay_1"))
	reloaded, _ := ds.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, model.StatusProcessing, reloaded.Status)
}

func TestDispatchQueuedDispatchesPending(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 10_000)
	seedPendingPayment(ds, "pay_1", "alice")

	engine, _, _ := newTestEngine(t, ds, &stubAdapter{gatewayType: model.GatewayBank})

	require.NoError(t, engine.DispatchQueued(context.Background(), "pay_1"))
	reloaded, _ := ds.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, model.StatusProcessing, reloaded.Status)
	assert.NotEmpty(t, reloaded.ExternalID)
}
