package payments

import (
	"context"
	"testing"

	"github.com/nexusworks/payments/gateway"
	"github.com/nexusworks/payments/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMilestoneSplitsByHours(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	seedMethod(ds, "bob", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 30, "bob": 10}

	engine, _, _ := newTestEngine(t, ds, &stubAdapter{gatewayType: model.GatewayBank})

	result, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	assert.Len(t, result.Dispatched, 2)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Failed)

	payments, err := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	require.Len(t, payments, 2)

	byContributor := map[string]*model.Payment{}
	var total int64
	for _, p := range payments {
		byContributor[p.ContributorID] = p
		total += p.Amount
		assert.Equal(t, model.StatusProcessing, p.Status)
		assert.NotEmpty(t, p.ExternalID)
		assert.NoError(t, p.ValidateAmounts())
	}
	assert.Equal(t, int64(100_000), total)
	assert.Equal(t, int64(75_000), byContributor["alice"].Amount)
	assert.Equal(t, int64(25_000), byContributor["bob"].Amount)
	// default platform fee is 10 percent
	assert.Equal(t, int64(7_500), byContributor["alice"].PlatformFee)
}

func TestProcessMilestonePaidIsNoOp(t *testing.T) {
	ds := newMockDataSource()
	m := seedMilestone(ds, "ms_1", "proj_1", 100_000)
	m.Status = model.MilestonePaid

	engine, _, _ := newTestEngine(t, ds)

	result, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	assert.True(t, result.AlreadyPaid)
	assert.Empty(t, result.Dispatched)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	assert.Empty(t, payments)
}

func TestProcessMilestoneRequiresApprovals(t *testing.T) {
	ds := newMockDataSource()
	m := seedMilestone(ds, "ms_1", "proj_1", 100_000)
	m.ClientApproved = false

	engine, _, _ := newTestEngine(t, ds)

	_, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestProcessMilestoneNoHours(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 100_000)

	engine, _, _ := newTestEngine(t, ds)

	_, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestProcessMilestoneSkipsContributorWithoutMethod(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 20, "bob": 20}

	engine, _, _ := newTestEngine(t, ds, &stubAdapter{gatewayType: model.GatewayBank})

	result, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	assert.Len(t, result.Dispatched, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "bob", result.Skipped[0].ContributorID)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	require.Len(t, payments, 1)
	assert.Equal(t, "alice", payments[0].ContributorID)
}

func TestProcessMilestoneSkipsGatewayWithoutCurrency(t *testing.T) {
	ds := newMockDataSource()
	g := seedGateway(ds, model.GatewayBank)
	g.Currencies = []string{"EUR"}
	seedMilestone(ds, "ms_1", "proj_1", 100_000) // milestone settles in USD
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 20}

	engine, _, _ := newTestEngine(t, ds, &stubAdapter{gatewayType: model.GatewayBank})

	result, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	assert.Empty(t, result.Dispatched)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "does not settle USD")

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	assert.Empty(t, payments)
}

func TestProcessMilestoneIdempotentPerContributor(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 40}

	engine, _, _ := newTestEngine(t, ds, &stubAdapter{gatewayType: model.GatewayBank})

	first, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	require.Len(t, first.Dispatched, 1)

	second, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	assert.Empty(t, second.Dispatched)
	assert.Equal(t, first.Dispatched, second.Existing)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	assert.Len(t, payments, 1)
}

func TestProcessMilestoneTransientFailureLeavesPending(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 10}

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		dispatch: func(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error) {
			return nil, gateway.NewTransient("timeout", "provider timed out", nil)
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	result, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	assert.Empty(t, result.Dispatched)
	require.Len(t, result.Failed, 1)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	require.Len(t, payments, 1)
	assert.Equal(t, model.StatusPending, payments[0].Status)
	assert.Equal(t, 1, payments[0].Attempts)
}

func TestProcessMilestonePermanentFailureDemotes(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 10}

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		dispatch: func(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error) {
			return nil, gateway.NewPermanent("account_closed", "destination account closed", nil)
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	result, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	require.Len(t, payments, 1)
	assert.Equal(t, model.StatusFailed, payments[0].Status)
}

func TestDispatchSynchronousSettlementMarksMilestonePaid(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 10}

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		dispatch: func(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error) {
			return &gateway.DispatchResult{ExternalID: "ext_1", Status: model.StatusCompleted}, nil
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	_, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	require.Len(t, payments, 1)
	assert.Equal(t, model.StatusCompleted, payments[0].Status)
	assert.NotNil(t, payments[0].ProcessedAt)

	milestone, _ := ds.GetMilestone(context.Background(), "ms_1")
	assert.Equal(t, model.MilestonePaid, milestone.Status)
	assert.NotNil(t, milestone.PaidDate)
}

func TestReprocessAfterPermanentFailureSettlesMilestone(t *testing.T) {
	ds := newMockDataSource()
	seedGateway(ds, model.GatewayBank)
	seedMilestone(ds, "ms_1", "proj_1", 100_000)
	seedMethod(ds, "alice", model.GatewayBank)
	ds.hours["ms_1"] = map[string]float64{"alice": 10}

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		dispatch: func(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error) {
			return nil, gateway.NewPermanent("account_closed", "destination account closed", nil)
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	first, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	require.Len(t, first.Failed, 1)

	// the contributor fixes their account; the replacement settles synchronously
	adapter.dispatch = func(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error) {
		return &gateway.DispatchResult{ExternalID: "ext_2", Status: model.StatusCompleted}, nil
	}

	second, err := engine.ProcessMilestone(context.Background(), "ms_1")
	require.NoError(t, err)
	require.Len(t, second.Dispatched, 1)

	payments, _ := ds.GetPaymentsByMilestone(context.Background(), "ms_1")
	require.Len(t, payments, 2)

	// the superseded failed row must not hold the milestone open
	milestone, _ := ds.GetMilestone(context.Background(), "ms_1")
	assert.Equal(t, model.MilestonePaid, milestone.Status)
	assert.NotNil(t, milestone.PaidDate)

	// and a settled milestone never enters the overdue ladder
	sweep, err := engine.CheckOverdueMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sweep.Examined)
	assert.Zero(t, sweep.Warned)
}
