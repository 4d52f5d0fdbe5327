package payments

import (
	"context"
	"testing"
	"time"

	"github.com/nexusworks/payments/gateway"
	"github.com/nexusworks/payments/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStalePayment(ds *mockDataSource, paymentID, externalID, status string) *model.Payment {
	p := seedProcessingPayment(ds, paymentID, externalID)
	p.Status = status
	p.CreatedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) // two hours before the test clock
	return p
}

func TestSweepCorrectsStaleProcessingPayment(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 10_000)
	seedMethod(ds, "alice", model.GatewayBank)
	seedStalePayment(ds, "pay_1", "ext_1", model.StatusProcessing)

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		queryStatus: func(ctx context.Context, externalID string) (string, error) {
			return model.StatusCompleted, nil
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	result, err := engine.SweepReconciliation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.Corrected)
	assert.Zero(t, result.Mismatches)

	p, _ := ds.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, model.StatusCompleted, p.Status)

	entries, _ := ds.GetLogEntries(context.Background(), "pay_1")
	reconciled := 0
	for _, entry := range entries {
		if entry.LogType == model.LogReconciled {
			reconciled++
		}
	}
	assert.Equal(t, 1, reconciled)
}

func TestSweepAgreementTouchesNothing(t *testing.T) {
	ds := newMockDataSource()
	seedStalePayment(ds, "pay_1", "ext_1", model.StatusProcessing)

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		queryStatus: func(ctx context.Context, externalID string) (string, error) {
			return model.StatusProcessing, nil
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	result, err := engine.SweepReconciliation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Zero(t, result.Corrected)

	entries, _ := ds.GetLogEntries(context.Background(), "pay_1")
	assert.Empty(t, entries)
}

func TestSweepSkipsRecentPayments(t *testing.T) {
	ds := newMockDataSource()
	p := seedProcessingPayment(ds, "pay_1", "ext_1")
	p.CreatedAt = time.Date(2025, 6, 1, 11, 50, 0, 0, time.UTC) // inside the grace window

	adapter := &stubAdapter{gatewayType: model.GatewayBank}
	engine, _, _ := newTestEngine(t, ds, adapter)

	result, err := engine.SweepReconciliation(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Examined)
}

func TestSweepTransientQueryFailureSkips(t *testing.T) {
	ds := newMockDataSource()
	seedStalePayment(ds, "pay_1", "ext_1", model.StatusProcessing)

	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		queryStatus: func(ctx context.Context, externalID string) (string, error) {
			return "", gateway.NewTransient("timeout", "provider timed out", nil)
		},
	}
	engine, _, _ := newTestEngine(t, ds, adapter)

	result, err := engine.SweepReconciliation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)

	p, _ := ds.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, model.StatusProcessing, p.Status)
}

func TestSweepMismatchOpensDispute(t *testing.T) {
	ds := newMockDataSource()
	seedMilestone(ds, "ms_1", "proj_1", 10_000)
	seedStalePayment(ds, "pay_1", "ext_1", model.StatusProcessing)

	// refunded is not reachable from processing, so the provider answer
	// contradicts local history
	adapter := &stubAdapter{
		gatewayType: model.GatewayBank,
		queryStatus: func(ctx context.Context, externalID string) (string, error) {
			return model.StatusRefunded, nil
		},
	}
	engine, notifier, _ := newTestEngine(t, ds, adapter)

	result, err := engine.SweepReconciliation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Mismatches)

	p, _ := ds.GetPayment(context.Background(), "pay_1")
	assert.Equal(t, model.StatusProcessing, p.Status)

	open, _ := ds.HasOpenDisputeForPayment(context.Background(), "pay_1", model.DisputeReconciliationMismatch)
	assert.True(t, open)
	assert.NotZero(t, notifier.count())

	// a second sweep must not open a second dispute
	result, err = engine.SweepReconciliation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Mismatches)
	assert.Len(t, ds.disputes, 1)
}
