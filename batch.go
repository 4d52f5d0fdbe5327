package payments

import (
	"context"
	"sync"

	"github.com/nexusworks/payments/model"
)

// BatchFailure records one payment that could not be dispatched in a batch.
type BatchFailure struct {
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

// BatchResult summarizes a DispatchBatch call.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// DispatchBatch dispatches a set of pending payments, fanning out across
// gateways while keeping each gateway's payments serial to respect provider
// rate limits. One payment's failure never aborts the rest of the batch.
func (e *Engine) DispatchBatch(ctx context.Context, batch []*model.Payment) *BatchResult {
	groups := make(map[string][]*model.Payment)
	for _, payment := range batch {
		groups[payment.GatewayType] = append(groups[payment.GatewayType], payment)
	}

	result := &BatchResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		go func(group []*model.Payment) {
			defer wg.Done()
			for _, payment := range group {
				err := e.dispatchPayment(ctx, payment)
				mu.Lock()
				if err != nil {
					result.Failed = append(result.Failed, BatchFailure{
						PaymentID: payment.PaymentID,
						Reason:    err.Error(),
					})
				} else {
					result.Succeeded = append(result.Succeeded, payment.PaymentID)
				}
				mu.Unlock()
			}
		}(group)
	}
	wg.Wait()
	return result
}
