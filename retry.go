package payments

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/model"
	"github.com/sirupsen/logrus"
)

// RetryResult summarizes one retry pass.
type RetryResult struct {
	Examined  int `json:"examined"`
	Scheduled int `json:"scheduled"`
	Demoted   int `json:"demoted"`
}

// RetryPendingPayments re-schedules payments that never reached their
// provider. Each payment gets an exponentially growing delay keyed to its
// attempt count; a payment that exhausts the attempt budget is demoted to
// failed and operations is notified.
func (e *Engine) RetryPendingPayments(ctx context.Context) (*RetryResult, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	initial := time.Duration(conf.Retry.InitialIntervalSec) * time.Second
	cutoff := e.now().Add(-initial)
	pending, err := e.datasource.GetRetryablePayments(ctx, cutoff, conf.Reconciliation.BatchSize)
	if err != nil {
		return nil, err
	}

	result := &RetryResult{}
	for _, payment := range pending {
		result.Examined++
		if payment.Attempts >= conf.Retry.MaxAttempts {
			applied, err := e.datasource.UpdatePaymentStatus(ctx, payment.PaymentID, model.StatusFailed,
				[]string{model.StatusPending}, "", nil)
			if err != nil {
				return result, err
			}
			if applied {
				e.logEntry(ctx, payment.PaymentID, model.LogFailed, model.LevelError,
					fmt.Sprintf("retry budget exhausted after %d attempts", payment.Attempts))
				if err := e.notifier.Notify(ctx, "operations", "payment dispatch abandoned",
					fmt.Sprintf("payment %s failed after %d dispatch attempts", payment.PaymentID, payment.Attempts)); err != nil {
					logrus.WithError(err).Warn("retry exhaustion notification failed")
				}
				result.Demoted++
			}
			continue
		}
		delay := retryDelay(initial, payment.Attempts)
		if err := e.queue.EnqueueDispatch(ctx, payment.PaymentID, delay); err != nil {
			return result, err
		}
		result.Scheduled++
	}
	return result, nil
}

// retryDelay returns the backoff delay for the given attempt count, without
// jitter so the schedule is deterministic and testable.
func retryDelay(initial time.Duration, attempts int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.RandomizationFactor = 0
	policy.MaxInterval = 1 * time.Hour
	policy.MaxElapsedTime = 0
	// the constructor snapshots its defaults; Reset picks up the fields set
	// above
	policy.Reset()
	delay := policy.NextBackOff()
	for i := 0; i < attempts; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}
