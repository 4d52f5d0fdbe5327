/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/nexusworks/payments/model"
	"github.com/sirupsen/logrus"
)

// Transition origins. Every caller of applyTransition identifies itself so
// the transaction log records where a status change came from.
const (
	OriginWebhook        = "webhook"
	OriginReconciliation = "reconciliation"
	OriginDispute        = "dispute"
	OriginOrchestrator   = "orchestrator"
)

// transitionPredecessors lists the statuses a payment may move to a target
// status from. Any edge not listed here is rejected.
var transitionPredecessors = map[string][]string{
	model.StatusProcessing: {model.StatusPending},
	model.StatusCompleted:  {model.StatusPending, model.StatusProcessing},
	model.StatusFailed:     {model.StatusPending, model.StatusProcessing},
	model.StatusCancelled:  {model.StatusPending, model.StatusProcessing},
	model.StatusRefunded:   {model.StatusCompleted, model.StatusDisputed},
	model.StatusDisputed:   {model.StatusCompleted},
}

// logTypeForStatus maps a target status to the transaction log entry type
// recorded when the transition applies.
var logTypeForStatus = map[string]string{
	model.StatusProcessing: model.LogProcessing,
	model.StatusCompleted:  model.LogCompleted,
	model.StatusFailed:     model.LogFailed,
	model.StatusCancelled:  model.LogFailed,
	model.StatusRefunded:   model.LogRefundCompleted,
	model.StatusDisputed:   model.LogDisputeOpened,
}

// applyTransition is the single code path through which every payment status
// change flows. The update is conditional on the payment still being in one
// of the target's predecessor statuses, so concurrent webhook and
// reconciliation deliveries race safely on the database row.
//
// It returns true when the transition was applied, false when it was a
// duplicate or lost a race, and an error when the requested edge is invalid.
func (e *Engine) applyTransition(ctx context.Context, payment *model.Payment, target, origin string) (bool, error) {
	if payment.Status == target {
		e.logEntry(ctx, payment.PaymentID, logTypeForStatus[target], model.LevelInfo,
			fmt.Sprintf("duplicate %s delivery of status %s ignored", origin, target))
		return false, nil
	}

	predecessors, ok := transitionPredecessors[target]
	if !ok {
		return false, &InvalidTransitionError{PaymentID: payment.PaymentID, From: payment.Status, To: target}
	}
	if !contains(predecessors, payment.Status) {
		return false, &InvalidTransitionError{PaymentID: payment.PaymentID, From: payment.Status, To: target}
	}

	var processedAt *time.Time
	if target == model.StatusCompleted {
		now := e.now()
		processedAt = &now
	}
	applied, err := e.datasource.UpdatePaymentStatus(ctx, payment.PaymentID, target, predecessors, "", processedAt)
	if err != nil {
		return false, err
	}
	if !applied {
		// Lost a race. Reload to tell a harmless duplicate apart from a
		// concurrent transition to a different status.
		current, loadErr := e.datasource.GetPayment(ctx, payment.PaymentID)
		if loadErr != nil {
			return false, loadErr
		}
		if current.Status == target {
			e.logEntry(ctx, payment.PaymentID, logTypeForStatus[target], model.LevelInfo,
				fmt.Sprintf("status %s already applied by concurrent %s delivery", target, origin))
			return false, nil
		}
		logrus.WithFields(logrus.Fields{
			"payment_id": payment.PaymentID,
			"target":     target,
			"current":    current.Status,
			"origin":     origin,
		}).Warn("payment transition lost race to concurrent update")
		payment.Status = current.Status
		return false, nil
	}

	payment.Status = target
	if processedAt != nil {
		payment.ProcessedAt = processedAt
	}
	entryType := logTypeForStatus[target]
	if origin == OriginReconciliation {
		entryType = model.LogReconciled
	}
	e.logEntry(ctx, payment.PaymentID, entryType, levelForStatus(target),
		fmt.Sprintf("payment moved to %s via %s", target, origin))

	if target == model.StatusCompleted {
		if err := e.onPaymentCompleted(ctx, payment); err != nil {
			return true, err
		}
	}
	return true, nil
}

// onPaymentCompleted runs the settlement follow-ups for a payment that just
// completed: usage counters on the payment method, and marking the milestone
// paid once every sibling payment has settled.
func (e *Engine) onPaymentCompleted(ctx context.Context, payment *model.Payment) error {
	if payment.MethodID != "" {
		if err := e.datasource.RecordPaymentMethodUsage(ctx, payment.MethodID, payment.NetAmount); err != nil {
			logrus.WithError(err).WithField("method_id", payment.MethodID).Warn("failed to record payment method usage")
		}
	}
	unsettled, err := e.datasource.CountUnsettledPayments(ctx, payment.MilestoneID)
	if err != nil {
		return err
	}
	if unsettled > 0 {
		return nil
	}
	applied, err := e.datasource.MarkMilestonePaid(ctx, payment.MilestoneID, e.now())
	if err != nil {
		return err
	}
	if applied {
		e.logEntry(ctx, payment.PaymentID, model.LogCompleted, model.LevelInfo,
			fmt.Sprintf("milestone %s fully paid", payment.MilestoneID))
		if err := e.notifier.Notify(ctx, payment.ContributorID, "milestone paid",
			fmt.Sprintf("all payments for milestone %s have settled", payment.MilestoneID)); err != nil {
			logrus.WithError(err).Warn("milestone paid notification failed")
		}
	}
	return nil
}

// logEntry appends a transaction log record, logging rather than failing on
// error since the log is advisory alongside the status row.
func (e *Engine) logEntry(ctx context.Context, paymentID, logType, level, message string) {
	entry := model.NewLogEntry(paymentID, logType, level, message)
	if err := e.datasource.RecordLogEntry(ctx, entry); err != nil {
		logrus.WithError(err).WithField("payment_id", paymentID).Error("failed to record transaction log entry")
	}
}

func levelForStatus(target string) string {
	switch target {
	case model.StatusFailed, model.StatusCancelled:
		return model.LevelWarning
	case model.StatusDisputed:
		return model.LevelWarning
	default:
		return model.LevelInfo
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
