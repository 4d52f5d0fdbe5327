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

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/gateway"
	"github.com/nexusworks/payments/model"
	"github.com/sirupsen/logrus"
)

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Examined   int `json:"examined"`
	Corrected  int `json:"corrected"`
	Mismatches int `json:"mismatches"`
	Skipped    int `json:"skipped"`
}

// SweepReconciliation queries the gateway for every payment that has sat in
// pending or processing beyond the grace window and corrects local state to
// the provider's answer. Corrections flow through the same transition path
// as webhooks, so a webhook landing mid-sweep cannot double-apply.
//
// A provider answer that would move a payment backward from completed is
// never applied. It is recorded as a mismatch and a reconciliation dispute
// is opened for a human to untangle.
func (e *Engine) SweepReconciliation(ctx context.Context) (*SweepResult, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	cutoff := e.now().Add(-time.Duration(conf.Reconciliation.GraceWindowMins) * time.Minute)
	stale, err := e.datasource.GetStalePayments(ctx,
		[]string{model.StatusPending, model.StatusProcessing}, cutoff, conf.Reconciliation.BatchSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, payment := range stale {
		result.Examined++
		adapter, err := e.gateways.Adapter(payment.GatewayType)
		if err != nil {
			logrus.WithError(err).WithField("payment_id", payment.PaymentID).Error("no adapter for stale payment")
			result.Skipped++
			continue
		}
		providerStatus, err := adapter.QueryStatus(ctx, payment.ExternalID)
		if err != nil {
			if gateway.IsTransient(err) {
				result.Skipped++
				continue
			}
			e.logEntry(ctx, payment.PaymentID, model.LogError, model.LevelError,
				fmt.Sprintf("reconciliation status query failed: %s", err.Error()))
			result.Skipped++
			continue
		}
		if providerStatus == payment.Status {
			continue
		}

		applied, err := e.applyTransition(ctx, payment, providerStatus, OriginReconciliation)
		if err != nil {
			if IsInvalidTransition(err) {
				if mmErr := e.reportMismatch(ctx, payment, providerStatus); mmErr != nil {
					return result, mmErr
				}
				result.Mismatches++
				continue
			}
			return result, err
		}
		if applied {
			result.Corrected++
		}
	}
	return result, nil
}

// reportMismatch handles provider truth that contradicts a settled local
// record. The local status is left alone; a reconciliation_mismatch dispute
// is opened unless one is already open for the payment.
func (e *Engine) reportMismatch(ctx context.Context, payment *model.Payment, providerStatus string) error {
	e.logEntry(ctx, payment.PaymentID, model.LogError, model.LevelError,
		fmt.Sprintf("provider reports %s but local record is %s; flagged for review", providerStatus, payment.Status))

	open, err := e.datasource.HasOpenDisputeForPayment(ctx, payment.PaymentID, model.DisputeReconciliationMismatch)
	if err != nil {
		return err
	}
	if open {
		return nil
	}
	dispute := &model.PaymentDispute{
		PaymentID:      payment.PaymentID,
		MilestoneID:    payment.MilestoneID,
		DisputeType:    model.DisputeReconciliationMismatch,
		Status:         model.DisputeOpened,
		InitiatorID:    "system",
		DisputedAmount: payment.Amount,
		Reason: fmt.Sprintf("gateway %s reports status %s for a payment recorded as %s",
			payment.GatewayType, providerStatus, payment.Status),
		CreatedAt: e.now(),
	}
	if _, err := e.datasource.RecordDispute(ctx, dispute); err != nil {
		return err
	}
	e.logEntry(ctx, payment.PaymentID, model.LogDisputeOpened, model.LevelWarning,
		"reconciliation mismatch dispute opened")
	if err := e.notifier.Notify(ctx, "operations", "reconciliation mismatch",
		fmt.Sprintf("payment %s: provider says %s, ledger says %s", payment.PaymentID, providerStatus, payment.Status)); err != nil {
		logrus.WithError(err).Warn("mismatch notification failed")
	}
	return nil
}
