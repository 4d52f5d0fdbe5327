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

	"github.com/nexusworks/payments/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// outcomeStatus maps a resolution outcome to the terminal dispute status.
var outcomeStatus = map[string]string{
	model.OutcomeFavorClient:      model.DisputeResolvedClient,
	model.OutcomeFavorContributor: model.DisputeResolvedDev,
	model.OutcomePartial:          model.DisputeResolvedPartial,
}

// OpenDispute records a new dispute. When it targets a completed payment the
// payment is moved to disputed, freezing it out of further settlement until
// resolution.
func (e *Engine) OpenDispute(ctx context.Context, dispute *model.PaymentDispute) (*model.PaymentDispute, error) {
	dispute.Status = model.DisputeOpened
	dispute.CreatedAt = e.now()

	if dispute.PaymentID != "" {
		payment, err := e.datasource.GetPayment(ctx, dispute.PaymentID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading disputed payment %s", dispute.PaymentID)
		}
		if dispute.MilestoneID == "" {
			dispute.MilestoneID = payment.MilestoneID
		}
		if dispute.DisputedAmount == 0 {
			dispute.DisputedAmount = payment.Amount
		}
		if payment.Status == model.StatusCompleted {
			if _, err := e.applyTransition(ctx, payment, model.StatusDisputed, OriginDispute); err != nil {
				return nil, err
			}
		}
	}

	recorded, err := e.datasource.RecordDispute(ctx, dispute)
	if err != nil {
		return nil, err
	}
	if recorded.PaymentID != "" {
		e.logEntry(ctx, recorded.PaymentID, model.LogDisputeOpened, model.LevelWarning,
			fmt.Sprintf("%s dispute %s opened by %s", recorded.DisputeType, recorded.DisputeID, recorded.InitiatorID))
	}
	if recorded.RespondentID != "" {
		if err := e.notifier.Notify(ctx, recorded.RespondentID, "dispute opened",
			fmt.Sprintf("a %s dispute has been opened against you", recorded.DisputeType)); err != nil {
			logrus.WithError(err).Warn("dispute opened notification failed")
		}
	}
	return recorded, nil
}

// ResolveDispute closes a dispute with an outcome. Only configured admins may
// resolve. An outcome in the client's favor (fully or partially) on a dispute
// tied to a settled payment triggers a refund through the payment's gateway;
// this is the only path by which a payment moves to refunded.
func (e *Engine) ResolveDispute(ctx context.Context, disputeID, resolverID, outcome, resolution string, refundAmount int64) (*model.PaymentDispute, error) {
	if !e.auth.CanResolveDispute(ctx, resolverID) {
		return nil, ErrUnauthorized
	}
	dispute, err := e.datasource.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.Open() {
		return nil, newValidationError(ReasonAlreadyResolved, "dispute %s is already %s", disputeID, dispute.Status)
	}
	targetStatus, ok := outcomeStatus[outcome]
	if !ok {
		return nil, newValidationError(ReasonBadOutcome, "unknown resolution outcome %q", outcome)
	}

	if dispute.PaymentID != "" && (outcome == model.OutcomeFavorClient || outcome == model.OutcomePartial) {
		if err := e.refundDisputedPayment(ctx, dispute, outcome, refundAmount); err != nil {
			return nil, err
		}
	}

	resolvedAt := e.now()
	applied, err := e.datasource.ResolveDispute(ctx, disputeID, targetStatus, outcome, resolution, resolverID, resolvedAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, newValidationError(ReasonAlreadyResolved, "dispute %s was resolved concurrently", disputeID)
	}

	dispute.Status = targetStatus
	dispute.Outcome = outcome
	dispute.Resolution = resolution
	dispute.ResolvedBy = resolverID
	dispute.ResolvedAt = &resolvedAt
	if dispute.PaymentID != "" {
		e.logEntry(ctx, dispute.PaymentID, model.LogDisputeResolved, model.LevelInfo,
			fmt.Sprintf("dispute %s resolved %s by %s", disputeID, outcome, resolverID))
	}
	for _, party := range []string{dispute.InitiatorID, dispute.RespondentID} {
		if party == "" || party == "system" {
			continue
		}
		if err := e.notifier.Notify(ctx, party, "dispute resolved",
			fmt.Sprintf("dispute %s was resolved: %s", disputeID, outcome)); err != nil {
			logrus.WithError(err).Warn("dispute resolved notification failed")
		}
	}
	return dispute, nil
}

// refundDisputedPayment pushes a refund instruction to the payment's gateway
// and moves the payment to refunded. Partial refunds require the gateway to
// support them.
func (e *Engine) refundDisputedPayment(ctx context.Context, dispute *model.PaymentDispute, outcome string, refundAmount int64) error {
	payment, err := e.datasource.GetPayment(ctx, dispute.PaymentID)
	if err != nil {
		return err
	}
	switch payment.Status {
	case model.StatusCompleted, model.StatusDisputed:
	case model.StatusRefunded:
		return nil
	default:
		return newValidationError(ReasonAlreadyResolved,
			"payment %s is %s and cannot be refunded", payment.PaymentID, payment.Status)
	}

	amount := refundAmount
	if amount <= 0 || outcome == model.OutcomeFavorClient {
		amount = payment.NetAmount
	}
	gw, err := e.datasource.GetGatewayByType(ctx, payment.GatewayType)
	if err != nil {
		return err
	}
	if !gw.SupportsRefund {
		return newValidationError(ReasonBadOutcome,
			"gateway %s does not support refunds", payment.GatewayType)
	}
	if outcome == model.OutcomePartial && amount < payment.NetAmount && !gw.SupportsPartialRefund {
		return newValidationError(ReasonBadOutcome,
			"gateway %s does not support partial refunds", payment.GatewayType)
	}

	adapter, err := e.gateways.Adapter(payment.GatewayType)
	if err != nil {
		return err
	}
	refund, err := adapter.Refund(ctx, payment, amount)
	if err != nil {
		return errors.Wrapf(err, "refunding payment %s via %s", payment.PaymentID, payment.GatewayType)
	}
	e.logEntry(ctx, payment.PaymentID, model.LogRefundInitiated, model.LevelInfo,
		fmt.Sprintf("refund %s of %d %s initiated", refund.RefundID, amount, payment.Currency))

	if _, err := e.applyTransition(ctx, payment, model.StatusRefunded, OriginDispute); err != nil {
		return err
	}
	return nil
}
