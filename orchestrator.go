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
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/gateway"
	"github.com/nexusworks/payments/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SkippedContributor records a contributor who could not be paid during
// milestone processing, with the reason.
type SkippedContributor struct {
	ContributorID string `json:"contributor_id"`
	Reason        string `json:"reason"`
}

// ProcessResult summarizes one ProcessMilestone call.
type ProcessResult struct {
	MilestoneID string               `json:"milestone_id"`
	Dispatched  []string             `json:"dispatched"`
	Existing    []string             `json:"existing"`
	Skipped     []SkippedContributor `json:"skipped"`
	Failed      []SkippedContributor `json:"failed"`
	AlreadyPaid bool                 `json:"already_paid"`
}

// ProcessMilestone splits the milestone amount across its contributors by
// logged hours and dispatches one payment per contributor. Contributors who
// cannot be paid are skipped and reported; they never block the rest of the
// batch. Re-invoking on a milestone with live payments is a no-op for those
// contributors.
func (e *Engine) ProcessMilestone(ctx context.Context, milestoneID string) (*ProcessResult, error) {
	milestone, err := e.datasource.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	result := &ProcessResult{MilestoneID: milestoneID}
	if milestone.Status == model.MilestonePaid {
		result.AlreadyPaid = true
		return result, nil
	}
	if !milestone.Payable() {
		return nil, newValidationError(ReasonNotReady,
			"milestone %s is %s and cannot be processed before completion and dual approval", milestoneID, milestone.Status)
	}

	hours, err := e.datasource.GetContributorHours(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	shares, err := model.SplitByHours(milestone.Amount, hours)
	if err != nil {
		return nil, newValidationError(ReasonNoContributors,
			"milestone %s has no logged contributor hours: %s", milestoneID, err.Error())
	}
	platformRate, err := e.platformFeePercent()
	if err != nil {
		return nil, err
	}

	contributors := make([]string, 0, len(shares))
	for id := range shares {
		contributors = append(contributors, id)
	}
	sort.Strings(contributors)

	for _, contributorID := range contributors {
		share := shares[contributorID]
		if share <= 0 {
			result.Skipped = append(result.Skipped, SkippedContributor{
				ContributorID: contributorID,
				Reason:        "share rounds to zero",
			})
			continue
		}
		existing, err := e.datasource.GetActivePaymentForContributor(ctx, milestoneID, contributorID)
		if err != nil && err != sql.ErrNoRows {
			return result, errors.Wrapf(err, "checking existing payment for contributor %s", contributorID)
		}
		if existing != nil {
			result.Existing = append(result.Existing, existing.PaymentID)
			continue
		}

		payment, reason, err := e.buildPayment(ctx, milestone, contributorID, share, platformRate)
		if err != nil {
			return result, err
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedContributor{ContributorID: contributorID, Reason: reason})
			continue
		}
		payment, err = e.datasource.RecordPayment(ctx, payment)
		if err != nil {
			return result, errors.Wrapf(err, "recording payment for contributor %s", contributorID)
		}
		if err := e.dispatchPayment(ctx, payment); err != nil {
			result.Failed = append(result.Failed, SkippedContributor{ContributorID: contributorID, Reason: err.Error()})
			continue
		}
		result.Dispatched = append(result.Dispatched, payment.PaymentID)
	}
	return result, nil
}

// buildPayment assembles a pending payment for one contributor share. A
// non-empty reason string means the contributor must be skipped rather than
// the whole milestone failed.
func (e *Engine) buildPayment(ctx context.Context, milestone *model.Milestone, contributorID string, share int64, platformRate decimal.Decimal) (*model.Payment, string, error) {
	method, err := e.datasource.GetDefaultPaymentMethod(ctx, contributorID)
	if err == sql.ErrNoRows {
		return nil, "no verified default payment method", nil
	}
	if err != nil {
		return nil, "", err
	}
	gw, err := e.datasource.GetGatewayByType(ctx, method.GatewayType)
	if err != nil {
		return nil, "", errors.Wrapf(err, "loading gateway %s", method.GatewayType)
	}
	if !gw.SupportsCurrency(milestone.Currency) {
		return nil, fmt.Sprintf("gateway %s does not settle %s", method.GatewayType, milestone.Currency), nil
	}
	fees, err := model.ComputeFees(share, platformRate, gw)
	if err != nil {
		return nil, err.Error(), nil
	}
	payment := &model.Payment{
		MilestoneID:   milestone.MilestoneID,
		ContributorID: contributorID,
		MethodID:      method.MethodID,
		GatewayType:   method.GatewayType,
		Amount:        share,
		PlatformFee:   fees.Platform,
		GatewayFee:    fees.Gateway,
		NetAmount:     fees.Net,
		Currency:      milestone.Currency,
		Status:        model.StatusPending,
		ExpectedDate:  e.now().Add(72 * time.Hour),
		CreatedAt:     e.now(),
	}
	return payment, "", nil
}

// dispatchPayment hands a pending payment to its gateway adapter and records
// the outcome. Transient gateway failures leave the payment pending for the
// retry sweep; permanent failures demote it to failed.
func (e *Engine) dispatchPayment(ctx context.Context, payment *model.Payment) error {
	start := e.now()
	dispatched, err := e.gateways.Dispatch(ctx, payment)
	latency := time.Since(start).Milliseconds()
	if metricErr := e.datasource.UpdateGatewayMetrics(ctx, payment.GatewayType, err == nil, latency); metricErr != nil {
		logrus.WithError(metricErr).WithField("gateway", payment.GatewayType).Warn("failed to update gateway metrics")
	}

	switch {
	case err == nil:
		applied, updateErr := e.datasource.UpdatePaymentStatus(ctx, payment.PaymentID, model.StatusProcessing,
			[]string{model.StatusPending}, dispatched.ExternalID, nil)
		if updateErr != nil {
			return updateErr
		}
		if applied {
			payment.Status = model.StatusProcessing
			payment.ExternalID = dispatched.ExternalID
			e.logEntry(ctx, payment.PaymentID, model.LogInitiated, model.LevelInfo,
				fmt.Sprintf("dispatched to %s as %s", payment.GatewayType, dispatched.ExternalID))
		}
		// Some providers settle synchronously and report completed in
		// the dispatch response.
		if dispatched.Status == model.StatusCompleted {
			if _, applyErr := e.applyTransition(ctx, payment, model.StatusCompleted, OriginOrchestrator); applyErr != nil {
				return applyErr
			}
		}
		return nil
	case gateway.IsTransient(err):
		if _, incErr := e.datasource.IncrementPaymentAttempts(ctx, payment.PaymentID); incErr != nil {
			logrus.WithError(incErr).WithField("payment_id", payment.PaymentID).Warn("failed to increment payment attempts")
		}
		e.logEntry(ctx, payment.PaymentID, model.LogError, model.LevelWarning,
			fmt.Sprintf("transient dispatch failure, will retry: %s", err.Error()))
		return err
	default:
		if _, updateErr := e.datasource.UpdatePaymentStatus(ctx, payment.PaymentID, model.StatusFailed,
			[]string{model.StatusPending}, "", nil); updateErr != nil {
			return updateErr
		}
		payment.Status = model.StatusFailed
		e.logEntry(ctx, payment.PaymentID, model.LogFailed, model.LevelError,
			fmt.Sprintf("permanent dispatch failure: %s", err.Error()))
		return err
	}
}

// DispatchQueued is the handler behind the dispatch queue. It reloads the
// payment and dispatches it if it is still waiting on a provider handoff.
func (e *Engine) DispatchQueued(ctx context.Context, paymentID string) error {
	payment, err := e.datasource.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != model.StatusPending || payment.ExternalID != "" {
		logrus.WithFields(logrus.Fields{
			"payment_id": paymentID,
			"status":     payment.Status,
		}).Info("queued dispatch skipped, payment no longer pending")
		return nil
	}
	return e.dispatchPayment(ctx, payment)
}

func (e *Engine) platformFeePercent() (decimal.Decimal, error) {
	conf, err := config.Fetch()
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := decimal.NewFromString(conf.Orchestrator.PlatformFeePercent)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "invalid platform fee percent in configuration")
	}
	return rate, nil
}
