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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nexusworks/payments/model"
)

// OpenDisputeRequest is the body of POST /disputes.
type OpenDisputeRequest struct {
	PaymentID    string `json:"payment_id"`
	MilestoneID  string `json:"milestone_id"`
	InitiatorID  string `json:"initiator_id"`
	RespondentID string `json:"respondent_id"`
	DisputeType  string `json:"dispute_type"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}

func paymentOrMilestoneValidation(r *OpenDisputeRequest) validation.RuleFunc {
	return func(value interface{}) error {
		if r.PaymentID == "" && r.MilestoneID == "" {
			return errors.New("either payment_id or milestone_id is required")
		}
		return nil
	}
}

func (r *OpenDisputeRequest) ValidateOpenDispute() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.InitiatorID, validation.Required),
		validation.Field(&r.DisputeType, validation.Required,
			validation.In(model.DisputePaymentDelay, model.DisputeQuality, model.DisputeChargeback)),
		validation.Field(&r.Reason, validation.Required),
		validation.Field(&r.PaymentID, validation.By(paymentOrMilestoneValidation(r))),
	)
}

// ToDispute converts the request to a domain dispute.
func (r *OpenDisputeRequest) ToDispute() *model.PaymentDispute {
	return &model.PaymentDispute{
		PaymentID:      r.PaymentID,
		MilestoneID:    r.MilestoneID,
		InitiatorID:    r.InitiatorID,
		RespondentID:   r.RespondentID,
		DisputeType:    r.DisputeType,
		DisputedAmount: r.Amount,
		Reason:         r.Reason,
	}
}

// ResolveDisputeRequest is the body of POST /disputes/:id/resolve.
type ResolveDisputeRequest struct {
	ResolverID   string `json:"resolver_id"`
	Outcome      string `json:"outcome"`
	Resolution   string `json:"resolution"`
	RefundAmount int64  `json:"refund_amount"`
}

func (r *ResolveDisputeRequest) ValidateResolveDispute() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ResolverID, validation.Required),
		validation.Field(&r.Outcome, validation.Required,
			validation.In(model.OutcomeFavorClient, model.OutcomeFavorContributor, model.OutcomePartial)),
		validation.Field(&r.RefundAmount, validation.Min(0)),
	)
}
