package model

import "time"

// Dispute statuses.
const (
	DisputeOpened            = "opened"
	DisputeUnderReview       = "under_review"
	DisputeEvidenceRequested = "evidence_requested"
	DisputeMediation         = "mediation"
	DisputeResolvedClient    = "resolved_favor_client"
	DisputeResolvedDev       = "resolved_favor_contributor"
	DisputeResolvedPartial   = "resolved_partial"
	DisputeClosed            = "closed"
	DisputeEscalated         = "escalated"
)

// Dispute types.
const (
	DisputePaymentDelay           = "payment_delay"
	DisputeQuality                = "quality"
	DisputeChargeback             = "chargeback"
	DisputeReconciliationMismatch = "reconciliation_mismatch"
)

// Resolution outcomes accepted by dispute resolution.
const (
	OutcomeFavorClient      = "favor_client"
	OutcomeFavorContributor = "favor_contributor"
	OutcomePartial          = "partial"
)

// PaymentDispute tracks a contested payment from opening through resolution.
// Disputes opened by the escalation monitor carry a milestone id and no
// payment id; disputes raised against a specific payment carry both.
type PaymentDispute struct {
	ID             int64      `json:"-"`
	DisputeID      string     `json:"dispute_id"`
	PaymentID      string     `json:"payment_id,omitempty"`
	MilestoneID    string     `json:"milestone_id,omitempty"`
	InitiatorID    string     `json:"initiator_id"`
	RespondentID   string     `json:"respondent_id,omitempty"`
	DisputeType    string     `json:"dispute_type"`
	Status         string     `json:"status"`
	DisputedAmount int64      `json:"disputed_amount"`
	Reason         string     `json:"reason"`
	Outcome        string     `json:"outcome,omitempty"`
	Resolution     string     `json:"resolution,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Open reports whether the dispute still needs attention.
func (d *PaymentDispute) Open() bool {
	switch d.Status {
	case DisputeResolvedClient, DisputeResolvedDev, DisputeResolvedPartial, DisputeClosed:
		return false
	}
	return true
}
