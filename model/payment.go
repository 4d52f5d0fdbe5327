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
	"encoding/json"
	"fmt"
	"time"
)

// Canonical payment lifecycle statuses. Every provider-specific status is
// translated into one of these by the owning gateway adapter before it reaches
// the rest of the system.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusDisputed   = "disputed"
	StatusRefunded   = "refunded"
	StatusCancelled  = "cancelled"
)

// Payment represents one contributor's share of a milestone payout. Amounts are
// stored in minor units (cents). Amount, PlatformFee, GatewayFee and NetAmount
// are fixed at creation; only Status, ExternalID, GatewayRef and ProcessedAt
// change afterwards.
type Payment struct {
	ID            int64                  `json:"-"`
	PaymentID     string                 `json:"payment_id"`
	MilestoneID   string                 `json:"milestone_id"`
	ContributorID string                 `json:"contributor_id"`
	MethodID      string                 `json:"method_id"`
	GatewayType   string                 `json:"gateway_type"`
	Amount        int64                  `json:"amount"`
	PlatformFee   int64                  `json:"platform_fee"`
	GatewayFee    int64                  `json:"gateway_fee"`
	NetAmount     int64                  `json:"net_amount"`
	Currency      string                 `json:"currency"`
	Status        string                 `json:"status"`
	GatewayRef    string                 `json:"gateway_ref,omitempty"`
	ExternalID    string                 `json:"external_id,omitempty"`
	Attempts      int                    `json:"attempts"`
	ExpectedDate  time.Time              `json:"expected_date,omitempty"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}

// ValidateAmounts checks the fee-sum invariant. It holds by construction when
// payments are created through ComputeFees, and is re-asserted before any
// payment row is persisted.
func (p *Payment) ValidateAmounts() error {
	if p.Amount != p.PlatformFee+p.GatewayFee+p.NetAmount {
		return fmt.Errorf("payment %s amount %d does not equal platform_fee %d + gateway_fee %d + net_amount %d",
			p.PaymentID, p.Amount, p.PlatformFee, p.GatewayFee, p.NetAmount)
	}
	return nil
}

// IsSettled reports whether the payment has reached a state that no longer
// counts against its milestone being fully paid.
func (p *Payment) IsSettled() bool {
	return p.Status == StatusCompleted
}

func (p *Payment) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// PaymentMethod is a contributor's registered payout destination. The default
// verified method decides which gateway adapter handles that contributor's
// share of a milestone.
type PaymentMethod struct {
	ID            int64     `json:"-"`
	MethodID      string    `json:"method_id"`
	ContributorID string    `json:"contributor_id"`
	GatewayType   string    `json:"gateway_type"`
	Verified      bool      `json:"verified"`
	IsDefault     bool      `json:"is_default"`
	TotalPaid     int64     `json:"total_paid"`
	PaymentCount  int64     `json:"payment_count"`
	CreatedAt     time.Time `json:"created_at"`
}
