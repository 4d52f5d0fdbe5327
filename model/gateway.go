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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway provider families. Each family has one adapter implementation with
// its own status-mapping table.
const (
	GatewayCard   = "card"
	GatewayPayout = "payout"
	GatewayBank   = "bank_transfer"
	GatewayCrypto = "crypto"
)

// Gateway is the stored configuration and rolling health metrics for one
// external payment provider. Read-mostly; metrics are updated after every
// dispatch.
type Gateway struct {
	ID                    int64           `json:"-"`
	GatewayID             string          `json:"gateway_id"`
	Type                  string          `json:"type"`
	Name                  string          `json:"name"`
	FeePercentage         decimal.Decimal `json:"fee_percentage"`
	FeeFixed              int64           `json:"fee_fixed"`
	ChargesPayer          bool            `json:"charges_payer"`
	SupportsRefund        bool            `json:"supports_refund"`
	SupportsPartialRefund bool            `json:"supports_partial_refund"`
	SupportsRecurring     bool            `json:"supports_recurring"`
	SupportsEscrow        bool            `json:"supports_escrow"`
	MinAmount             int64           `json:"min_amount"`
	MaxAmount             int64           `json:"max_amount"`
	Currencies            []string        `json:"currencies"`
	Countries             []string        `json:"countries"`
	SuccessRate           float64         `json:"success_rate"`
	AvgLatencyMs          int64           `json:"avg_latency_ms"`
	CreatedAt             time.Time       `json:"created_at"`
}

// SupportsAmount checks an amount against the provider's configured limits.
// A zero MaxAmount means the provider imposes no upper bound.
func (g *Gateway) SupportsAmount(amount int64) error {
	if amount < g.MinAmount {
		return fmt.Errorf("amount %d below gateway %s minimum %d", amount, g.Type, g.MinAmount)
	}
	if g.MaxAmount > 0 && amount > g.MaxAmount {
		return fmt.Errorf("amount %d above gateway %s maximum %d", amount, g.Type, g.MaxAmount)
	}
	return nil
}

// SupportsCurrency reports whether the provider settles in the given currency.
// An empty list means the provider is currency-agnostic.
func (g *Gateway) SupportsCurrency(currency string) bool {
	if len(g.Currencies) == 0 {
		return true
	}
	for _, c := range g.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}
