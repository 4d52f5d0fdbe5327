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

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Fees is the exact split of a gross amount. Platform + Gateway + Net always
// equals the gross amount the split was computed from.
type Fees struct {
	Platform int64 `json:"platform_fee"`
	Gateway  int64 `json:"gateway_fee"`
	Net      int64 `json:"net_amount"`
}

// ComputeFees splits a gross amount (minor units) into platform fee, gateway
// fee and net payout. The platform fee is a flat percentage of gross. The
// gateway fee is the provider's percentage plus fixed component, or zero for
// providers that charge the payer side. Decimal arithmetic with half-up
// rounding; the net amount absorbs the remainder so the sum invariant holds
// exactly.
func ComputeFees(amount int64, platformPercent decimal.Decimal, gateway *Gateway) (Fees, error) {
	if amount <= 0 {
		return Fees{}, fmt.Errorf("amount must be positive, got %d", amount)
	}
	if err := gateway.SupportsAmount(amount); err != nil {
		return Fees{}, err
	}

	gross := decimal.NewFromInt(amount)
	platformFee := gross.Mul(platformPercent).Div(oneHundred).Round(0).IntPart()

	var gatewayFee int64
	if !gateway.ChargesPayer {
		gatewayFee = gross.Mul(gateway.FeePercentage).Div(oneHundred).Round(0).IntPart() + gateway.FeeFixed
	}

	net := amount - platformFee - gatewayFee
	if net <= 0 {
		return Fees{}, fmt.Errorf("fees %d exceed gross amount %d on gateway %s", platformFee+gatewayFee, amount, gateway.Type)
	}
	return Fees{Platform: platformFee, Gateway: gatewayFee, Net: net}, nil
}

// SplitByHours distributes a gross amount across contributors in proportion to
// hours worked. The largest share absorbs rounding drift so the shares always
// sum to the full amount. Returns an error when no hours were logged, since a
// zero total would otherwise silently divide away the payout.
func SplitByHours(amount int64, hours map[string]float64) (map[string]int64, error) {
	total := 0.0
	for _, h := range hours {
		if h < 0 {
			return nil, fmt.Errorf("negative hours %f", h)
		}
		total += h
	}
	if total == 0 {
		return nil, fmt.Errorf("no contributor hours recorded")
	}

	gross := decimal.NewFromInt(amount)
	totalDec := decimal.NewFromFloat(total)

	shares := make(map[string]int64, len(hours))
	var assigned int64
	var largest string
	for id, h := range hours {
		share := gross.Mul(decimal.NewFromFloat(h)).Div(totalDec).Round(0).IntPart()
		shares[id] = share
		assigned += share
		if largest == "" || hours[id] > hours[largest] || (hours[id] == hours[largest] && id < largest) {
			largest = id
		}
	}
	// Rounding drift lands on the largest share.
	shares[largest] += amount - assigned
	return shares, nil
}
