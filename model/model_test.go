package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("pay")
	assert.True(t, strings.HasPrefix(id, "pay_"))
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("pay"))
}

func TestSignPayloadRoundTrip(t *testing.T) {
	sig := SignPayload("secret", []byte(`{"id":"txn_1"}`))
	assert.True(t, SecureCompare(sig, SignPayload("secret", []byte(`{"id":"txn_1"}`))))
	assert.False(t, SecureCompare(sig, SignPayload("other", []byte(`{"id":"txn_1"}`))))
}

func TestPaymentValidateAmounts(t *testing.T) {
	p := &Payment{PaymentID: "pay_1", Amount: 1000, PlatformFee: 100, GatewayFee: 59, NetAmount: 841}
	assert.NoError(t, p.ValidateAmounts())

	p.NetAmount = 840
	assert.Error(t, p.ValidateAmounts())
}

func TestMilestonePayable(t *testing.T) {
	m := &Milestone{Status: MilestoneCompleted, ClientApproved: true, SeniorDevApproved: true}
	assert.True(t, m.Payable())

	m.SeniorDevApproved = false
	assert.False(t, m.Payable())

	m.SeniorDevApproved = true
	m.Status = MilestonePaid
	assert.False(t, m.Payable())
}

func TestMilestoneDaysOverdue(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &Milestone{DueDate: due}

	assert.Equal(t, 0, m.DaysOverdue(due.Add(-time.Hour)))
	assert.Equal(t, 0, m.DaysOverdue(due.Add(12*time.Hour)))
	assert.Equal(t, 10, m.DaysOverdue(due.AddDate(0, 0, 10)))
}
