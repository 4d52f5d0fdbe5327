package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOpenDispute(t *testing.T) {
	valid := OpenDisputeRequest{
		PaymentID:   "pay_1",
		InitiatorID: "client_1",
		DisputeType: "quality",
		Reason:      "deliverable rejected",
	}
	assert.NoError(t, valid.ValidateOpenDispute())

	noTarget := valid
	noTarget.PaymentID = ""
	noTarget.MilestoneID = ""
	assert.Error(t, noTarget.ValidateOpenDispute())

	badType := valid
	badType.DisputeType = "vibes"
	assert.Error(t, badType.ValidateOpenDispute())

	noReason := valid
	noReason.Reason = ""
	assert.Error(t, noReason.ValidateOpenDispute())
}

func TestValidateResolveDispute(t *testing.T) {
	valid := ResolveDisputeRequest{
		ResolverID: "admin_1",
		Outcome:    "favor_client",
	}
	assert.NoError(t, valid.ValidateResolveDispute())

	badOutcome := valid
	badOutcome.Outcome = "split_the_baby"
	assert.Error(t, badOutcome.ValidateResolveDispute())

	noResolver := valid
	noResolver.ResolverID = ""
	assert.Error(t, noResolver.ValidateResolveDispute())
}

func TestToDispute(t *testing.T) {
	r := OpenDisputeRequest{
		PaymentID:   "pay_1",
		InitiatorID: "client_1",
		DisputeType: "chargeback",
		Amount:      5000,
		Reason:      "card reversed",
	}
	d := r.ToDispute()
	assert.Equal(t, "pay_1", d.PaymentID)
	assert.Equal(t, int64(5000), d.DisputedAmount)
	assert.Equal(t, "chargeback", d.DisputeType)
}
