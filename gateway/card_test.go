package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/model"
)

func testPayment() *model.Payment {
	return &model.Payment{
		PaymentID:   model.GenerateUUIDWithSuffix("pay"),
		GatewayType: model.GatewayCard,
		Amount:      10000,
		PlatformFee: 1000,
		GatewayFee:  320,
		NetAmount:   8680,
		Currency:    "USD",
		MethodID:    "dst_123",
		Status:      model.StatusPending,
	}
}

func newTestCardAdapter() *CardAdapter {
	return NewCardAdapter(config.GatewayConfig{
		Type:          model.GatewayCard,
		Endpoint:      "https://cards.test",
		APIKey:        "sk_test",
		WebhookSecret: "whsec_test",
	})
}

func TestCardDispatchSuccess(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://cards.test/v1/payouts",
		httpmock.NewStringResponder(200, `{"id":"po_1","status":"pending"}`))

	res, err := newTestCardAdapter().Dispatch(context.Background(), testPayment())
	assert.NoError(t, err)
	assert.Equal(t, "po_1", res.ExternalID)
	assert.Equal(t, model.StatusProcessing, res.Status)
}

func TestCardDispatchServerErrorIsTransient(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://cards.test/v1/payouts",
		httpmock.NewStringResponder(503, `{"error":"unavailable"}`))

	_, err := newTestCardAdapter().Dispatch(context.Background(), testPayment())
	assert.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}

func TestCardDispatchValidationErrorIsPermanent(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://cards.test/v1/payouts",
		httpmock.NewStringResponder(422, `{"error":"destination unknown"}`))

	_, err := newTestCardAdapter().Dispatch(context.Background(), testPayment())
	assert.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestCardQueryStatusMapsToCanonical(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://cards.test/v1/payouts/po_1",
		httpmock.NewStringResponder(200, `{"id":"po_1","status":"succeeded"}`))

	status, err := newTestCardAdapter().QueryStatus(context.Background(), "po_1")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, status)
}

func TestCardUnmappedStatusIsPermanent(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://cards.test/v1/payouts/po_1",
		httpmock.NewStringResponder(200, `{"id":"po_1","status":"quantum"}`))

	_, err := newTestCardAdapter().QueryStatus(context.Background(), "po_1")
	assert.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestCardWebhookSignature(t *testing.T) {
	a := newTestCardAdapter()
	body := []byte(`{"data":{"id":"po_1","status":"succeeded"}}`)

	header := http.Header{}
	header.Set("X-Card-Signature", model.SignPayload("whsec_test", body))
	assert.NoError(t, a.VerifyWebhook(header, body))

	header.Set("X-Card-Signature", model.SignPayload("wrong", body))
	assert.Error(t, a.VerifyWebhook(header, body))

	assert.Error(t, a.VerifyWebhook(http.Header{}, body))
}

func TestCardParseEvent(t *testing.T) {
	evt, err := newTestCardAdapter().ParseEvent([]byte(`{"data":{"id":"po_1","status":"refunded"}}`))
	assert.NoError(t, err)
	assert.Equal(t, "po_1", evt.ExternalID)
	assert.Equal(t, model.StatusRefunded, evt.Status)

	_, err = newTestCardAdapter().ParseEvent([]byte(`not-json`))
	assert.Error(t, err)
}
