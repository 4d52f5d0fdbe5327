package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/internal/request"
	"github.com/nexusworks/payments/model"
)

// payoutStatusMap covers the payout network's wire vocabulary.
var payoutStatusMap = map[string]string{
	"CREATED":     model.StatusProcessing,
	"PENDING":     model.StatusProcessing,
	"IN_TRANSIT":  model.StatusProcessing,
	"SENT":        model.StatusCompleted,
	"SETTLED":     model.StatusCompleted,
	"RETURNED":    model.StatusFailed,
	"FAILED":      model.StatusFailed,
	"CANCELED":    model.StatusCancelled,
	"CLAWED_BACK": model.StatusRefunded,
}

// PayoutAdapter talks to a payout network (e.g. a mass-payout provider for
// contractor disbursements). Batch-oriented API, API-key header auth.
type PayoutAdapter struct {
	endpoint string
	apiKey   string
	secret   string
}

func NewPayoutAdapter(cfg config.GatewayConfig) *PayoutAdapter {
	return &PayoutAdapter{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, secret: cfg.WebhookSecret}
}

func (a *PayoutAdapter) Type() string {
	return model.GatewayPayout
}

func (a *PayoutAdapter) headers() map[string]string {
	return map[string]string{"X-Api-Key": a.apiKey}
}

type payoutItemResponse struct {
	ItemID string `json:"item_id"`
	State  string `json:"state"`
}

func (a *PayoutAdapter) Dispatch(ctx context.Context, payment *model.Payment) (*DispatchResult, error) {
	payload := map[string]interface{}{
		"sender_item_id": payment.PaymentID,
		"amount":         payment.NetAmount,
		"currency":       payment.Currency,
		"receiver":       payment.MethodID,
	}
	var out payoutItemResponse
	resp, err := request.PostJSON(ctx, a.endpoint+"/payouts/items", a.headers(), payload, &out)
	if err != nil || resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp, err, "payout_dispatch")
	}
	status, err := mapStatus(payoutStatusMap, a.Type(), out.State)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{ExternalID: out.ItemID, Status: status}, nil
}

func (a *PayoutAdapter) Refund(ctx context.Context, payment *model.Payment, amount int64) (*RefundResult, error) {
	payload := map[string]interface{}{
		"item_id": payment.ExternalID,
		"amount":  amount,
	}
	var out payoutItemResponse
	resp, err := request.PostJSON(ctx, a.endpoint+"/payouts/clawbacks", a.headers(), payload, &out)
	if err != nil || resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp, err, "payout_refund")
	}
	status, err := mapStatus(payoutStatusMap, a.Type(), out.State)
	if err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: out.ItemID, Status: status}, nil
}

func (a *PayoutAdapter) QueryStatus(ctx context.Context, externalID string) (string, error) {
	var out payoutItemResponse
	resp, err := request.GetJSON(ctx, fmt.Sprintf("%s/payouts/items/%s", a.endpoint, externalID), a.headers(), &out)
	if err != nil || resp.StatusCode >= 300 {
		return "", classifyHTTP(resp, err, "payout_query")
	}
	return mapStatus(payoutStatusMap, a.Type(), out.State)
}

func (a *PayoutAdapter) VerifyWebhook(header http.Header, body []byte) error {
	sig := header.Get("X-Payout-Signature")
	if sig == "" || !model.SecureCompare(sig, model.SignPayload(a.secret, body)) {
		return NewPermanent("bad_signature", "payout webhook signature mismatch", nil)
	}
	return nil
}

type payoutWebhookEvent struct {
	Resource struct {
		ItemID string `json:"item_id"`
		State  string `json:"state"`
	} `json:"resource"`
}

func (a *PayoutAdapter) ParseEvent(body []byte) (*Event, error) {
	var evt payoutWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, NewPermanent("bad_payload", "payout webhook payload is not valid JSON", err)
	}
	status, err := mapStatus(payoutStatusMap, a.Type(), evt.Resource.State)
	if err != nil {
		return nil, err
	}
	return &Event{ExternalID: evt.Resource.ItemID, Status: status, Raw: body}, nil
}
