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

// bankStatusMap covers the bank transfer rail's wire vocabulary. Bank rails
// have no refund primitive; returns surface as a failed transfer instead.
var bankStatusMap = map[string]string{
	"accepted":  model.StatusProcessing,
	"submitted": model.StatusProcessing,
	"settled":   model.StatusCompleted,
	"rejected":  model.StatusFailed,
	"returned":  model.StatusFailed,
	"cancelled": model.StatusCancelled,
}

// BankAdapter talks to a bank transfer rail. The rail charges the payer side,
// so its gateway fee is zero, and it offers no refund operation.
type BankAdapter struct {
	endpoint string
	apiKey   string
	secret   string
}

func NewBankAdapter(cfg config.GatewayConfig) *BankAdapter {
	return &BankAdapter{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, secret: cfg.WebhookSecret}
}

func (a *BankAdapter) Type() string {
	return model.GatewayBank
}

func (a *BankAdapter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}

type bankTransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

func (a *BankAdapter) Dispatch(ctx context.Context, payment *model.Payment) (*DispatchResult, error) {
	payload := map[string]interface{}{
		"end_to_end_id": payment.PaymentID,
		"amount":        payment.NetAmount,
		"currency":      payment.Currency,
		"account":       payment.MethodID,
	}
	var out bankTransferResponse
	resp, err := request.PostJSON(ctx, a.endpoint+"/transfers", a.headers(), payload, &out)
	if err != nil || resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp, err, "bank_dispatch")
	}
	status, err := mapStatus(bankStatusMap, a.Type(), out.Status)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{ExternalID: out.TransferID, Status: status}, nil
}

// Refund is not offered by the bank rail. Signaled here via the capability
// contract rather than a provider rejection.
func (a *BankAdapter) Refund(_ context.Context, _ *model.Payment, _ int64) (*RefundResult, error) {
	return nil, NewUnsupported("refund")
}

func (a *BankAdapter) QueryStatus(ctx context.Context, externalID string) (string, error) {
	var out bankTransferResponse
	resp, err := request.GetJSON(ctx, fmt.Sprintf("%s/transfers/%s", a.endpoint, externalID), a.headers(), &out)
	if err != nil || resp.StatusCode >= 300 {
		return "", classifyHTTP(resp, err, "bank_query")
	}
	return mapStatus(bankStatusMap, a.Type(), out.Status)
}

func (a *BankAdapter) VerifyWebhook(header http.Header, body []byte) error {
	sig := header.Get("X-Bank-Signature")
	if sig == "" || !model.SecureCompare(sig, model.SignPayload(a.secret, body)) {
		return NewPermanent("bad_signature", "bank webhook signature mismatch", nil)
	}
	return nil
}

type bankWebhookEvent struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

func (a *BankAdapter) ParseEvent(body []byte) (*Event, error) {
	var evt bankWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, NewPermanent("bad_payload", "bank webhook payload is not valid JSON", err)
	}
	status, err := mapStatus(bankStatusMap, a.Type(), evt.Status)
	if err != nil {
		return nil, err
	}
	return &Event{ExternalID: evt.TransferID, Status: status, Raw: body}, nil
}
