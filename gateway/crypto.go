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

// cryptoStatusMap covers the crypto custodian's wire vocabulary. On-chain
// settlement is irreversible, so nothing maps to refunded.
var cryptoStatusMap = map[string]string{
	"created":     model.StatusProcessing,
	"mempool":     model.StatusProcessing,
	"unconfirmed": model.StatusProcessing,
	"confirmed":   model.StatusCompleted,
	"dropped":     model.StatusFailed,
	"replaced":    model.StatusFailed,
}

// CryptoAdapter talks to a custodial crypto payout provider.
type CryptoAdapter struct {
	endpoint string
	apiKey   string
	secret   string
}

func NewCryptoAdapter(cfg config.GatewayConfig) *CryptoAdapter {
	return &CryptoAdapter{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, secret: cfg.WebhookSecret}
}

func (a *CryptoAdapter) Type() string {
	return model.GatewayCrypto
}

func (a *CryptoAdapter) headers() map[string]string {
	return map[string]string{"X-Api-Key": a.apiKey}
}

type cryptoTxResponse struct {
	TxID  string `json:"tx_id"`
	State string `json:"state"`
}

func (a *CryptoAdapter) Dispatch(ctx context.Context, payment *model.Payment) (*DispatchResult, error) {
	payload := map[string]interface{}{
		"idempotency_key": payment.PaymentID,
		"amount":          payment.NetAmount,
		"currency":        payment.Currency,
		"wallet":          payment.MethodID,
	}
	var out cryptoTxResponse
	resp, err := request.PostJSON(ctx, a.endpoint+"/v1/withdrawals", a.headers(), payload, &out)
	if err != nil || resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp, err, "crypto_dispatch")
	}
	status, err := mapStatus(cryptoStatusMap, a.Type(), out.State)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{ExternalID: out.TxID, Status: status}, nil
}

// Refund is impossible once a withdrawal is broadcast.
func (a *CryptoAdapter) Refund(_ context.Context, _ *model.Payment, _ int64) (*RefundResult, error) {
	return nil, NewUnsupported("refund")
}

func (a *CryptoAdapter) QueryStatus(ctx context.Context, externalID string) (string, error) {
	var out cryptoTxResponse
	resp, err := request.GetJSON(ctx, fmt.Sprintf("%s/v1/withdrawals/%s", a.endpoint, externalID), a.headers(), &out)
	if err != nil || resp.StatusCode >= 300 {
		return "", classifyHTTP(resp, err, "crypto_query")
	}
	return mapStatus(cryptoStatusMap, a.Type(), out.State)
}

func (a *CryptoAdapter) VerifyWebhook(header http.Header, body []byte) error {
	sig := header.Get("X-Chain-Signature")
	if sig == "" || !model.SecureCompare(sig, model.SignPayload(a.secret, body)) {
		return NewPermanent("bad_signature", "crypto webhook signature mismatch", nil)
	}
	return nil
}

type cryptoWebhookEvent struct {
	TxID  string `json:"tx_id"`
	State string `json:"state"`
}

func (a *CryptoAdapter) ParseEvent(body []byte) (*Event, error) {
	var evt cryptoWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, NewPermanent("bad_payload", "crypto webhook payload is not valid JSON", err)
	}
	status, err := mapStatus(cryptoStatusMap, a.Type(), evt.State)
	if err != nil {
		return nil, err
	}
	return &Event{ExternalID: evt.TxID, Status: status, Raw: body}, nil
}
