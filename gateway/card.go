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

// cardStatusMap translates the card processor's wire vocabulary into canonical
// payment statuses. This table is the only place that vocabulary exists.
var cardStatusMap = map[string]string{
	"requires_capture": model.StatusProcessing,
	"pending":          model.StatusProcessing,
	"processing":       model.StatusProcessing,
	"succeeded":        model.StatusCompleted,
	"paid":             model.StatusCompleted,
	"failed":           model.StatusFailed,
	"canceled":         model.StatusCancelled,
	"refunded":         model.StatusRefunded,
	"disputed":         model.StatusDisputed,
}

// CardAdapter talks to a card-processor style provider: JSON over HTTPS,
// bearer-key auth, HMAC-signed webhooks.
type CardAdapter struct {
	endpoint string
	apiKey   string
	secret   string
}

func NewCardAdapter(cfg config.GatewayConfig) *CardAdapter {
	return &CardAdapter{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, secret: cfg.WebhookSecret}
}

func (a *CardAdapter) Type() string {
	return model.GatewayCard
}

func (a *CardAdapter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}

type cardPayoutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (a *CardAdapter) Dispatch(ctx context.Context, payment *model.Payment) (*DispatchResult, error) {
	payload := map[string]interface{}{
		"reference":   payment.PaymentID,
		"amount":      payment.NetAmount,
		"currency":    payment.Currency,
		"destination": payment.MethodID,
	}
	var out cardPayoutResponse
	resp, err := request.PostJSON(ctx, a.endpoint+"/v1/payouts", a.headers(), payload, &out)
	if err != nil || resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp, err, "card_dispatch")
	}
	status, err := mapStatus(cardStatusMap, a.Type(), out.Status)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{ExternalID: out.ID, Status: status}, nil
}

func (a *CardAdapter) Refund(ctx context.Context, payment *model.Payment, amount int64) (*RefundResult, error) {
	payload := map[string]interface{}{
		"payout": payment.ExternalID,
		"amount": amount,
	}
	var out cardPayoutResponse
	resp, err := request.PostJSON(ctx, a.endpoint+"/v1/refunds", a.headers(), payload, &out)
	if err != nil || resp.StatusCode >= 300 {
		return nil, classifyHTTP(resp, err, "card_refund")
	}
	status, err := mapStatus(cardStatusMap, a.Type(), out.Status)
	if err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: out.ID, Status: status}, nil
}

func (a *CardAdapter) QueryStatus(ctx context.Context, externalID string) (string, error) {
	var out cardPayoutResponse
	resp, err := request.GetJSON(ctx, fmt.Sprintf("%s/v1/payouts/%s", a.endpoint, externalID), a.headers(), &out)
	if err != nil || resp.StatusCode >= 300 {
		return "", classifyHTTP(resp, err, "card_query")
	}
	return mapStatus(cardStatusMap, a.Type(), out.Status)
}

func (a *CardAdapter) VerifyWebhook(header http.Header, body []byte) error {
	sig := header.Get("X-Card-Signature")
	if sig == "" || !model.SecureCompare(sig, model.SignPayload(a.secret, body)) {
		return NewPermanent("bad_signature", "card webhook signature mismatch", nil)
	}
	return nil
}

type cardWebhookEvent struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

func (a *CardAdapter) ParseEvent(body []byte) (*Event, error) {
	var evt cardWebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, NewPermanent("bad_payload", "card webhook payload is not valid JSON", err)
	}
	status, err := mapStatus(cardStatusMap, a.Type(), evt.Data.Status)
	if err != nil {
		return nil, err
	}
	return &Event{ExternalID: evt.Data.ID, Status: status, Raw: body}, nil
}
