package payments

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/nexusworks/payments/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// IngestWebhook verifies, parses and applies one gateway webhook delivery.
// The flow is verify signature, parse the event, look up the payment by the
// provider's reference, then apply the mapped status through the canonical
// transition path.
//
// Unknown payment references are logged and dropped without error so the
// provider stops redelivering. Invalid edges (a stale redelivery arriving
// after a later status) are likewise swallowed after logging.
func (e *Engine) IngestWebhook(ctx context.Context, gatewayType string, header http.Header, body []byte) error {
	adapter, err := e.gateways.Adapter(gatewayType)
	if err != nil {
		return err
	}
	if err := adapter.VerifyWebhook(header, body); err != nil {
		logrus.WithFields(logrus.Fields{
			"gateway": gatewayType,
			"error":   err.Error(),
		}).Warn("webhook signature rejected")
		return errors.Wrap(ErrWebhookSignature, err.Error())
	}
	event, err := adapter.ParseEvent(body)
	if err != nil {
		return errors.Wrapf(err, "parsing %s webhook event", gatewayType)
	}

	payment, err := e.datasource.GetPaymentByExternalID(ctx, event.ExternalID)
	if err == sql.ErrNoRows {
		logrus.WithFields(logrus.Fields{
			"gateway":     gatewayType,
			"external_id": event.ExternalID,
		}).Info("webhook for unknown payment reference dropped")
		return nil
	}
	if err != nil {
		return err
	}

	applied, err := e.applyTransition(ctx, payment, event.Status, OriginWebhook)
	if err != nil {
		if IsInvalidTransition(err) {
			e.logEntry(ctx, payment.PaymentID, model.LogError, model.LevelWarning,
				"out-of-order webhook delivery rejected: "+err.Error())
			return nil
		}
		return err
	}
	if applied {
		logrus.WithFields(logrus.Fields{
			"payment_id": payment.PaymentID,
			"status":     event.Status,
			"gateway":    gatewayType,
		}).Info("webhook applied")
	}
	return nil
}
