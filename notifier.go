package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/internal/request"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// queueNotifier is the default Notifier. It pushes notifications onto the
// notification queue; DeliverNotification on the worker side does the actual
// outbound delivery.
type queueNotifier struct {
	queue *Queue
}

func (n *queueNotifier) Notify(ctx context.Context, recipient, subject, message string) error {
	return n.queue.EnqueueNotification(ctx, NotificationPayload{
		Recipient: recipient,
		Subject:   subject,
		Message:   message,
	})
}

// DeliverNotification posts a queued notification to the configured outbound
// webhook. With no webhook configured the notification is logged and
// considered delivered, so queues drain cleanly in minimal deployments.
func DeliverNotification(ctx context.Context, payload NotificationPayload) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		logrus.WithFields(logrus.Fields{
			"recipient": payload.Recipient,
			"subject":   payload.Subject,
		}).Info(payload.Message)
		return nil
	}

	resp, err := request.PostJSON(ctx, conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, payload, nil)
	if err != nil {
		return errors.Wrap(err, "delivering notification")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}
