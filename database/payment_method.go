package database

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
)

// GetDefaultPaymentMethod returns the contributor's default verified payout
// destination. sql.ErrNoRows means the contributor cannot currently be paid;
// orchestration reports and skips them.
func (d *Datasource) GetDefaultPaymentMethod(ctx context.Context, contributorID string) (*model.PaymentMethod, error) {
	m := &model.PaymentMethod{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT method_id, contributor_id, gateway_type, verified, is_default, total_paid, payment_count, created_at
		FROM payment_methods
		WHERE contributor_id = $1 AND is_default AND verified
	`, contributorID).Scan(&m.MethodID, &m.ContributorID, &m.GatewayType, &m.Verified, &m.IsDefault, &m.TotalPaid, &m.PaymentCount, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPaymentMethodUsage bumps a method's lifetime totals after a completed
// payment.
func (d *Datasource) RecordPaymentMethodUsage(ctx context.Context, methodID string, amount int64) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_methods
		SET total_paid = total_paid + $2, payment_count = payment_count + 1
		WHERE method_id = $1
	`, methodID, amount)
	return errors.Wrap(err, "recording payment method usage")
}
