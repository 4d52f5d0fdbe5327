package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
)

const disputeColumns = `dispute_id, payment_id, milestone_id, initiator_id, respondent_id, dispute_type, status, disputed_amount, reason, outcome, resolution, resolved_by, resolved_at, created_at`

var openDisputeStatuses = []string{
	model.DisputeOpened,
	model.DisputeUnderReview,
	model.DisputeEvidenceRequested,
	model.DisputeMediation,
	model.DisputeEscalated,
}

func (d *Datasource) RecordDispute(ctx context.Context, dp *model.PaymentDispute) (*model.PaymentDispute, error) {
	if dp.DisputeID == "" {
		dp.DisputeID = model.GenerateUUIDWithSuffix("dsp")
	}
	if dp.Status == "" {
		dp.Status = model.DisputeOpened
	}
	dp.CreatedAt = time.Now()
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payment_disputes (dispute_id, payment_id, milestone_id, initiator_id, respondent_id, dispute_type, status, disputed_amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, dp.DisputeID, dp.PaymentID, dp.MilestoneID, dp.InitiatorID, dp.RespondentID, dp.DisputeType, dp.Status, dp.DisputedAmount, dp.Reason, dp.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "recording dispute")
	}
	return dp, nil
}

func scanDispute(row interface {
	Scan(dest ...interface{}) error
}) (*model.PaymentDispute, error) {
	dp := &model.PaymentDispute{}
	var resolvedAt sql.NullTime
	err := row.Scan(&dp.DisputeID, &dp.PaymentID, &dp.MilestoneID, &dp.InitiatorID, &dp.RespondentID, &dp.DisputeType, &dp.Status, &dp.DisputedAmount, &dp.Reason, &dp.Outcome, &dp.Resolution, &dp.ResolvedBy, &resolvedAt, &dp.CreatedAt)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		dp.ResolvedAt = &resolvedAt.Time
	}
	return dp, nil
}

func (d *Datasource) GetDispute(ctx context.Context, disputeID string) (*model.PaymentDispute, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+disputeColumns+` FROM payment_disputes WHERE dispute_id = $1
	`, disputeID)
	return scanDispute(row)
}

func (d *Datasource) UpdateDisputeStatus(ctx context.Context, disputeID, target string, from []string) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_disputes SET status = $2 WHERE dispute_id = $1 AND status = ANY($3)
	`, disputeID, target, pq.Array(from))
	if err != nil {
		return false, errors.Wrap(err, "updating dispute status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResolveDispute closes a dispute with its outcome, conditional on the
// dispute still being open. Only one resolver observes true.
func (d *Datasource) ResolveDispute(ctx context.Context, disputeID, status, outcome, resolution, resolvedBy string, resolvedAt time.Time) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_disputes
		SET status = $2, outcome = $3, resolution = $4, resolved_by = $5, resolved_at = $6
		WHERE dispute_id = $1 AND status = ANY($7)
	`, disputeID, status, outcome, resolution, resolvedBy, resolvedAt, pq.Array(openDisputeStatuses))
	if err != nil {
		return false, errors.Wrap(err, "resolving dispute")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *Datasource) HasOpenDispute(ctx context.Context, milestoneID, disputeType string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_disputes
			WHERE milestone_id = $1 AND dispute_type = $2 AND status = ANY($3)
		)
	`, milestoneID, disputeType, pq.Array(openDisputeStatuses)).Scan(&exists)
	return exists, err
}

func (d *Datasource) HasOpenDisputeForPayment(ctx context.Context, paymentID, disputeType string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_disputes
			WHERE payment_id = $1 AND dispute_type = $2 AND status = ANY($3)
		)
	`, paymentID, disputeType, pq.Array(openDisputeStatuses)).Scan(&exists)
	return exists, err
}
