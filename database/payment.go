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
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
)

const paymentColumns = `payment_id, milestone_id, contributor_id, method_id, gateway_type, amount, platform_fee, gateway_fee, net_amount, currency, status, gateway_ref, external_id, attempts, processed_at, created_at, meta_data`

// RecordPayment inserts a new payment row. The fee-sum invariant is asserted
// here as the last line of defense before the database CHECK constraint.
func (d *Datasource) RecordPayment(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if err := p.ValidateAmounts(); err != nil {
		return nil, err
	}
	if p.PaymentID == "" {
		p.PaymentID = model.GenerateUUIDWithSuffix("pay")
	}
	p.CreatedAt = time.Now()

	metaData, err := json.Marshal(p.MetaData)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling payment metadata")
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO payments (payment_id, milestone_id, contributor_id, method_id, gateway_type, amount, platform_fee, gateway_fee, net_amount, currency, status, gateway_ref, external_id, attempts, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.PaymentID, p.MilestoneID, p.ContributorID, p.MethodID, p.GatewayType, p.Amount, p.PlatformFee, p.GatewayFee, p.NetAmount, p.Currency, p.Status, p.GatewayRef, p.ExternalID, p.Attempts, p.CreatedAt, metaData)
	if err != nil {
		return nil, errors.Wrap(err, "recording payment")
	}
	return p, nil
}

func scanPayment(row interface {
	Scan(dest ...interface{}) error
}) (*model.Payment, error) {
	p := &model.Payment{}
	var metaData []byte
	var processedAt sql.NullTime
	err := row.Scan(&p.PaymentID, &p.MilestoneID, &p.ContributorID, &p.MethodID, &p.GatewayType, &p.Amount, &p.PlatformFee, &p.GatewayFee, &p.NetAmount, &p.Currency, &p.Status, &p.GatewayRef, &p.ExternalID, &p.Attempts, &processedAt, &p.CreatedAt, &metaData)
	if err != nil {
		return nil, err
	}
	if processedAt.Valid {
		p.ProcessedAt = &processedAt.Time
	}
	if len(metaData) > 0 {
		if err := json.Unmarshal(metaData, &p.MetaData); err != nil {
			return nil, errors.Wrap(err, "unmarshaling payment metadata")
		}
	}
	return p, nil
}

func (d *Datasource) GetPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1
	`, paymentID)
	return scanPayment(row)
}

// GetPaymentByExternalID looks a payment up by the provider-assigned id.
// Returns sql.ErrNoRows when the id is unknown locally; webhook ingestion
// treats that as a benign drop, not an error.
func (d *Datasource) GetPaymentByExternalID(ctx context.Context, externalID string) (*model.Payment, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE external_id = $1
	`, externalID)
	return scanPayment(row)
}

func (d *Datasource) GetPaymentsByMilestone(ctx context.Context, milestoneID string) ([]*model.Payment, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE milestone_id = $1 ORDER BY created_at
	`, milestoneID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetActivePaymentForContributor returns the contributor's non-failed payment
// for a milestone, if any. Orchestration uses it to avoid re-creating payments
// on re-invocation.
func (d *Datasource) GetActivePaymentForContributor(ctx context.Context, milestoneID, contributorID string) (*model.Payment, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE milestone_id = $1 AND contributor_id = $2 AND status <> 'failed'
		ORDER BY created_at DESC LIMIT 1
	`, milestoneID, contributorID)
	return scanPayment(row)
}

// UpdatePaymentStatus performs the canonical conditional transition: the row
// moves to target only if its current status is one of the allowed
// predecessors. Returns false when the guard did not match, which callers
// treat as a concurrent (or duplicate) application, never as corruption.
func (d *Datasource) UpdatePaymentStatus(ctx context.Context, paymentID, target string, from []string, externalID string, processedAt *time.Time) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    external_id = CASE WHEN $3 <> '' THEN $3 ELSE external_id END,
		    processed_at = COALESCE($4, processed_at)
		WHERE payment_id = $1 AND status = ANY($5)
	`, paymentID, target, externalID, processedAt, pq.Array(from))
	if err != nil {
		return false, errors.Wrap(err, "updating payment status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetStalePayments returns dispatched payments whose status has not settled
// within the grace window. Only rows with an external id qualify; anything
// without one never reached the provider and belongs to the retry job.
func (d *Datasource) GetStalePayments(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]*model.Payment, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = ANY($1) AND external_id <> '' AND created_at < $2
		ORDER BY created_at LIMIT $3
	`, pq.Array(statuses), olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetRetryablePayments returns pending payments that never produced an
// external id, i.e. dispatch failed transiently or the process crashed before
// the provider acknowledged.
func (d *Datasource) GetRetryablePayments(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = 'pending' AND external_id = '' AND created_at < $1
		ORDER BY created_at LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (d *Datasource) IncrementPaymentAttempts(ctx context.Context, paymentID string) (int, error) {
	var attempts int
	err := d.Conn.QueryRowContext(ctx, `
		UPDATE payments SET attempts = attempts + 1 WHERE payment_id = $1 RETURNING attempts
	`, paymentID).Scan(&attempts)
	if err != nil {
		return 0, errors.Wrap(err, "incrementing payment attempts")
	}
	return attempts, nil
}

// CountUnsettledPayments counts milestone contributors whose latest payment
// has not completed. Only the newest row per contributor is considered, so a
// failed payment superseded by a replacement does not hold the milestone
// open. Zero (with at least one payment present) means the milestone is
// fully paid.
func (d *Datasource) CountUnsettledPayments(ctx context.Context, milestoneID string) (int, error) {
	var count int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT ON (contributor_id) status
			FROM payments WHERE milestone_id = $1
			ORDER BY contributor_id, id DESC
		) latest WHERE status <> 'completed'
	`, milestoneID).Scan(&count)
	return count, err
}
