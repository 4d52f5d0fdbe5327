package database

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
)

// RecordLogEntry appends one entry to the audit trail. There is deliberately
// no update or delete counterpart anywhere in this package.
func (d *Datasource) RecordLogEntry(ctx context.Context, entry *model.TransactionLogEntry) error {
	if entry.LogID == "" {
		entry.LogID = model.GenerateUUIDWithSuffix("log")
	}
	entry.CreatedAt = time.Now()

	var rawPayload interface{}
	if len(entry.RawPayload) > 0 {
		rawPayload = entry.RawPayload
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO transaction_logs (log_id, payment_id, log_type, level, message, raw_payload, error_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.LogID, entry.PaymentID, entry.LogType, entry.Level, entry.Message, rawPayload, entry.ErrorCode, entry.CreatedAt)
	return errors.Wrap(err, "recording transaction log entry")
}

func (d *Datasource) GetLogEntries(ctx context.Context, paymentID string) ([]model.TransactionLogEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT log_id, payment_id, log_type, level, message, error_code, created_at
		FROM transaction_logs WHERE payment_id = $1 ORDER BY created_at, id
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []model.TransactionLogEntry
	for rows.Next() {
		var e model.TransactionLogEntry
		if err := rows.Scan(&e.LogID, &e.PaymentID, &e.LogType, &e.Level, &e.Message, &e.ErrorCode, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
