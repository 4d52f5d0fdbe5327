package model

import "time"

// Transaction log entry types. The log is append-only and is the durable
// audit record consumed by reconciliation and compliance review.
const (
	LogInitiated       = "initiated"
	LogProcessing      = "processing"
	LogCompleted       = "completed"
	LogFailed          = "failed"
	LogRefundInitiated = "refund_initiated"
	LogRefundCompleted = "refund_completed"
	LogDisputeOpened   = "dispute_opened"
	LogDisputeResolved = "dispute_resolved"
	LogReconciled      = "reconciled"
	LogError           = "error"
)

// Log levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// TransactionLogEntry records one observation in a payment's lifetime: a
// dispatch attempt, a status change, a reconciliation correction, an error.
// Entries are never updated or deleted.
type TransactionLogEntry struct {
	ID         int64     `json:"-"`
	LogID      string    `json:"log_id"`
	PaymentID  string    `json:"payment_id"`
	LogType    string    `json:"log_type"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	RawPayload []byte    `json:"raw_payload,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewLogEntry builds an entry with a fresh log id. CreatedAt is assigned by
// the datasource on insert.
func NewLogEntry(paymentID, logType, level, message string) *TransactionLogEntry {
	return &TransactionLogEntry{
		LogID:     GenerateUUIDWithSuffix("log"),
		PaymentID: paymentID,
		LogType:   logType,
		Level:     level,
		Message:   message,
	}
}
