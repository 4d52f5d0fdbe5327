package payments

import (
	"errors"
	"fmt"
)

// Validation failure reasons surfaced to API callers.
const (
	ReasonNotReady        = "milestone_not_ready"
	ReasonNoContributors  = "no_contributors"
	ReasonNoPaymentMethod = "no_payment_method"
	ReasonAlreadyResolved = "dispute_already_resolved"
	ReasonNotPaused       = "project_not_paused"
	ReasonBadOutcome      = "invalid_outcome"
)

// ValidationError reports a request that is well formed but cannot be
// acted on in the current state. It maps to a 4xx response at the API layer.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func newValidationError(reason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTransitionError is returned when a status change is not a valid
// forward edge of the payment state machine.
type InvalidTransitionError struct {
	PaymentID string
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for payment %s: %s -> %s", e.PaymentID, e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

// ErrUnauthorized is returned when an actor lacks permission for a
// privileged operation such as dispute resolution.
var ErrUnauthorized = errors.New("actor is not authorized for this operation")

// ErrWebhookSignature is returned when a webhook payload fails signature
// verification. The API layer maps it to 401.
var ErrWebhookSignature = errors.New("webhook signature verification failed")
