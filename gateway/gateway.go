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

// Package gateway defines the capability contract every external payment
// provider must satisfy, and one adapter per provider family. Provider-specific
// status vocabulary never leaves this package: each adapter owns a mapping
// table that translates wire statuses into the canonical payment statuses in
// the model package.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nexusworks/payments/model"
)

// ErrorKind classifies gateway failures for retry policy.
type ErrorKind int

const (
	// Transient covers network failures, timeouts and provider 5xx. Safe to
	// retry with backoff.
	Transient ErrorKind = iota
	// Permanent covers validation and other provider 4xx. Never retried
	// automatically.
	Permanent
	// Unsupported marks an operation the provider does not offer, per its
	// capability flags.
	Unsupported
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

// Error is the typed failure returned by every adapter operation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s error [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient builds a retryable gateway error.
func NewTransient(code, message string, err error) *Error {
	return &Error{Kind: Transient, Code: code, Message: message, Err: err}
}

// NewPermanent builds a terminal gateway error.
func NewPermanent(code, message string, err error) *Error {
	return &Error{Kind: Permanent, Code: code, Message: message, Err: err}
}

// NewUnsupported marks an operation the provider cannot perform.
func NewUnsupported(operation string) *Error {
	return &Error{Kind: Unsupported, Code: "unsupported_operation", Message: fmt.Sprintf("provider does not support %s", operation)}
}

// IsTransient reports whether err is a retryable gateway error.
func IsTransient(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == Transient
}

// IsPermanent reports whether err is a terminal gateway error.
func IsPermanent(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == Permanent
}

// IsUnsupported reports whether err marks a missing provider capability.
func IsUnsupported(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == Unsupported
}

// classifyHTTP turns a provider HTTP failure into a typed gateway error. A nil
// transport error with a 2xx response never reaches here.
func classifyHTTP(resp *http.Response, err error, code string) *Error {
	if resp != nil && resp.StatusCode >= http.StatusMultipleChoices {
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return NewTransient(code, fmt.Sprintf("provider returned %d", resp.StatusCode), err)
		}
		return NewPermanent(code, fmt.Sprintf("provider returned %d", resp.StatusCode), err)
	}
	return NewTransient(code, fmt.Sprintf("provider unreachable: %v", err), err)
}

// DispatchResult is the provider's acknowledgement of a payout instruction.
// Status is already canonical.
type DispatchResult struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// RefundResult is the provider's acknowledgement of a refund instruction.
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// Event is a parsed, canonical webhook event.
type Event struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Raw        []byte `json:"-"`
}

// Adapter is the uniform capability interface over heterogeneous external
// providers. Refund returns an Unsupported error for providers whose
// capability flags exclude it; the flag, not a provider rejection, is the
// source of truth.
type Adapter interface {
	Type() string
	Dispatch(ctx context.Context, payment *model.Payment) (*DispatchResult, error)
	Refund(ctx context.Context, payment *model.Payment, amount int64) (*RefundResult, error)
	QueryStatus(ctx context.Context, externalID string) (string, error)
	VerifyWebhook(header http.Header, body []byte) error
	ParseEvent(body []byte) (*Event, error)
}

// mapStatus translates one provider status through an adapter's mapping table.
// An unmapped status is a permanent error: it means the table is out of date,
// not that the provider is down.
func mapStatus(table map[string]string, gatewayType, providerStatus string) (string, error) {
	canonical, ok := table[providerStatus]
	if !ok {
		return "", NewPermanent("unmapped_status", fmt.Sprintf("gateway %s returned unknown status %q", gatewayType, providerStatus), nil)
	}
	return canonical, nil
}
