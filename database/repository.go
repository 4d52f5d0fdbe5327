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
	"time"

	"github.com/nexusworks/payments/model"
)

// IDataSource defines the interface for data source operations, grouping
// related functionalities. The payment status column is the single lock point
// of the system: every status write goes through a conditional update so
// concurrent webhook and reconciliation application stays safe.
type IDataSource interface {
	payment
	milestone
	paymentMethod
	gatewayStore
	transactionLog
	dispute
	project
}

// payment defines methods for handling payment rows.
type payment interface {
	RecordPayment(ctx context.Context, p *model.Payment) (*model.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*model.Payment, error)
	GetPaymentByExternalID(ctx context.Context, externalID string) (*model.Payment, error)
	GetPaymentsByMilestone(ctx context.Context, milestoneID string) ([]*model.Payment, error)
	GetActivePaymentForContributor(ctx context.Context, milestoneID, contributorID string) (*model.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID, target string, from []string, externalID string, processedAt *time.Time) (bool, error)
	GetStalePayments(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]*model.Payment, error)
	GetRetryablePayments(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error)
	IncrementPaymentAttempts(ctx context.Context, paymentID string) (int, error)
	CountUnsettledPayments(ctx context.Context, milestoneID string) (int, error)
}

// milestone defines methods for milestones and the escalation ledger.
type milestone interface {
	RecordMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error)
	GetMilestone(ctx context.Context, milestoneID string) (*model.Milestone, error)
	GetOverdueMilestones(ctx context.Context, asOf time.Time) ([]*model.Milestone, error)
	MarkMilestonePaid(ctx context.Context, milestoneID string, paidAt time.Time) (bool, error)
	UpdateMilestoneStatus(ctx context.Context, milestoneID, target string, from []string) (bool, error)
	GetContributorHours(ctx context.Context, milestoneID string) (map[string]float64, error)
	ApplyEscalationAction(ctx context.Context, milestoneID string, thresholdDays int) (bool, error)
	RevertEscalationAction(ctx context.Context, milestoneID string, thresholdDays int) error
}

// paymentMethod defines methods for contributor payout destinations.
type paymentMethod interface {
	GetDefaultPaymentMethod(ctx context.Context, contributorID string) (*model.PaymentMethod, error)
	RecordPaymentMethodUsage(ctx context.Context, methodID string, amount int64) error
}

// gatewayStore defines methods for gateway configuration and health metrics.
type gatewayStore interface {
	RecordGateway(ctx context.Context, g *model.Gateway) (*model.Gateway, error)
	GetGatewayByType(ctx context.Context, gatewayType string) (*model.Gateway, error)
	GetAllGateways(ctx context.Context) ([]*model.Gateway, error)
	UpdateGatewayMetrics(ctx context.Context, gatewayType string, success bool, latencyMs int64) error
}

// transactionLog defines methods for the append-only audit trail.
type transactionLog interface {
	RecordLogEntry(ctx context.Context, entry *model.TransactionLogEntry) error
	GetLogEntries(ctx context.Context, paymentID string) ([]model.TransactionLogEntry, error)
}

// dispute defines methods for payment disputes.
type dispute interface {
	RecordDispute(ctx context.Context, d *model.PaymentDispute) (*model.PaymentDispute, error)
	GetDispute(ctx context.Context, disputeID string) (*model.PaymentDispute, error)
	UpdateDisputeStatus(ctx context.Context, disputeID, target string, from []string) (bool, error)
	ResolveDispute(ctx context.Context, disputeID, status, outcome, resolution, resolvedBy string, resolvedAt time.Time) (bool, error)
	HasOpenDispute(ctx context.Context, milestoneID, disputeType string) (bool, error)
	HasOpenDisputeForPayment(ctx context.Context, paymentID, disputeType string) (bool, error)
}

// project defines the consumed collaborator surface of the project store:
// pause and resume only.
type project interface {
	GetProjectStatus(ctx context.Context, projectID string) (string, error)
	UpdateProjectStatus(ctx context.Context, projectID, target string, from []string) (bool, error)
}
