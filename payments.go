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

package payments

import (
	"context"
	"time"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/database"
	"github.com/nexusworks/payments/gateway"
	"github.com/nexusworks/payments/model"
)

// Engine is the main struct for the payment orchestration service. It owns
// the datasource, the gateway adapter registry and the async queue, and all
// payment lifecycle operations hang off it.
type Engine struct {
	datasource database.IDataSource
	gateways   *gateway.Registry
	queue      Scheduler
	notifier   Notifier
	auth       Authorizer
	now        func() time.Time
}

// Scheduler defers payment dispatches. The production implementation is the
// asynq-backed Queue.
type Scheduler interface {
	EnqueueDispatch(ctx context.Context, paymentID string, delay time.Duration) error
}

// Notifier delivers human-facing notifications (payment completed, project
// paused, dispute opened). The default implementation enqueues them on the
// notification queue for async delivery.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, message string) error
}

// Authorizer answers whether an actor may perform privileged operations.
type Authorizer interface {
	CanResolveDispute(ctx context.Context, actorID string) bool
}

// NewEngine initializes a new Engine with the provided datasource.
// It fetches the configuration and builds the gateway registry, queue and
// default notifier from it.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Engine: A pointer to the newly created Engine instance.
// - error: An error if any of the initialization steps fail.
func NewEngine(db database.IDataSource) (*Engine, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	registry, err := gateway.NewRegistry(configuration)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	engine := &Engine{
		datasource: db,
		gateways:   registry,
		queue:      newQueue,
		notifier:   &queueNotifier{queue: newQueue},
		auth:       &configAuthorizer{},
		now:        time.Now,
	}
	return engine, nil
}

// NewEngineWithDeps wires an Engine from explicit collaborators. Used by
// tests and by embedders that manage their own queue and notification
// plumbing.
func NewEngineWithDeps(db database.IDataSource, registry *gateway.Registry, scheduler Scheduler, notifier Notifier, auth Authorizer) *Engine {
	return &Engine{
		datasource: db,
		gateways:   registry,
		queue:      scheduler,
		notifier:   notifier,
		auth:       auth,
		now:        time.Now,
	}
}

// GetPayment returns one payment by id.
func (e *Engine) GetPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	return e.datasource.GetPayment(ctx, paymentID)
}

// GetPaymentLogs returns the append-only audit trail of one payment.
func (e *Engine) GetPaymentLogs(ctx context.Context, paymentID string) ([]model.TransactionLogEntry, error) {
	return e.datasource.GetLogEntries(ctx, paymentID)
}

// configAuthorizer authorizes dispute resolution against the configured
// admin list.
type configAuthorizer struct{}

func (a *configAuthorizer) CanResolveDispute(_ context.Context, actorID string) bool {
	conf, err := config.Fetch()
	if err != nil {
		return false
	}
	for _, admin := range conf.Admins {
		if admin == actorID {
			return true
		}
	}
	return false
}
