package payments

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/gateway"
	"github.com/nexusworks/payments/model"
	"github.com/shopspring/decimal"
)

// stubAdapter is a scriptable gateway.Adapter for engine tests.
type stubAdapter struct {
	gatewayType string
	dispatch    func(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error)
	refund      func(ctx context.Context, p *model.Payment, amount int64) (*gateway.RefundResult, error)
	queryStatus func(ctx context.Context, externalID string) (string, error)
	verify      func(header http.Header, body []byte) error
	parse       func(body []byte) (*gateway.Event, error)
}

func (s *stubAdapter) Type() string { return s.gatewayType }

func (s *stubAdapter) Dispatch(ctx context.Context, p *model.Payment) (*gateway.DispatchResult, error) {
	if s.dispatch == nil {
		return &gateway.DispatchResult{ExternalID: "ext_" + p.PaymentID, Status: model.StatusProcessing}, nil
	}
	return s.dispatch(ctx, p)
}

func (s *stubAdapter) Refund(ctx context.Context, p *model.Payment, amount int64) (*gateway.RefundResult, error) {
	if s.refund == nil {
		return &gateway.RefundResult{RefundID: "rf_stub", Status: "pending"}, nil
	}
	return s.refund(ctx, p, amount)
}

func (s *stubAdapter) QueryStatus(ctx context.Context, externalID string) (string, error) {
	if s.queryStatus == nil {
		return model.StatusProcessing, nil
	}
	return s.queryStatus(ctx, externalID)
}

func (s *stubAdapter) VerifyWebhook(header http.Header, body []byte) error {
	if s.verify == nil {
		return nil
	}
	return s.verify(header, body)
}

func (s *stubAdapter) ParseEvent(body []byte) (*gateway.Event, error) {
	if s.parse == nil {
		return nil, gateway.NewPermanent("bad_event", "no parser scripted", nil)
	}
	return s.parse(body)
}

// recordingNotifier captures notifications instead of queueing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []NotificationPayload
}

func (n *recordingNotifier) Notify(_ context.Context, recipient, subject, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, NotificationPayload{Recipient: recipient, Subject: subject, Message: message})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// stubScheduler records deferred dispatches.
type stubScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Duration
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{scheduled: make(map[string]time.Duration)}
}

func (s *stubScheduler) EnqueueDispatch(_ context.Context, paymentID string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[paymentID] = delay
	return nil
}

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) CanResolveDispute(context.Context, string) bool { return true }

type denyAllAuthorizer struct{}

func (denyAllAuthorizer) CanResolveDispute(context.Context, string) bool { return false }

// newTestEngine builds an Engine over the in-memory datasource with a fixed
// clock and scripted adapters.
func newTestEngine(t *testing.T, ds *mockDataSource, adapters ...gateway.Adapter) (*Engine, *recordingNotifier, *stubScheduler) {
	t.Helper()
	config.MockConfig(&config.Configuration{})

	notifier := &recordingNotifier{}
	scheduler := newStubScheduler()
	engine := &Engine{
		datasource: ds,
		gateways:   gateway.NewRegistryWithAdapters(adapters...),
		queue:      scheduler,
		notifier:   notifier,
		auth:       allowAllAuthorizer{},
		now:        func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return engine, notifier, scheduler
}

// seedGateway registers a zero-fee gateway so fee math in scenario tests
// stays easy to read; fee behavior itself is covered in the model package.
func seedGateway(ds *mockDataSource, gatewayType string) *model.Gateway {
	g := &model.Gateway{
		GatewayID:      model.GenerateUUIDWithSuffix("gw"),
		Type:           gatewayType,
		Name:           gatewayType,
		FeePercentage:  decimal.Zero,
		SupportsRefund: true,
		MinAmount:      1,
		MaxAmount:      100_000_000,
		Currencies:     []string{"USD"},
	}
	ds.gateways[gatewayType] = g
	return g
}

func seedMilestone(ds *mockDataSource, id, projectID string, amount int64) *model.Milestone {
	m := &model.Milestone{
		MilestoneID:       id,
		ProjectID:         projectID,
		Percentage:        25,
		Amount:            amount,
		Currency:          "USD",
		Status:            model.MilestoneCompleted,
		DueDate:           time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		ClientApproved:    true,
		SeniorDevApproved: true,
		CreatedAt:         time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	ds.milestones[id] = m
	return m
}

func seedMethod(ds *mockDataSource, contributorID, gatewayType string) *model.PaymentMethod {
	pm := &model.PaymentMethod{
		MethodID:      "pm_" + contributorID,
		ContributorID: contributorID,
		GatewayType:   gatewayType,
		Verified:      true,
		IsDefault:     true,
	}
	ds.methods[contributorID] = pm
	return pm
}
