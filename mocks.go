package payments

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/nexusworks/payments/model"
)

// mockDataSource is an in-memory database.IDataSource used by the engine
// tests. Conditional updates behave like the SQL they stand in for: guarded
// by current status under a single mutex.
type mockDataSource struct {
	mu sync.Mutex

	payments     map[string]*model.Payment
	paymentOrder []string // insertion order, stands in for the serial id
	milestones   map[string]*model.Milestone
	methods      map[string]*model.PaymentMethod // keyed by contributor id
	gateways     map[string]*model.Gateway
	hours        map[string]map[string]float64 // milestone id -> contributor -> hours
	logEntries   map[string][]model.TransactionLogEntry
	disputes     map[string]*model.PaymentDispute
	projects     map[string]string
	escalation   map[string]map[int]bool // milestone id -> threshold -> applied
}

func newMockDataSource() *mockDataSource {
	return &mockDataSource{
		payments:   make(map[string]*model.Payment),
		milestones: make(map[string]*model.Milestone),
		methods:    make(map[string]*model.PaymentMethod),
		gateways:   make(map[string]*model.Gateway),
		hours:      make(map[string]map[string]float64),
		logEntries: make(map[string][]model.TransactionLogEntry),
		disputes:   make(map[string]*model.PaymentDispute),
		projects:   make(map[string]string),
		escalation: make(map[string]map[int]bool),
	}
}

func (m *mockDataSource) RecordPayment(_ context.Context, p *model.Payment) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := p.ValidateAmounts(); err != nil {
		return nil, err
	}
	if p.PaymentID == "" {
		p.PaymentID = model.GenerateUUIDWithSuffix("pay")
	}
	m.addPayment(p)
	return p, nil
}

func (m *mockDataSource) addPayment(p *model.Payment) {
	m.payments[p.PaymentID] = p
	m.paymentOrder = append(m.paymentOrder, p.PaymentID)
}

func (m *mockDataSource) GetPayment(_ context.Context, paymentID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (m *mockDataSource) GetPaymentByExternalID(_ context.Context, externalID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ExternalID == externalID && externalID != "" {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDataSource) GetPaymentsByMilestone(_ context.Context, milestoneID string) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.MilestoneID == milestoneID {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out, nil
}

func (m *mockDataSource) GetActivePaymentForContributor(_ context.Context, milestoneID, contributorID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.MilestoneID == milestoneID && p.ContributorID == contributorID && p.Status != model.StatusFailed {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDataSource) UpdatePaymentStatus(_ context.Context, paymentID, target string, from []string, externalID string, processedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return false, nil
	}
	guarded := false
	for _, s := range from {
		if p.Status == s {
			guarded = true
			break
		}
	}
	if !guarded {
		return false, nil
	}
	p.Status = target
	if externalID != "" {
		p.ExternalID = externalID
	}
	if processedAt != nil {
		p.ProcessedAt = processedAt
	}
	return true, nil
}

func (m *mockDataSource) GetStalePayments(_ context.Context, statuses []string, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if !p.CreatedAt.Before(olderThan) || p.ExternalID == "" {
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				clone := *p
				out = append(out, &clone)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDataSource) GetRetryablePayments(_ context.Context, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.Status == model.StatusPending && p.ExternalID == "" && p.CreatedAt.Before(olderThan) {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockDataSource) IncrementPaymentAttempts(_ context.Context, paymentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	p.Attempts++
	return p.Attempts, nil
}

func (m *mockDataSource) CountUnsettledPayments(_ context.Context, milestoneID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]string)
	for _, id := range m.paymentOrder {
		p := m.payments[id]
		if p.MilestoneID == milestoneID {
			latest[p.ContributorID] = p.Status
		}
	}
	count := 0
	for _, status := range latest {
		if status != model.StatusCompleted {
			count++
		}
	}
	return count, nil
}

func (m *mockDataSource) RecordMilestone(_ context.Context, ms *model.Milestone) (*model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms.MilestoneID == "" {
		ms.MilestoneID = model.GenerateUUIDWithSuffix("ms")
	}
	m.milestones[ms.MilestoneID] = ms
	return ms, nil
}

func (m *mockDataSource) GetMilestone(_ context.Context, milestoneID string) (*model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.milestones[milestoneID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *ms
	return &clone, nil
}

func (m *mockDataSource) GetOverdueMilestones(_ context.Context, asOf time.Time) ([]*model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Milestone
	for _, ms := range m.milestones {
		if ms.Status == model.MilestoneCompleted && ms.ClientApproved && ms.SeniorDevApproved &&
			ms.PaidDate == nil && ms.DueDate.Before(asOf) {
			clone := *ms
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MilestoneID < out[j].MilestoneID })
	return out, nil
}

func (m *mockDataSource) MarkMilestonePaid(_ context.Context, milestoneID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.milestones[milestoneID]
	if !ok || ms.Status != model.MilestoneCompleted {
		return false, nil
	}
	ms.Status = model.MilestonePaid
	ms.PaidDate = &paidAt
	return true, nil
}

func (m *mockDataSource) UpdateMilestoneStatus(_ context.Context, milestoneID, target string, from []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.milestones[milestoneID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if ms.Status == s {
			ms.Status = target
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDataSource) GetContributorHours(_ context.Context, milestoneID string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.hours[milestoneID]))
	for k, v := range m.hours[milestoneID] {
		out[k] = v
	}
	return out, nil
}

func (m *mockDataSource) ApplyEscalationAction(_ context.Context, milestoneID string, thresholdDays int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.escalation[milestoneID] == nil {
		m.escalation[milestoneID] = make(map[int]bool)
	}
	if m.escalation[milestoneID][thresholdDays] {
		return false, nil
	}
	m.escalation[milestoneID][thresholdDays] = true
	return true, nil
}

func (m *mockDataSource) RevertEscalationAction(_ context.Context, milestoneID string, thresholdDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.escalation[milestoneID], thresholdDays)
	return nil
}

func (m *mockDataSource) GetDefaultPaymentMethod(_ context.Context, contributorID string) (*model.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.methods[contributorID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *pm
	return &clone, nil
}

func (m *mockDataSource) RecordPaymentMethodUsage(_ context.Context, methodID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pm := range m.methods {
		if pm.MethodID == methodID {
			pm.TotalPaid += amount
			pm.PaymentCount++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockDataSource) RecordGateway(_ context.Context, g *model.Gateway) (*model.Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateways[g.Type] = g
	return g, nil
}

func (m *mockDataSource) GetGatewayByType(_ context.Context, gatewayType string) (*model.Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gateways[gatewayType]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *g
	return &clone, nil
}

func (m *mockDataSource) GetAllGateways(_ context.Context) ([]*model.Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Gateway
	for _, g := range m.gateways {
		clone := *g
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockDataSource) UpdateGatewayMetrics(_ context.Context, _ string, _ bool, _ int64) error {
	return nil
}

func (m *mockDataSource) RecordLogEntry(_ context.Context, entry *model.TransactionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logEntries[entry.PaymentID] = append(m.logEntries[entry.PaymentID], *entry)
	return nil
}

func (m *mockDataSource) GetLogEntries(_ context.Context, paymentID string) ([]model.TransactionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TransactionLogEntry(nil), m.logEntries[paymentID]...), nil
}

func (m *mockDataSource) RecordDispute(_ context.Context, d *model.PaymentDispute) (*model.PaymentDispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.DisputeID == "" {
		d.DisputeID = model.GenerateUUIDWithSuffix("dsp")
	}
	m.disputes[d.DisputeID] = d
	return d, nil
}

func (m *mockDataSource) GetDispute(_ context.Context, disputeID string) (*model.PaymentDispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[disputeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *d
	return &clone, nil
}

func (m *mockDataSource) UpdateDisputeStatus(_ context.Context, disputeID, target string, from []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[disputeID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if d.Status == s {
			d.Status = target
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDataSource) ResolveDispute(_ context.Context, disputeID, status, outcome, resolution, resolvedBy string, resolvedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[disputeID]
	if !ok || !d.Open() {
		return false, nil
	}
	d.Status = status
	d.Outcome = outcome
	d.Resolution = resolution
	d.ResolvedBy = resolvedBy
	d.ResolvedAt = &resolvedAt
	return true, nil
}

func (m *mockDataSource) HasOpenDispute(_ context.Context, milestoneID, disputeType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.MilestoneID == milestoneID && d.DisputeType == disputeType && d.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDataSource) HasOpenDisputeForPayment(_ context.Context, paymentID, disputeType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.PaymentID == paymentID && d.DisputeType == disputeType && d.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDataSource) GetProjectStatus(_ context.Context, projectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.projects[projectID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return status, nil
}

func (m *mockDataSource) UpdateProjectStatus(_ context.Context, projectID, target string, from []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.projects[projectID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if status == s {
			m.projects[projectID] = target
			return true, nil
		}
	}
	return false, nil
}
