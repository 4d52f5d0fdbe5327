package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
)

const milestoneColumns = `milestone_id, project_id, percentage, amount, currency, status, due_date, client_approved, senior_developer_approved, paid_date, created_at`

func (d *Datasource) RecordMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error) {
	if m.MilestoneID == "" {
		m.MilestoneID = model.GenerateUUIDWithSuffix("mst")
	}
	m.CreatedAt = time.Now()
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO milestones (milestone_id, project_id, percentage, amount, currency, status, due_date, client_approved, senior_developer_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.MilestoneID, m.ProjectID, m.Percentage, m.Amount, m.Currency, m.Status, m.DueDate, m.ClientApproved, m.SeniorDevApproved, m.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "recording milestone")
	}
	return m, nil
}

func scanMilestone(row interface {
	Scan(dest ...interface{}) error
}) (*model.Milestone, error) {
	m := &model.Milestone{}
	var dueDate, paidDate sql.NullTime
	err := row.Scan(&m.MilestoneID, &m.ProjectID, &m.Percentage, &m.Amount, &m.Currency, &m.Status, &dueDate, &m.ClientApproved, &m.SeniorDevApproved, &paidDate, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		m.DueDate = dueDate.Time
	}
	if paidDate.Valid {
		m.PaidDate = &paidDate.Time
	}
	return m, nil
}

func (d *Datasource) GetMilestone(ctx context.Context, milestoneID string) (*model.Milestone, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+milestoneColumns+` FROM milestones WHERE milestone_id = $1
	`, milestoneID)
	return scanMilestone(row)
}

// GetOverdueMilestones returns fully-approved, completed-but-unpaid milestones
// whose due date has passed. These feed the escalation ladder.
func (d *Datasource) GetOverdueMilestones(ctx context.Context, asOf time.Time) ([]*model.Milestone, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+milestoneColumns+` FROM milestones
		WHERE status = 'completed' AND client_approved AND senior_developer_approved
		  AND paid_date IS NULL AND due_date < $1
		ORDER BY due_date
	`, asOf)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var milestones []*model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// MarkMilestonePaid flips a milestone to paid, conditional on it still being
// an approved completed milestone. Safe under concurrent application: only one
// caller observes true.
func (d *Datasource) MarkMilestonePaid(ctx context.Context, milestoneID string, paidAt time.Time) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE milestones SET status = 'paid', paid_date = $2
		WHERE milestone_id = $1 AND status = 'completed' AND client_approved AND senior_developer_approved
	`, milestoneID, paidAt)
	if err != nil {
		return false, errors.Wrap(err, "marking milestone paid")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *Datasource) UpdateMilestoneStatus(ctx context.Context, milestoneID, target string, from []string) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE milestones SET status = $2 WHERE milestone_id = $1 AND status = ANY($3)
	`, milestoneID, target, pq.Array(from))
	if err != nil {
		return false, errors.Wrap(err, "updating milestone status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetContributorHours reads logged hours per contributor on tasks linked to
// the milestone. Task management itself lives outside this system; only the
// hours roll-up is consumed here.
func (d *Datasource) GetContributorHours(ctx context.Context, milestoneID string) (map[string]float64, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT contributor_id, hours FROM task_hours WHERE milestone_id = $1
	`, milestoneID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	hours := make(map[string]float64)
	for rows.Next() {
		var contributorID string
		var h float64
		if err := rows.Scan(&contributorID, &h); err != nil {
			return nil, err
		}
		hours[contributorID] = h
	}
	return hours, rows.Err()
}

// ApplyEscalationAction records one rung of the escalation ladder for a
// milestone. The unique constraint makes re-application a no-op, so the
// monitor can run on overlapping schedules without double-firing.
func (d *Datasource) ApplyEscalationAction(ctx context.Context, milestoneID string, thresholdDays int) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		INSERT INTO escalation_actions (milestone_id, threshold_days) VALUES ($1, $2)
		ON CONFLICT (milestone_id, threshold_days) DO NOTHING
	`, milestoneID, thresholdDays)
	if err != nil {
		return false, errors.Wrap(err, "applying escalation action")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RevertEscalationAction releases a rung whose side effect could not be
// applied, so the next sweep fires it again.
func (d *Datasource) RevertEscalationAction(ctx context.Context, milestoneID string, thresholdDays int) error {
	_, err := d.Conn.ExecContext(ctx, `
		DELETE FROM escalation_actions WHERE milestone_id = $1 AND threshold_days = $2
	`, milestoneID, thresholdDays)
	return errors.Wrap(err, "reverting escalation action")
}
