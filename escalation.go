package payments

import (
	"context"
	"fmt"

	"github.com/nexusworks/payments/config"
	"github.com/nexusworks/payments/model"
	"github.com/sirupsen/logrus"
)

// EscalationResult summarizes one overdue-milestone pass.
type EscalationResult struct {
	Examined  int `json:"examined"`
	Warned    int `json:"warned"`
	Paused    int `json:"paused"`
	Escalated int `json:"escalated"`
}

// CheckOverdueMilestones walks every approved-but-unpaid milestone past its
// due date and applies the delay ladder: a warning, then pausing the project,
// then opening a payment_delay dispute. Each rung fires at most once per
// milestone; the escalation_actions ledger makes re-runs and overlapping
// sweeps harmless.
func (e *Engine) CheckOverdueMilestones(ctx context.Context) (*EscalationResult, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	asOf := e.now()
	overdue, err := e.datasource.GetOverdueMilestones(ctx, asOf)
	if err != nil {
		return nil, err
	}

	result := &EscalationResult{}
	for _, milestone := range overdue {
		result.Examined++
		days := milestone.DaysOverdue(asOf)

		if days >= conf.Escalation.WarnAfterDays {
			fired, err := e.fireWarning(ctx, milestone, conf.Escalation.WarnAfterDays)
			if err != nil {
				return result, err
			}
			if fired {
				result.Warned++
			}
		}
		if days >= conf.Escalation.PauseAfterDays {
			fired, err := e.firePause(ctx, milestone, conf.Escalation.PauseAfterDays)
			if err != nil {
				return result, err
			}
			if fired {
				result.Paused++
			}
		}
		if days >= conf.Escalation.EscalateAfterDays {
			fired, err := e.fireEscalation(ctx, milestone, conf.Escalation.EscalateAfterDays)
			if err != nil {
				return result, err
			}
			if fired {
				result.Escalated++
			}
		}
	}
	return result, nil
}

func (e *Engine) fireWarning(ctx context.Context, milestone *model.Milestone, threshold int) (bool, error) {
	applied, err := e.datasource.ApplyEscalationAction(ctx, milestone.MilestoneID, threshold)
	if err != nil || !applied {
		return false, err
	}
	if err := e.notifier.Notify(ctx, milestone.ProjectID, "milestone payment overdue",
		fmt.Sprintf("milestone %s is %d days past due and has not been paid", milestone.MilestoneID, threshold)); err != nil {
		logrus.WithError(err).WithField("milestone_id", milestone.MilestoneID).Warn("overdue warning notification failed")
	}
	return true, nil
}

func (e *Engine) firePause(ctx context.Context, milestone *model.Milestone, threshold int) (bool, error) {
	applied, err := e.datasource.ApplyEscalationAction(ctx, milestone.MilestoneID, threshold)
	if err != nil || !applied {
		return false, err
	}
	paused, err := e.datasource.UpdateProjectStatus(ctx, milestone.ProjectID, model.ProjectPaused,
		[]string{model.ProjectActive})
	if err != nil {
		e.releaseEscalationRung(ctx, milestone.MilestoneID, threshold)
		return false, err
	}
	if paused {
		if err := e.notifier.Notify(ctx, milestone.ProjectID, "project paused",
			fmt.Sprintf("project paused: milestone %s unpaid %d days past due", milestone.MilestoneID, threshold)); err != nil {
			logrus.WithError(err).Warn("project pause notification failed")
		}
	}
	return true, nil
}

func (e *Engine) fireEscalation(ctx context.Context, milestone *model.Milestone, threshold int) (bool, error) {
	applied, err := e.datasource.ApplyEscalationAction(ctx, milestone.MilestoneID, threshold)
	if err != nil || !applied {
		return false, err
	}
	open, err := e.datasource.HasOpenDispute(ctx, milestone.MilestoneID, model.DisputePaymentDelay)
	if err != nil {
		e.releaseEscalationRung(ctx, milestone.MilestoneID, threshold)
		return false, err
	}
	if open {
		// a delay dispute already exists; just make sure the milestone
		// reflects it
		if _, err := e.datasource.UpdateMilestoneStatus(ctx, milestone.MilestoneID, model.MilestoneDisputed,
			[]string{model.MilestoneCompleted}); err != nil {
			e.releaseEscalationRung(ctx, milestone.MilestoneID, threshold)
			return false, err
		}
		return false, nil
	}
	dispute := &model.PaymentDispute{
		MilestoneID:    milestone.MilestoneID,
		DisputeType:    model.DisputePaymentDelay,
		Status:         model.DisputeOpened,
		InitiatorID:    "system",
		RespondentID:   milestone.ProjectID,
		DisputedAmount: milestone.Amount,
		Reason:         fmt.Sprintf("milestone unpaid %d days past due date", threshold),
		CreatedAt:      e.now(),
	}
	if _, err := e.datasource.RecordDispute(ctx, dispute); err != nil {
		e.releaseEscalationRung(ctx, milestone.MilestoneID, threshold)
		return false, err
	}
	if _, err := e.datasource.UpdateMilestoneStatus(ctx, milestone.MilestoneID, model.MilestoneDisputed,
		[]string{model.MilestoneCompleted}); err != nil {
		e.releaseEscalationRung(ctx, milestone.MilestoneID, threshold)
		return false, err
	}
	if err := e.notifier.Notify(ctx, milestone.ProjectID, "payment delay dispute opened",
		fmt.Sprintf("a dispute was opened for milestone %s after %d days without payment", milestone.MilestoneID, threshold)); err != nil {
		logrus.WithError(err).Warn("escalation notification failed")
	}
	return true, nil
}

// releaseEscalationRung hands a consumed rung back after its side effect
// failed. The rung fires again on the next sweep; the conditional project and
// milestone updates keep the repeat harmless.
func (e *Engine) releaseEscalationRung(ctx context.Context, milestoneID string, threshold int) {
	if err := e.datasource.RevertEscalationAction(ctx, milestoneID, threshold); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"milestone_id":   milestoneID,
			"threshold_days": threshold,
		}).Error("escalation rung rollback failed; rung will not re-fire")
	}
}

// ResumeAfterPayment reactivates a project that the delay ladder paused.
func (e *Engine) ResumeAfterPayment(ctx context.Context, projectID string) error {
	applied, err := e.datasource.UpdateProjectStatus(ctx, projectID, model.ProjectActive,
		[]string{model.ProjectPaused})
	if err != nil {
		return err
	}
	if !applied {
		return newValidationError(ReasonNotPaused, "project %s is not paused", projectID)
	}
	if err := e.notifier.Notify(ctx, projectID, "project resumed",
		"the project has been reactivated after payment"); err != nil {
		logrus.WithError(err).Warn("project resume notification failed")
	}
	return nil
}
