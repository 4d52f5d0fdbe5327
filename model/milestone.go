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
package model

import "time"

// Milestone statuses.
const (
	MilestonePending   = "pending"
	MilestoneCompleted = "completed"
	MilestonePaid      = "paid"
	MilestoneDisputed  = "disputed"
)

// Project statuses relevant to the escalation ladder.
const (
	ProjectActive = "active"
	ProjectPaused = "paused"
)

// Milestone is a contracted percentage-of-project payment checkpoint. A
// milestone becomes payable once its status is completed and both approval
// flags are set; it becomes paid only when every payment created for it has
// completed.
type Milestone struct {
	ID                    int64      `json:"-"`
	MilestoneID           string     `json:"milestone_id"`
	ProjectID             string     `json:"project_id"`
	Percentage            int        `json:"percentage"`
	Amount                int64      `json:"amount"`
	Currency              string     `json:"currency"`
	Status                string     `json:"status"`
	DueDate               time.Time  `json:"due_date"`
	ClientApproved        bool       `json:"client_approved"`
	SeniorDevApproved     bool       `json:"senior_developer_approved"`
	PaidDate              *time.Time `json:"paid_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Payable reports whether the milestone satisfies the orchestration
// precondition: completed work signed off by both parties and not yet paid.
func (m *Milestone) Payable() bool {
	return m.Status == MilestoneCompleted && m.ClientApproved && m.SeniorDevApproved
}

// DaysOverdue returns whole days elapsed since the due date as of the given
// time, or zero if the milestone is not yet due.
func (m *Milestone) DaysOverdue(asOf time.Time) int {
	if !asOf.After(m.DueDate) {
		return 0
	}
	return int(asOf.Sub(m.DueDate).Hours() / 24)
}
