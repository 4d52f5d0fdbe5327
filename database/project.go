package database

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Project management lives outside this system; the engine only reads a
// project's status and flips it between active and paused for the escalation
// ladder.

func (d *Datasource) GetProjectStatus(ctx context.Context, projectID string) (string, error) {
	var status string
	err := d.Conn.QueryRowContext(ctx, `
		SELECT status FROM projects WHERE project_id = $1
	`, projectID).Scan(&status)
	return status, err
}

// UpdateProjectStatus flips a project's status conditional on its current
// state, so pause and resume are idempotent under concurrent monitors.
func (d *Datasource) UpdateProjectStatus(ctx context.Context, projectID, target string, from []string) (bool, error) {
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE projects SET status = $2 WHERE project_id = $1 AND status = ANY($3)
	`, projectID, target, pq.Array(from))
	if err != nil {
		return false, errors.Wrap(err, "updating project status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
