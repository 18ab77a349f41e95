package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/models"

	"github.com/jackc/pgx/v5"
)

const deploymentColumns = `pull_request_id, ci_passed, blockers, warnings, ready, deployed_at, deployed_by_id`

func scanDeployment(row pgx.Row) (models.DeploymentStatus, error) {
	var ds models.DeploymentStatus
	err := row.Scan(&ds.PullRequestID, &ds.CIPassed, &ds.Blockers, &ds.Warnings, &ds.Ready, &ds.DeployedAt, &ds.DeployedByID)
	if ds.Blockers == nil {
		ds.Blockers = []string{}
	}
	if ds.Warnings == nil {
		ds.Warnings = []string{}
	}
	return ds, err
}

func (r *repo) GetDeploymentStatus(ctx context.Context, prID string) (*models.DeploymentStatus, error) {
	ds, err := scanDeployment(r.pool.QueryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployment_statuses WHERE pull_request_id=$1`, prID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get deployment status", err)
	}
	return &ds, nil
}

// UpsertDeploymentStatus lists only the patched columns in both the insert
// and the conflict update, so concurrent writers of disjoint fields do not
// overwrite each other. The deployment stamp is kept once set.
func (r *repo) UpsertDeploymentStatus(ctx context.Context, prID string, p models.DeploymentPatch) (models.DeploymentStatus, error) {
	cols := []string{"pull_request_id"}
	args := []any{prID}
	var updates []string
	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	addOnce := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
		updates = append(updates, fmt.Sprintf(
			"%s = CASE WHEN deployment_statuses.deployed_at IS NULL THEN EXCLUDED.%s ELSE deployment_statuses.%s END",
			col, col, col))
	}

	if p.SetCIPassed || p.CIPassed != nil {
		add("ci_passed", p.CIPassed)
	}
	if p.Blockers != nil {
		add("blockers", nonNil(*p.Blockers))
	}
	if p.Warnings != nil {
		add("warnings", nonNil(*p.Warnings))
	}
	if p.Ready != nil {
		add("ready", *p.Ready)
	}
	if p.DeployedAt != nil {
		addOnce("deployed_at", *p.DeployedAt)
		addOnce("deployed_by_id", p.DeployedByID)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	if len(updates) == 0 {
		updates = append(updates, "pull_request_id = EXCLUDED.pull_request_id")
	}

	q := fmt.Sprintf(`INSERT INTO deployment_statuses (%s) VALUES (%s)
		ON CONFLICT (pull_request_id) DO UPDATE SET %s RETURNING %s`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "), deploymentColumns)

	ds, err := scanDeployment(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return models.DeploymentStatus{}, wrap("upsert deployment status", err)
	}
	return ds, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
