package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/models"
	"prgate/internal/repository"

	"github.com/jackc/pgx/v5"
)

const prColumns = `id, title, description, repository_link, source_branch, target_branch,
	status, checklist, author_id, version, created_at, updated_at`

func scanPR(row pgx.Row) (models.PR, error) {
	var (
		p         models.PR
		checklist []byte
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.RepositoryLink, &p.SourceBranch, &p.TargetBranch,
		&p.Status, &checklist, &p.AuthorID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Checklist = []models.ChecklistItem{}
	if len(checklist) > 0 {
		if err := json.Unmarshal(checklist, &p.Checklist); err != nil {
			return p, fmt.Errorf("decode checklist: %w", err)
		}
	}
	return p, nil
}

func encodeChecklist(items []models.ChecklistItem) ([]byte, error) {
	if items == nil {
		items = []models.ChecklistItem{}
	}
	return json.Marshal(items)
}

func (r *repo) CreatePR(ctx context.Context, pr models.PR) (models.PR, error) {
	checklist, err := encodeChecklist(pr.Checklist)
	if err != nil {
		return models.PR{}, fmt.Errorf("create PR: %w", err)
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO pull_requests
		(id, title, description, repository_link, source_branch, target_branch, status, checklist, author_id)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+prColumns,
		pr.ID, pr.Title, pr.Description, pr.RepositoryLink, pr.SourceBranch, pr.TargetBranch,
		pr.Status, checklist, pr.AuthorID)
	res, err := scanPR(row)
	if err != nil {
		return models.PR{}, wrap("create PR", err)
	}
	return res, nil
}

func (r *repo) GetPR(ctx context.Context, id string) (models.PR, error) {
	p, err := scanPR(r.pool.QueryRow(ctx, `SELECT `+prColumns+` FROM pull_requests WHERE id=$1`, id))
	if err != nil {
		return models.PR{}, wrap("get PR", err)
	}
	return p, nil
}

func (r *repo) ListPRs(ctx context.Context, f models.PRFilter) ([]models.PR, int, error) {
	var w whereBuilder
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.AuthorID != "" {
		w.add("author_id = ?", f.AuthorID)
	}
	if f.ReviewerID != "" {
		w.add("EXISTS (SELECT 1 FROM reviewers rv WHERE rv.pull_request_id = pull_requests.id AND rv.user_id = ?)", f.ReviewerID)
	}
	where := w.sql()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pull_requests`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, wrap("count PRs", err)
	}

	order := " ORDER BY created_at DESC"
	if f.SortBy == "updated" {
		order = " ORDER BY updated_at DESC"
	}
	limit := w.limitOffset(f.Page, f.Limit)

	rows, err := r.pool.Query(ctx, `SELECT `+prColumns+` FROM pull_requests`+where+order+limit, w.args...)
	if err != nil {
		return nil, 0, wrap("list PRs", err)
	}
	defer rows.Close()

	out := make([]models.PR, 0)
	for rows.Next() {
		p, err := scanPR(rows)
		if err != nil {
			return nil, 0, wrap("scan PR", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repo) UpdatePR(ctx context.Context, id string, expectedVersion int, fields models.PRFields) (models.PR, error) {
	args := []any{id, expectedVersion}
	sets := make([]string, 0, 8)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.Title != nil {
		set("title", *fields.Title)
	}
	if fields.Description != nil {
		set("description", *fields.Description)
	}
	if fields.RepositoryLink != nil {
		set("repository_link", *fields.RepositoryLink)
	}
	if fields.SourceBranch != nil {
		set("source_branch", *fields.SourceBranch)
	}
	if fields.TargetBranch != nil {
		set("target_branch", *fields.TargetBranch)
	}
	if fields.SetChecklist {
		checklist, err := encodeChecklist(fields.Checklist)
		if err != nil {
			return models.PR{}, fmt.Errorf("update PR: %w", err)
		}
		set("checklist", checklist)
	}
	sets = append(sets, "version = version + 1", "updated_at = now()")

	q := `UPDATE pull_requests SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND version = $2 RETURNING ` + prColumns
	p, err := scanPR(r.pool.QueryRow(ctx, q, args...))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.PR{}, wrap("update PR", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pull_requests WHERE id=$1)`, id).Scan(&exists); err != nil {
		return models.PR{}, wrap("update PR", err)
	}
	if !exists {
		return models.PR{}, fmt.Errorf("update PR %s: %w", id, repository.ErrNotFound)
	}
	return models.PR{}, fmt.Errorf("update PR %s at version %d: %w", id, expectedVersion, repository.ErrVersionConflict)
}

func (r *repo) SetPRStatus(ctx context.Context, id string, status models.PRStatus) (models.PR, error) {
	p, err := scanPR(r.pool.QueryRow(ctx,
		`UPDATE pull_requests SET status=$2, version = version + 1, updated_at = now()
		 WHERE id=$1 RETURNING `+prColumns, id, status))
	if err != nil {
		return models.PR{}, wrap("set PR status", err)
	}
	return p, nil
}

func (r *repo) DeletePR(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pull_requests WHERE id=$1`, id)
	if err != nil {
		return wrap("delete PR", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete PR %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *repo) FindPRByRepositoryLink(ctx context.Context, link string) (models.PR, error) {
	p, err := scanPR(r.pool.QueryRow(ctx,
		`SELECT `+prColumns+` FROM pull_requests WHERE repository_link=$1 ORDER BY updated_at DESC LIMIT 1`, link))
	if err != nil {
		return models.PR{}, wrap("find PR by link", err)
	}
	return p, nil
}

func (r *repo) AddReviewers(ctx context.Context, prID string, userIDs []string) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	added := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		tag, err := tx.Exec(ctx,
			`INSERT INTO reviewers(pull_request_id, user_id) VALUES($1,$2) ON CONFLICT DO NOTHING`, prID, uid)
		if err != nil {
			return nil, wrap("assign reviewer "+uid, err)
		}
		if tag.RowsAffected() > 0 {
			added = append(added, uid)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return added, nil
}

func (r *repo) RemoveReviewer(ctx context.Context, prID, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviewers WHERE pull_request_id=$1 AND user_id=$2`, prID, userID)
	if err != nil {
		return wrap("remove reviewer", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove reviewer %s: %w", userID, repository.ErrNotFound)
	}
	return nil
}

func (r *repo) ListReviewers(ctx context.Context, prID string) ([]models.Reviewer, error) {
	rows, err := r.pool.Query(ctx, `SELECT rv.pull_request_id, rv.user_id, u.email, u.name, rv.created_at
		FROM reviewers rv JOIN users u ON u.id = rv.user_id
		WHERE rv.pull_request_id=$1 ORDER BY rv.created_at, rv.user_id`, prID)
	if err != nil {
		return nil, wrap("list reviewers", err)
	}
	defer rows.Close()

	res := make([]models.Reviewer, 0)
	for rows.Next() {
		var rv models.Reviewer
		if err := rows.Scan(&rv.PullRequestID, &rv.UserID, &rv.User.Email, &rv.User.Name, &rv.CreatedAt); err != nil {
			return nil, wrap("scan reviewer", err)
		}
		rv.User.ID = rv.UserID
		res = append(res, rv)
	}
	return res, rows.Err()
}
