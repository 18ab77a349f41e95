package postgres

import (
	"context"
	"fmt"

	"prgate/internal/models"
	"prgate/internal/repository"

	"github.com/jackc/pgx/v5"
)

const commentColumns = `id, pull_request_id, review_id, user_id, body, created_at, updated_at`

func scanComment(row pgx.Row) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.PullRequestID, &c.ReviewID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repo) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	res, err := scanComment(r.pool.QueryRow(ctx,
		`INSERT INTO comments(id, pull_request_id, review_id, user_id, body) VALUES($1,$2,$3,$4,$5) RETURNING `+commentColumns,
		c.ID, c.PullRequestID, c.ReviewID, c.UserID, c.Body))
	if err != nil {
		return models.Comment{}, wrap("create comment", err)
	}
	return res, nil
}

func (r *repo) GetComment(ctx context.Context, id string) (models.Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, id))
	if err != nil {
		return models.Comment{}, wrap("get comment", err)
	}
	return c, nil
}

func (r *repo) UpdateComment(ctx context.Context, id, body string) (models.Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx,
		`UPDATE comments SET body=$2, updated_at=now() WHERE id=$1 RETURNING `+commentColumns, id, body))
	if err != nil {
		return models.Comment{}, wrap("update comment", err)
	}
	return c, nil
}

func (r *repo) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return wrap("delete comment", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete comment %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *repo) ListComments(ctx context.Context, prID string, page, limit int) ([]models.Comment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE pull_request_id=$1`, prID).Scan(&total); err != nil {
		return nil, 0, wrap("count comments", err)
	}

	w := whereBuilder{}
	w.add("pull_request_id = ?", prID)
	q := `SELECT ` + commentColumns + ` FROM comments` + w.sql() + ` ORDER BY created_at, id` + w.limitOffset(page, limit)
	rows, err := r.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, wrap("list comments", err)
	}
	defer rows.Close()

	res := make([]models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, wrap("scan comment", err)
		}
		res = append(res, c)
	}
	return res, total, rows.Err()
}
