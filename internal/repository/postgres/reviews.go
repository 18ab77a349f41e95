package postgres

import (
	"context"

	"prgate/internal/models"

	"github.com/jackc/pgx/v5"
)

const reviewColumns = `id, pull_request_id, user_id, decision, body, created_at, updated_at`

func scanReview(row pgx.Row) (models.Review, error) {
	var rv models.Review
	err := row.Scan(&rv.ID, &rv.PullRequestID, &rv.UserID, &rv.Decision, &rv.Body, &rv.CreatedAt, &rv.UpdatedAt)
	return rv, err
}

func (r *repo) CreateReview(ctx context.Context, rv models.Review) (models.Review, error) {
	res, err := scanReview(r.pool.QueryRow(ctx,
		`INSERT INTO reviews(id, pull_request_id, user_id, decision, body) VALUES($1,$2,$3,$4,$5) RETURNING `+reviewColumns,
		rv.ID, rv.PullRequestID, rv.UserID, rv.Decision, rv.Body))
	if err != nil {
		return models.Review{}, wrap("create review", err)
	}
	return res, nil
}

func (r *repo) GetReview(ctx context.Context, id string) (models.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=$1`, id))
	if err != nil {
		return models.Review{}, wrap("get review", err)
	}
	return rv, nil
}

func (r *repo) UpdateReview(ctx context.Context, rv models.Review) (models.Review, error) {
	res, err := scanReview(r.pool.QueryRow(ctx,
		`UPDATE reviews SET decision=$2, body=$3, updated_at=now() WHERE id=$1 RETURNING `+reviewColumns,
		rv.ID, rv.Decision, rv.Body))
	if err != nil {
		return models.Review{}, wrap("update review", err)
	}
	return res, nil
}

func (r *repo) ListReviews(ctx context.Context, prID string) ([]models.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE pull_request_id=$1 ORDER BY created_at`, prID)
	if err != nil {
		return nil, wrap("list reviews", err)
	}
	defer rows.Close()

	res := make([]models.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, wrap("scan review", err)
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}
