package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prgate/internal/models"
	"prgate/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) repository.Repository {
	return &repo{pool: pool}
}

// wrap maps driver errors onto repository sentinels.
func wrap(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, repository.ErrDuplicate)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, repository.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// whereBuilder collects positional predicates for dynamic filters.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// limitOffset appends LIMIT/OFFSET placeholders and returns the clause.
func (w *whereBuilder) limitOffset(page, limit int) string {
	if limit <= 0 {
		return ""
	}
	w.args = append(w.args, limit, repository.Offset(page, limit))
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

const userColumns = `id, email, name, role, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	return u, err
}

func (r *repo) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users(id, email, name, role) VALUES($1,$2,$3,$4) RETURNING `+userColumns,
		u.ID, u.Email, u.Name, u.Role)
	res, err := scanUser(row)
	if err != nil {
		return models.User{}, wrap("create user", err)
	}
	return res, nil
}

func (r *repo) GetUserByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return models.User{}, wrap("get user", err)
	}
	return u, nil
}

func (r *repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email))
	if err != nil {
		return models.User{}, wrap("get user by email", err)
	}
	return u, nil
}

func (r *repo) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, wrap("get users", err)
	}
	defer rows.Close()

	res := make([]models.User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap("scan user", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *repo) ListUsers(ctx context.Context, role models.Role, page, limit int) ([]models.User, int, error) {
	w := whereBuilder{}
	if role != "" {
		w.add("role = ?", role)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, wrap("count users", err)
	}

	q := `SELECT ` + userColumns + ` FROM users` + w.sql() + ` ORDER BY created_at DESC, id` + w.limitOffset(page, limit)
	rows, err := r.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, wrap("list users", err)
	}
	defer rows.Close()

	res := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, wrap("scan user", err)
		}
		res = append(res, u)
	}
	return res, total, rows.Err()
}

func (r *repo) UpdateUser(ctx context.Context, id string, fields models.UserFields) (models.User, error) {
	sets := []string{}
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if fields.Email != nil {
		set("email", *fields.Email)
	}
	if fields.Name != nil {
		set("name", *fields.Name)
	}
	if fields.Role != nil {
		set("role", *fields.Role)
	}
	if len(sets) == 0 {
		return r.GetUserByID(ctx, id)
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id=$1 RETURNING `+userColumns, args...))
	if err != nil {
		return models.User{}, wrap("update user", err)
	}
	return u, nil
}

// DeleteUser relies on the schema's cascades; the RESTRICT on
// pull_requests.author_id surfaces as ErrReferenced.
func (r *repo) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return fmt.Errorf("delete user %s: %s: %w", id, pgErr.ConstraintName, repository.ErrReferenced)
		}
		return wrap("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user %s: %w", id, repository.ErrNotFound)
	}
	return nil
}
