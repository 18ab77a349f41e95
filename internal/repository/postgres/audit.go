package postgres

import (
	"context"
	"fmt"

	"prgate/internal/models"
	"prgate/internal/repository"

	"github.com/jackc/pgx/v5"
)

const (
	auditColumns        = `id, entity_type, entity_id, action, user_id, pull_request_id, metadata, created_at`
	notificationColumns = `id, user_id, type, title, body, link, metadata, read, created_at`
)

func scanAudit(row pgx.Row) (models.AuditEntry, error) {
	var (
		e    models.AuditEntry
		meta []byte
	)
	err := row.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.PullRequestID, &meta, &e.CreatedAt)
	e.Metadata = meta
	return e, err
}

func (r *repo) RecordAudit(ctx context.Context, e models.AuditEntry) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		meta = e.Metadata
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs(id, entity_type, entity_id, action, user_id, pull_request_id, metadata)
		 VALUES($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.EntityType, e.EntityID, e.Action, e.UserID, e.PullRequestID, meta)
	if err != nil {
		return wrap("record audit", err)
	}
	return nil
}

func (r *repo) ListAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int, error) {
	var w whereBuilder
	if f.EntityType != "" {
		w.add("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		w.add("entity_id = ?", f.EntityID)
	}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		w.add("action = ?", f.Action)
	}
	if f.PullRequestID != "" {
		w.add("pull_request_id = ?", f.PullRequestID)
	}
	if f.DateFrom != nil {
		w.add("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		w.add("created_at <= ?", *f.DateTo)
	}
	where := w.sql()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, wrap("count audit", err)
	}

	limit := w.limitOffset(f.Page, f.Limit)
	rows, err := r.pool.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs`+where+` ORDER BY created_at DESC`+limit, w.args...)
	if err != nil {
		return nil, 0, wrap("list audit", err)
	}
	defer rows.Close()

	out := make([]models.AuditEntry, 0)
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, 0, wrap("scan audit", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanNotification(row pgx.Row) (models.Notification, error) {
	var (
		n    models.Notification
		meta []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Link, &meta, &n.Read, &n.CreatedAt)
	n.Metadata = meta
	return n, err
}

func (r *repo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var meta []byte
	if len(n.Metadata) > 0 {
		meta = n.Metadata
	}
	res, err := scanNotification(r.pool.QueryRow(ctx,
		`INSERT INTO notifications(id, user_id, type, title, body, link, metadata)
		 VALUES($1,$2,$3,$4,$5,$6,$7) RETURNING `+notificationColumns,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.Link, meta))
	if err != nil {
		return models.Notification{}, wrap("create notification", err)
	}
	return res, nil
}

func (r *repo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error) {
	var w whereBuilder
	w.add("user_id = ?", userID)
	if unreadOnly {
		w.add("read = ?", false)
	}
	where := w.sql()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, wrap("count notifications", err)
	}

	lim := w.limitOffset(page, limit)
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications`+where+` ORDER BY created_at DESC`+lim, w.args...)
	if err != nil {
		return nil, 0, wrap("list notifications", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, wrap("scan notification", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *repo) MarkNotificationRead(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read=true WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return wrap("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notification %s read: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *repo) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read=true WHERE user_id=$1 AND read=false`, userID)
	if err != nil {
		return 0, wrap("mark all notifications read", err)
	}
	return int(tag.RowsAffected()), nil
}
