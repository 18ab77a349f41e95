// Package memory is an in-process Repository used by tests and by
// STORAGE_DRIVER=memory. All state lives behind one mutex; version checks
// are compare-and-set under that lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"prgate/internal/models"
	"prgate/internal/repository"
)

type repo struct {
	mu sync.RWMutex

	users         map[string]models.User
	prs           map[string]models.PR
	reviewers     map[string]map[string]time.Time
	reviews       map[string]models.Review
	deployments   map[string]models.DeploymentStatus
	comments      map[string]models.Comment
	audit         []models.AuditEntry
	notifications map[string]models.Notification

	now func() time.Time
}

func NewRepo() repository.Repository {
	return &repo{
		users:         make(map[string]models.User),
		prs:           make(map[string]models.PR),
		reviewers:     make(map[string]map[string]time.Time),
		reviews:       make(map[string]models.Review),
		deployments:   make(map[string]models.DeploymentStatus),
		comments:      make(map[string]models.Comment),
		notifications: make(map[string]models.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func clonePR(pr models.PR) models.PR {
	pr.Checklist = append([]models.ChecklistItem{}, pr.Checklist...)
	return pr
}

func page[T any](items []T, pg, limit int) []T {
	if limit <= 0 {
		return items
	}
	off := repository.Offset(pg, limit)
	if off >= len(items) {
		return []T{}
	}
	end := off + limit
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

func (r *repo) CreateUser(_ context.Context, u models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return models.User{}, fmt.Errorf("create user: %w", repository.ErrDuplicate)
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.User{}, fmt.Errorf("create user: email taken: %w", repository.ErrDuplicate)
		}
	}
	u.CreatedAt = r.now()
	r.users[u.ID] = u
	return u, nil
}

func (r *repo) GetUserByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("get user %s: %w", id, repository.ErrNotFound)
	}
	return u, nil
}

func (r *repo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("get user by email: %w", repository.ErrNotFound)
}

func (r *repo) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

func (r *repo) ListUsers(_ context.Context, role models.Role, pg, limit int) ([]models.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0)
	for _, u := range r.users {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, pg, limit), len(out), nil
}

func (r *repo) UpdateUser(_ context.Context, id string, fields models.UserFields) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("update user %s: %w", id, repository.ErrNotFound)
	}
	if fields.Email != nil {
		for _, existing := range r.users {
			if existing.ID != id && strings.EqualFold(existing.Email, *fields.Email) {
				return models.User{}, fmt.Errorf("update user %s: email taken: %w", id, repository.ErrDuplicate)
			}
		}
	}
	fields.Apply(&u)
	r.users[id] = u
	return u, nil
}

func (r *repo) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("delete user %s: %w", id, repository.ErrNotFound)
	}
	for _, pr := range r.prs {
		if pr.AuthorID == id {
			return fmt.Errorf("delete user %s: authors PR %s: %w", id, pr.ID, repository.ErrReferenced)
		}
	}

	delete(r.users, id)
	for _, set := range r.reviewers {
		delete(set, id)
	}
	for rid, rv := range r.reviews {
		if rv.UserID != id {
			continue
		}
		delete(r.reviews, rid)
		for cid, c := range r.comments {
			if c.ReviewID != nil && *c.ReviewID == rid {
				c.ReviewID = nil
				r.comments[cid] = c
			}
		}
	}
	for cid, c := range r.comments {
		if c.UserID == id {
			delete(r.comments, cid)
		}
	}
	for nid, n := range r.notifications {
		if n.UserID == id {
			delete(r.notifications, nid)
		}
	}
	for prID, ds := range r.deployments {
		if ds.DeployedByID != nil && *ds.DeployedByID == id {
			ds.DeployedByID = nil
			r.deployments[prID] = ds
		}
	}
	return nil
}

func (r *repo) CreatePR(_ context.Context, pr models.PR) (models.PR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prs[pr.ID]; ok {
		return models.PR{}, fmt.Errorf("create PR: %w", repository.ErrDuplicate)
	}
	now := r.now()
	pr.Version = 1
	pr.CreatedAt = now
	pr.UpdatedAt = now
	pr = clonePR(pr)
	r.prs[pr.ID] = pr
	return clonePR(pr), nil
}

func (r *repo) GetPR(_ context.Context, id string) (models.PR, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pr, ok := r.prs[id]
	if !ok {
		return models.PR{}, fmt.Errorf("get PR %s: %w", id, repository.ErrNotFound)
	}
	return clonePR(pr), nil
}

func (r *repo) ListPRs(_ context.Context, f models.PRFilter) ([]models.PR, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.PR, 0)
	for _, pr := range r.prs {
		if f.Status != "" && pr.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && pr.AuthorID != f.AuthorID {
			continue
		}
		if f.ReviewerID != "" {
			if _, ok := r.reviewers[pr.ID][f.ReviewerID]; !ok {
				continue
			}
		}
		out = append(out, clonePR(pr))
	}

	sort.Slice(out, func(i, j int) bool {
		if f.SortBy == "updated" {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Page, f.Limit), len(out), nil
}

func (r *repo) UpdatePR(_ context.Context, id string, expectedVersion int, fields models.PRFields) (models.PR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pr, ok := r.prs[id]
	if !ok {
		return models.PR{}, fmt.Errorf("update PR %s: %w", id, repository.ErrNotFound)
	}
	if pr.Version != expectedVersion {
		return models.PR{}, fmt.Errorf("update PR %s: have %d, want %d: %w", id, pr.Version, expectedVersion, repository.ErrVersionConflict)
	}
	fields.Apply(&pr)
	pr.Version++
	pr.UpdatedAt = r.now()
	r.prs[id] = pr
	return clonePR(pr), nil
}

func (r *repo) SetPRStatus(_ context.Context, id string, status models.PRStatus) (models.PR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pr, ok := r.prs[id]
	if !ok {
		return models.PR{}, fmt.Errorf("set PR status %s: %w", id, repository.ErrNotFound)
	}
	pr.Status = status
	pr.Version++
	pr.UpdatedAt = r.now()
	r.prs[id] = pr
	return clonePR(pr), nil
}

func (r *repo) DeletePR(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prs[id]; !ok {
		return fmt.Errorf("delete PR %s: %w", id, repository.ErrNotFound)
	}
	delete(r.prs, id)
	delete(r.reviewers, id)
	delete(r.deployments, id)
	for rid, rv := range r.reviews {
		if rv.PullRequestID == id {
			delete(r.reviews, rid)
		}
	}
	for cid, c := range r.comments {
		if c.PullRequestID == id {
			delete(r.comments, cid)
		}
	}
	return nil
}

func (r *repo) FindPRByRepositoryLink(_ context.Context, link string) (models.PR, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best  models.PR
		found bool
	)
	for _, pr := range r.prs {
		if pr.RepositoryLink != link {
			continue
		}
		if !found || pr.UpdatedAt.After(best.UpdatedAt) {
			best, found = pr, true
		}
	}
	if !found {
		return models.PR{}, fmt.Errorf("find PR by link: %w", repository.ErrNotFound)
	}
	return clonePR(best), nil
}

func (r *repo) AddReviewers(_ context.Context, prID string, userIDs []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prs[prID]; !ok {
		return nil, fmt.Errorf("add reviewers: %w", repository.ErrNotFound)
	}
	for _, uid := range userIDs {
		if _, ok := r.users[uid]; !ok {
			return nil, fmt.Errorf("add reviewer %s: %w", uid, repository.ErrNotFound)
		}
	}

	set := r.reviewers[prID]
	if set == nil {
		set = make(map[string]time.Time)
		r.reviewers[prID] = set
	}
	added := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		if _, ok := set[uid]; ok {
			continue
		}
		set[uid] = r.now()
		added = append(added, uid)
	}
	return added, nil
}

func (r *repo) RemoveReviewer(_ context.Context, prID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reviewers[prID][userID]; !ok {
		return fmt.Errorf("remove reviewer %s: %w", userID, repository.ErrNotFound)
	}
	delete(r.reviewers[prID], userID)
	return nil
}

func (r *repo) ListReviewers(_ context.Context, prID string) ([]models.Reviewer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]models.Reviewer, 0, len(r.reviewers[prID]))
	for uid, at := range r.reviewers[prID] {
		u := r.users[uid]
		res = append(res, models.Reviewer{
			PullRequestID: prID,
			UserID:        uid,
			User:          models.UserRef{ID: u.ID, Email: u.Email, Name: u.Name},
			CreatedAt:     at,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].UserID < res[j].UserID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (r *repo) CreateReview(_ context.Context, rv models.Review) (models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reviews {
		if existing.PullRequestID == rv.PullRequestID && existing.UserID == rv.UserID {
			return models.Review{}, fmt.Errorf("create review: %w", repository.ErrDuplicate)
		}
	}
	now := r.now()
	rv.CreatedAt = now
	rv.UpdatedAt = now
	r.reviews[rv.ID] = rv
	return rv, nil
}

func (r *repo) GetReview(_ context.Context, id string) (models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rv, ok := r.reviews[id]
	if !ok {
		return models.Review{}, fmt.Errorf("get review %s: %w", id, repository.ErrNotFound)
	}
	return rv, nil
}

func (r *repo) UpdateReview(_ context.Context, rv models.Review) (models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.reviews[rv.ID]
	if !ok {
		return models.Review{}, fmt.Errorf("update review %s: %w", rv.ID, repository.ErrNotFound)
	}
	cur.Decision = rv.Decision
	cur.Body = rv.Body
	cur.UpdatedAt = r.now()
	r.reviews[rv.ID] = cur
	return cur, nil
}

func (r *repo) ListReviews(_ context.Context, prID string) ([]models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]models.Review, 0)
	for _, rv := range r.reviews {
		if rv.PullRequestID == prID {
			res = append(res, rv)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *repo) GetDeploymentStatus(_ context.Context, prID string) (*models.DeploymentStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.deployments[prID]
	if !ok {
		return nil, nil
	}
	ds.Blockers = append([]string{}, ds.Blockers...)
	ds.Warnings = append([]string{}, ds.Warnings...)
	return &ds, nil
}

func (r *repo) UpsertDeploymentStatus(_ context.Context, prID string, p models.DeploymentPatch) (models.DeploymentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prs[prID]; !ok {
		return models.DeploymentStatus{}, fmt.Errorf("upsert deployment status: %w", repository.ErrNotFound)
	}
	ds, ok := r.deployments[prID]
	if !ok {
		ds = models.DeploymentStatus{PullRequestID: prID, Blockers: []string{}, Warnings: []string{}}
	}
	p.Apply(&ds)
	r.deployments[prID] = ds
	return ds, nil
}

func (r *repo) CreateComment(_ context.Context, c models.Comment) (models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prs[c.PullRequestID]; !ok {
		return models.Comment{}, fmt.Errorf("create comment: %w", repository.ErrNotFound)
	}
	now := r.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.comments[c.ID] = c
	return c, nil
}

func (r *repo) GetComment(_ context.Context, id string) (models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("get comment %s: %w", id, repository.ErrNotFound)
	}
	return c, nil
}

func (r *repo) UpdateComment(_ context.Context, id, body string) (models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("update comment %s: %w", id, repository.ErrNotFound)
	}
	c.Body = body
	c.UpdatedAt = r.now()
	r.comments[id] = c
	return c, nil
}

func (r *repo) DeleteComment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[id]; !ok {
		return fmt.Errorf("delete comment %s: %w", id, repository.ErrNotFound)
	}
	delete(r.comments, id)
	return nil
}

func (r *repo) ListComments(_ context.Context, prID string, pg, limit int) ([]models.Comment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]models.Comment, 0)
	for _, c := range r.comments {
		if c.PullRequestID == prID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return page(res, pg, limit), len(res), nil
}

func (r *repo) RecordAudit(_ context.Context, e models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.CreatedAt = r.now()
	r.audit = append(r.audit, e)
	return nil
}

func (r *repo) ListAudit(_ context.Context, f models.AuditFilter) ([]models.AuditEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AuditEntry, 0)
	for i := len(r.audit) - 1; i >= 0; i-- {
		e := r.audit[i]
		switch {
		case f.EntityType != "" && e.EntityType != f.EntityType,
			f.EntityID != "" && e.EntityID != f.EntityID,
			f.UserID != "" && e.UserID != f.UserID,
			f.Action != "" && e.Action != f.Action,
			f.PullRequestID != "" && (e.PullRequestID == nil || *e.PullRequestID != f.PullRequestID),
			f.DateFrom != nil && e.CreatedAt.Before(*f.DateFrom),
			f.DateTo != nil && e.CreatedAt.After(*f.DateTo):
			continue
		}
		out = append(out, e)
	}
	return page(out, f.Page, f.Limit), len(out), nil
}

func (r *repo) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n.CreatedAt = r.now()
	r.notifications[n.ID] = n
	return n, nil
}

func (r *repo) ListNotifications(_ context.Context, userID string, unreadOnly bool, pg, limit int) ([]models.Notification, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, pg, limit), len(out), nil
}

func (r *repo) MarkNotificationRead(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("mark notification %s read: %w", id, repository.ErrNotFound)
	}
	n.Read = true
	r.notifications[id] = n
	return nil
}

func (r *repo) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.notifications[id] = n
			count++
		}
	}
	return count, nil
}
