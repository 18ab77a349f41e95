//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prgate/internal/migration"
	"prgate/internal/models"
	"prgate/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:17.7",
		tcpostgres.WithDatabase("prgate_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, migration.Run(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		require.NoError(t, container.Terminate(ctx))
	})
	return pool
}

func seedPR(t *testing.T, r repository.Repository) models.PR {
	t.Helper()
	ctx := context.Background()

	for _, u := range []models.User{
		{ID: "u1", Email: "u1@example.com", Name: "U1", Role: models.RoleDeveloper},
		{ID: "u2", Email: "u2@example.com", Name: "U2", Role: models.RoleReviewer},
	} {
		_, err := r.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	pr, err := r.CreatePR(ctx, models.PR{
		ID:             "pr1",
		Title:          "Add gate",
		RepositoryLink: "https://github.com/acme/app",
		Status:         models.PRStatusOpen,
		Checklist:      []models.ChecklistItem{{Label: "docs"}},
		AuthorID:       "u1",
	})
	require.NoError(t, err)
	return pr
}

func TestIntegrationRepository(t *testing.T) {
	pool := setupTestDB(t)
	r := NewRepo(pool)
	ctx := context.Background()
	pr := seedPR(t, r)

	t.Run("create PR defaults", func(t *testing.T) {
		assert.Equal(t, 1, pr.Version)
		assert.Equal(t, []models.ChecklistItem{{Label: "docs"}}, pr.Checklist)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := r.CreateUser(ctx, models.User{ID: "u9", Email: "U1@example.com", Name: "dup", Role: models.RoleDeveloper})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("concurrent updates with same version", func(t *testing.T) {
		cur, err := r.GetPR(ctx, pr.ID)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				title := "racer"
				_, err := r.UpdatePR(ctx, pr.ID, cur.Version, models.PRFields{Title: &title})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
				} else if errors.Is(err, repository.ErrVersionConflict) {
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 4, conflicts)

		after, err := r.GetPR(ctx, pr.ID)
		require.NoError(t, err)
		assert.Equal(t, cur.Version+1, after.Version)
	})

	t.Run("update missing PR", func(t *testing.T) {
		title := "x"
		_, err := r.UpdatePR(ctx, "missing", 1, models.PRFields{Title: &title})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("reviewers and reviews", func(t *testing.T) {
		added, err := r.AddReviewers(ctx, pr.ID, []string{"u2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u2"}, added)

		added, err = r.AddReviewers(ctx, pr.ID, []string{"u2"})
		require.NoError(t, err)
		assert.Empty(t, added)

		_, err = r.AddReviewers(ctx, pr.ID, []string{"ghost"})
		assert.ErrorIs(t, err, repository.ErrNotFound)

		revs, err := r.ListReviewers(ctx, pr.ID)
		require.NoError(t, err)
		require.Len(t, revs, 1)
		assert.Equal(t, "u2@example.com", revs[0].User.Email)

		_, err = r.CreateReview(ctx, models.Review{ID: "rv1", PullRequestID: pr.ID, UserID: "u2", Decision: models.DecisionApproved})
		require.NoError(t, err)
		_, err = r.CreateReview(ctx, models.Review{ID: "rv2", PullRequestID: pr.ID, UserID: "u2", Decision: models.DecisionRejected})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("deployment upsert keeps untouched fields", func(t *testing.T) {
		ds, err := r.GetDeploymentStatus(ctx, pr.ID)
		require.NoError(t, err)
		assert.Nil(t, ds)

		ci := true
		blockers := []string{"freeze"}
		_, err = r.UpsertDeploymentStatus(ctx, pr.ID, models.DeploymentPatch{CIPassed: &ci, Blockers: &blockers})
		require.NoError(t, err)

		ready := false
		got, err := r.UpsertDeploymentStatus(ctx, pr.ID, models.DeploymentPatch{Ready: &ready})
		require.NoError(t, err)
		require.NotNil(t, got.CIPassed)
		assert.True(t, *got.CIPassed)
		assert.Equal(t, []string{"freeze"}, got.Blockers)
		assert.Equal(t, []string{}, got.Warnings)

		_, err = r.UpsertDeploymentStatus(ctx, "missing", models.DeploymentPatch{Ready: &ready})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("deployment ci reset and single stamp", func(t *testing.T) {
		got, err := r.UpsertDeploymentStatus(ctx, pr.ID, models.DeploymentPatch{SetCIPassed: true})
		require.NoError(t, err)
		assert.Nil(t, got.CIPassed)
		assert.Equal(t, []string{"freeze"}, got.Blockers)

		first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		by := "u1"
		_, err = r.UpsertDeploymentStatus(ctx, pr.ID, models.DeploymentPatch{DeployedAt: &first, DeployedByID: &by})
		require.NoError(t, err)

		later := first.Add(time.Hour)
		got, err = r.UpsertDeploymentStatus(ctx, pr.ID, models.DeploymentPatch{DeployedAt: &later})
		require.NoError(t, err)
		require.NotNil(t, got.DeployedAt)
		assert.True(t, got.DeployedAt.Equal(first))
		require.NotNil(t, got.DeployedByID)
		assert.Equal(t, "u1", *got.DeployedByID)
	})

	t.Run("user administration", func(t *testing.T) {
		_, err := r.CreateUser(ctx, models.User{ID: "u3", Email: "u3@example.com", Name: "U3", Role: models.RoleReviewer})
		require.NoError(t, err)

		users, total, err := r.ListUsers(ctx, models.RoleReviewer, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, users, 1)
		assert.Equal(t, "u3", users[0].ID)

		role := models.RoleReleaseManager
		u, err := r.UpdateUser(ctx, "u3", models.UserFields{Role: &role})
		require.NoError(t, err)
		assert.Equal(t, role, u.Role)

		taken := "U2@example.com"
		_, err = r.UpdateUser(ctx, "u3", models.UserFields{Email: &taken})
		assert.ErrorIs(t, err, repository.ErrDuplicate)

		assert.ErrorIs(t, r.DeleteUser(ctx, "u1"), repository.ErrReferenced)
		require.NoError(t, r.DeleteUser(ctx, "u3"))
		assert.ErrorIs(t, r.DeleteUser(ctx, "u3"), repository.ErrNotFound)
	})

	t.Run("comments page", func(t *testing.T) {
		for _, id := range []string{"c1", "c2", "c3"} {
			_, err := r.CreateComment(ctx, models.Comment{ID: id, PullRequestID: pr.ID, UserID: "u1", Body: id})
			require.NoError(t, err)
		}
		got, total, err := r.ListComments(ctx, pr.ID, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, got, 1)
	})

	t.Run("status bump and lookup by link", func(t *testing.T) {
		before, err := r.GetPR(ctx, pr.ID)
		require.NoError(t, err)

		got, err := r.SetPRStatus(ctx, pr.ID, models.PRStatusDeployed)
		require.NoError(t, err)
		assert.Equal(t, before.Version+1, got.Version)

		found, err := r.FindPRByRepositoryLink(ctx, "https://github.com/acme/app")
		require.NoError(t, err)
		assert.Equal(t, pr.ID, found.ID)
	})

	t.Run("audit filters", func(t *testing.T) {
		prID := pr.ID
		require.NoError(t, r.RecordAudit(ctx, models.AuditEntry{
			ID: "a1", EntityType: "pull_request", EntityID: prID, Action: "status_change",
			UserID: "u1", PullRequestID: &prID, Metadata: []byte(`{"from":"OPEN","to":"DEPLOYED"}`),
		}))
		entries, total, err := r.ListAudit(ctx, models.AuditFilter{PullRequestID: prID, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.JSONEq(t, `{"from":"OPEN","to":"DEPLOYED"}`, string(entries[0].Metadata))
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, r.DeletePR(ctx, pr.ID))
		_, err := r.GetReview(ctx, "rv1")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, r.DeletePR(ctx, pr.ID), repository.ErrNotFound)
	})
}
