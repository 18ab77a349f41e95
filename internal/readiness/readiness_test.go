package readiness

import (
	"encoding/json"
	"testing"

	"prgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewer(id string) models.Reviewer {
	return models.Reviewer{PullRequestID: "pr", UserID: id, User: models.UserRef{ID: id, Name: "user " + id}}
}

func review(userID string, d models.ReviewDecision) models.Review {
	return models.Review{ID: "rv-" + userID, PullRequestID: "pr", UserID: userID, Decision: d}
}

func boolPtr(b bool) *bool { return &b }

func basePR() models.PR {
	return models.PR{ID: "pr", AuthorID: "u1", Status: models.PRStatusInReview, Version: 1}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name        string
		reviewers   []models.Reviewer
		reviews     []models.Review
		wantPending int
		wantReject  bool
		wantAll     bool
		wantStatus  ApprovalStatus
	}{
		{
			name:       "no reviewers",
			wantStatus: ApprovalPending,
		},
		{
			name:       "all approved",
			reviewers:  []models.Reviewer{reviewer("u2"), reviewer("u3")},
			reviews:    []models.Review{review("u2", models.DecisionApproved), review("u3", models.DecisionApproved)},
			wantAll:    true,
			wantStatus: ApprovalApproved,
		},
		{
			name:        "one pending",
			reviewers:   []models.Reviewer{reviewer("u2"), reviewer("u3")},
			reviews:     []models.Review{review("u2", models.DecisionApproved)},
			wantPending: 1,
			wantStatus:  ApprovalPending,
		},
		{
			name:       "changes requested is not approval",
			reviewers:  []models.Reviewer{reviewer("u2")},
			reviews:    []models.Review{review("u2", models.DecisionChangesRequested)},
			wantStatus: ApprovalPending,
		},
		{
			name:       "rejection wins over approvals",
			reviewers:  []models.Reviewer{reviewer("u2"), reviewer("u3")},
			reviews:    []models.Review{review("u2", models.DecisionApproved), review("u3", models.DecisionRejected)},
			wantReject: true,
			wantStatus: ApprovalRejected,
		},
		{
			name:       "orphaned approval ignored",
			reviewers:  []models.Reviewer{reviewer("u2")},
			reviews:    []models.Review{review("u2", models.DecisionApproved), review("gone", models.DecisionApproved)},
			wantAll:    true,
			wantStatus: ApprovalApproved,
		},
		{
			name:       "orphaned rejection still counts",
			reviewers:  []models.Reviewer{reviewer("u2")},
			reviews:    []models.Review{review("u2", models.DecisionApproved), review("gone", models.DecisionRejected)},
			wantReject: true,
			wantAll:    true,
			wantStatus: ApprovalRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Aggregate(tt.reviewers, tt.reviews)
			assert.Len(t, agg.PendingReviewers, tt.wantPending)
			assert.Equal(t, tt.wantReject, agg.HasRejection)
			assert.Equal(t, tt.wantAll, agg.AllApproved)
			assert.Equal(t, tt.wantStatus, agg.Status)
		})
	}
}

func TestAggregateExtraReviewerFlipsAllApproved(t *testing.T) {
	reviewers := []models.Reviewer{reviewer("u2")}
	reviews := []models.Review{review("u2", models.DecisionApproved)}
	require.True(t, Aggregate(reviewers, reviews).AllApproved)

	reviewers = append(reviewers, reviewer("u3"))
	assert.False(t, Aggregate(reviewers, reviews).AllApproved)
}

func TestEvaluateEmptyReviewersNeverReady(t *testing.T) {
	checklists := [][]models.ChecklistItem{
		nil,
		{{Label: "docs", Done: true}},
		{{Label: "docs", Done: false}},
	}
	cis := []*bool{nil, boolPtr(true), boolPtr(false)}

	for _, cl := range checklists {
		for _, ci := range cis {
			pr := basePR()
			pr.Checklist = cl
			rep := Evaluate(Input{PR: pr, Deployment: &models.DeploymentStatus{CIPassed: ci}})
			assert.False(t, rep.Ready)
			assert.NotContains(t, rep.Blockers, BlockerNotApproved)
		}
	}
}

func TestEvaluateRejectionBlocks(t *testing.T) {
	rep := Evaluate(Input{
		PR:        basePR(),
		Reviewers: []models.Reviewer{reviewer("u2"), reviewer("u3"), reviewer("u4")},
		Reviews: []models.Review{
			review("u2", models.DecisionApproved),
			review("u3", models.DecisionApproved),
			review("u4", models.DecisionRejected),
		},
		Deployment: &models.DeploymentStatus{CIPassed: boolPtr(true)},
	})

	assert.False(t, rep.Ready)
	assert.Equal(t, ApprovalRejected, rep.ApprovalStatus)
	assert.Equal(t, []string{BlockerRejected, BlockerNotApproved}, rep.Blockers)
}

func TestEvaluateScenarios(t *testing.T) {
	t.Run("single approval is ready", func(t *testing.T) {
		rep := Evaluate(Input{
			PR:        basePR(),
			Reviewers: []models.Reviewer{reviewer("u2")},
			Reviews:   []models.Review{review("u2", models.DecisionApproved)},
		})
		assert.True(t, rep.Ready)
		assert.Equal(t, ApprovalApproved, rep.ApprovalStatus)
		assert.Empty(t, rep.Blockers)
		assert.Empty(t, rep.Warnings)
		assert.Nil(t, rep.CIPassed)
		assert.True(t, rep.ChecklistComplete)
		assert.Equal(t, 0, rep.ChecklistTotal)
	})

	t.Run("changes requested is pending", func(t *testing.T) {
		rep := Evaluate(Input{
			PR:        basePR(),
			Reviewers: []models.Reviewer{reviewer("u2")},
			Reviews:   []models.Review{review("u2", models.DecisionChangesRequested)},
		})
		assert.False(t, rep.Ready)
		assert.Equal(t, ApprovalPending, rep.ApprovalStatus)
		assert.Equal(t, []string{BlockerNotApproved}, rep.Blockers)
	})

	t.Run("one of two reviewers pending", func(t *testing.T) {
		rep := Evaluate(Input{
			PR:        basePR(),
			Reviewers: []models.Reviewer{reviewer("u2"), reviewer("u3")},
			Reviews:   []models.Review{review("u2", models.DecisionApproved)},
		})
		assert.False(t, rep.Ready)
		require.Len(t, rep.PendingReviewers, 1)
		assert.Equal(t, "u3", rep.PendingReviewers[0].ID)
		assert.Contains(t, rep.Warnings, "1 reviewer(s) pending")
	})
}

func TestEvaluateDeploymentInputs(t *testing.T) {
	approved := Input{
		PR:        basePR(),
		Reviewers: []models.Reviewer{reviewer("u2")},
		Reviews:   []models.Review{review("u2", models.DecisionApproved)},
	}

	tests := []struct {
		name         string
		checklist    []models.ChecklistItem
		ds           *models.DeploymentStatus
		wantReady    bool
		wantBlockers []string
		wantWarnings []string
	}{
		{
			name:         "ci unknown is not blocking",
			ds:           &models.DeploymentStatus{},
			wantReady:    true,
			wantBlockers: []string{},
			wantWarnings: []string{},
		},
		{
			name:         "ci failed blocks without a blocker string",
			ds:           &models.DeploymentStatus{CIPassed: boolPtr(false)},
			wantBlockers: []string{},
			wantWarnings: []string{},
		},
		{
			name:         "manual blocker overrides",
			ds:           &models.DeploymentStatus{CIPassed: boolPtr(true), Blockers: []string{"freeze"}},
			wantBlockers: []string{"freeze"},
			wantWarnings: []string{},
		},
		{
			name:         "warnings do not block",
			ds:           &models.DeploymentStatus{Warnings: []string{"late night deploy"}},
			wantReady:    true,
			wantBlockers: []string{},
			wantWarnings: []string{"late night deploy"},
		},
		{
			name:         "incomplete checklist",
			checklist:    []models.ChecklistItem{{Label: "docs", Done: true}, {Label: "tests", Done: false}},
			wantBlockers: []string{BlockerChecklistOpen},
			wantWarnings: []string{},
		},
		{
			name:         "complete checklist",
			checklist:    []models.ChecklistItem{{Label: "docs", Done: true}},
			wantReady:    true,
			wantBlockers: []string{},
			wantWarnings: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := approved
			in.PR.Checklist = tt.checklist
			in.Deployment = tt.ds
			rep := Evaluate(in)
			assert.Equal(t, tt.wantReady, rep.Ready)
			assert.Equal(t, tt.wantBlockers, rep.Blockers)
			assert.Equal(t, tt.wantWarnings, rep.Warnings)
			assert.Equal(t, len(tt.checklist), rep.ChecklistTotal)
		})
	}
}

func TestEvaluateManualBlockersAfterComputed(t *testing.T) {
	pr := basePR()
	pr.Checklist = []models.ChecklistItem{{Label: "docs"}}
	rep := Evaluate(Input{
		PR:         pr,
		Reviewers:  []models.Reviewer{reviewer("u2"), reviewer("u3")},
		Reviews:    []models.Review{review("u2", models.DecisionRejected)},
		Deployment: &models.DeploymentStatus{Blockers: []string{"freeze"}, Warnings: []string{"manual"}},
	})

	assert.Equal(t, []string{BlockerRejected, BlockerNotApproved, BlockerChecklistOpen, "freeze"}, rep.Blockers)
	assert.Equal(t, []string{"manual", "1 reviewer(s) pending"}, rep.Warnings)
}

func TestReportListsSerializeAsArrays(t *testing.T) {
	rep := Evaluate(Input{PR: basePR()})

	raw, err := json.Marshal(rep)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []any{}, out["blockers"])
	assert.Equal(t, []any{}, out["warnings"])
	assert.Equal(t, []any{}, out["pending_reviewers"])
	assert.Equal(t, []any{}, out["reviews"])
}
