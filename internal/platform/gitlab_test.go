package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gitlabProject = "/projects/acme%2Fweb"

func TestGitLabCreatePullRequestDraft(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodPost, gitlabProject+"/merge_requests", http.StatusCreated,
		map[string]any{"iid": 4, "web_url": "https://gitlab.com/acme/web/-/merge_requests/4"})
	g := NewGitLab(context.Background(), api.options())

	res, err := g.CreatePullRequest(context.Background(), "acme", "web", CreatePR{
		Head: "feat/login", Base: "main", Title: "Login", Body: "body", Draft: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Number)

	req := api.last(http.MethodPost, gitlabProject+"/merge_requests")
	assert.Equal(t, "Draft: Login", req.Body["title"])
	assert.Equal(t, "feat/login", req.Body["source_branch"])
	assert.Equal(t, "test-token", req.Header.Get("PRIVATE-TOKEN"))
}

func TestGitLabGetPullRequest(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodGet, gitlabProject+"/merge_requests/4", http.StatusOK, map[string]any{
		"iid": 4, "state": "merged", "source_branch": "feat", "target_branch": "main",
		"sha": "abc", "detailed_merge_status": "not_open",
	})
	g := NewGitLab(context.Background(), api.options())

	pr, err := g.GetPullRequest(context.Background(), "acme", "web", 4)
	require.NoError(t, err)
	assert.Equal(t, StateMerged, pr.State)
	assert.True(t, pr.Merged)
	assert.Equal(t, BranchRef{Ref: "feat", SHA: "abc"}, pr.Head)
	assert.Nil(t, pr.Mergeable)
}

func TestGitLabMergeBehindBase(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodPut, gitlabProject+"/merge_requests/4/merge", http.StatusNotAcceptable,
		map[string]any{"message": "Branch cannot be merged: need_rebase"})
	g := NewGitLab(context.Background(), api.options())

	merged, err := g.MergePullRequest(context.Background(), "acme", "web", 4, MethodSquash, true)
	require.Error(t, err)
	assert.False(t, merged)
	assert.True(t, IsBehindBase(err))

	req := api.last(http.MethodPut, gitlabProject+"/merge_requests/4/merge")
	assert.Equal(t, true, req.Body["squash"])
	assert.Equal(t, true, req.Body["should_remove_source_branch"])
}

func TestGitLabFindPRByBranchNone(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodGet, gitlabProject+"/merge_requests", http.StatusOK, []any{})
	g := NewGitLab(context.Background(), api.options())

	res, err := g.FindPRByBranch(context.Background(), "acme", "web", "feat")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGitLabApprovalAndChecks(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodGet, gitlabProject+"/merge_requests/4/approvals", http.StatusOK, map[string]any{
		"approved": true, "approvals_left": 0,
		"approved_by": []any{map[string]any{"user": map[string]any{"username": "ann"}}},
	})
	api.on(http.MethodGet, gitlabProject+"/repository/commits/abc/statuses", http.StatusOK, []any{
		map[string]any{"name": "build", "status": "success"},
		map[string]any{"name": "test", "status": "running"},
	})
	g := NewGitLab(context.Background(), api.options())
	ctx := context.Background()

	ok, err := g.IsPullRequestApproved(ctx, "acme", "web", 4)
	require.NoError(t, err)
	assert.True(t, ok)

	checks, err := g.GetStatusChecks(ctx, "acme", "web", "abc")
	require.NoError(t, err)
	assert.Equal(t, CheckPending, checks.State)
	assert.Len(t, checks.Statuses, 2)
}

func TestGitLabRateLimitHeaders(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	h := http.Header{}
	h.Set("RateLimit-Limit", "600")
	h.Set("RateLimit-Remaining", "599")
	api.onWithHeader(http.MethodGet, gitlabProject+"/merge_requests/1", http.StatusOK, map[string]any{"iid": 1, "state": "opened"}, h)
	g := NewGitLab(context.Background(), api.options())

	_, err := g.GetPullRequest(context.Background(), "acme", "web", 1)
	require.NoError(t, err)
	info := g.RateLimit()
	require.NotNil(t, info.Remaining)
	assert.Equal(t, 599, *info.Remaining)
}

func TestGitLabNotFound(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	g := NewGitLab(context.Background(), api.options())

	_, err := g.GetPullRequest(context.Background(), "acme", "web", 99)
	assert.True(t, IsNotFound(err))
}
