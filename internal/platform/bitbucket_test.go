package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bitbucketRepo = "/repositories/acme/web"

func TestBitbucketAuth(t *testing.T) {
	t.Parallel()

	t.Run("bearer", func(t *testing.T) {
		t.Parallel()
		api := newFakeAPI(t)
		api.on(http.MethodGet, bitbucketRepo+"/pullrequests/1", http.StatusOK, map[string]any{"id": 1, "state": "OPEN"})
		b := NewBitbucket(context.Background(), api.options())

		_, err := b.GetPullRequest(context.Background(), "acme", "web", 1)
		require.NoError(t, err)
		assert.Equal(t, "Bearer test-token", api.last(http.MethodGet, bitbucketRepo+"/pullrequests/1").Header.Get("Authorization"))
	})

	t.Run("app password", func(t *testing.T) {
		t.Parallel()
		api := newFakeAPI(t)
		api.on(http.MethodGet, bitbucketRepo+"/pullrequests/1", http.StatusOK, map[string]any{"id": 1, "state": "OPEN"})
		opts := api.options()
		opts.Token = "ann:secret"
		b := NewBitbucket(context.Background(), opts)

		_, err := b.GetPullRequest(context.Background(), "acme", "web", 1)
		require.NoError(t, err)
		req := api.last(http.MethodGet, bitbucketRepo+"/pullrequests/1")
		user, pass, ok := (&http.Request{Header: req.Header}).BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ann", user)
		assert.Equal(t, "secret", pass)
	})
}

func TestBitbucketCreateAndMerge(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodPost, bitbucketRepo+"/pullrequests", http.StatusCreated, map[string]any{
		"id": 8, "links": map[string]any{"html": map[string]any{"href": "https://bitbucket.org/acme/web/pull-requests/8"}},
	})
	api.on(http.MethodPost, bitbucketRepo+"/pullrequests/8/merge", http.StatusOK, map[string]any{"id": 8, "state": "MERGED"})
	b := NewBitbucket(context.Background(), api.options())
	ctx := context.Background()

	res, err := b.CreatePullRequest(ctx, "acme", "web", CreatePR{Head: "feat", Base: "main", Title: "T"})
	require.NoError(t, err)
	assert.Equal(t, "https://bitbucket.org/acme/web/pull-requests/8", res.URL)
	create := api.last(http.MethodPost, bitbucketRepo+"/pullrequests")
	assert.Equal(t, map[string]any{"branch": map[string]any{"name": "feat"}}, create.Body["source"])

	merged, err := b.MergePullRequest(ctx, "acme", "web", 8, MethodSquash, true)
	require.NoError(t, err)
	assert.True(t, merged)
	merge := api.last(http.MethodPost, bitbucketRepo+"/pullrequests/8/merge")
	assert.Equal(t, "squash", merge.Body["merge_strategy"])
	assert.Equal(t, true, merge.Body["close_source_branch"])
}

func TestBitbucketReviewsAndChecks(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodGet, bitbucketRepo+"/pullrequests/8", http.StatusOK, map[string]any{
		"id": 8, "state": "OPEN",
		"participants": []any{
			map[string]any{"user": map[string]any{"nickname": "ann"}, "role": "REVIEWER", "approved": true},
			map[string]any{"user": map[string]any{"nickname": "bob"}, "role": "PARTICIPANT"},
		},
	})
	api.on(http.MethodGet, bitbucketRepo+"/commit/abc/statuses", http.StatusOK, map[string]any{
		"values": []any{map[string]any{"key": "build", "state": "SUCCESSFUL"}},
	})
	b := NewBitbucket(context.Background(), api.options())
	ctx := context.Background()

	reviews, err := b.GetPullRequestReviews(ctx, "acme", "web", 8)
	require.NoError(t, err)
	assert.Equal(t, []Review{{User: "ann", State: ReviewApproved}}, reviews)

	checks, err := b.GetStatusChecks(ctx, "acme", "web", "abc")
	require.NoError(t, err)
	assert.Equal(t, CheckSuccess, checks.State)
	assert.Equal(t, "build", checks.Statuses[0].Context)
}

func TestBitbucketDiff(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.on(http.MethodGet, bitbucketRepo+"/pullrequests/8/diff", http.StatusOK, "diff --git a/f b/f\n")
	b := NewBitbucket(context.Background(), api.options())

	diff, err := b.GetPullRequestDiff(context.Background(), "acme", "web", 8)
	require.NoError(t, err)
	assert.Equal(t, "diff --git a/f b/f\n", diff)
}
