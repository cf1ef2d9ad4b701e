package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/raphi011/gitgrip/internal/log"
)

// GitHubPlatform implements Platform on top of go-github. A BaseURL
// selects a GitHub Enterprise instance.
type GitHubPlatform struct {
	token          string
	enterpriseHost string
	client         *github.Client
	limiter        *rate.Limiter
	rateLimit      *rateLimitTracker
}

// NewGitHub creates a GitHub adapter.
func NewGitHub(ctx context.Context, opts Options) (*GitHubPlatform, error) {
	opts = opts.withDefaults(ctx, GitHub)

	retry := retryablehttp.NewClient()
	retry.HTTPClient = opts.HTTPClient
	retry.RetryMax = opts.Retries
	retry.RetryWaitMin = 200 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = nil
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient := retry.StandardClient()

	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, httpClient), ts)
	}

	client := github.NewClient(httpClient)
	var host string
	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github enterprise url: %w", err)
		}
		host = ExtractHost(opts.BaseURL)
	}

	return &GitHubPlatform{
		token:          opts.Token,
		enterpriseHost: host,
		client:         client,
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		rateLimit:      newRateLimitTracker(opts.Clock, githubRateHeaders),
	}, nil
}

func (g *GitHubPlatform) Type() Type { return GitHub }

func (g *GitHubPlatform) Token() string { return g.token }

func (g *GitHubPlatform) RateLimit() RateLimitInfo { return g.rateLimit.snapshot() }

func (g *GitHubPlatform) MatchesURL(u string) bool {
	if g.enterpriseHost != "" && hostMatches(u, g.enterpriseHost) {
		return true
	}
	return hostMatches(u, "github.com")
}

func (g *GitHubPlatform) ParseRepoURL(u string) (RepoRef, bool) {
	return ParseRepoURL(u, map[string]string{ExtractHost(u): string(GitHub)})
}

// before paces a request against the observed and configured limits.
func (g *GitHubPlatform) before(ctx context.Context, op string) error {
	if err := g.rateLimit.wait(ctx); err != nil {
		return networkError(GitHub, op, err)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return networkError(GitHub, op, err)
	}
	return nil
}

// after records rate-limit headers and converts a go-github error.
func (g *GitHubPlatform) after(ctx context.Context, op string, resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil {
		g.rateLimit.update(resp.Header)
		log.FromContext(ctx).Debug("api request", "platform", GitHub, "op", op, "status", resp.StatusCode)
	}
	if err == nil {
		return nil
	}

	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		e := &Error{Kind: KindRateLimited, Platform: GitHub, Op: op, Msg: rle.Message}
		if rle.Response != nil {
			e.StatusCode = rle.Response.StatusCode
		}
		if d := time.Until(rle.Rate.Reset.Time); d > 0 {
			e.Msg = fmt.Sprintf("%s (retry after %s)", e.Msg, d.Round(time.Second))
		}
		return e
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		e := &Error{Kind: KindRateLimited, Platform: GitHub, Op: op, Msg: abuse.Message}
		if d := abuse.GetRetryAfter(); d > 0 {
			e.Msg = fmt.Sprintf("%s (retry after %s)", e.Msg, d.Round(time.Second))
		}
		return e
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return classifyStatus(GitHub, op, er.Response.StatusCode, githubErrorMessage(er))
	}
	return networkError(GitHub, op, err)
}

// githubErrorMessage joins the top-level message with any field errors.
func githubErrorMessage(er *github.ErrorResponse) string {
	parts := []string{er.Message}
	for _, fe := range er.Errors {
		if fe.Message != "" {
			parts = append(parts, fe.Message)
		} else if fe.Code != "" {
			parts = append(parts, fmt.Sprintf("%s %s", fe.Field, fe.Code))
		}
	}
	return strings.Join(parts, ": ")
}

func (g *GitHubPlatform) CreatePullRequest(ctx context.Context, owner, repo string, req CreatePR) (*PRCreateResult, error) {
	const op = "create pull request"
	if err := g.before(ctx, op); err != nil {
		return nil, err
	}
	pr, resp, err := g.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
		Draft: github.Bool(req.Draft),
	})
	if err := g.after(ctx, op, resp, err); err != nil {
		return nil, err
	}
	return &PRCreateResult{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

func toPullRequest(pr *github.PullRequest) *PullRequest {
	out := &PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		Merged:    pr.GetMerged(),
		Draft:     pr.GetDraft(),
		URL:       pr.GetHTMLURL(),
		Head:      BranchRef{Ref: pr.GetHead().GetRef(), SHA: pr.GetHead().GetSHA()},
		Base:      BranchRef{Ref: pr.GetBase().GetRef(), SHA: pr.GetBase().GetSHA()},
		Mergeable: pr.Mergeable,
	}
	switch {
	case out.Merged:
		out.State = StateMerged
	case pr.GetState() == "open":
		out.State = StateOpen
	default:
		out.State = StateClosed
	}
	return out
}

func (g *GitHubPlatform) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	const op = "get pull request"
	if err := g.before(ctx, op); err != nil {
		return nil, err
	}
	pr, resp, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err := g.after(ctx, op, resp, err); err != nil {
		return nil, err
	}
	return toPullRequest(pr), nil
}

func (g *GitHubPlatform) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	const op = "update pull request"
	if err := g.before(ctx, op); err != nil {
		return err
	}
	_, resp, err := g.client.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{Body: github.String(body)})
	return g.after(ctx, op, resp, err)
}

func (g *GitHubPlatform) MergePullRequest(ctx context.Context, owner, repo string, number int, method MergeMethod, deleteBranch bool) (bool, error) {
	const op = "merge pull request"
	var head string
	if deleteBranch {
		pr, err := g.GetPullRequest(ctx, owner, repo, number)
		if err != nil {
			return false, err
		}
		head = pr.Head.Ref
	}

	if err := g.before(ctx, op); err != nil {
		return false, err
	}
	result, resp, err := g.client.PullRequests.Merge(ctx, owner, repo, number, "", &github.PullRequestOptions{
		MergeMethod: string(method),
	})
	if err := g.after(ctx, op, resp, err); err != nil {
		return false, err
	}
	if !result.GetMerged() {
		return false, nil
	}

	if head != "" {
		if err := g.before(ctx, "delete branch"); err != nil {
			return true, err
		}
		resp, err := g.client.Git.DeleteRef(ctx, owner, repo, "heads/"+head)
		if err := g.after(ctx, "delete branch", resp, err); err != nil && !IsNotFound(err) {
			log.FromContext(ctx).Debug("delete merged branch failed", "repo", owner+"/"+repo, "branch", head, "err", err)
		}
	}
	return true, nil
}

func (g *GitHubPlatform) UpdatePullRequestBranch(ctx context.Context, owner, repo string, number int) error {
	const op = "update pull request branch"
	if err := g.before(ctx, op); err != nil {
		return err
	}
	_, resp, err := g.client.PullRequests.UpdateBranch(ctx, owner, repo, number, nil)
	// The update is scheduled asynchronously and answered with 202.
	var accepted *github.AcceptedError
	if errors.As(err, &accepted) {
		err = nil
	}
	return g.after(ctx, op, resp, err)
}

func (g *GitHubPlatform) FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PRCreateResult, error) {
	const op = "find pull request"
	if err := g.before(ctx, op); err != nil {
		return nil, err
	}
	prs, resp, err := g.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       "open",
		Head:        owner + ":" + branch,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err := g.after(ctx, op, resp, err); err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &PRCreateResult{Number: prs[0].GetNumber(), URL: prs[0].GetHTMLURL()}, nil
}

func (g *GitHubPlatform) GetPullRequestReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	const op = "list reviews"
	var reviews []Review
	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := g.before(ctx, op); err != nil {
			return nil, err
		}
		page, resp, err := g.client.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err := g.after(ctx, op, resp, err); err != nil {
			return nil, err
		}
		for _, r := range page {
			reviews = append(reviews, Review{User: r.GetUser().GetLogin(), State: r.GetState()})
		}
		if resp.NextPage == 0 {
			return reviews, nil
		}
		opts.Page = resp.NextPage
	}
}

func (g *GitHubPlatform) IsPullRequestApproved(ctx context.Context, owner, repo string, number int) (bool, error) {
	reviews, err := g.GetPullRequestReviews(ctx, owner, repo, number)
	if err != nil {
		return false, err
	}
	return ApprovedFromReviews(reviews), nil
}

// GetStatusChecks combines legacy commit statuses with check runs.
func (g *GitHubPlatform) GetStatusChecks(ctx context.Context, owner, repo, ref string) (*StatusChecks, error) {
	const op = "get status checks"
	if err := g.before(ctx, op); err != nil {
		return nil, err
	}
	combined, resp, err := g.client.Repositories.GetCombinedStatus(ctx, owner, repo, ref, &github.ListOptions{PerPage: 100})
	if err := g.after(ctx, op, resp, err); err != nil {
		return nil, err
	}
	result := &StatusChecks{}
	for _, s := range combined.Statuses {
		result.Statuses = append(result.Statuses, CheckStatus{Context: s.GetContext(), State: githubStatusState(s.GetState())})
	}

	if err := g.before(ctx, op); err != nil {
		return nil, err
	}
	runs, resp, err := g.client.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, &github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err := g.after(ctx, op, resp, err); err != nil {
		return nil, err
	}
	for _, run := range runs.CheckRuns {
		result.Statuses = append(result.Statuses, CheckStatus{Context: run.GetName(), State: githubCheckRunState(run)})
	}
	result.State = AggregateChecks(result.Statuses)
	return result, nil
}

func githubStatusState(s string) CheckState {
	switch s {
	case "success":
		return CheckSuccess
	case "failure", "error":
		return CheckFailure
	}
	return CheckPending
}

func githubCheckRunState(run *github.CheckRun) CheckState {
	if run.GetStatus() != "completed" {
		return CheckPending
	}
	switch run.GetConclusion() {
	case "success", "neutral", "skipped":
		return CheckSuccess
	case "failure", "cancelled", "timed_out", "action_required", "startup_failure", "stale":
		return CheckFailure
	}
	return CheckPending
}

func (g *GitHubPlatform) GetAllowedMergeMethods(ctx context.Context, owner, repo string) (AllowedMergeMethods, error) {
	const op = "get repository"
	if err := g.before(ctx, op); err != nil {
		return AllowedMergeMethods{}, err
	}
	r, resp, err := g.client.Repositories.Get(ctx, owner, repo)
	if err := g.after(ctx, op, resp, err); err != nil {
		return AllowedMergeMethods{}, err
	}
	return AllowedMergeMethods{
		Merge:  r.GetAllowMergeCommit(),
		Squash: r.GetAllowSquashMerge(),
		Rebase: r.GetAllowRebaseMerge(),
	}, nil
}

func (g *GitHubPlatform) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	const op = "get pull request diff"
	if err := g.before(ctx, op); err != nil {
		return "", err
	}
	diff, resp, err := g.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err := g.after(ctx, op, resp, err); err != nil {
		return "", err
	}
	return diff, nil
}

// CreateRepository creates the repository under the authenticated user
// when owner is that user, otherwise under the organization owner.
func (g *GitHubPlatform) CreateRepository(ctx context.Context, owner, name, description string, private bool) (string, error) {
	const op = "create repository"
	if err := g.before(ctx, op); err != nil {
		return "", err
	}
	me, resp, err := g.client.Users.Get(ctx, "")
	if err := g.after(ctx, op, resp, err); err != nil {
		return "", err
	}
	org := owner
	if strings.EqualFold(me.GetLogin(), owner) {
		org = ""
	}

	if err := g.before(ctx, op); err != nil {
		return "", err
	}
	r, resp, err := g.client.Repositories.Create(ctx, org, &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(private),
	})
	if err := g.after(ctx, op, resp, err); err != nil {
		return "", err
	}
	if u := r.GetSSHURL(); u != "" {
		return u, nil
	}
	return r.GetCloneURL(), nil
}

func (g *GitHubPlatform) DeleteRepository(ctx context.Context, owner, name string) error {
	const op = "delete repository"
	if err := g.before(ctx, op); err != nil {
		return err
	}
	resp, err := g.client.Repositories.Delete(ctx, owner, name)
	return g.after(ctx, op, resp, err)
}

var (
	_ Platform = (*GitHubPlatform)(nil)
	_ Platform = (*GitLabPlatform)(nil)
	_ Platform = (*AzurePlatform)(nil)
	_ Platform = (*BitbucketPlatform)(nil)
)
