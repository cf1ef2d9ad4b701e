package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const bitbucketDefaultBaseURL = "https://api.bitbucket.org/2.0"

// BitbucketPlatform implements Platform for Bitbucket Cloud. A token of
// the form "user:app-password" uses basic auth, anything else is sent as
// a bearer token.
type BitbucketPlatform struct {
	token  string
	client *restClient
}

// NewBitbucket creates a Bitbucket Cloud adapter.
func NewBitbucket(ctx context.Context, opts Options) *BitbucketPlatform {
	opts = opts.withDefaults(ctx, Bitbucket)
	if opts.BaseURL == "" {
		opts.BaseURL = bitbucketDefaultBaseURL
	}
	token := opts.Token
	return &BitbucketPlatform{
		token: token,
		client: newRESTClient(Bitbucket, opts, githubRateHeaders, func(r *retryablehttp.Request) {
			if token == "" {
				return
			}
			if user, pass, ok := strings.Cut(token, ":"); ok {
				r.SetBasicAuth(user, pass)
				return
			}
			r.Header.Set("Authorization", "Bearer "+token)
		}),
	}
}

func (b *BitbucketPlatform) Type() Type { return Bitbucket }

func (b *BitbucketPlatform) Token() string { return b.token }

func (b *BitbucketPlatform) RateLimit() RateLimitInfo { return b.client.snapshot() }

func (b *BitbucketPlatform) MatchesURL(u string) bool {
	return hostMatches(u, "bitbucket.org")
}

func (b *BitbucketPlatform) ParseRepoURL(u string) (RepoRef, bool) {
	return ParseRepoURL(u, map[string]string{ExtractHost(u): string(Bitbucket)})
}

func bitbucketRepoPath(owner, repo string) string {
	return fmt.Sprintf("/repositories/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
}

type bitbucketPR struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	Draft       bool   `json:"draft"`
	Source      struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
		Commit struct {
			Hash string `json:"hash"`
		} `json:"commit"`
	} `json:"source"`
	Destination struct {
		Branch struct {
			Name string `json:"name"`
		} `json:"branch"`
		Commit struct {
			Hash string `json:"hash"`
		} `json:"commit"`
	} `json:"destination"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
	Participants []bitbucketParticipant `json:"participants"`
}

type bitbucketParticipant struct {
	User struct {
		Nickname    string `json:"nickname"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
	State    string `json:"state"`
}

func (pr bitbucketPR) toPullRequest() *PullRequest {
	out := &PullRequest{
		Number: pr.ID,
		Title:  pr.Title,
		Body:   pr.Description,
		Draft:  pr.Draft,
		URL:    pr.Links.HTML.Href,
		Head:   BranchRef{Ref: pr.Source.Branch.Name, SHA: pr.Source.Commit.Hash},
		Base:   BranchRef{Ref: pr.Destination.Branch.Name, SHA: pr.Destination.Commit.Hash},
	}
	switch pr.State {
	case "MERGED":
		out.State, out.Merged = StateMerged, true
	case "OPEN":
		out.State = StateOpen
	default:
		out.State = StateClosed
	}
	return out
}

func (b *BitbucketPlatform) CreatePullRequest(ctx context.Context, owner, repo string, req CreatePR) (*PRCreateResult, error) {
	var pr bitbucketPR
	err := b.client.do(ctx, "create pull request", http.MethodPost, bitbucketRepoPath(owner, repo)+"/pullrequests", map[string]any{
		"title":       req.Title,
		"description": req.Body,
		"draft":       req.Draft,
		"source":      map[string]any{"branch": map[string]string{"name": req.Head}},
		"destination": map[string]any{"branch": map[string]string{"name": req.Base}},
	}, &pr)
	if err != nil {
		return nil, err
	}
	return &PRCreateResult{Number: pr.ID, URL: pr.Links.HTML.Href}, nil
}

func (b *BitbucketPlatform) getPR(ctx context.Context, owner, repo string, number int) (*bitbucketPR, error) {
	var pr bitbucketPR
	path := fmt.Sprintf("%s/pullrequests/%d", bitbucketRepoPath(owner, repo), number)
	if err := b.client.do(ctx, "get pull request", http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (b *BitbucketPlatform) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, err := b.getPR(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	return pr.toPullRequest(), nil
}

func (b *BitbucketPlatform) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("%s/pullrequests/%d", bitbucketRepoPath(owner, repo), number)
	return b.client.do(ctx, "update pull request", http.MethodPut, path, map[string]any{"description": body}, nil)
}

func bitbucketMergeStrategy(m MergeMethod) string {
	switch m {
	case MethodSquash:
		return "squash"
	case MethodRebase:
		return "fast_forward"
	}
	return "merge_commit"
}

func (b *BitbucketPlatform) MergePullRequest(ctx context.Context, owner, repo string, number int, method MergeMethod, deleteBranch bool) (bool, error) {
	var pr bitbucketPR
	path := fmt.Sprintf("%s/pullrequests/%d/merge", bitbucketRepoPath(owner, repo), number)
	err := b.client.do(ctx, "merge pull request", http.MethodPost, path, map[string]any{
		"merge_strategy":      bitbucketMergeStrategy(method),
		"close_source_branch": deleteBranch,
	}, &pr)
	if err != nil {
		return false, err
	}
	return pr.State == "MERGED", nil
}

func (b *BitbucketPlatform) UpdatePullRequestBranch(context.Context, string, string, int) error {
	return unsupported(Bitbucket, "update pull request branch")
}

func (b *BitbucketPlatform) FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PRCreateResult, error) {
	q := url.Values{"q": {fmt.Sprintf(`source.branch.name="%s" AND state="OPEN"`, branch)}}
	var page struct {
		Values []bitbucketPR `json:"values"`
	}
	path := bitbucketRepoPath(owner, repo) + "/pullrequests?" + q.Encode()
	if err := b.client.do(ctx, "find pull request", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	if len(page.Values) == 0 {
		return nil, nil
	}
	pr := page.Values[0]
	return &PRCreateResult{Number: pr.ID, URL: pr.Links.HTML.Href}, nil
}

func (b *BitbucketPlatform) GetPullRequestReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	pr, err := b.getPR(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	var reviews []Review
	for _, p := range pr.Participants {
		if p.Role != "REVIEWER" && !p.Approved && p.State == "" {
			continue
		}
		user := p.User.Nickname
		if user == "" {
			user = p.User.DisplayName
		}
		state := ReviewPending
		switch {
		case p.Approved || p.State == "approved":
			state = ReviewApproved
		case p.State == "changes_requested":
			state = ReviewChangesRequested
		}
		reviews = append(reviews, Review{User: user, State: state})
	}
	return reviews, nil
}

func (b *BitbucketPlatform) IsPullRequestApproved(ctx context.Context, owner, repo string, number int) (bool, error) {
	reviews, err := b.GetPullRequestReviews(ctx, owner, repo, number)
	if err != nil {
		return false, err
	}
	return ApprovedFromReviews(reviews), nil
}

func (b *BitbucketPlatform) GetStatusChecks(ctx context.Context, owner, repo, ref string) (*StatusChecks, error) {
	var page struct {
		Values []struct {
			Key   string `json:"key"`
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"values"`
	}
	path := fmt.Sprintf("%s/commit/%s/statuses", bitbucketRepoPath(owner, repo), url.PathEscape(ref))
	if err := b.client.do(ctx, "get commit statuses", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	result := &StatusChecks{}
	for _, s := range page.Values {
		name := s.Name
		if name == "" {
			name = s.Key
		}
		result.Statuses = append(result.Statuses, CheckStatus{Context: name, State: bitbucketCheckState(s.State)})
	}
	result.State = AggregateChecks(result.Statuses)
	return result, nil
}

func bitbucketCheckState(s string) CheckState {
	switch s {
	case "SUCCESSFUL":
		return CheckSuccess
	case "FAILED", "STOPPED":
		return CheckFailure
	}
	return CheckPending
}

// GetAllowedMergeMethods reports every method. Bitbucket exposes no
// per-repository setting for it on the public API.
func (b *BitbucketPlatform) GetAllowedMergeMethods(context.Context, string, string) (AllowedMergeMethods, error) {
	return AllowedMergeMethods{Merge: true, Squash: true, Rebase: true}, nil
}

func (b *BitbucketPlatform) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	path := fmt.Sprintf("%s/pullrequests/%d/diff", bitbucketRepoPath(owner, repo), number)
	data, _, err := b.client.doRaw(ctx, "get pull request diff", http.MethodGet, path, nil, "text/plain")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *BitbucketPlatform) CreateRepository(ctx context.Context, owner, name, description string, private bool) (string, error) {
	var repo struct {
		Links struct {
			Clone []struct {
				Name string `json:"name"`
				Href string `json:"href"`
			} `json:"clone"`
		} `json:"links"`
	}
	err := b.client.do(ctx, "create repository", http.MethodPost, bitbucketRepoPath(owner, name), map[string]any{
		"scm":         "git",
		"description": description,
		"is_private":  private,
	}, &repo)
	if err != nil {
		return "", err
	}
	var https string
	for _, c := range repo.Links.Clone {
		if c.Name == "ssh" {
			return c.Href, nil
		}
		if c.Name == "https" {
			https = c.Href
		}
	}
	return https, nil
}

func (b *BitbucketPlatform) DeleteRepository(ctx context.Context, owner, name string) error {
	return b.client.do(ctx, "delete repository", http.MethodDelete, bitbucketRepoPath(owner, name), nil, nil)
}
