package platform

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/raphi011/gitgrip/internal/cmd"
)

// Platform is the contract every hosting adapter satisfies.
// Operations that a vendor does not offer return an error for which
// IsUnsupported is true.
type Platform interface {
	// Type returns the platform type.
	Type() Type

	// Token returns the API token in use, empty when unauthenticated.
	Token() string

	// MatchesURL reports whether a remote URL belongs to this platform.
	MatchesURL(url string) bool

	// ParseRepoURL extracts owner and repo from a remote URL.
	ParseRepoURL(url string) (RepoRef, bool)

	// CreatePullRequest opens a PR from head into base.
	CreatePullRequest(ctx context.Context, owner, repo string, req CreatePR) (*PRCreateResult, error)

	// GetPullRequest fetches a PR by number.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)

	// UpdatePullRequestBody replaces a PR description.
	UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error

	// MergePullRequest merges a PR. An empty method uses the platform default.
	// A head that is behind its base fails with an error for which
	// IsBehindBase is true.
	MergePullRequest(ctx context.Context, owner, repo string, number int, method MergeMethod, deleteBranch bool) (bool, error)

	// UpdatePullRequestBranch brings the PR head up to date with its base.
	UpdatePullRequestBranch(ctx context.Context, owner, repo string, number int) error

	// FindPRByBranch returns the open PR whose head is branch, nil if none.
	FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PRCreateResult, error)

	// IsPullRequestApproved applies the platform's approval policy.
	IsPullRequestApproved(ctx context.Context, owner, repo string, number int) (bool, error)

	// GetPullRequestReviews returns the reviews of a PR.
	GetPullRequestReviews(ctx context.Context, owner, repo string, number int) ([]Review, error)

	// GetStatusChecks returns the aggregate CI state of ref.
	GetStatusChecks(ctx context.Context, owner, repo, ref string) (*StatusChecks, error)

	// GetAllowedMergeMethods reports the merge methods the repo accepts.
	GetAllowedMergeMethods(ctx context.Context, owner, repo string) (AllowedMergeMethods, error)

	// GetPullRequestDiff returns the unified diff of a PR.
	GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error)

	// CreateRepository creates a repository and returns its clone URL.
	CreateRepository(ctx context.Context, owner, name, description string, private bool) (string, error)

	// DeleteRepository deletes a repository.
	DeleteRepository(ctx context.Context, owner, name string) error

	// RateLimit returns the last observed rate-limit state.
	RateLimit() RateLimitInfo
}

// Options configure an adapter.
type Options struct {
	// BaseURL overrides the API root (self-hosted instances).
	BaseURL string

	// Token authenticates requests. Empty means TokenFromEnv.
	Token string

	// HTTPClient is the transport. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Clock drives rate-limit waits. Defaults to the real clock.
	Clock clockwork.Clock

	// Retries is the number of transport retries for REST adapters.
	// Zero uses the default of 2, negative disables retries.
	Retries int

	// RequestsPerSecond paces requests. Zero uses the default of 10.
	RequestsPerSecond float64
}

func (o Options) withDefaults(ctx context.Context, t Type) Options {
	if o.Token == "" {
		o.Token = TokenFromEnv(ctx, t)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Retries == 0 {
		o.Retries = 2
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = 10
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// New returns the adapter for t.
func New(ctx context.Context, t Type, opts Options) (Platform, error) {
	switch t {
	case GitHub:
		return NewGitHub(ctx, opts)
	case GitLab:
		return NewGitLab(ctx, opts), nil
	case Azure:
		return NewAzure(ctx, opts), nil
	case Bitbucket:
		return NewBitbucket(ctx, opts), nil
	}
	return nil, fmt.Errorf("unknown platform type %q", t)
}

// tokenEnv lists the environment variables consulted per platform, in order.
var tokenEnv = map[Type][]string{
	GitHub:    {"GITHUB_TOKEN", "GH_TOKEN"},
	GitLab:    {"GITLAB_TOKEN"},
	Azure:     {"AZURE_DEVOPS_TOKEN"},
	Bitbucket: {"BITBUCKET_TOKEN"},
}

// TokenEnvVars returns the environment variables read for t.
func TokenEnvVars(t Type) []string {
	return tokenEnv[t]
}

// TokenFromEnv returns the first non-empty token variable for t. For
// GitHub it falls back to "gh auth token" when the gh CLI is installed.
func TokenFromEnv(ctx context.Context, t Type) string {
	for _, name := range tokenEnv[t] {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	if t == GitHub {
		out, err := cmd.OutputContext(ctx, "", "gh", "auth", "token")
		if err == nil {
			return strings.TrimSpace(string(out))
		}
	}
	return ""
}

// hostMatches reports whether url's host is host or a subdomain of it.
func hostMatches(url, host string) bool {
	h := strings.ToLower(ExtractHost(url))
	host = strings.ToLower(host)
	return h != "" && (h == host || strings.HasSuffix(h, "."+host))
}
