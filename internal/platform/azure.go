package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	azureDefaultBaseURL = "https://dev.azure.com"
	azureAPIVersion     = "7.1"
)

// AzurePlatform implements Platform for Azure DevOps Repos. Owners have the
// form "ORG/PROJECT".
type AzurePlatform struct {
	token   string
	baseURL string
	client  *restClient
}

// NewAzure creates an Azure DevOps adapter. BaseURL is the collection
// root, e.g. https://dev.azure.com or https://tfs.example.com/tfs.
func NewAzure(ctx context.Context, opts Options) *AzurePlatform {
	opts = opts.withDefaults(ctx, Azure)
	if opts.BaseURL == "" {
		opts.BaseURL = azureDefaultBaseURL
	}
	token := opts.Token
	return &AzurePlatform{
		token:   token,
		baseURL: opts.BaseURL,
		client: newRESTClient(Azure, opts, githubRateHeaders, func(r *retryablehttp.Request) {
			if token != "" {
				r.SetBasicAuth("", token)
			}
		}),
	}
}

func (a *AzurePlatform) Type() Type { return Azure }

func (a *AzurePlatform) Token() string { return a.token }

func (a *AzurePlatform) RateLimit() RateLimitInfo { return a.client.snapshot() }

func (a *AzurePlatform) MatchesURL(u string) bool {
	host := strings.ToLower(ExtractHost(u))
	return host == "dev.azure.com" || host == "ssh.dev.azure.com" || strings.HasSuffix(host, ".visualstudio.com")
}

func (a *AzurePlatform) ParseRepoURL(u string) (RepoRef, bool) {
	ref, ok := ParseRepoURL(u, map[string]string{ExtractHost(u): string(Azure)})
	return ref, ok
}

// repoPath returns the git API path of a repository. owner is ORG/PROJECT.
func (a *AzurePlatform) repoPath(owner, repo string) (string, error) {
	org, project, ok := strings.Cut(owner, "/")
	if !ok || org == "" || project == "" {
		return "", &Error{Kind: KindParse, Platform: Azure, Op: "resolve repository",
			Msg: fmt.Sprintf("owner %q must be ORG/PROJECT", owner)}
	}
	return fmt.Sprintf("/%s/%s/_apis/git/repositories/%s", url.PathEscape(org), url.PathEscape(project), url.PathEscape(repo)), nil
}

func withVersion(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "api-version=" + azureAPIVersion
}

func (a *AzurePlatform) webURL(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s/_git/%s/pullrequest/%d", a.baseURL, owner, repo, number)
}

type azurePR struct {
	PullRequestID int    `json:"pullRequestId"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	IsDraft       bool   `json:"isDraft"`
	SourceRefName string `json:"sourceRefName"`
	TargetRefName string `json:"targetRefName"`
	MergeStatus   string `json:"mergeStatus"`
	LastSource    struct {
		CommitID string `json:"commitId"`
	} `json:"lastMergeSourceCommit"`
	LastTarget struct {
		CommitID string `json:"commitId"`
	} `json:"lastMergeTargetCommit"`
	Reviewers []azureReviewer `json:"reviewers"`
}

type azureReviewer struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
	Vote        int    `json:"vote"`
}

func (a *AzurePlatform) toPullRequest(owner, repo string, pr azurePR) *PullRequest {
	out := &PullRequest{
		Number: pr.PullRequestID,
		Title:  pr.Title,
		Body:   pr.Description,
		Draft:  pr.IsDraft,
		URL:    a.webURL(owner, repo, pr.PullRequestID),
		Head:   BranchRef{Ref: strings.TrimPrefix(pr.SourceRefName, "refs/heads/"), SHA: pr.LastSource.CommitID},
		Base:   BranchRef{Ref: strings.TrimPrefix(pr.TargetRefName, "refs/heads/"), SHA: pr.LastTarget.CommitID},
	}
	switch pr.Status {
	case "completed":
		out.State, out.Merged = StateMerged, true
	case "active":
		out.State = StateOpen
	default:
		out.State = StateClosed
	}
	switch pr.MergeStatus {
	case "succeeded":
		out.Mergeable = boolPtr(true)
	case "conflicts", "rejectedByPolicy", "failure":
		out.Mergeable = boolPtr(false)
	}
	return out
}

func (a *AzurePlatform) CreatePullRequest(ctx context.Context, owner, repo string, req CreatePR) (*PRCreateResult, error) {
	base, err := a.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	var pr azurePR
	err = a.client.do(ctx, "create pull request", http.MethodPost, withVersion(base+"/pullrequests"), map[string]any{
		"sourceRefName": "refs/heads/" + req.Head,
		"targetRefName": "refs/heads/" + req.Base,
		"title":         req.Title,
		"description":   req.Body,
		"isDraft":       req.Draft,
	}, &pr)
	if err != nil {
		return nil, err
	}
	return &PRCreateResult{Number: pr.PullRequestID, URL: a.webURL(owner, repo, pr.PullRequestID)}, nil
}

func (a *AzurePlatform) getPR(ctx context.Context, owner, repo string, number int) (*azurePR, error) {
	base, err := a.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	var pr azurePR
	path := withVersion(fmt.Sprintf("%s/pullrequests/%d", base, number))
	if err := a.client.do(ctx, "get pull request", http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (a *AzurePlatform) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, err := a.getPR(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	return a.toPullRequest(owner, repo, *pr), nil
}

func (a *AzurePlatform) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	base, err := a.repoPath(owner, repo)
	if err != nil {
		return err
	}
	path := withVersion(fmt.Sprintf("%s/pullrequests/%d", base, number))
	return a.client.do(ctx, "update pull request", http.MethodPatch, path, map[string]any{"description": body}, nil)
}

func azureMergeStrategy(m MergeMethod) string {
	switch m {
	case MethodSquash:
		return "squash"
	case MethodRebase:
		return "rebase"
	}
	return "noFastForward"
}

func (a *AzurePlatform) MergePullRequest(ctx context.Context, owner, repo string, number int, method MergeMethod, deleteBranch bool) (bool, error) {
	pr, err := a.getPR(ctx, owner, repo, number)
	if err != nil {
		return false, err
	}
	if pr.MergeStatus == "conflicts" {
		return false, &Error{Kind: KindAPI, Platform: Azure, Op: "merge pull request", Msg: "pull request has merge conflicts"}
	}
	base, _ := a.repoPath(owner, repo)
	var done azurePR
	path := withVersion(fmt.Sprintf("%s/pullrequests/%d", base, number))
	err = a.client.do(ctx, "merge pull request", http.MethodPatch, path, map[string]any{
		"status":                "completed",
		"lastMergeSourceCommit": map[string]string{"commitId": pr.LastSource.CommitID},
		"completionOptions": map[string]any{
			"mergeStrategy":      azureMergeStrategy(method),
			"deleteSourceBranch": deleteBranch,
		},
	}, &done)
	if err != nil {
		return false, err
	}
	// Completion may be queued behind policies, which is still a success.
	return done.Status == "completed" || done.Status == "active", nil
}

func (a *AzurePlatform) UpdatePullRequestBranch(context.Context, string, string, int) error {
	return unsupported(Azure, "update pull request branch")
}

func (a *AzurePlatform) FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PRCreateResult, error) {
	base, err := a.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	q := url.Values{
		"searchCriteria.sourceRefName": {"refs/heads/" + branch},
		"searchCriteria.status":        {"active"},
	}
	var list struct {
		Value []azurePR `json:"value"`
	}
	if err := a.client.do(ctx, "find pull request", http.MethodGet, withVersion(base+"/pullrequests?"+q.Encode()), nil, &list); err != nil {
		return nil, err
	}
	if len(list.Value) == 0 {
		return nil, nil
	}
	id := list.Value[0].PullRequestID
	return &PRCreateResult{Number: id, URL: a.webURL(owner, repo, id)}, nil
}

// azureVoteState maps reviewer votes: 10 approved, 5 approved with
// suggestions, 0 no vote, -5 waiting for author, -10 rejected.
func azureVoteState(vote int) string {
	switch {
	case vote >= 5:
		return ReviewApproved
	case vote < 0:
		return ReviewChangesRequested
	}
	return ReviewPending
}

func (a *AzurePlatform) GetPullRequestReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	pr, err := a.getPR(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	reviews := make([]Review, 0, len(pr.Reviewers))
	for _, r := range pr.Reviewers {
		user := r.UniqueName
		if user == "" {
			user = r.DisplayName
		}
		reviews = append(reviews, Review{User: user, State: azureVoteState(r.Vote)})
	}
	return reviews, nil
}

// IsPullRequestApproved requires one approving vote and no negative vote.
func (a *AzurePlatform) IsPullRequestApproved(ctx context.Context, owner, repo string, number int) (bool, error) {
	reviews, err := a.GetPullRequestReviews(ctx, owner, repo, number)
	if err != nil {
		return false, err
	}
	return ApprovedFromReviews(reviews), nil
}

func (a *AzurePlatform) GetStatusChecks(ctx context.Context, owner, repo, ref string) (*StatusChecks, error) {
	base, err := a.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	var list struct {
		Value []struct {
			State   string `json:"state"`
			Context struct {
				Name  string `json:"name"`
				Genre string `json:"genre"`
			} `json:"context"`
		} `json:"value"`
	}
	path := withVersion(fmt.Sprintf("%s/commits/%s/statuses", base, url.PathEscape(ref)))
	if err := a.client.do(ctx, "get commit statuses", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	result := &StatusChecks{}
	for _, s := range list.Value {
		name := s.Context.Name
		if s.Context.Genre != "" {
			name = s.Context.Genre + "/" + name
		}
		result.Statuses = append(result.Statuses, CheckStatus{Context: name, State: azureCheckState(s.State)})
	}
	result.State = AggregateChecks(result.Statuses)
	return result, nil
}

func azureCheckState(s string) CheckState {
	switch s {
	case "succeeded", "notApplicable":
		return CheckSuccess
	case "failed", "error":
		return CheckFailure
	}
	return CheckPending
}

// GetAllowedMergeMethods reports every method. Azure DevOps restricts
// methods through branch policies which are not queried here.
func (a *AzurePlatform) GetAllowedMergeMethods(context.Context, string, string) (AllowedMergeMethods, error) {
	return AllowedMergeMethods{Merge: true, Squash: true, Rebase: true}, nil
}

func (a *AzurePlatform) GetPullRequestDiff(context.Context, string, string, int) (string, error) {
	return "", unsupported(Azure, "get pull request diff")
}

func (a *AzurePlatform) CreateRepository(ctx context.Context, owner, name, _ string, _ bool) (string, error) {
	org, project, ok := strings.Cut(owner, "/")
	if !ok {
		return "", &Error{Kind: KindParse, Platform: Azure, Op: "create repository", Msg: fmt.Sprintf("owner %q must be ORG/PROJECT", owner)}
	}
	var repo struct {
		SSHURL    string `json:"sshUrl"`
		RemoteURL string `json:"remoteUrl"`
	}
	path := withVersion(fmt.Sprintf("/%s/%s/_apis/git/repositories", url.PathEscape(org), url.PathEscape(project)))
	if err := a.client.do(ctx, "create repository", http.MethodPost, path, map[string]any{"name": name}, &repo); err != nil {
		return "", err
	}
	if repo.SSHURL != "" {
		return repo.SSHURL, nil
	}
	return repo.RemoteURL, nil
}

func (a *AzurePlatform) DeleteRepository(ctx context.Context, owner, name string) error {
	base, err := a.repoPath(owner, name)
	if err != nil {
		return err
	}
	var repo struct {
		ID string `json:"id"`
	}
	if err := a.client.do(ctx, "get repository", http.MethodGet, withVersion(base), nil, &repo); err != nil {
		return err
	}
	org, project, _ := strings.Cut(owner, "/")
	path := withVersion(fmt.Sprintf("/%s/%s/_apis/git/repositories/%s", url.PathEscape(org), url.PathEscape(project), repo.ID))
	return a.client.do(ctx, "delete repository", http.MethodDelete, path, nil, nil)
}
