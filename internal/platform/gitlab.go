package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const gitlabDefaultBaseURL = "https://gitlab.com/api/v4"

// GitLabPlatform implements Platform for GitLab merge requests.
type GitLabPlatform struct {
	token  string
	client *restClient
}

// NewGitLab creates a GitLab adapter. BaseURL is the API root, e.g.
// https://gitlab.example.com/api/v4.
func NewGitLab(ctx context.Context, opts Options) *GitLabPlatform {
	opts = opts.withDefaults(ctx, GitLab)
	if opts.BaseURL == "" {
		opts.BaseURL = gitlabDefaultBaseURL
	}
	token := opts.Token
	return &GitLabPlatform{
		token: token,
		client: newRESTClient(GitLab, opts, gitlabRateHeaders, func(r *retryablehttp.Request) {
			if token != "" {
				r.Header.Set("PRIVATE-TOKEN", token)
			}
		}),
	}
}

func (g *GitLabPlatform) Type() Type { return GitLab }

func (g *GitLabPlatform) Token() string { return g.token }

func (g *GitLabPlatform) RateLimit() RateLimitInfo { return g.client.snapshot() }

func (g *GitLabPlatform) MatchesURL(u string) bool {
	return strings.Contains(strings.ToLower(ExtractHost(u)), "gitlab")
}

func (g *GitLabPlatform) ParseRepoURL(u string) (RepoRef, bool) {
	ref, ok := ParseRepoURL(u, map[string]string{ExtractHost(u): string(GitLab)})
	return ref, ok
}

func projectPath(owner, repo string) string {
	return "/projects/" + url.PathEscape(owner+"/"+repo)
}

type gitlabMR struct {
	IID                 int    `json:"iid"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	State               string `json:"state"`
	SHA                 string `json:"sha"`
	SourceBranch        string `json:"source_branch"`
	TargetBranch        string `json:"target_branch"`
	WebURL              string `json:"web_url"`
	Draft               bool   `json:"draft"`
	WorkInProgress      bool   `json:"work_in_progress"`
	MergeStatus         string `json:"merge_status"`
	DetailedMergeStatus string `json:"detailed_merge_status"`
	HasConflicts        bool   `json:"has_conflicts"`
	DiffRefs            struct {
		BaseSHA string `json:"base_sha"`
		HeadSHA string `json:"head_sha"`
	} `json:"diff_refs"`
}

func (mr gitlabMR) toPullRequest() *PullRequest {
	pr := &PullRequest{
		Number: mr.IID,
		Title:  mr.Title,
		Body:   mr.Description,
		URL:    mr.WebURL,
		Draft:  mr.Draft || mr.WorkInProgress,
		Head:   BranchRef{Ref: mr.SourceBranch, SHA: mr.SHA},
		Base:   BranchRef{Ref: mr.TargetBranch, SHA: mr.DiffRefs.BaseSHA},
	}
	switch mr.State {
	case "merged":
		pr.State, pr.Merged = StateMerged, true
	case "opened", "locked":
		pr.State = StateOpen
	default:
		pr.State = StateClosed
	}
	switch {
	case mr.DetailedMergeStatus == "mergeable", mr.MergeStatus == "can_be_merged" && !mr.HasConflicts:
		pr.Mergeable = boolPtr(true)
	case mr.MergeStatus == "cannot_be_merged", mr.HasConflicts, mr.DetailedMergeStatus == "need_rebase",
		mr.DetailedMergeStatus == "conflict", mr.DetailedMergeStatus == "broken_status":
		pr.Mergeable = boolPtr(false)
	}
	return pr
}

func (g *GitLabPlatform) CreatePullRequest(ctx context.Context, owner, repo string, req CreatePR) (*PRCreateResult, error) {
	title := req.Title
	if req.Draft && !strings.HasPrefix(strings.ToLower(title), "draft:") {
		title = "Draft: " + title
	}
	var mr gitlabMR
	err := g.client.do(ctx, "create merge request", http.MethodPost, projectPath(owner, repo)+"/merge_requests", map[string]any{
		"source_branch": req.Head,
		"target_branch": req.Base,
		"title":         title,
		"description":   req.Body,
	}, &mr)
	if err != nil {
		return nil, err
	}
	return &PRCreateResult{Number: mr.IID, URL: mr.WebURL}, nil
}

func (g *GitLabPlatform) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var mr gitlabMR
	path := fmt.Sprintf("%s/merge_requests/%d", projectPath(owner, repo), number)
	if err := g.client.do(ctx, "get merge request", http.MethodGet, path, nil, &mr); err != nil {
		return nil, err
	}
	return mr.toPullRequest(), nil
}

func (g *GitLabPlatform) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("%s/merge_requests/%d", projectPath(owner, repo), number)
	return g.client.do(ctx, "update merge request", http.MethodPut, path, map[string]any{"description": body}, nil)
}

func (g *GitLabPlatform) MergePullRequest(ctx context.Context, owner, repo string, number int, method MergeMethod, deleteBranch bool) (bool, error) {
	// GitLab decides between merge commit, rebase and fast-forward per
	// project. Only squash is selectable per request.
	payload := map[string]any{
		"squash":                      method == MethodSquash,
		"should_remove_source_branch": deleteBranch,
	}
	var mr gitlabMR
	path := fmt.Sprintf("%s/merge_requests/%d/merge", projectPath(owner, repo), number)
	if err := g.client.do(ctx, "merge merge request", http.MethodPut, path, payload, &mr); err != nil {
		return false, err
	}
	return mr.State == "merged", nil
}

func (g *GitLabPlatform) UpdatePullRequestBranch(ctx context.Context, owner, repo string, number int) error {
	path := fmt.Sprintf("%s/merge_requests/%d/rebase", projectPath(owner, repo), number)
	return g.client.do(ctx, "rebase merge request", http.MethodPut, path, nil, nil)
}

func (g *GitLabPlatform) FindPRByBranch(ctx context.Context, owner, repo, branch string) (*PRCreateResult, error) {
	q := url.Values{"state": {"opened"}, "source_branch": {branch}}
	var mrs []gitlabMR
	path := projectPath(owner, repo) + "/merge_requests?" + q.Encode()
	if err := g.client.do(ctx, "find merge request", http.MethodGet, path, nil, &mrs); err != nil {
		return nil, err
	}
	if len(mrs) == 0 {
		return nil, nil
	}
	return &PRCreateResult{Number: mrs[0].IID, URL: mrs[0].WebURL}, nil
}

type gitlabApprovals struct {
	Approved      bool `json:"approved"`
	ApprovalsLeft int  `json:"approvals_left"`
	ApprovedBy    []struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	} `json:"approved_by"`
}

func (g *GitLabPlatform) approvals(ctx context.Context, owner, repo string, number int) (*gitlabApprovals, error) {
	var a gitlabApprovals
	path := fmt.Sprintf("%s/merge_requests/%d/approvals", projectPath(owner, repo), number)
	if err := g.client.do(ctx, "get approvals", http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// IsPullRequestApproved requires the approval rules to be satisfied and at
// least one approver.
func (g *GitLabPlatform) IsPullRequestApproved(ctx context.Context, owner, repo string, number int) (bool, error) {
	a, err := g.approvals(ctx, owner, repo, number)
	if err != nil {
		return false, err
	}
	return a.Approved && a.ApprovalsLeft == 0 && len(a.ApprovedBy) > 0, nil
}

func (g *GitLabPlatform) GetPullRequestReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	a, err := g.approvals(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	reviews := make([]Review, 0, len(a.ApprovedBy))
	for _, by := range a.ApprovedBy {
		reviews = append(reviews, Review{User: by.User.Username, State: ReviewApproved})
	}
	return reviews, nil
}

func (g *GitLabPlatform) GetStatusChecks(ctx context.Context, owner, repo, ref string) (*StatusChecks, error) {
	var statuses []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("%s/repository/commits/%s/statuses", projectPath(owner, repo), url.PathEscape(ref))
	if err := g.client.do(ctx, "get commit statuses", http.MethodGet, path, nil, &statuses); err != nil {
		return nil, err
	}
	result := &StatusChecks{}
	for _, s := range statuses {
		result.Statuses = append(result.Statuses, CheckStatus{Context: s.Name, State: gitlabCheckState(s.Status)})
	}
	result.State = AggregateChecks(result.Statuses)
	return result, nil
}

func gitlabCheckState(s string) CheckState {
	switch s {
	case "success", "skipped":
		return CheckSuccess
	case "failed", "canceled":
		return CheckFailure
	}
	return CheckPending
}

func (g *GitLabPlatform) GetAllowedMergeMethods(ctx context.Context, owner, repo string) (AllowedMergeMethods, error) {
	var project struct {
		MergeMethod  string `json:"merge_method"`
		SquashOption string `json:"squash_option"`
	}
	if err := g.client.do(ctx, "get project", http.MethodGet, projectPath(owner, repo), nil, &project); err != nil {
		return AllowedMergeMethods{}, err
	}
	return AllowedMergeMethods{
		Merge:  project.MergeMethod == "" || project.MergeMethod == "merge",
		Squash: project.SquashOption != "never",
		Rebase: project.MergeMethod == "rebase_merge" || project.MergeMethod == "ff",
	}, nil
}

func (g *GitLabPlatform) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	var changes struct {
		Changes []struct {
			OldPath     string `json:"old_path"`
			NewPath     string `json:"new_path"`
			Diff        string `json:"diff"`
			NewFile     bool   `json:"new_file"`
			DeletedFile bool   `json:"deleted_file"`
		} `json:"changes"`
	}
	path := fmt.Sprintf("%s/merge_requests/%d/changes", projectPath(owner, repo), number)
	if err := g.client.do(ctx, "get merge request changes", http.MethodGet, path, nil, &changes); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range changes.Changes {
		oldName, newName := "a/"+c.OldPath, "b/"+c.NewPath
		if c.NewFile {
			oldName = "/dev/null"
		}
		if c.DeletedFile {
			newName = "/dev/null"
		}
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n--- %s\n+++ %s\n", c.OldPath, c.NewPath, oldName, newName)
		b.WriteString(c.Diff)
		if !strings.HasSuffix(c.Diff, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func (g *GitLabPlatform) CreateRepository(ctx context.Context, owner, name, description string, private bool) (string, error) {
	payload := map[string]any{
		"name":        name,
		"path":        name,
		"description": description,
		"visibility":  "public",
	}
	if private {
		payload["visibility"] = "private"
	}
	if owner != "" {
		var ns struct {
			ID int `json:"id"`
		}
		if err := g.client.do(ctx, "get namespace", http.MethodGet, "/namespaces/"+url.PathEscape(owner), nil, &ns); err != nil {
			return "", err
		}
		payload["namespace_id"] = ns.ID
	}
	var project struct {
		SSHURL string `json:"ssh_url_to_repo"`
	}
	if err := g.client.do(ctx, "create project", http.MethodPost, "/projects", payload, &project); err != nil {
		return "", err
	}
	return project.SSHURL, nil
}

func (g *GitLabPlatform) DeleteRepository(ctx context.Context, owner, name string) error {
	return g.client.do(ctx, "delete project", http.MethodDelete, projectPath(owner, name), nil, nil)
}

func boolPtr(b bool) *bool { return &b }
