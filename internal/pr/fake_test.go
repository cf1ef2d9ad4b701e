package pr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/repo"
)

type fakePR struct {
	platform.PullRequest
	repo     string
	approved bool
	checks   platform.CheckState
}

// fakePlatform is an in-memory platform keyed by repo name.
type fakePlatform struct {
	mu      sync.Mutex
	prs     []*fakePR
	next    int
	merges  []string
	updates []string
	// mergeErr fails merges of a repo.
	mergeErr map[string]error
	// getErr fails PR lookups of a repo.
	getErr map[string]error
	// behind makes merges of a repo fail as behind base until updated.
	behind map[string]bool

	updateUnsupported bool
	diffUnsupported   bool
	allowed           *platform.AllowedMergeMethods
	bodyUpdates       map[string]int
}

func newFake() *fakePlatform {
	return &fakePlatform{
		next:        100,
		mergeErr:    map[string]error{},
		getErr:      map[string]error{},
		behind:      map[string]bool{},
		bodyUpdates: map[string]int{},
	}
}

// addPR registers an open PR for repo on branch.
func (f *fakePlatform) addPR(repoName, branch string, approved bool, checks platform.CheckState, mergeable bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	m := mergeable
	f.prs = append(f.prs, &fakePR{
		PullRequest: platform.PullRequest{
			Number:    f.next,
			Title:     "change",
			State:     platform.StateOpen,
			URL:       fmt.Sprintf("https://example.com/%s/pull/%d", repoName, f.next),
			Head:      platform.BranchRef{Ref: branch, SHA: "sha-" + repoName},
			Base:      platform.BranchRef{Ref: "main"},
			Mergeable: &m,
		},
		repo:     repoName,
		approved: approved,
		checks:   checks,
	})
	return f.next
}

func (f *fakePlatform) find(repoName string, number int) (*fakePR, error) {
	for _, p := range f.prs {
		if p.repo == repoName && p.Number == number {
			return p, nil
		}
	}
	return nil, &platform.Error{Kind: platform.KindNotFound, Platform: platform.GitHub, Op: "get"}
}

func (f *fakePlatform) mergeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.merges...)
}

func (f *fakePlatform) body(repoName string, number int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.find(repoName, number)
	if err != nil {
		return ""
	}
	return p.Body
}

func (f *fakePlatform) Type() platform.Type { return platform.GitHub }
func (f *fakePlatform) Token() string { return "token" }
func (f *fakePlatform) MatchesURL(string) bool { return true }
func (f *fakePlatform) ParseRepoURL(string) (platform.RepoRef, bool) { return platform.RepoRef{}, false }
func (f *fakePlatform) RateLimit() platform.RateLimitInfo { return platform.RateLimitInfo{} }

func (f *fakePlatform) CreatePullRequest(_ context.Context, _, repoName string, req platform.CreatePR) (*platform.PRCreateResult, error) {
	n := f.addPR(repoName, req.Head, false, platform.CheckPending, true)
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := f.find(repoName, n)
	p.Title, p.Body, p.Draft = req.Title, req.Body, req.Draft
	return &platform.PRCreateResult{Number: n, URL: p.URL}, nil
}

func (f *fakePlatform) GetPullRequest(_ context.Context, _, repoName string, number int) (*platform.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[repoName]; err != nil {
		return nil, err
	}
	p, err := f.find(repoName, number)
	if err != nil {
		return nil, err
	}
	pr := p.PullRequest
	return &pr, nil
}

func (f *fakePlatform) UpdatePullRequestBody(_ context.Context, _, repoName string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.find(repoName, number)
	if err != nil {
		return err
	}
	p.Body = body
	f.bodyUpdates[repoName]++
	return nil
}

func (f *fakePlatform) MergePullRequest(_ context.Context, _, repoName string, number int, _ platform.MergeMethod, _ bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, repoName)
	if err := f.mergeErr[repoName]; err != nil {
		return false, err
	}
	if f.behind[repoName] {
		return false, &platform.Error{Kind: platform.KindBehindBase, Platform: platform.GitHub, Op: "merge", Msg: "Head branch is out of date"}
	}
	p, err := f.find(repoName, number)
	if err != nil {
		return false, err
	}
	p.State, p.Merged = platform.StateMerged, true
	return true, nil
}

func (f *fakePlatform) UpdatePullRequestBranch(_ context.Context, _, repoName string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateUnsupported {
		return &platform.Error{Kind: platform.KindUnsupported, Platform: platform.GitHub, Op: "update branch", Err: platform.ErrUnsupported}
	}
	f.updates = append(f.updates, repoName)
	delete(f.behind, repoName)
	return nil
}

func (f *fakePlatform) FindPRByBranch(_ context.Context, _, repoName, branch string) (*platform.PRCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prs {
		if p.repo == repoName && p.Head.Ref == branch && p.State == platform.StateOpen {
			return &platform.PRCreateResult{Number: p.Number, URL: p.URL}, nil
		}
	}
	return nil, nil
}

func (f *fakePlatform) IsPullRequestApproved(_ context.Context, _, repoName string, number int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.find(repoName, number)
	if err != nil {
		return false, err
	}
	return p.approved, nil
}

func (f *fakePlatform) GetPullRequestReviews(context.Context, string, string, int) ([]platform.Review, error) {
	return nil, nil
}

func (f *fakePlatform) GetStatusChecks(_ context.Context, _, repoName, ref string) (*platform.StatusChecks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prs {
		if p.repo == repoName && p.Head.SHA == ref {
			return &platform.StatusChecks{State: p.checks, Statuses: []platform.CheckStatus{{Context: "ci", State: p.checks}}}, nil
		}
	}
	return nil, errors.New("unknown ref " + ref)
}

func (f *fakePlatform) GetAllowedMergeMethods(context.Context, string, string) (platform.AllowedMergeMethods, error) {
	if f.allowed != nil {
		return *f.allowed, nil
	}
	return platform.AllowedMergeMethods{Merge: true, Squash: true, Rebase: true}, nil
}

func (f *fakePlatform) GetPullRequestDiff(_ context.Context, _, repoName string, number int) (string, error) {
	if f.diffUnsupported {
		return "", &platform.Error{Kind: platform.KindUnsupported, Platform: platform.GitHub, Op: "diff", Err: platform.ErrUnsupported}
	}
	return fmt.Sprintf("diff --git a/%s b/%s #%d\n", repoName, repoName, number), nil
}

func (f *fakePlatform) CreateRepository(context.Context, string, string, string, bool) (string, error) {
	return "", platform.ErrUnsupported
}

func (f *fakePlatform) DeleteRepository(context.Context, string, string) error {
	return platform.ErrUnsupported
}

var _ platform.Platform = (*fakePlatform)(nil)

func testRepo(name string) repo.RepoInfo {
	return repo.RepoInfo{
		Name:          name,
		Path:          name,
		DefaultBranch: "main",
		Owner:         "acme",
		Repo:          name,
		PlatformType:  platform.GitHub,
	}
}

// newCoordinator wires repos to fake with every repo on branches[name].
func newCoordinator(fake *fakePlatform, branches map[string]string, repos ...repo.RepoInfo) *Coordinator {
	return &Coordinator{
		Repos: repos,
		Client: func(context.Context, repo.RepoInfo) (platform.Platform, error) {
			return fake, nil
		},
		Branch: func(r repo.RepoInfo) (string, error) {
			return branches[r.Name], nil
		},
	}
}

func itoa(n int) string {
	return fmt.Sprint(n)
}

func testRepoOf(t platform.Type, name string) repo.RepoInfo {
	r := testRepo(name)
	r.PlatformType = t
	return r
}
