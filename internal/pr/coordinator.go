package pr

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/state"
)

// defaultJobs bounds concurrent adapter calls.
const defaultJobs = 4

// ClientFunc returns the platform client serving r.
type ClientFunc func(ctx context.Context, r repo.RepoInfo) (platform.Platform, error)

// BranchFunc returns the branch checked out in r, or "" when detached.
type BranchFunc func(r repo.RepoInfo) (string, error)

// LocalBranch reads the checked-out branch of r's working tree.
func LocalBranch(r repo.RepoInfo) (string, error) {
	g, err := git.Open(r.AbsolutePath)
	if err != nil {
		return "", err
	}
	if g.IsDetached() {
		return "", nil
	}
	return g.CurrentBranch()
}

// Clients creates one adapter per platform type and base URL and reuses
// it for every repo it serves.
type Clients struct {
	Options platform.Options

	mu    sync.Mutex
	cache map[string]platform.Platform
}

// For returns the adapter of r.
func (c *Clients) For(ctx context.Context, r repo.RepoInfo) (platform.Platform, error) {
	if r.Local {
		return nil, fmt.Errorf("%s: %s is a local remote with no hosting platform", r.Name, r.URL)
	}
	key := string(r.PlatformType) + "|" + r.PlatformBaseURL

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cache[key]; ok {
		return p, nil
	}
	opts := c.Options
	opts.BaseURL = r.PlatformBaseURL
	p, err := platform.New(ctx, r.PlatformType, opts)
	if err != nil {
		return nil, err
	}
	if c.cache == nil {
		c.cache = make(map[string]platform.Platform)
	}
	c.cache[key] = p
	return p, nil
}

// Coordinator drives the PRs of one workspace.
type Coordinator struct {
	// Repos are the candidate repos in manifest order. Reference repos
	// are ignored.
	Repos []repo.RepoInfo
	// ManifestRepo, when set, is handled after every other repo.
	ManifestRepo *repo.RepoInfo
	State        *state.State
	Client       ClientFunc
	// Branch defaults to LocalBranch.
	Branch BranchFunc
	// TitlePrefix is prepended to titles of created PRs.
	TitlePrefix string
	Jobs        int
}

// Entry is one repo of a change set.
type Entry struct {
	Repo       repo.RepoInfo `json:"-"`
	Name       string        `json:"repo"`
	IsManifest bool          `json:"isManifest,omitempty"`
	Branch     string        `json:"branch,omitempty"`
	Number     int           `json:"number,omitempty"`
	URL        string        `json:"url,omitempty"`
	// Skipped holds the reason the repo takes no part.
	Skipped   string     `json:"skipped,omitempty"`
	Readiness *Readiness `json:"readiness,omitempty"`
	// Created is set when this invocation opened the PR.
	Created bool `json:"created,omitempty"`
	// Merged is set when this invocation merged the PR.
	Merged bool   `json:"merged,omitempty"`
	Note   string `json:"note,omitempty"`
	Diff   string `json:"diff,omitempty"`

	Err     error  `json:"-"`
	Message string `json:"error,omitempty"`
}

// HasPR reports whether a PR was found or created.
func (e *Entry) HasPR() bool {
	return e.Number > 0
}

// Active reports whether the entry takes part and has not failed.
func (e *Entry) Active() bool {
	return e.Skipped == "" && e.Err == nil
}

// Ref returns "repo#number".
func (e *Entry) Ref() string {
	return fmt.Sprintf("%s#%d", e.Name, e.Number)
}

func (e *Entry) fail(err error) {
	e.Err = err
	e.Message = err.Error()
}

func (c *Coordinator) jobs() int {
	if c.Jobs <= 0 {
		return defaultJobs
	}
	return c.Jobs
}

func (c *Coordinator) branchOf(r repo.RepoInfo) (string, error) {
	if c.Branch != nil {
		return c.Branch(r)
	}
	return LocalBranch(r)
}

// targets lists the candidate repos, manifest repo last.
func (c *Coordinator) targets() []repo.RepoInfo {
	var out []repo.RepoInfo
	for _, r := range c.Repos {
		if r.Reference || r.Name == repo.ManifestRepoName {
			continue
		}
		out = append(out, r)
	}
	if c.ManifestRepo != nil {
		out = append(out, *c.ManifestRepo)
	}
	return out
}

// branchEntries resolves the checked-out branch of every target and skips
// repos on their default branch or with a detached HEAD.
func (c *Coordinator) branchEntries() []Entry {
	targets := c.targets()
	entries := make([]Entry, len(targets))
	for i, r := range targets {
		e := Entry{Repo: r, Name: r.Name, IsManifest: c.ManifestRepo != nil && r.Name == c.ManifestRepo.Name}
		branch, err := c.branchOf(r)
		switch {
		case err != nil:
			e.fail(err)
		case branch == "":
			e.Skipped = "detached HEAD"
		case branch == r.DefaultBranch:
			e.Skipped = fmt.Sprintf("on default branch %s", branch)
		default:
			e.Branch = branch
		}
		entries[i] = e
	}
	return entries
}

// each calls fn concurrently for every active entry. fn may only touch
// the entry it is given.
func (c *Coordinator) each(ctx context.Context, entries []Entry, keep func(*Entry) bool, fn func(context.Context, *Entry, platform.Platform)) {
	var g errgroup.Group
	g.SetLimit(c.jobs())
	for i := range entries {
		e := &entries[i]
		if !e.Active() || (keep != nil && !keep(e)) {
			continue
		}
		g.Go(func() error {
			client, err := c.Client(ctx, e.Repo)
			if err != nil {
				e.fail(err)
				return nil
			}
			fn(ctx, e, client)
			return nil
		})
	}
	_ = g.Wait()
}

// Discover finds the open PR of every repo's checked-out branch. Repos
// with commits on a feature branch but no PR keep Number 0.
func (c *Coordinator) Discover(ctx context.Context) []Entry {
	entries := c.branchEntries()
	c.each(ctx, entries, nil, func(ctx context.Context, e *Entry, client platform.Platform) {
		found, err := client.FindPRByBranch(ctx, e.Repo.Owner, e.Repo.Repo, e.Branch)
		if err != nil {
			e.fail(err)
			return
		}
		if found != nil {
			e.Number, e.URL = found.Number, found.URL
		}
	})
	return entries
}

// withPR returns pointers to the active entries that have a PR.
func withPR(entries []Entry) []*Entry {
	var out []*Entry
	for i := range entries {
		if entries[i].Active() && entries[i].HasPR() {
			out = append(out, &entries[i])
		}
	}
	return out
}

// setBranch returns the branch shared by the change set, preferring the
// manifest repo's branch.
func setBranch(entries []Entry) string {
	for _, e := range entries {
		if e.IsManifest && e.Branch != "" {
			return e.Branch
		}
	}
	for _, e := range entries {
		if e.Branch != "" {
			return e.Branch
		}
	}
	return ""
}

// stateKey returns the manifest PR number the change set is recorded
// under: the one already mapped to the branch, else the manifest repo's
// PR, else the first PR in manifest order.
func (c *Coordinator) stateKey(entries []Entry) int {
	if c.State != nil {
		if n, ok := c.State.GetPRForBranch(setBranch(entries)); ok {
			return n
		}
	}
	var prs []Entry
	for _, e := range entries {
		if e.Skipped == "" && e.HasPR() {
			prs = append(prs, e)
		}
	}
	if i := slices.IndexFunc(prs, func(e Entry) bool { return e.IsManifest }); i >= 0 {
		return prs[i].Number
	}
	if len(prs) > 0 {
		return prs[0].Number
	}
	return 0
}

// linkedRecord converts an entry into its state record.
func linkedRecord(e *Entry) state.LinkedPR {
	l := state.LinkedPR{
		RepoName:     e.Name,
		Owner:        e.Repo.Owner,
		Repo:         e.Repo.Repo,
		Number:       e.Number,
		URL:          e.URL,
		State:        platform.StateOpen,
		PlatformType: e.Repo.PlatformType,
	}
	if r := e.Readiness; r != nil {
		l.State = r.State
		l.Approved = r.Approved
		l.ChecksPass = r.Checks == platform.CheckSuccess
		l.Mergeable = r.Mergeable != nil && *r.Mergeable
		l.CheckDetails = r.CheckDetails
	}
	if e.Merged {
		l.State = platform.StateMerged
	}
	return l
}

// record stores the change set in the state file. Fresh records of
// healthy entries replace the stored ones repo by repo. A failed entry
// keeps its stored record and is only added when none exists yet. Records
// of repos absent from entries are left alone.
func (c *Coordinator) record(entries []Entry) (int, error) {
	if c.State == nil {
		return 0, nil
	}
	key := c.stateKey(entries)
	if key == 0 {
		return 0, nil
	}
	for i := range entries {
		e := &entries[i]
		if e.Skipped != "" || !e.HasPR() {
			continue
		}
		if e.Err != nil && c.State.HasLinkedPR(key, e.Name) {
			continue
		}
		c.State.AddLinkedPR(key, linkedRecord(e))
	}
	if branch := setBranch(entries); branch != "" {
		c.State.SetPRForBranch(branch, key)
	}
	c.State.SetCurrent(key)
	return key, c.State.Save()
}
