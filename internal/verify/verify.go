package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/griptree"
	"github.com/raphi011/gitgrip/internal/linkfile"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/repo"
)

// Category groups issues by what was checked.
type Category string

const (
	CategoryManifest Category = "manifest"
	CategoryRepo     Category = "repo"
	CategoryLink     Category = "link"
	CategoryGriptree Category = "griptree"
)

// Fix actions.
const (
	FixNone  = ""
	FixLink  = "link"
	FixPrune = "prune"
)

// Issue represents one problem found by Run.
type Issue struct {
	Category    Category `json:"category"`
	Key         string   `json:"key"` // repo name, link destination or griptree branch
	Description string   `json:"description"`
	Fix         string   `json:"fix,omitempty"`
	Fixed       bool     `json:"fixed,omitempty"`
}

// Report is the outcome of Run.
type Report struct {
	Issues  []Issue          `json:"issues"`
	Checked map[Category]int `json:"checked"`
}

// OK reports whether no unfixed issue remains.
func (r *Report) OK() bool {
	for _, i := range r.Issues {
		if !i.Fixed {
			return false
		}
	}
	return true
}

// StatusFunc computes the working-tree status of a repo.
type StatusFunc func(ctx context.Context, path, defaultBranch string) (git.StatusInfo, error)

// Options select what Run checks.
type Options struct {
	// ManifestPath is the file whose raw content is schema-validated.
	ManifestPath string
	Manifest     *manifest.Manifest
	Root         string
	Repos        []repo.RepoInfo
	// RegistryRoot holds the griptree registry. Empty skips the check.
	RegistryRoot string
	// Clean requires every repo to have no local changes.
	Clean bool
	// Branch, when set, requires every repo to be on it.
	Branch string
	// Status defaults to git.Status.
	Status StatusFunc
	Jobs   int
}

// Run performs every check and returns the issues found.
func Run(ctx context.Context, opts Options) (*Report, error) {
	rep := &Report{Checked: make(map[Category]int)}
	l := log.FromContext(ctx)

	l.Debug("verify manifest", "path", opts.ManifestPath)
	rep.Issues = append(rep.Issues, checkManifest(opts)...)
	rep.Checked[CategoryManifest] = 1

	l.Debug("verify repos", "count", len(opts.Repos))
	rep.Issues = append(rep.Issues, checkRepos(ctx, opts)...)
	rep.Checked[CategoryRepo] = len(opts.Repos)

	entries, err := linkfile.Entries(opts.Root, opts.Repos)
	if err != nil {
		return nil, err
	}
	for _, res := range linkfile.Check(entries) {
		if res.Status != linkfile.StatusOK {
			rep.Issues = append(rep.Issues, linkIssue(res))
		}
	}
	rep.Checked[CategoryLink] = len(entries)

	if opts.RegistryRoot != "" {
		reg, err := griptree.LoadRegistry(opts.RegistryRoot)
		if err != nil {
			return nil, err
		}
		for _, e := range reg.Entries() {
			if e.Status() == griptree.StatusMissing {
				rep.Issues = append(rep.Issues, Issue{
					Category:    CategoryGriptree,
					Key:         e.Branch,
					Description: fmt.Sprintf("griptree directory %s is missing", e.Path),
					Fix:         FixPrune,
				})
			}
		}
		rep.Checked[CategoryGriptree] = len(reg.Entries())
	}
	return rep, nil
}

func checkManifest(opts Options) []Issue {
	var issues []Issue
	add := func(err error) {
		var ve *manifest.ValidationError
		if errors.As(err, &ve) {
			for _, p := range ve.Problems() {
				issues = append(issues, Issue{Category: CategoryManifest, Key: opts.ManifestPath, Description: p.Error()})
			}
			return
		}
		issues = append(issues, Issue{Category: CategoryManifest, Key: opts.ManifestPath, Description: err.Error()})
	}

	if opts.ManifestPath != "" {
		data, err := os.ReadFile(opts.ManifestPath)
		if err != nil {
			add(err)
		} else if err := manifest.ValidateSchema(data); err != nil {
			add(err)
		}
	}
	if opts.Manifest != nil {
		if err := manifest.Validate(opts.Manifest); err != nil {
			add(err)
		}
	}
	return issues
}

func checkRepos(ctx context.Context, opts Options) []Issue {
	status := opts.Status
	if status == nil {
		status = git.Status
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 8
	}

	found := make([][]Issue, len(opts.Repos))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, r := range opts.Repos {
		g.Go(func() error {
			found[i] = checkRepo(ctx, r, opts, status)
			return nil
		})
	}
	_ = g.Wait()

	var issues []Issue
	for _, f := range found {
		issues = append(issues, f...)
	}
	return issues
}

func checkRepo(ctx context.Context, r repo.RepoInfo, opts Options, status StatusFunc) []Issue {
	issue := func(format string, args ...any) Issue {
		return Issue{Category: CategoryRepo, Key: r.Name, Description: fmt.Sprintf(format, args...)}
	}
	if !r.Exists() {
		return []Issue{issue("not cloned (run gr sync)")}
	}
	if !opts.Clean && opts.Branch == "" {
		return nil
	}

	st, err := status(ctx, r.AbsolutePath, r.DefaultBranch)
	if err != nil {
		return []Issue{issue("status: %v", err)}
	}
	var issues []Issue
	if opts.Clean && !st.Clean {
		issues = append(issues, issue("%d uncommitted changes", st.Changes()))
	}
	if opts.Branch != "" && !r.Reference && st.Branch != opts.Branch {
		branch := st.Branch
		if branch == "" {
			branch = "detached HEAD"
		}
		issues = append(issues, issue("on %s, expected %s", branch, opts.Branch))
	}
	return issues
}

func linkIssue(res linkfile.Result) Issue {
	desc := fmt.Sprintf("%s from %s is %s", res.Kind, res.Repo, res.Status)
	fix := FixLink
	if res.Status == linkfile.StatusSourceMissing {
		desc, fix = res.Message, FixNone
	}
	return Issue{Category: CategoryLink, Key: res.RelDest, Description: desc, Fix: fix}
}

// Fix applies every fixable issue of rep in place.
func Fix(ctx context.Context, rep *Report, opts Options) error {
	var needLinks, needPrune bool
	for _, i := range rep.Issues {
		needLinks = needLinks || i.Fix == FixLink
		needPrune = needPrune || i.Fix == FixPrune
	}

	if needLinks {
		entries, err := linkfile.Entries(opts.Root, opts.Repos)
		if err != nil {
			return err
		}
		ok := make(map[string]bool)
		for _, res := range linkfile.Apply(ctx, entries) {
			ok[res.RelDest] = res.Err == nil
		}
		for i := range rep.Issues {
			if rep.Issues[i].Fix == FixLink && ok[rep.Issues[i].Key] {
				rep.Issues[i].Fixed = true
			}
		}
	}

	if needPrune {
		reg, err := griptree.LoadRegistry(opts.RegistryRoot)
		if err != nil {
			return err
		}
		for i := range rep.Issues {
			if rep.Issues[i].Fix == FixPrune && reg.Delete(rep.Issues[i].Key) {
				rep.Issues[i].Fixed = true
			}
		}
		if err := reg.Save(); err != nil {
			return err
		}
	}
	return nil
}

// ByCategory groups issues for display, categories in check order.
func ByCategory(issues []Issue) map[Category][]Issue {
	out := make(map[Category][]Issue)
	for _, i := range issues {
		out[i.Category] = append(out[i.Category], i)
	}
	for _, list := range out {
		sort.SliceStable(list, func(a, b int) bool { return list[a].Key < list[b].Key })
	}
	return out
}

// Categories lists the categories in check order.
var Categories = []Category{CategoryManifest, CategoryRepo, CategoryLink, CategoryGriptree}
