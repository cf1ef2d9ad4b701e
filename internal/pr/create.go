package pr

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/platform"
)

// CreateOptions tune Create.
type CreateOptions struct {
	Title string
	Body  string
	Draft bool
	// Push pushes each branch with upstream tracking before opening PRs.
	Push bool
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Entries []Entry `json:"repos"`
	// ManifestPR is the number the change set is recorded under.
	ManifestPR int `json:"manifestPr,omitempty"`
}

// Created returns the number of PRs opened by this invocation.
func (r *CreateResult) Created() int {
	n := 0
	for _, e := range r.Entries {
		if e.Created {
			n++
		}
	}
	return n
}

// Create opens a PR for every repo whose checked-out branch has commits
// ahead of its default branch, reusing PRs that already exist. Local git
// work runs first; platform calls follow once it is done. Every PR body
// then gets the linked-PR block and the set is recorded in the state.
func (c *Coordinator) Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	if opts.Title == "" {
		return nil, errors.New("PR title required")
	}
	entries := c.branchEntries()

	for i := range entries {
		e := &entries[i]
		if !e.Active() {
			continue
		}
		ahead, err := commitsAhead(ctx, e)
		if err != nil {
			e.fail(err)
			continue
		}
		if ahead == 0 {
			e.Skipped = fmt.Sprintf("no commits ahead of %s", e.Repo.DefaultBranch)
			continue
		}
		if opts.Push {
			if err := git.Push(ctx, e.Repo.AbsolutePath, git.PushOptions{Branch: e.Branch, SetUpstream: true}); err != nil {
				e.fail(err)
			}
		}
	}

	title := c.TitlePrefix + opts.Title
	c.each(ctx, entries, nil, func(ctx context.Context, e *Entry, client platform.Platform) {
		owner, name := e.Repo.Owner, e.Repo.Repo
		existing, err := client.FindPRByBranch(ctx, owner, name, e.Branch)
		if err != nil {
			e.fail(err)
			return
		}
		if existing != nil {
			e.Number, e.URL, e.Note = existing.Number, existing.URL, "existing PR"
			return
		}
		created, err := client.CreatePullRequest(ctx, owner, name, platform.CreatePR{
			Head:  e.Branch,
			Base:  e.Repo.DefaultBranch,
			Title: title,
			Body:  opts.Body,
			Draft: opts.Draft,
		})
		if err != nil {
			e.fail(err)
			return
		}
		e.Number, e.URL, e.Created = created.Number, created.URL, true
	})

	res := &CreateResult{Entries: entries}
	if len(withPR(entries)) == 0 {
		if err := firstErr(entries); err != nil {
			return res, err
		}
		return res, errors.New("nothing to do: no repo has commits ahead of its default branch")
	}

	c.UpdateLinks(ctx, entries)
	key, err := c.record(entries)
	res.ManifestPR = key
	return res, err
}

// commitsAhead counts commits of the checked-out branch missing from the
// default branch, preferring the remote-tracking default.
func commitsAhead(ctx context.Context, e *Entry) (int, error) {
	path := e.Repo.AbsolutePath
	base := "origin/" + e.Repo.DefaultBranch
	if !git.RefExists(ctx, path, base) {
		base = e.Repo.DefaultBranch
	}
	return git.CountBetween(ctx, path, base, "HEAD")
}
