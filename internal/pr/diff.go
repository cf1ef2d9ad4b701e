package pr

import (
	"context"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/platform"
)

// Checks discovers the change set and reports the status checks of each
// PR through its Readiness.
func (c *Coordinator) Checks(ctx context.Context) []Entry {
	entries := c.Discover(ctx)
	c.evaluate(ctx, entries)
	return entries
}

// Diff fills Entry.Diff with the unified diff of every PR in the change
// set. Platforms without a diff endpoint fall back to the local
// default...HEAD range.
func (c *Coordinator) Diff(ctx context.Context) []Entry {
	entries := c.Discover(ctx)
	c.each(ctx, entries, (*Entry).HasPR, func(ctx context.Context, e *Entry, client platform.Platform) {
		d, err := client.GetPullRequestDiff(ctx, e.Repo.Owner, e.Repo.Repo, e.Number)
		if platform.IsUnsupported(err) {
			d, err = localDiff(ctx, e)
		}
		if err != nil {
			e.fail(err)
			return
		}
		e.Diff = d
	})
	return entries
}

func localDiff(ctx context.Context, e *Entry) (string, error) {
	base := "origin/" + e.Repo.DefaultBranch
	if !git.RefExists(ctx, e.Repo.AbsolutePath, base) {
		base = e.Repo.DefaultBranch
	}
	return git.DiffRange(ctx, e.Repo.AbsolutePath, base, "HEAD")
}
