package pr

import (
	"context"
	"slices"

	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/state"
)

// UpdateLinks rewrites the linked-PR block of every PR in entries so it
// names all of its siblings. Bodies that already carry the right block are
// left alone. Failures are logged; a missing link is cosmetic.
func (c *Coordinator) UpdateLinks(ctx context.Context, entries []Entry) {
	prs := withPR(entries)
	if len(prs) < 2 {
		return
	}
	refs := make([]platform.LinkedPRRef, len(prs))
	for i, e := range prs {
		refs[i] = platform.LinkedPRRef{RepoName: e.Name, Number: e.Number}
	}

	l := log.FromContext(ctx)
	c.each(ctx, entries, (*Entry).HasPR, func(ctx context.Context, e *Entry, client platform.Platform) {
		siblings := slices.DeleteFunc(slices.Clone(refs), func(r platform.LinkedPRRef) bool {
			return r.RepoName == e.Name
		})
		pr, err := client.GetPullRequest(ctx, e.Repo.Owner, e.Repo.Repo, e.Number)
		if err != nil {
			l.Printf("warning: %s: read PR body: %v\n", e.Ref(), err)
			return
		}
		body := platform.UpdateBodyWithLinks(pr.Body, siblings)
		if body == pr.Body {
			return
		}
		if err := client.UpdatePullRequestBody(ctx, e.Repo.Owner, e.Repo.Repo, e.Number, body); err != nil {
			l.Printf("warning: %s: update PR body: %v\n", e.Ref(), err)
		}
	})
}

// Refresh re-reads every linked PR recorded in the state file and stores
// its current state, approval, checks and mergeability. Links whose repo
// is no longer in the manifest are kept unchanged.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.State == nil {
		return nil
	}
	byName := make(map[string]repo.RepoInfo)
	for _, r := range c.targets() {
		byName[r.Name] = r
	}

	for _, key := range c.State.ManifestPRs() {
		links, _ := c.State.GetLinkedPRs(key)
		entries := make([]Entry, 0, len(links))
		for _, link := range links {
			r, ok := byName[link.RepoName]
			if !ok {
				continue
			}
			entries = append(entries, Entry{Repo: r, Name: link.RepoName, Number: link.Number, URL: link.URL})
		}
		c.evaluate(ctx, entries)
		for i := range entries {
			e := &entries[i]
			if e.Err != nil {
				log.FromContext(ctx).Debug("refresh failed", "pr", e.Ref(), "err", e.Err)
				continue
			}
			fresh := linkedRecord(e)
			c.State.UpdateLinkedPR(key, e.Name, func(l *state.LinkedPR) {
				l.State, l.Approved, l.ChecksPass, l.Mergeable = fresh.State, fresh.Approved, fresh.ChecksPass, fresh.Mergeable
				l.CheckDetails = fresh.CheckDetails
				if fresh.URL != "" {
					l.URL = fresh.URL
				}
			})
		}
	}
	return c.State.Save()
}
