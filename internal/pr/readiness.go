package pr

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphi011/gitgrip/internal/platform"
)

// Readiness is the merge-relevant state of one PR.
type Readiness struct {
	State        platform.PRState       `json:"state"`
	Draft        bool                   `json:"draft,omitempty"`
	Approved     bool                   `json:"approved"`
	Checks       platform.CheckState    `json:"checks"`
	CheckDetails []platform.CheckStatus `json:"checkDetails,omitempty"`
	// Mergeable is nil while the platform is still computing it.
	Mergeable *bool  `json:"mergeable,omitempty"`
	Base      string `json:"base"`
	HeadSHA   string `json:"headSha,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Ready reports whether the PR can be merged now.
func (r *Readiness) Ready() bool {
	return len(r.Reasons()) == 0
}

// Reasons lists what keeps the PR from being ready.
func (r *Readiness) Reasons() []string {
	var reasons []string
	if r.State != platform.StateOpen {
		reasons = append(reasons, string(r.State))
	}
	if r.Draft {
		reasons = append(reasons, "draft")
	}
	if !r.Approved {
		reasons = append(reasons, "not approved")
	}
	switch r.Checks {
	case platform.CheckSuccess:
	case platform.CheckFailure:
		reasons = append(reasons, "checks failing")
	default:
		reasons = append(reasons, "checks pending")
	}
	switch {
	case r.Mergeable == nil:
		reasons = append(reasons, "mergeability unknown")
	case !*r.Mergeable:
		reasons = append(reasons, "not mergeable")
	}
	return reasons
}

// evaluate fills Readiness for every entry with a PR.
func (c *Coordinator) evaluate(ctx context.Context, entries []Entry) {
	c.each(ctx, entries, (*Entry).HasPR, func(ctx context.Context, e *Entry, client platform.Platform) {
		r, err := readiness(ctx, client, e)
		if err != nil {
			e.fail(err)
			return
		}
		e.Readiness = r
	})
}

func readiness(ctx context.Context, client platform.Platform, e *Entry) (*Readiness, error) {
	owner, name := e.Repo.Owner, e.Repo.Repo
	pr, err := client.GetPullRequest(ctx, owner, name, e.Number)
	if err != nil {
		return nil, err
	}
	r := &Readiness{
		State:     pr.State,
		Draft:     pr.Draft,
		Mergeable: pr.Mergeable,
		Base:      pr.Base.Ref,
		HeadSHA:   pr.Head.SHA,
		Title:     pr.Title,
	}
	if pr.Merged {
		r.State = platform.StateMerged
	}
	if e.URL == "" {
		e.URL = pr.URL
	}
	if r.State != platform.StateOpen {
		return r, nil
	}

	if r.Approved, err = client.IsPullRequestApproved(ctx, owner, name, e.Number); err != nil {
		return nil, err
	}
	ref := pr.Head.SHA
	if ref == "" {
		ref = e.Branch
	}
	checks, err := client.GetStatusChecks(ctx, owner, name, ref)
	if err != nil {
		return nil, err
	}
	r.Checks, r.CheckDetails = checks.State, checks.Statuses
	return r, nil
}

// Status discovers the change set of the checked-out branch and evaluates
// every PR. Known PRs are written back to the state file.
func (c *Coordinator) Status(ctx context.Context) ([]Entry, error) {
	entries := c.Discover(ctx)
	c.evaluate(ctx, entries)
	if _, err := c.record(entries); err != nil {
		return entries, err
	}
	return entries, nil
}

// NotReady names one PR that blocks a merge.
type NotReady struct {
	Ref     string
	Reasons []string
}

// NotReadyError refuses an all-or-nothing merge.
type NotReadyError struct {
	PRs []NotReady
}

func (e *NotReadyError) Error() string {
	parts := make([]string, len(e.PRs))
	for i, p := range e.PRs {
		parts[i] = fmt.Sprintf("%s (%s)", p.Ref, strings.Join(p.Reasons, ", "))
	}
	return fmt.Sprintf("not all PRs are ready to merge: %s; use --force to merge anyway", strings.Join(parts, "; "))
}

// BehindBaseError is returned when a merge is refused because the PR head
// is behind its base.
type BehindBaseError struct {
	Ref string
	Err error
}

func (e *BehindBaseError) Error() string {
	return fmt.Sprintf("%s is behind its base branch; rerun with --update to update it first", e.Ref)
}

func (e *BehindBaseError) Unwrap() error { return e.Err }
