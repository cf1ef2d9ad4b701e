package pr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/platform"
)

// ErrNoPRs is returned when the checked-out branches have no open PRs.
var ErrNoPRs = errors.New("no pull requests found for the current branch")

// MergeOptions tune Merge.
type MergeOptions struct {
	Strategy manifest.MergeStrategy
	Method   platform.MergeMethod
	// Force merges PRs that are not ready.
	Force bool
	// Update brings a PR that is behind its base up to date and retries.
	Update       bool
	DeleteBranch bool
}

// Merge merges the change set of the checked-out branch. With the
// all-or-nothing strategy nothing is merged unless every PR is ready, and
// the first failed merge stops the run. With the independent strategy
// every ready PR is merged on its own. The manifest PR always goes last.
func (c *Coordinator) Merge(ctx context.Context, opts MergeOptions) ([]Entry, error) {
	if opts.Strategy == "" {
		opts.Strategy = manifest.MergeAllOrNothing
	}
	if opts.Method == "" {
		opts.Method = platform.MethodMerge
	}

	entries := c.Discover(ctx)
	c.evaluate(ctx, entries)
	c.checkMethods(ctx, entries, opts.Method)

	prs := withPR(entries)
	if len(prs) == 0 {
		if err := firstErr(entries); err != nil {
			return entries, err
		}
		return entries, ErrNoPRs
	}

	var err error
	switch opts.Strategy {
	case manifest.MergeIndependent:
		err = c.mergeIndependent(ctx, entries, opts)
	default:
		err = c.mergeAllOrNothing(ctx, entries, opts)
	}

	if _, serr := c.recordMerged(entries); serr != nil && err == nil {
		err = serr
	}
	return entries, err
}

func (c *Coordinator) mergeAllOrNothing(ctx context.Context, entries []Entry, opts MergeOptions) error {
	if !opts.Force {
		var blocked []NotReady
		for i := range entries {
			e := &entries[i]
			switch {
			case e.Err != nil:
				blocked = append(blocked, NotReady{Ref: e.Name, Reasons: []string{e.Message}})
			case !e.Active() || !e.HasPR() || alreadyMerged(e):
			case !e.Readiness.Ready():
				blocked = append(blocked, NotReady{Ref: e.Ref(), Reasons: e.Readiness.Reasons()})
			}
		}
		if len(blocked) > 0 {
			return &NotReadyError{PRs: blocked}
		}
	}

	for i := range entries {
		e := &entries[i]
		if !e.Active() || !e.HasPR() {
			continue
		}
		if alreadyMerged(e) {
			e.Note = "already merged"
			continue
		}
		if err := c.mergeOne(ctx, e, opts); err != nil {
			e.fail(err)
			for j := i + 1; j < len(entries); j++ {
				if entries[j].Active() && entries[j].HasPR() && !alreadyMerged(&entries[j]) {
					entries[j].Note = "not attempted"
				}
			}
			return fmt.Errorf("merge %s: %w", e.Ref(), err)
		}
	}
	return nil
}

func (c *Coordinator) mergeIndependent(ctx context.Context, entries []Entry, opts MergeOptions) error {
	l := log.FromContext(ctx)
	var failed []string
	for i := range entries {
		e := &entries[i]
		if !e.Active() || !e.HasPR() {
			continue
		}
		switch {
		case alreadyMerged(e):
			e.Note = "already merged"
			continue
		case !opts.Force && !e.Readiness.Ready():
			e.Note = "not ready: " + strings.Join(e.Readiness.Reasons(), ", ")
			continue
		}
		if err := c.mergeOne(ctx, e, opts); err != nil {
			l.Debug("merge failed", "pr", e.Ref(), "err", err)
			e.fail(err)
			failed = append(failed, e.Ref())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to merge %s", strings.Join(failed, ", "))
	}
	return nil
}

func alreadyMerged(e *Entry) bool {
	return e.Readiness != nil && e.Readiness.State == platform.StateMerged
}

// checkMethods marks entries whose repo does not allow method. A platform
// that cannot report its methods is trusted.
func (c *Coordinator) checkMethods(ctx context.Context, entries []Entry, method platform.MergeMethod) {
	c.each(ctx, entries, (*Entry).HasPR, func(ctx context.Context, e *Entry, client platform.Platform) {
		allowed, err := client.GetAllowedMergeMethods(ctx, e.Repo.Owner, e.Repo.Repo)
		if err != nil {
			log.FromContext(ctx).Debug("merge methods unavailable", "repo", e.Name, "err", err)
			return
		}
		if !allowed.Allows(method) {
			e.fail(fmt.Errorf("merge method %q is not allowed by %s", method, e.Name))
		}
	})
}

// mergeOne merges a single PR, updating it from its base first when the
// platform reports it behind and opts.Update is set.
func (c *Coordinator) mergeOne(ctx context.Context, e *Entry, opts MergeOptions) error {
	client, err := c.Client(ctx, e.Repo)
	if err != nil {
		return err
	}
	merge := func() error {
		ok, err := client.MergePullRequest(ctx, e.Repo.Owner, e.Repo.Repo, e.Number, opts.Method, opts.DeleteBranch)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("merge was not accepted")
		}
		return nil
	}

	err = merge()
	if err != nil && platform.IsBehindBase(err) {
		if !opts.Update {
			return &BehindBaseError{Ref: e.Ref(), Err: err}
		}
		if uerr := c.updateBranch(ctx, e, client); uerr != nil {
			return fmt.Errorf("update from base: %w", uerr)
		}
		err = merge()
	}
	if err != nil {
		return err
	}
	e.Merged = true
	return nil
}

// updateBranch brings the PR head up to date with its base, through the
// platform when it can and through the local checkout otherwise.
func (c *Coordinator) updateBranch(ctx context.Context, e *Entry, client platform.Platform) error {
	err := client.UpdatePullRequestBranch(ctx, e.Repo.Owner, e.Repo.Repo, e.Number)
	if err == nil || !platform.IsUnsupported(err) {
		return err
	}
	base := e.Repo.DefaultBranch
	if e.Readiness != nil && e.Readiness.Base != "" {
		base = e.Readiness.Base
	}
	log.FromContext(ctx).Debug("updating branch locally", "repo", e.Name, "base", base)
	path := e.Repo.AbsolutePath
	if err := git.Fetch(ctx, path, "origin"); err != nil {
		return err
	}
	if err := git.MergeRef(ctx, path, "origin/"+base); err != nil {
		return err
	}
	return git.Push(ctx, path, git.PushOptions{Branch: e.Branch})
}

// recordMerged updates the state after a merge run. A change set whose
// PRs are all merged is dropped from the state file.
func (c *Coordinator) recordMerged(entries []Entry) (int, error) {
	if c.State == nil {
		return 0, nil
	}
	key, err := c.record(entries)
	if err != nil || key == 0 {
		return key, err
	}
	links, _ := c.State.GetLinkedPRs(key)
	for _, l := range links {
		if l.State != platform.StateMerged {
			return key, nil
		}
	}
	c.State.RemoveBranch(setBranch(entries))
	return key, c.State.Save()
}

func firstErr(entries []Entry) error {
	for _, e := range entries {
		if e.Err != nil {
			return fmt.Errorf("%s: %w", e.Name, e.Err)
		}
	}
	return nil
}
