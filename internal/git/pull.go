package git

import (
	"context"
	"fmt"
)

// PullMode selects how the default branch integrates upstream changes.
type PullMode string

const (
	PullMerge  PullMode = "merge"
	PullRebase PullMode = "rebase"
)

// PullOutcome classifies the result of SafePullLatest.
type PullOutcome int

const (
	PullUpdated PullOutcome = iota
	PullUpToDate
	PullFetched
	PullSkippedDirty
	PullSkippedDiverged
)

// PullOptions configure SafePullLatest.
type PullOptions struct {
	DefaultBranch string
	Remote        string   // defaults to "origin"
	Mode          PullMode // defaults to PullMerge

	// Upstream overrides the pull target, e.g. "origin/dev" for a repo
	// mapped to another base inside a griptree.
	Upstream string

	// BaseMapped marks a repo whose griptree maps it to a base upstream;
	// a diverged branch is then skipped instead of merged.
	BaseMapped bool
}

// PullResult is the outcome of SafePullLatest.
type PullResult struct {
	Outcome PullOutcome
	Message string
}

// Skipped reports whether the pull left the repository untouched on purpose.
func (r PullResult) Skipped() bool {
	return r.Outcome == PullSkippedDirty || r.Outcome == PullSkippedDiverged
}

// SafePullLatest fetches and, where safe, integrates upstream changes.
// Dirty working copies are skipped untouched. Feature branches are only
// fetched. The default branch (or the Upstream override) is fast-forwarded,
// merged or rebased per Mode; a failed merge or rebase is aborted so the
// repository is left as it was.
func SafePullLatest(ctx context.Context, path string, opts PullOptions) (PullResult, error) {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Mode == "" {
		opts.Mode = PullMerge
	}

	if err := WaitForIndexLock(ctx, path); err != nil {
		return PullResult{}, err
	}
	if IsDirty(ctx, path) {
		return PullResult{Outcome: PullSkippedDirty, Message: "dirty, skipped"}, nil
	}

	if err := Fetch(ctx, path, opts.Remote); err != nil {
		return PullResult{}, err
	}

	r, err := Open(path)
	if err != nil {
		return PullResult{}, err
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		return PullResult{}, err
	}

	target := opts.Upstream
	if target == "" {
		if branch != opts.DefaultBranch {
			return PullResult{Outcome: PullFetched, Message: fmt.Sprintf("fetched (on %s)", branch)}, nil
		}
		target = UpstreamOf(ctx, path)
		if target == "" {
			return PullResult{Outcome: PullFetched, Message: "fetched (no upstream)"}, nil
		}
	} else if !RefExists(ctx, path, target) {
		return PullResult{}, &Error{Kind: KindReference, Op: "pull", Path: path, Msg: fmt.Sprintf("upstream %s not found", target)}
	}

	ahead, behind := aheadBehind(ctx, path, target)
	if behind == 0 {
		return PullResult{Outcome: PullUpToDate, Message: "up to date"}, nil
	}
	if ahead > 0 && opts.Upstream != "" && opts.BaseMapped {
		return PullResult{Outcome: PullSkippedDiverged, Message: "diverged, local ahead"}, nil
	}

	if opts.Mode == PullRebase {
		if err := runGit(ctx, path, "rebase", target); err != nil {
			_ = runGit(ctx, path, "rebase", "--abort")
			return PullResult{}, wrap("rebase", path, err)
		}
		return PullResult{Outcome: PullUpdated, Message: fmt.Sprintf("rebased onto %s (%d new)", target, behind)}, nil
	}

	if ahead == 0 {
		if err := runGit(ctx, path, "merge", "--ff-only", target); err != nil {
			return PullResult{}, wrap("fast-forward", path, err)
		}
		return PullResult{Outcome: PullUpdated, Message: fmt.Sprintf("fast-forwarded %d commit(s)", behind)}, nil
	}
	if err := runGit(ctx, path, "merge", "--no-edit", target); err != nil {
		_ = runGit(ctx, path, "merge", "--abort")
		return PullResult{}, wrap("merge", path, err)
	}
	return PullResult{Outcome: PullUpdated, Message: fmt.Sprintf("merged %s (%d new)", target, behind)}, nil
}

// Fetch fetches remote, pruning deleted branches.
func Fetch(ctx context.Context, path, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	if err := runGit(ctx, path, "fetch", "--prune", "--quiet", remote); err != nil {
		return wrap("fetch", path, err)
	}
	return nil
}
