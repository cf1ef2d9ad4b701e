package git

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// worktreeConflict matches git's refusal to check out a branch that is
// checked out elsewhere, in its old and new wording.
var worktreeConflict = regexp.MustCompile(`'([^']+)' is already (?:checked out|used by worktree) at '([^']+)'`)

// worktreeConflictError rewrites git's message into one naming the
// conflicting worktree, or returns nil when err is something else.
func worktreeConflictError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	m := worktreeConflict.FindStringSubmatch(err.Error())
	if m == nil {
		return nil
	}
	return &Error{
		Kind: KindOperationFailed,
		Op:   op,
		Path: path,
		Msg:  fmt.Sprintf("branch %q is already checked out in worktree %s", m[1], m[2]),
		Err:  err,
	}
}

// CreateAndCheckout creates branch name at HEAD and switches to it.
func CreateAndCheckout(ctx context.Context, path, name string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	err := runGit(ctx, path, "checkout", "-b", name)
	if werr := worktreeConflictError("create branch", path, err); werr != nil {
		return werr
	}
	return wrap("create branch", path, err)
}

// Checkout switches to an existing local branch.
func Checkout(ctx context.Context, path, name string) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	if !r.BranchExists(name) {
		return &Error{Kind: KindBranchNotFound, Op: "checkout", Path: path, Msg: fmt.Sprintf("branch %q not found", name)}
	}
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	err = runGit(ctx, path, "checkout", name)
	if werr := worktreeConflictError("checkout", path, err); werr != nil {
		return werr
	}
	return wrap("checkout", path, err)
}

// CheckoutTracking creates a local branch tracking remote/name and
// switches to it.
func CheckoutTracking(ctx context.Context, path, name, remote string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	err := runGit(ctx, path, "checkout", "-b", name, "--track", remote+"/"+name)
	if werr := worktreeConflictError("checkout", path, err); werr != nil {
		return werr
	}
	return wrap("checkout", path, err)
}

// DeleteLocal deletes a local branch. The checked-out branch is never
// deleted. Without force an unmerged branch is refused with a hint.
func DeleteLocal(ctx context.Context, path, name string, force bool) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	if current, err := r.CurrentBranch(); err == nil && current == name {
		return &Error{Kind: KindOperationFailed, Op: "delete branch", Path: path, Msg: fmt.Sprintf("cannot delete %q: it is the current branch", name)}
	}
	if !r.BranchExists(name) {
		return &Error{Kind: KindBranchNotFound, Op: "delete branch", Path: path, Msg: fmt.Sprintf("branch %q not found", name)}
	}
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}

	flag := "-d"
	if force {
		flag = "-D"
	}
	err = runGit(ctx, path, "branch", flag, name)
	if err != nil && !force && strings.Contains(err.Error(), "not fully merged") {
		return &Error{Kind: KindOperationFailed, Op: "delete branch", Path: path,
			Msg: fmt.Sprintf("branch %q is not fully merged; use --force to delete it anyway", name), Err: err}
	}
	return wrap("delete branch", path, err)
}

// IsMerged reports whether branch is reachable from target.
func IsMerged(ctx context.Context, path, branch, target string) (bool, error) {
	err := runGit(ctx, path, "merge-base", "--is-ancestor", branch, target)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, wrap("merge check", path, err)
}

// MergedBranches returns the local branches merged into target.
func MergedBranches(ctx context.Context, path, target string) ([]string, error) {
	out, err := outputGit(ctx, path, "branch", "--format=%(refname:short)", "--merged", target)
	if err != nil {
		return nil, wrap("list merged branches", path, err)
	}
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// CommitSummary is a one-line commit summary.
type CommitSummary struct {
	SHA     string `json:"sha"`
	Subject string `json:"subject"`
}

// CommitsBetween lists commits in head but not in base, newest first.
// An empty head means HEAD.
func CommitsBetween(ctx context.Context, path, base, head string) ([]CommitSummary, error) {
	if head == "" {
		head = "HEAD"
	}
	out, err := outputGit(ctx, path, "log", "--format=%H%x09%s", base+".."+head)
	if err != nil {
		return nil, wrap("log", path, err)
	}
	var commits []CommitSummary
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		sha, subject, _ := strings.Cut(line, "\t")
		commits = append(commits, CommitSummary{SHA: sha, Subject: subject})
	}
	return commits, nil
}

// CountBetween returns the number of commits in head but not in base.
func CountBetween(ctx context.Context, path, base, head string) (int, error) {
	out, err := outputGit(ctx, path, "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, wrap("rev-list", path, err)
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}

// RefExists reports whether ref resolves to a commit.
func RefExists(ctx context.Context, path, ref string) bool {
	return runGit(ctx, path, "rev-parse", "--verify", "--quiet", ref+"^{commit}") == nil
}

// UpstreamOf returns the upstream ref of the current branch, such as
// "origin/main", or "" when none is configured.
func UpstreamOf(ctx context.Context, path string) string {
	out, err := outputGit(ctx, path, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
