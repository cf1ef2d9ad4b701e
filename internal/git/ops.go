package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Add stages paths (all changes when empty).
func Add(ctx context.Context, path string, paths ...string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	args := append([]string{"add", "-A", "--"}, paths...)
	return wrap("add", path, runGit(ctx, path, args...))
}

// Commit records the staged changes. When no identity is configured the
// author falls back to GIT_AUTHOR_NAME/GIT_AUTHOR_EMAIL, then $USER.
func Commit(ctx context.Context, path, message string, amend bool) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	args := []string{"commit", "-m", message}
	if amend {
		args = append(args, "--amend")
	}
	_, err := envGit(ctx, path, signatureEnv(ctx, path), args...)
	return wrap("commit", path, err)
}

// signatureEnv returns identity variables for repos without user.name or
// user.email, or nil when git already knows who commits.
func signatureEnv(ctx context.Context, path string) map[string]string {
	env := map[string]string{}
	user := os.Getenv("USER")
	if out, err := outputGit(ctx, path, "config", "user.name"); err != nil || strings.TrimSpace(string(out)) == "" {
		name := os.Getenv("GIT_AUTHOR_NAME")
		if name == "" {
			name = user
		}
		if name != "" {
			env["GIT_AUTHOR_NAME"] = name
			env["GIT_COMMITTER_NAME"] = name
		}
	}
	if out, err := outputGit(ctx, path, "config", "user.email"); err != nil || strings.TrimSpace(string(out)) == "" {
		email := os.Getenv("GIT_AUTHOR_EMAIL")
		if email == "" && user != "" {
			email = user + "@localhost"
		}
		if email != "" {
			env["GIT_AUTHOR_EMAIL"] = email
			env["GIT_COMMITTER_EMAIL"] = email
		}
	}
	if len(env) == 0 {
		return nil
	}
	return env
}

// PushOptions configure Push.
type PushOptions struct {
	Remote      string // defaults to "origin"
	Branch      string // defaults to the current branch
	SetUpstream bool
	Force       bool // uses --force-with-lease
}

// Push pushes a branch to its remote.
func Push(ctx context.Context, path string, opts PushOptions) error {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branch == "" {
		r, err := Open(path)
		if err != nil {
			return err
		}
		if r.IsDetached() {
			return &Error{Kind: KindReference, Op: "push", Path: path, Msg: "HEAD is detached"}
		}
		if opts.Branch, err = r.CurrentBranch(); err != nil {
			return err
		}
	}
	args := []string{"push", "--quiet"}
	if opts.SetUpstream {
		args = append(args, "-u")
	}
	if opts.Force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, opts.Remote, opts.Branch)
	return wrap("push", path, runGit(ctx, path, args...))
}

// Rebase rebases the current branch onto onto.
func Rebase(ctx context.Context, path, onto string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	return wrap("rebase", path, runGit(ctx, path, "rebase", onto))
}

// RebaseAbort abandons an in-progress rebase.
func RebaseAbort(ctx context.Context, path string) error {
	return wrap("rebase --abort", path, runGit(ctx, path, "rebase", "--abort"))
}

// RebaseContinue resumes a rebase after conflicts were resolved.
func RebaseContinue(ctx context.Context, path string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	return wrap("rebase --continue", path, runGit(ctx, path, "-c", "core.editor=true", "rebase", "--continue"))
}

// RebaseInProgress reports whether a rebase awaits resolution.
func RebaseInProgress(path string) bool {
	dir, err := gitDir(path)
	if err != nil {
		return false
	}
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Diff returns the working-tree diff, or the index diff when staged.
func Diff(ctx context.Context, path string, staged, stat bool) (string, error) {
	args := []string{"diff", "--no-color"}
	if staged {
		args = append(args, "--cached")
	}
	if stat {
		args = append(args, "--stat")
	}
	out, err := outputGit(ctx, path, args...)
	if err != nil {
		return "", wrap("diff", path, err)
	}
	return string(out), nil
}

// DiffRange returns the diff between base and head as git prints it for
// "base...head".
func DiffRange(ctx context.Context, path, base, head string) (string, error) {
	out, err := outputGit(ctx, path, "diff", "--no-color", base+"..."+head)
	if err != nil {
		return "", wrap("diff", path, err)
	}
	return string(out), nil
}

// Grep runs git grep and returns matching lines. No match is not an error.
func Grep(ctx context.Context, path, pattern string, ignoreCase bool, pathspecs ...string) ([]string, error) {
	args := []string{"grep", "-n", "--no-color"}
	if ignoreCase {
		args = append(args, "-i")
	}
	args = append(args, "-e", pattern)
	if len(pathspecs) > 0 {
		args = append(append(args, "--"), pathspecs...)
	}
	out, err := outputGit(ctx, path, args...)
	if err != nil {
		if exitCode(err) == 1 {
			return nil, nil
		}
		return nil, wrap("grep", path, err)
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Tag creates an annotated tag at HEAD.
func Tag(ctx context.Context, path, name, message string) error {
	if message == "" {
		message = name
	}
	return wrap("tag", path, runGit(ctx, path, "tag", "-a", name, "-m", message))
}

// TagExists reports whether a tag exists.
func TagExists(ctx context.Context, path, name string) bool {
	return runGit(ctx, path, "rev-parse", "--verify", "--quiet", "refs/tags/"+name) == nil
}

// PushTag pushes a single tag.
func PushTag(ctx context.Context, path, remote, name string) error {
	if remote == "" {
		remote = "origin"
	}
	return wrap("push tag", path, runGit(ctx, path, "push", "--quiet", remote, "refs/tags/"+name))
}

// Tags lists tags matching pattern, sorted by version descending.
func Tags(ctx context.Context, path, pattern string) ([]string, error) {
	args := []string{"tag", "--list", "--sort=-v:refname"}
	if pattern != "" {
		args = append(args, pattern)
	}
	out, err := outputGit(ctx, path, args...)
	if err != nil {
		return nil, wrap("list tags", path, err)
	}
	var tags []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// MergeRef merges ref into the current branch. A conflicting merge is
// aborted so the working tree is left as it was.
func MergeRef(ctx context.Context, path, ref string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	if err := runGit(ctx, path, "merge", "--no-edit", "--quiet", ref); err != nil {
		_ = runGit(ctx, path, "merge", "--abort")
		return wrap("merge", path, err)
	}
	return nil
}
