package git

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeCheckout describes the branch a new worktree starts on.
type WorktreeCheckout struct {
	Branch string
	// Create makes Branch at From, or at HEAD when From is empty. Without
	// Create the branch must already exist.
	Create bool
	From   string
}

// Worktree is one entry of "git worktree list".
type Worktree struct {
	Path     string
	Head     string
	Branch   string // empty when detached
	Detached bool
	Locked   bool
	Prunable bool
}

// AddWorktree checks co out into a new linked worktree at dir.
func AddWorktree(ctx context.Context, repoPath, dir string, co WorktreeCheckout) error {
	if err := WaitForIndexLock(ctx, repoPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return &Error{Kind: KindIO, Op: "add worktree", Path: dir, Err: err}
	}
	args := []string{"worktree", "add"}
	if co.Create {
		args = append(args, "-b", co.Branch, dir)
		if co.From != "" {
			args = append(args, co.From)
		}
	} else {
		args = append(args, dir, co.Branch)
	}
	err := runGit(ctx, repoPath, args...)
	if cerr := worktreeConflictError("add worktree", repoPath, err); cerr != nil {
		return cerr
	}
	return wrap("add worktree", repoPath, err)
}

// RemoveWorktree deletes the linked worktree at dir. Force discards
// local changes.
func RemoveWorktree(ctx context.Context, repoPath, dir string, force bool) error {
	args := []string{"worktree", "remove", dir}
	if force {
		args = []string{"worktree", "remove", "--force", dir}
	}
	return wrap("remove worktree", repoPath, runGit(ctx, repoPath, args...))
}

// PruneWorktrees drops administrative data of worktrees whose directory
// is gone.
func PruneWorktrees(ctx context.Context, repoPath string) error {
	return wrap("prune worktrees", repoPath, runGit(ctx, repoPath, "worktree", "prune"))
}

// ListWorktrees returns the main checkout followed by its linked worktrees.
func ListWorktrees(ctx context.Context, repoPath string) ([]Worktree, error) {
	out, err := outputGit(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, wrap("list worktrees", repoPath, err)
	}
	return parseWorktreeList(out), nil
}

// parseWorktreeList reads porcelain output: blank-line separated records
// of "key value" attribute lines.
func parseWorktreeList(out []byte) []Worktree {
	var (
		list []Worktree
		cur  *Worktree
	)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, _ := strings.Cut(sc.Text(), " ")
		if key == "worktree" {
			list = append(list, Worktree{Path: val})
			cur = &list[len(list)-1]
			continue
		}
		if cur == nil {
			continue
		}
		switch key {
		case "HEAD":
			cur.Head = val
		case "branch":
			cur.Branch = strings.TrimPrefix(val, "refs/heads/")
		case "detached":
			cur.Detached = true
		case "locked":
			cur.Locked = true
		case "prunable":
			cur.Prunable = true
		}
	}
	return list
}

// IsWorktree reports whether path is a linked worktree, whose .git is a
// file rather than a directory.
func IsWorktree(path string) bool {
	fi, err := os.Lstat(filepath.Join(path, ".git"))
	return err == nil && fi.Mode().IsRegular()
}
