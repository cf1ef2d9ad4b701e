package git

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("repository", func(t *testing.T) {
		t.Parallel()
		repoPath := setupTestRepo(t)
		r, err := Open(repoPath)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if r.Path != repoPath {
			t.Errorf("Path = %q, want %q", r.Path, repoPath)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(resolveTempDir(t), "nope"))
		if !IsKind(err, KindNotFound) {
			t.Errorf("Open() error = %v, want KindNotFound", err)
		}
	})

	t.Run("plain directory", func(t *testing.T) {
		t.Parallel()
		_, err := Open(resolveTempDir(t))
		if !IsNotARepo(err) {
			t.Errorf("Open() error = %v, want KindNotARepo", err)
		}
	})
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()

	repoPath := setupTestRepo(t)
	r, err := Open(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.CurrentBranch()
	if err != nil || got != "main" {
		t.Errorf("CurrentBranch() = %q, %v; want main", got, err)
	}

	sha := headSHA(t, repoPath)
	if err := runGit(context.Background(), repoPath, "checkout", "--detach"); err != nil {
		t.Fatal(err)
	}
	r, _ = Open(repoPath)
	got, err = r.CurrentBranch()
	want := "(HEAD detached at " + sha[:7] + ")"
	if err != nil || got != want {
		t.Errorf("CurrentBranch() detached = %q, %v; want %q", got, err, want)
	}
	if !r.IsDetached() {
		t.Error("IsDetached() = false, want true")
	}
}

func TestCurrentBranchInWorktree(t *testing.T) {
	t.Parallel()

	repoPath := setupTestRepo(t)
	wtPath := filepath.Join(filepath.Dir(repoPath), "wt")
	if err := AddWorktree(context.Background(), repoPath, wtPath, WorktreeCheckout{Branch: "feature", Create: true}); err != nil {
		t.Fatalf("AddWorktree() error = %v", err)
	}
	r, err := Open(wtPath)
	if err != nil {
		t.Fatalf("Open(worktree) error = %v", err)
	}
	got, err := r.CurrentBranch()
	if err != nil || got != "feature" {
		t.Errorf("CurrentBranch() = %q, %v; want feature", got, err)
	}
}

func TestBranchQueries(t *testing.T) {
	t.Parallel()

	repoPath, _ := setupTestRepoWithOrigin(t)
	ctx := context.Background()
	if err := runGit(ctx, repoPath, "branch", "feature"); err != nil {
		t.Fatal(err)
	}
	if err := runGit(ctx, repoPath, "push", "origin", "feature"); err != nil {
		t.Fatal(err)
	}

	r, err := Open(repoPath)
	if err != nil {
		t.Fatal(err)
	}
	if !r.BranchExists("feature") || r.BranchExists("missing") {
		t.Error("BranchExists() mismatch")
	}
	if !r.RemoteBranchExists("feature", "origin") || r.RemoteBranchExists("feature", "upstream") {
		t.Error("RemoteBranchExists() mismatch")
	}

	local, err := r.ListLocal()
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, local, "main", "feature")

	remote, err := r.ListRemote("origin")
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, remote, "main", "feature")
	for _, name := range remote {
		if name == "HEAD" || strings.HasPrefix(name, "origin/") {
			t.Errorf("ListRemote() returned %q", name)
		}
	}

	url, err := r.RemoteURL("origin")
	if err != nil || url == "" {
		t.Errorf("RemoteURL() = %q, %v", url, err)
	}
}

func TestCommitsBetween(t *testing.T) {
	t.Parallel()

	repoPath := setupTestRepo(t)
	ctx := context.Background()
	if err := CreateAndCheckout(ctx, repoPath, "feature"); err != nil {
		t.Fatal(err)
	}
	writeAndCommit(t, repoPath, "a.txt", "a", "add a")
	writeAndCommit(t, repoPath, "b.txt", "b", "add b")

	commits, err := CommitsBetween(ctx, repoPath, "main", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 2 || commits[0].Subject != "add b" || commits[1].Subject != "add a" {
		t.Errorf("CommitsBetween() = %+v", commits)
	}

	n, err := CountBetween(ctx, repoPath, "main", "feature")
	if err != nil || n != 2 {
		t.Errorf("CountBetween() = %d, %v; want 2", n, err)
	}

	merged, err := IsMerged(ctx, repoPath, "feature", "main")
	if err != nil || merged {
		t.Errorf("IsMerged(feature, main) = %v, %v; want false", merged, err)
	}
	merged, err = IsMerged(ctx, repoPath, "main", "feature")
	if err != nil || !merged {
		t.Errorf("IsMerged(main, feature) = %v, %v; want true", merged, err)
	}
}
