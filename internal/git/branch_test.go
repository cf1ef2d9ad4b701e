package git

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateAndCheckout(t *testing.T) {
	t.Parallel()

	repoPath := setupTestRepo(t)
	ctx := context.Background()
	if err := CreateAndCheckout(ctx, repoPath, "feat/login"); err != nil {
		t.Fatalf("CreateAndCheckout() error = %v", err)
	}
	r, _ := Open(repoPath)
	if b, _ := r.CurrentBranch(); b != "feat/login" {
		t.Errorf("CurrentBranch() = %q, want feat/login", b)
	}

	if err := CreateAndCheckout(ctx, repoPath, "feat/login"); err == nil {
		t.Error("CreateAndCheckout() of existing branch succeeded")
	}
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	repoPath := setupTestRepo(t)
	ctx := context.Background()

	err := Checkout(ctx, repoPath, "missing")
	if !IsBranchNotFound(err) {
		t.Fatalf("Checkout(missing) = %v, want KindBranchNotFound", err)
	}

	if err := runGit(ctx, repoPath, "branch", "other"); err != nil {
		t.Fatal(err)
	}
	if err := Checkout(ctx, repoPath, "other"); err != nil {
		t.Fatalf("Checkout(other) error = %v", err)
	}
}

func TestCheckoutWorktreeConflict(t *testing.T) {
	t.Parallel()

	repoPath := setupTestRepo(t)
	ctx := context.Background()
	wtPath := filepath.Join(filepath.Dir(repoPath), "wt")
	if err := AddWorktree(ctx, repoPath, wtPath, WorktreeCheckout{Branch: "busy", Create: true}); err != nil {
		t.Fatal(err)
	}

	err := Checkout(ctx, repoPath, "busy")
	if err == nil {
		t.Fatal("Checkout() succeeded for a branch checked out elsewhere")
	}
	if !strings.Contains(err.Error(), `branch "busy" is already checked out in worktree`) {
		t.Errorf("error = %q", err)
	}
	if !strings.Contains(err.Error(), wtPath) {
		t.Errorf("error %q does not name worktree %s", err, wtPath)
	}
}

func TestDeleteLocal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("current branch", func(t *testing.T) {
		t.Parallel()
		repoPath := setupTestRepo(t)
		err := DeleteLocal(ctx, repoPath, "main", true)
		if err == nil || !strings.Contains(err.Error(), "current branch") {
			t.Errorf("DeleteLocal(main) = %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		repoPath := setupTestRepo(t)
		if err := DeleteLocal(ctx, repoPath, "nope", false); !IsBranchNotFound(err) {
			t.Errorf("DeleteLocal(nope) = %v, want KindBranchNotFound", err)
		}
	})

	t.Run("unmerged needs force", func(t *testing.T) {
		t.Parallel()
		repoPath := setupTestRepo(t)
		if err := CreateAndCheckout(ctx, repoPath, "wip"); err != nil {
			t.Fatal(err)
		}
		writeAndCommit(t, repoPath, "wip.txt", "wip", "wip")
		if err := Checkout(ctx, repoPath, "main"); err != nil {
			t.Fatal(err)
		}

		err := DeleteLocal(ctx, repoPath, "wip", false)
		if err == nil || !strings.Contains(err.Error(), "--force") {
			t.Fatalf("DeleteLocal(wip) = %v, want hint about --force", err)
		}
		if err := DeleteLocal(ctx, repoPath, "wip", true); err != nil {
			t.Fatalf("DeleteLocal(wip, force) = %v", err)
		}
		r, _ := Open(repoPath)
		if r.BranchExists("wip") {
			t.Error("branch wip still exists")
		}
	})

	t.Run("merged", func(t *testing.T) {
		t.Parallel()
		repoPath := setupTestRepo(t)
		if err := runGit(ctx, repoPath, "branch", "done"); err != nil {
			t.Fatal(err)
		}
		merged, err := MergedBranches(ctx, repoPath, "main")
		if err != nil {
			t.Fatal(err)
		}
		assertContains(t, merged, "main", "done")
		if err := DeleteLocal(ctx, repoPath, "done", false); err != nil {
			t.Errorf("DeleteLocal(done) = %v", err)
		}
	})
}

func TestUpstreamOf(t *testing.T) {
	t.Parallel()

	repoPath, _ := setupTestRepoWithOrigin(t)
	ctx := context.Background()
	if got := UpstreamOf(ctx, repoPath); got != "origin/main" {
		t.Errorf("UpstreamOf() = %q, want origin/main", got)
	}
	if err := CreateAndCheckout(ctx, repoPath, "local-only"); err != nil {
		t.Fatal(err)
	}
	if got := UpstreamOf(ctx, repoPath); got != "" {
		t.Errorf("UpstreamOf() = %q, want empty", got)
	}
	if !RefExists(ctx, repoPath, "origin/main") || RefExists(ctx, repoPath, "origin/nope") {
		t.Error("RefExists() mismatch")
	}
}
