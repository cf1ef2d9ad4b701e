package git

import (
	"context"
	"path/filepath"
	"testing"
)

func TestClone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("requested branch", func(t *testing.T) {
		t.Parallel()
		repoPath, originPath := setupTestRepoWithOrigin(t)
		if err := runGit(ctx, repoPath, "push", "origin", "main:dev"); err != nil {
			t.Fatal(err)
		}
		dest := filepath.Join(resolveTempDir(t), "clone")
		res, err := Clone(ctx, originPath, dest, "dev")
		if err != nil {
			t.Fatalf("Clone() error = %v", err)
		}
		if res.FellBack {
			t.Error("FellBack = true for existing branch")
		}
		r, err := Open(dest)
		if err != nil {
			t.Fatal(err)
		}
		if b, _ := r.CurrentBranch(); b != "dev" {
			t.Errorf("CurrentBranch() = %q, want dev", b)
		}
	})

	t.Run("missing branch falls back", func(t *testing.T) {
		t.Parallel()
		_, originPath := setupTestRepoWithOrigin(t)
		dest := filepath.Join(resolveTempDir(t), "nested", "clone")
		res, err := Clone(ctx, originPath, dest, "does-not-exist")
		if err != nil {
			t.Fatalf("Clone() error = %v", err)
		}
		if !res.FellBack {
			t.Error("FellBack = false, want true")
		}
		r, err := Open(dest)
		if err != nil {
			t.Fatal(err)
		}
		if b, _ := r.CurrentBranch(); b != "main" {
			t.Errorf("CurrentBranch() = %q, want main", b)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		t.Parallel()
		dest := filepath.Join(resolveTempDir(t), "clone")
		if _, err := Clone(ctx, filepath.Join(resolveTempDir(t), "missing.git"), dest, ""); err == nil {
			t.Error("Clone() of missing origin succeeded")
		}
	})
}
