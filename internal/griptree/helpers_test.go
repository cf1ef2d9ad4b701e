package griptree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/manifest"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	if _, err := git.Run(context.Background(), dir, args...); err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
}

// initRepo creates a repository with one commit on main at path.
func initRepo(t *testing.T, path string) {
	t.Helper()
	runGit(t, "", "init", "-b", "main", path)
	runGit(t, path, "config", "user.email", "test@test.com")
	runGit(t, path, "config", "user.name", "Test User")
	runGit(t, path, "config", "commit.gpgsign", "false")
	if err := os.WriteFile(filepath.Join(path, "README.md"), []byte("# "+filepath.Base(path)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, path, "add", "README.md")
	runGit(t, path, "commit", "-m", "Initial commit")
}

// setupWorkspace creates <tmp>/ws with cloned repos frontend and backend,
// an uncloned repo missing and a reference repo docs.
func setupWorkspace(t *testing.T, withMissing bool) *Manager {
	t.Helper()
	tmp, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(tmp, "ws")

	m := &manifest.Manifest{Repos: map[string]manifest.RepoConfig{}}
	for _, name := range []string{"frontend", "backend", "docs"} {
		initRepo(t, filepath.Join(root, name))
		m.Repos[name] = manifest.RepoConfig{
			URL:       "file://" + filepath.Join(tmp, "remotes", name+".git"),
			Path:      name,
			Reference: name == "docs",
		}
	}
	if withMissing {
		m.Repos["missing"] = manifest.RepoConfig{URL: "file:///nowhere/missing.git", Path: "missing"}
	}
	return &Manager{Root: root, Manifest: m}
}
