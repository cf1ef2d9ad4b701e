package git

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// mustGit runs git in dir and fails the test on error.
func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	if err := runGit(context.Background(), dir, args...); err != nil {
		t.Fatalf("git %s: %v", strings.Join(args, " "), err)
	}
}

// resolveTempDir returns a temp dir with symlinks resolved, so paths
// compare equal to what git reports on macOS.
func resolveTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return dir
}

// configureTestRepo sets a committer identity and turns off signing.
func configureTestRepo(t *testing.T, repoPath string) {
	t.Helper()
	mustGit(t, repoPath, "config", "user.name", "gr test")
	mustGit(t, repoPath, "config", "user.email", "gr@example.com")
	mustGit(t, repoPath, "config", "commit.gpgsign", "false")
}

// setupTestRepo returns a repo on main with one commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	repoPath := filepath.Join(resolveTempDir(t), "api")
	mustGit(t, "", "init", "-b", "main", repoPath)
	configureTestRepo(t, repoPath)
	writeAndCommit(t, repoPath, "README.md", "# api\n", "initial commit")
	return repoPath
}

// setupTestRepoWithOrigin returns a clone of a bare origin whose main
// branch is pushed and tracked. The second value is the origin path.
func setupTestRepoWithOrigin(t *testing.T) (string, string) {
	t.Helper()
	dir := resolveTempDir(t)
	origin := filepath.Join(dir, "origin.git")
	repoPath := filepath.Join(dir, "api")

	mustGit(t, "", "init", "--bare", "-b", "main", origin)
	mustGit(t, "", "clone", origin, repoPath)
	configureTestRepo(t, repoPath)
	writeAndCommit(t, repoPath, "README.md", "# api\n", "initial commit")
	mustGit(t, repoPath, "push", "-u", "origin", "HEAD")
	return repoPath, origin
}

// writeAndCommit writes name and commits it with message.
func writeAndCommit(t *testing.T, repoPath, name, content, message string) {
	t.Helper()
	path := filepath.Join(repoPath, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, repoPath, "add", name)
	mustGit(t, repoPath, "commit", "-m", message)
}

// headSHA returns the full commit hash of HEAD.
func headSHA(t *testing.T, repoPath string) string {
	t.Helper()
	out, err := outputGit(context.Background(), repoPath, "rev-parse", "HEAD")
	if err != nil {
		t.Fatalf("rev-parse HEAD: %v", err)
	}
	return strings.TrimSpace(string(out))
}

// assertContains fails for every want not present in got.
func assertContains(t *testing.T, got []string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !slices.Contains(got, w) {
			t.Errorf("%q not in %v", w, got)
		}
	}
}
