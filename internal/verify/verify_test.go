package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/griptree"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/repo"
)

func initRepo(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	if _, err := git.Run(ctx, "", "init", "-b", "main", path); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test User"},
		{"config", "commit.gpgsign", "false"},
		{"commit", "--allow-empty", "-m", "initial"},
	} {
		if _, err := git.Run(ctx, path, args...); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()

	manifestPath := filepath.Join(root, "gripspace.yml")
	raw := "repos:\n  api:\n    url: git@github.com:acme/api.git\n    path: api\n  web:\n    url: git@github.com:acme/web.git\n    path: web\n"
	if err := os.WriteFile(manifestPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}

	api := repo.RepoInfo{Name: "api", AbsolutePath: filepath.Join(root, "api"), DefaultBranch: "main",
		LinkFile: []manifest.FileMapping{{Src: "README.md", Dest: "API.md"}}}
	web := repo.RepoInfo{Name: "web", AbsolutePath: filepath.Join(root, "web"), DefaultBranch: "main"}
	initRepo(t, api.AbsolutePath)
	if err := os.WriteFile(filepath.Join(api.AbsolutePath, "README.md"), []byte("api"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := griptree.LoadRegistry(root)
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(griptree.Entry{Path: filepath.Join(root, "gone"), Branch: "feat/gone", CreatedAt: time.Now()})
	if err := reg.Save(); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		ManifestPath: manifestPath,
		Manifest:     m,
		Root:         root,
		Repos:        []repo.RepoInfo{api, web},
		RegistryRoot: root,
		Clean:        true,
		Branch:       "feat/x",
	}
	rep, err := Run(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}

	byCat := ByCategory(rep.Issues)
	if n := len(byCat[CategoryManifest]); n != 0 {
		t.Errorf("manifest issues = %v", byCat[CategoryManifest])
	}
	// api: untracked README, wrong branch. web: not cloned.
	if n := len(byCat[CategoryRepo]); n != 3 {
		t.Errorf("repo issues = %+v, want 3", byCat[CategoryRepo])
	}
	links := byCat[CategoryLink]
	if len(links) != 1 || links[0].Key != "API.md" || links[0].Fix != FixLink {
		t.Errorf("link issues = %+v", links)
	}
	grip := byCat[CategoryGriptree]
	if len(grip) != 1 || grip[0].Key != "feat/gone" || grip[0].Fix != FixPrune {
		t.Errorf("griptree issues = %+v", grip)
	}
	if rep.OK() {
		t.Error("report should not be OK")
	}
	if rep.Checked[CategoryRepo] != 2 || rep.Checked[CategoryLink] != 1 || rep.Checked[CategoryGriptree] != 1 {
		t.Errorf("checked = %v", rep.Checked)
	}

	if err := Fix(ctx, rep, opts); err != nil {
		t.Fatal(err)
	}
	for _, i := range rep.Issues {
		if want := i.Fix != FixNone; i.Fixed != want {
			t.Errorf("issue %+v fixed = %v, want %v", i, i.Fixed, want)
		}
	}
	if _, err := os.Readlink(filepath.Join(root, "API.md")); err != nil {
		t.Errorf("link not created: %v", err)
	}
	reg, _ = griptree.LoadRegistry(root)
	if len(reg.Entries()) != 0 {
		t.Errorf("registry = %+v, want pruned", reg.Entries())
	}
}

func TestRunManifestProblems(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	path := filepath.Join(root, "gripspace.yml")
	raw := "repos:\n  a:\n    url: u\n    path: ../escape\n    reference: maybe\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &manifest.Manifest{Repos: map[string]manifest.RepoConfig{"a": {URL: "u", Path: "../escape"}}}
	rep, err := Run(context.Background(), Options{ManifestPath: path, Manifest: m, Root: root})
	if err != nil {
		t.Fatal(err)
	}
	var schema, escape bool
	for _, i := range rep.Issues {
		if i.Category != CategoryManifest {
			t.Errorf("unexpected category %s", i.Category)
		}
		schema = schema || strings.Contains(i.Description, "/repos/a/reference")
		escape = escape || strings.Contains(i.Description, manifest.ErrPathEscape.Error())
	}
	if !schema || !escape {
		t.Errorf("issues = %+v, want schema violation and path escape", rep.Issues)
	}
}

func TestRunCleanWorkspace(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	api := repo.RepoInfo{Name: "api", AbsolutePath: filepath.Join(root, "api"), DefaultBranch: "main"}
	initRepo(t, api.AbsolutePath)

	rep, err := Run(context.Background(), Options{Root: root, Repos: []repo.RepoInfo{api}, Clean: true, Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() {
		t.Errorf("issues = %+v, want none", rep.Issues)
	}
}
