package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindPath(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := FindPath(t.TempDir())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("legacy", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, filepath.Join(root, LegacyManifestPath), sampleYAML)
		got, err := FindPath(root)
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(root, LegacyManifestPath) {
			t.Errorf("FindPath() = %q", got)
		}
	})

	t.Run("spaces layout wins", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, filepath.Join(root, LegacyManifestPath), sampleYAML)
		writeFile(t, filepath.Join(root, MainManifestPath), sampleYAML)
		got, err := FindPath(root)
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(root, MainManifestPath) {
			t.Errorf("FindPath() = %q", got)
		}
	})
}

func TestLoad_LocalOverlay(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, MainManifestPath), sampleYAML)
	writeFile(t, filepath.Join(root, LocalManifestPath), `
repos:
  scratch:
    url: git@github.com:me/scratch.git
    path: scratch
  frontend:
    url: git@github.com:me/frontend-fork.git
    path: frontend
workspace:
  env:
    NODE_ENV: test
    EXTRA: "1"
`)

	m, path, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != filepath.Join(root, MainManifestPath) {
		t.Errorf("path = %q", path)
	}
	if _, ok := m.Repos["scratch"]; !ok {
		t.Error("overlay repo scratch missing")
	}
	if m.Repos["frontend"].URL != "git@github.com:me/frontend-fork.git" {
		t.Errorf("frontend url = %q, want overlay url", m.Repos["frontend"].URL)
	}
	if m.Env()["NODE_ENV"] != "test" || m.Env()["EXTRA"] != "1" {
		t.Errorf("env = %v", m.Env())
	}
	if _, ok := m.Scripts()["build"]; !ok {
		t.Error("base script lost during merge")
	}
}

func TestLoad_OverlayWithoutRepos(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, MainManifestPath), sampleYAML)
	writeFile(t, filepath.Join(root, LocalManifestPath), "settings:\n  pr_prefix: \"[local]\"\n")

	m, _, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Settings.PRPrefix != "[local]" {
		t.Errorf("pr_prefix = %q", m.Settings.PRPrefix)
	}
	if len(m.Repos) != 3 {
		t.Errorf("repos = %d, want 3", len(m.Repos))
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, MainManifestPath), "repos:\n  evil:\n    url: u\n    path: ../../etc\n")

	_, _, err := Load(root)
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("Load() error = %v, want ErrPathEscape", err)
	}
	if !strings.Contains(err.Error(), "repos.evil.path") {
		t.Errorf("error %q does not name the repo", err)
	}
}

func TestMerge_DoesNotMutateBase(t *testing.T) {
	t.Parallel()

	base, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	overlay := &Manifest{
		Repos:     map[string]RepoConfig{"x": {URL: "u", Path: "x"}},
		Workspace: &WorkspaceConfig{Env: map[string]string{"NODE_ENV": "prod"}},
	}
	merged := Merge(base, overlay)

	if _, ok := base.Repos["x"]; ok {
		t.Error("base repos mutated")
	}
	if base.Env()["NODE_ENV"] != "development" {
		t.Error("base env mutated")
	}
	if merged.Env()["NODE_ENV"] != "prod" {
		t.Errorf("merged env = %v", merged.Env())
	}
}
