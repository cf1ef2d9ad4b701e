package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEditor_Groups(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gripspace.yml")
	writeFile(t, path, "# workspace\n"+sampleYAML)

	e, err := OpenEditor(path)
	if err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	added, err := e.AddGroups("frontend", "web", "mobile")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"mobile"}, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	removed, err := e.RemoveGroups("backend", "api", "web")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v", removed)
	}
	if err := e.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# workspace") {
		t.Error("comment was dropped")
	}

	m, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"web", "mobile"}, m.Repos["frontend"].Groups); diff != "" {
		t.Errorf("frontend groups (-want +got):\n%s", diff)
	}
	if len(m.Repos["backend"].Groups) != 0 {
		t.Errorf("backend groups = %v, want none", m.Repos["backend"].Groups)
	}
}

func TestEditor_AddRemoveRepo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gripspace.yml")
	writeFile(t, path, sampleYAML)

	e, err := OpenEditor(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.AddRepo("infra", RepoConfig{URL: "git@github.com:acme/infra.git", Path: "infra"}); err != nil {
		t.Fatalf("AddRepo() error = %v", err)
	}
	if err := e.AddRepo("infra", RepoConfig{URL: "u", Path: "other"}); !errors.Is(err, ErrRepoExists) {
		t.Errorf("duplicate AddRepo() error = %v, want ErrRepoExists", err)
	}
	if err := e.AddRepo("evil", RepoConfig{URL: "u", Path: "../evil"}); !errors.Is(err, ErrPathEscape) {
		t.Errorf("AddRepo(escape) error = %v, want ErrPathEscape", err)
	}
	if err := e.RemoveRepo("docs"); err != nil {
		t.Fatalf("RemoveRepo() error = %v", err)
	}
	if err := e.RemoveRepo("docs"); !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("second RemoveRepo() error = %v, want ErrRepoNotFound", err)
	}
	if err := e.Save(); err != nil {
		t.Fatal(err)
	}

	m, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"backend", "frontend", "infra"}, m.RepoNames()); diff != "" {
		t.Errorf("RepoNames() (-want +got):\n%s", diff)
	}
	if m.Repos["infra"].URL != "git@github.com:acme/infra.git" {
		t.Errorf("infra url = %q", m.Repos["infra"].URL)
	}
}

func TestEditor_UnknownRepo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gripspace.yml")
	writeFile(t, path, sampleYAML)
	e, err := OpenEditor(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddGroups("nope", "x"); !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("AddGroups(unknown) error = %v", err)
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".gitgrip", "spaces", "main", "gripspace.yml")
	m := &Manifest{
		Version: 1,
		Repos: map[string]RepoConfig{
			"app": {URL: "git@github.com:acme/app.git", Path: "app", DefaultBranch: "develop"},
		},
	}
	if err := Create(path, m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if diff := cmp.Diff(m.Repos, got.Repos); diff != "" {
		t.Errorf("repos mismatch (-want +got):\n%s", diff)
	}

	if err := Create(path, m); err == nil {
		t.Error("Create() over an existing file should fail")
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gripspace.yml")
	m := &Manifest{Repos: map[string]RepoConfig{"app": {URL: "git@github.com:acme/app.git", Path: "../app"}}}
	err := Create(path, m)
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("Create() error = %v, want ErrPathEscape", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("invalid manifest was written")
	}
}
