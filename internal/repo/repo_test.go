package repo

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/platform"
)

const root = "/work/space"

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Manifest: &manifest.ManifestRepoConfig{URL: "git@github.com:acme/manifest.git"},
		Repos: map[string]manifest.RepoConfig{
			"frontend": {URL: "git@github.com:acme/frontend.git", Path: "frontend", Groups: []string{"web"}},
			"backend":  {URL: "https://gitlab.com/acme/backend.git", Path: "services/backend", DefaultBranch: "develop", Groups: []string{"api", "core"}},
			"docs":     {URL: "https://github.com/acme/docs", Path: "docs", Reference: true, Groups: []string{"web"}},
			"infra": {
				URL:      "https://dev.azure.com/acme/platform/_git/infra",
				Path:     "infra",
				Groups:   []string{"core"},
				Platform: &manifest.PlatformConfig{Type: "azure", BaseURL: "https://tfs.acme.dev"},
			},
		},
	}
}

func names(repos []RepoInfo) []string {
	var out []string
	for _, r := range repos {
		out = append(out, r.Name)
	}
	return out
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	m := testManifest()
	info, ok := FromConfig("backend", m.Repos["backend"], root, nil)
	if !ok {
		t.Fatal("FromConfig() = false")
	}
	want := RepoInfo{
		Name:          "backend",
		Path:          "services/backend",
		AbsolutePath:  filepath.Join(root, "services/backend"),
		URL:           "https://gitlab.com/acme/backend.git",
		DefaultBranch: "develop",
		Groups:        []string{"api", "core"},
		Owner:         "acme",
		Repo:          "backend",
		PlatformType:  platform.GitLab,
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("FromConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromConfigPlatformOverride(t *testing.T) {
	t.Parallel()

	m := testManifest()
	info, ok := FromConfig("infra", m.Repos["infra"], root, nil)
	if !ok {
		t.Fatal("FromConfig() = false")
	}
	if info.Owner != "acme/platform" || info.Repo != "infra" {
		t.Errorf("Owner/Repo = %q/%q, want acme/platform/infra", info.Owner, info.Repo)
	}
	if info.PlatformType != platform.Azure || info.PlatformBaseURL != "https://tfs.acme.dev" {
		t.Errorf("platform = %s %s", info.PlatformType, info.PlatformBaseURL)
	}
}

func TestFromConfigRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rc   manifest.RepoConfig
	}{
		{"escaping path", manifest.RepoConfig{URL: "git@github.com:a/b.git", Path: "../outside"}},
		{"nested escape", manifest.RepoConfig{URL: "git@github.com:a/b.git", Path: "a/../../b"}},
		{"absolute path", manifest.RepoConfig{URL: "git@github.com:a/b.git", Path: "/etc"}},
		{"root itself", manifest.RepoConfig{URL: "git@github.com:a/b.git", Path: "."}},
		{"unparseable url", manifest.RepoConfig{URL: "not a url", Path: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if info, ok := FromConfig("x", tt.rc, root, nil); ok {
				t.Errorf("FromConfig() = %+v, want rejection", info)
			}
		})
	}
}

func TestFromConfigLocalURL(t *testing.T) {
	t.Parallel()

	info, ok := FromConfig("lib", manifest.RepoConfig{URL: "file:///srv/git/lib.git", Path: "lib"}, root, nil)
	if !ok {
		t.Fatal("FromConfig() = false")
	}
	if !info.Local || info.Repo != "lib" {
		t.Errorf("FromConfig() = %+v, want local repo lib", info)
	}
}

func TestFilterRepos(t *testing.T) {
	t.Parallel()

	m := testManifest()
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"default excludes reference", Filter{}, []string{"backend", "frontend", "infra"}},
		{"include reference", Filter{IncludeReference: true}, []string{"backend", "docs", "frontend", "infra"}},
		{"by name", Filter{Repos: []string{"infra", "frontend"}}, []string{"frontend", "infra"}},
		{"by group", Filter{Groups: []string{"core"}}, []string{"backend", "infra"}},
		{"group with reference", Filter{Groups: []string{"web"}, IncludeReference: true}, []string{"docs", "frontend"}},
		{"name and group", Filter{Repos: []string{"frontend", "backend"}, Groups: []string{"api"}}, []string{"backend"}},
		{"reference by name still excluded", Filter{Repos: []string{"docs"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := names(FilterRepos(m, root, tt.filter, nil))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FilterRepos() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterReposPathsInsideRoot(t *testing.T) {
	t.Parallel()

	for _, r := range FilterRepos(testManifest(), root, Filter{IncludeReference: true}, nil) {
		if !strings.HasPrefix(r.AbsolutePath, root+string(filepath.Separator)) {
			t.Errorf("%s: AbsolutePath %q outside %q", r.Name, r.AbsolutePath, root)
		}
	}
}

func TestManifestRepoInfo(t *testing.T) {
	t.Parallel()

	m := testManifest()
	dir := filepath.Join(root, manifest.MainDir)
	info, ok := ManifestRepoInfo(m, root, dir, nil)
	if !ok {
		t.Fatal("ManifestRepoInfo() = false")
	}
	if info.Name != ManifestRepoName || info.AbsolutePath != dir || info.DefaultBranch != "main" {
		t.Errorf("ManifestRepoInfo() = %+v", info)
	}

	m.Manifest = nil
	if _, ok := ManifestRepoInfo(m, root, dir, nil); ok {
		t.Error("ManifestRepoInfo() without manifest repo = true")
	}
}

func TestGroupMembers(t *testing.T) {
	t.Parallel()

	got := GroupMembers(testManifest())
	want := map[string][]string{
		"api":  {"backend"},
		"core": {"backend", "infra"},
		"web":  {"docs", "frontend"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GroupMembers() mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckNames(t *testing.T) {
	t.Parallel()

	m := testManifest()
	if err := CheckNames(m, []string{"frontend", "backend"}); err != nil {
		t.Errorf("CheckNames(known) = %v", err)
	}

	err := CheckNames(m, []string{"frontend", "frntend"})
	var unknown *UnknownNameError
	if !errors.As(err, &unknown) {
		t.Fatalf("CheckNames() = %v, want *UnknownNameError", err)
	}
	if unknown.Name != "frntend" || len(unknown.Suggestions) == 0 || unknown.Suggestions[0] != "frontend" {
		t.Errorf("UnknownNameError = %+v", unknown)
	}
	if !strings.Contains(err.Error(), "did you mean frontend") {
		t.Errorf("Error() = %q", err)
	}
}

func TestCheckGroups(t *testing.T) {
	t.Parallel()

	m := testManifest()
	if err := CheckGroups(m, []string{"web", "core"}); err != nil {
		t.Errorf("CheckGroups(known) = %v", err)
	}
	if err := CheckGroups(m, []string{"mobile"}); err == nil {
		t.Error("CheckGroups(mobile) = nil")
	}
}
