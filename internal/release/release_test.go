package release

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/blang/semver"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/repo"
)

func TestNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from string
		bump Bump
		want string
	}{
		{"1.2.3", Patch, "1.2.4"},
		{"1.2.3", Minor, "1.3.0"},
		{"1.2.3", Major, "2.0.0"},
		{"0.0.0", Patch, "0.0.1"},
		{"1.2.3-rc.1", Patch, "1.2.4"},
	}
	for _, tt := range tests {
		got := Next(semver.MustParse(tt.from), tt.bump)
		if got.String() != tt.want {
			t.Errorf("Next(%s, %s) = %s, want %s", tt.from, tt.bump, got, tt.want)
		}
	}
}

func TestParseBump(t *testing.T) {
	t.Parallel()
	if b, err := ParseBump(""); err != nil || b != Patch {
		t.Errorf("ParseBump(\"\") = %q, %v", b, err)
	}
	if _, err := ParseBump("huge"); err == nil {
		t.Error("expected error")
	}
}

func newRepo(t *testing.T, name string, tags ...string) repo.RepoInfo {
	t.Helper()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), name)
	if _, err := git.Run(ctx, "", "init", "-b", "main", dir); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test User"},
		{"config", "commit.gpgsign", "false"},
		{"config", "tag.gpgsign", "false"},
		{"commit", "--allow-empty", "-m", "initial"},
	} {
		if _, err := git.Run(ctx, dir, args...); err != nil {
			t.Fatal(err)
		}
	}
	for _, tag := range tags {
		if err := git.Tag(ctx, dir, tag, ""); err != nil {
			t.Fatal(err)
		}
	}
	return repo.RepoInfo{Name: name, AbsolutePath: dir}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := newRepo(t, "a", "v1.2.0", "v1.10.0", "not-a-version")
	b := newRepo(t, "b", "v1.9.9", "vbogus")

	plan, err := Resolve(ctx, []repo.RepoInfo{a, b}, Options{Bump: Minor})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Tag != "v1.11.0" || plan.Previous != "v1.10.0" || plan.Message != "Release v1.11.0" {
		t.Errorf("plan = %+v", plan)
	}

	plan, err = Resolve(ctx, []repo.RepoInfo{a}, Options{Version: "v3.0.0", Prefix: "rel-", Message: "ship {version}"})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Tag != "rel-3.0.0" || plan.Message != "ship rel-3.0.0" {
		t.Errorf("plan = %+v", plan)
	}

	fresh := newRepo(t, "fresh")
	plan, err = Resolve(ctx, []repo.RepoInfo{fresh}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Tag != "v0.0.1" || plan.Previous != "" {
		t.Errorf("plan = %+v", plan)
	}

	if _, err := Resolve(ctx, nil, Options{Version: "nope"}); err == nil {
		t.Error("expected invalid version error")
	}
}

func TestTagRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := newRepo(t, "a")
	ref := newRepo(t, "docs")
	ref.Reference = true
	plan := &Plan{Tag: "v1.0.0", Message: "Release v1.0.0"}

	if res := plan.TagRepo(false, true)(ctx, a); res.Outcome != executor.Success || git.TagExists(ctx, a.AbsolutePath, "v1.0.0") {
		t.Errorf("dry run = %+v", res)
	}
	if res := plan.TagRepo(false, false)(ctx, a); res.Outcome != executor.Success || res.Unchanged {
		t.Errorf("tag = %+v", res)
	}
	if !git.TagExists(ctx, a.AbsolutePath, "v1.0.0") {
		t.Error("tag not created")
	}
	if res := plan.TagRepo(false, false)(ctx, a); !res.Unchanged {
		t.Errorf("retag = %+v, want unchanged", res)
	}
	if res := plan.TagRepo(false, false)(ctx, ref); res.Outcome != executor.Skipped {
		t.Errorf("reference = %+v, want skipped", res)
	}
	if res := plan.TagRepo(true, false)(ctx, newRepo(t, "noremote")); res.Outcome != executor.Failed {
		t.Errorf("push without remote = %+v, want failed", res)
	}
}
