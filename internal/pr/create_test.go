package pr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/state"
)

// gitRepo creates a repository on main and, when ahead > 0, a feat/x
// branch with that many extra commits checked out.
func gitRepo(t *testing.T, name string, ahead int) repo.RepoInfo {
	t.Helper()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), name)
	run := func(args ...string) {
		t.Helper()
		_, err := git.Run(ctx, dir, args...)
		require.NoError(t, err, "git %v", args)
	}
	_, err := git.Run(ctx, "", "init", "-b", "main", dir)
	require.NoError(t, err)
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test User")
	run("config", "commit.gpgsign", "false")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# "+name+"\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial")
	if ahead > 0 {
		run("checkout", "-b", "feat/x")
		for i := 0; i < ahead; i++ {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "change.txt"), []byte{byte('a' + i)}, 0o644))
			run("add", ".")
			run("commit", "-m", "change")
		}
	}

	r := testRepo(name)
	r.AbsolutePath = dir
	return r
}

func TestCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newFake()
	frontend := gitRepo(t, "frontend", 1)
	backend := gitRepo(t, "backend", 2)
	idle := gitRepo(t, "idle", 0)

	c := &Coordinator{
		Repos:       []repo.RepoInfo{backend, frontend, idle},
		State:       state.New(filepath.Join(t.TempDir(), "state.json")),
		TitlePrefix: "[gr] ",
		Client: func(context.Context, repo.RepoInfo) (platform.Platform, error) {
			return fake, nil
		},
	}

	res, err := c.Create(ctx, CreateOptions{Title: "Add feature", Body: "Details."})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, 2, res.Created())
	assert.Equal(t, "on default branch main", res.Entries[2].Skipped)

	be, fe := res.Entries[0], res.Entries[1]
	require.True(t, be.HasPR())
	require.True(t, fe.HasPR())

	beBody := fake.body("backend", be.Number)
	assert.Contains(t, beBody, "Details.")
	assert.Equal(t, []platform.LinkedPRRef{{RepoName: "frontend", Number: fe.Number}}, platform.ParseLinkedPRComment(beBody))
	assert.Equal(t, []platform.LinkedPRRef{{RepoName: "backend", Number: be.Number}}, platform.ParseLinkedPRComment(fake.body("frontend", fe.Number)))

	key, ok := c.State.GetPRForBranch("feat/x")
	require.True(t, ok)
	assert.Equal(t, be.Number, key, "first PR in manifest order anchors the change set")
	assert.Equal(t, key, res.ManifestPR)
	links, ok := c.State.GetLinkedPRs(key)
	require.True(t, ok)
	require.Len(t, links, 2)
	assert.Equal(t, "backend", links[0].RepoName)
	assert.Equal(t, "frontend", links[1].RepoName)

	reloaded, err := state.Load(c.State.Path())
	require.NoError(t, err)
	n, ok := reloaded.GetPRForBranch("feat/x")
	assert.True(t, ok)
	assert.Equal(t, key, n)

	// A second run reuses the PRs and leaves the bodies alone.
	updates := fake.bodyUpdates["backend"]
	res, err = c.Create(ctx, CreateOptions{Title: "Add feature"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created())
	assert.Equal(t, "existing PR", res.Entries[0].Note)
	assert.Equal(t, updates, fake.bodyUpdates["backend"])
}

func TestCreateNothingAhead(t *testing.T) {
	t.Parallel()
	fake := newFake()
	onBranch := gitRepo(t, "api", 0)
	_, err := git.Run(context.Background(), onBranch.AbsolutePath, "checkout", "-b", "feat/x")
	require.NoError(t, err)

	c := &Coordinator{
		Repos:  []repo.RepoInfo{onBranch},
		Client: func(context.Context, repo.RepoInfo) (platform.Platform, error) { return fake, nil },
	}
	res, err := c.Create(context.Background(), CreateOptions{Title: "x"})
	require.Error(t, err)
	assert.Equal(t, "no commits ahead of main", res.Entries[0].Skipped)
}

func TestCreateRequiresTitle(t *testing.T) {
	t.Parallel()
	_, err := (&Coordinator{}).Create(context.Background(), CreateOptions{})
	assert.Error(t, err)
}

func TestManifestPRAnchorsState(t *testing.T) {
	t.Parallel()
	fake := newFake()
	fake.addPR("frontend", "feat/x", false, platform.CheckPending, true)
	mnum := fake.addPR("manifest", "feat/x", false, platform.CheckPending, true)
	mr := testRepo(repo.ManifestRepoName)
	c := newCoordinator(fake, featX, testRepo("frontend"))
	c.ManifestRepo = &mr
	c.State = state.New(filepath.Join(t.TempDir(), "state.json"))

	entries, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[1].IsManifest)

	key, ok := c.State.GetPRForBranch("feat/x")
	require.True(t, ok)
	assert.Equal(t, mnum, key)
	require.NotNil(t, c.State.CurrentManifestPR)
	assert.Equal(t, mnum, *c.State.CurrentManifestPR)
}
