package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/config"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/pr"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/state"
	"github.com/raphi011/gitgrip/internal/workspace"
)

// session is the workspace a command runs against.
type session struct {
	ws  *workspace.Workspace
	m   *manifest.Manifest
	cfg *config.Config
}

// openSession locates the workspace around the working directory and
// loads its manifest.
func openSession(ctx context.Context) (*session, error) {
	ws, err := workspace.Find(workDir)
	if err != nil {
		return nil, err
	}
	m, err := ws.LoadManifest()
	if err != nil {
		return nil, err
	}
	return &session{ws: ws, m: m, cfg: config.FromContext(ctx)}, nil
}

// repos resolves the manifest and applies --repo and --group. Reference
// repos are only kept for read-only commands.
func (s *session) repos(includeReference bool) ([]repo.RepoInfo, error) {
	if err := repo.CheckNames(s.m, repoFlags); err != nil {
		return nil, err
	}
	if err := repo.CheckGroups(s.m, groupFlags); err != nil {
		return nil, err
	}
	f := repo.Filter{Repos: repoFlags, Groups: groupFlags, IncludeReference: includeReference}
	return repo.FilterRepos(s.m, s.ws.Root, f, s.cfg.Hosts), nil
}

// manifestRepo returns the manifest repository when it is a git checkout.
func (s *session) manifestRepo() (repo.RepoInfo, bool) {
	r, ok := repo.ManifestRepoInfo(s.m, s.ws.Root, s.ws.ManifestDir, s.cfg.Hosts)
	if !ok || !git.IsRepo(r.AbsolutePath) {
		return repo.RepoInfo{}, false
	}
	return r, true
}

// reposWithManifest is repos plus the manifest repository, which only
// joins when no --repo or --group filter is given.
func (s *session) reposWithManifest(includeReference bool) ([]repo.RepoInfo, error) {
	repos, err := s.repos(includeReference)
	if err != nil {
		return nil, err
	}
	if len(repoFlags) > 0 || len(groupFlags) > 0 {
		return repos, nil
	}
	if mr, ok := s.manifestRepo(); ok {
		repos = append(repos, mr)
	}
	return repos, nil
}

// options returns fan-out options honoring --parallel and --sequential.
func (s *session) options(label string) executor.Options {
	par := s.cfg.Parallel
	switch {
	case parallel:
		par = true
	case sequential:
		par = false
	}
	return executor.Options{Parallel: par, Jobs: s.cfg.Jobs, Label: label}
}

// coordinator builds the PR coordinator over the non-reference repos.
func (s *session) coordinator() (*pr.Coordinator, error) {
	repos, err := s.repos(false)
	if err != nil {
		return nil, err
	}
	st, err := state.Load(s.ws.StatePath())
	if err != nil {
		return nil, err
	}
	clients := &pr.Clients{}
	c := &pr.Coordinator{
		Repos:       repos,
		State:       st,
		Client:      clients.For,
		TitlePrefix: s.m.Settings.PRPrefix,
		Jobs:        s.cfg.Jobs,
	}
	if mr, ok := s.manifestRepo(); ok {
		c.ManifestRepo = &mr
	}
	return c, nil
}

// finish prints the outcome of a fan-out, as JSON or as per-repo lines
// followed by the summary, and turns failures into a non-zero exit.
func finish(ctx context.Context, rep *executor.Report) error {
	p := output.FromContext(ctx)
	if p.JSONMode() {
		if err := p.JSON(rep); err != nil {
			return err
		}
	} else {
		for _, name := range rep.Missing {
			p.Skip(name, "not cloned (run 'gr sync')")
		}
		p.Summary(rep.Summary)
	}
	if rep.Failed() {
		return errFailed
	}
	return nil
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// plural returns "1 repo" or "n repos".
func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// formatCounts renders "<verb> n repo(s), m skipped".
func formatCounts(done int, doneWord string, skipped int) string {
	msg := fmt.Sprintf("%s %d repo(s)", doneWord, done)
	if skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", skipped)
	}
	return msg
}

// completeRepoNames completes manifest repo names.
func completeRepoNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ws, err := workspace.Find(workDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	m, err := ws.LoadManifest()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return m.RepoNames(), cobra.ShellCompDirectiveNoFileComp
}

// completeGroupNames completes group names used in the manifest.
func completeGroupNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ws, err := workspace.Find(workDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	m, err := ws.LoadManifest()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return m.Groups(), cobra.ShellCompDirectiveNoFileComp
}
