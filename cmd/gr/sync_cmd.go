package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/griptree"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newSyncCmd() *cobra.Command {
	var (
		rebase  bool
		noLinks bool
	)

	cmd := &cobra.Command{
		Use:     "sync",
		Short:   "Clone missing repos and pull existing ones",
		GroupID: GroupWorkspace,
		Args:    cobra.NoArgs,
		Long: `Bring the workspace up to date with its manifest.

The manifest repo is pulled first so new repos are picked up. Missing
repos are cloned, existing ones are pulled safely: dirty working copies
are skipped, feature branches are only fetched and the default branch is
fast-forwarded (or merged, or rebased with --rebase). Copy and link files
are applied afterwards.`,
		Example: `  gr sync                # Clone and pull everything
  gr sync -g backend     # Only repos in the backend group
  gr sync --rebase       # Rebase default branches instead of merging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			mode := pullMode(s.cfg.Pull.Mode, rebase)

			if err := s.pullManifest(ctx, mode); err != nil {
				return err
			}

			repos, err := s.repos(true)
			if err != nil {
				return err
			}
			puller, err := s.puller(mode)
			if err != nil {
				return err
			}
			opts := s.options("sync")
			opts.IncludeMissing = true
			rep := executor.Run(ctx, repos, opts, func(ctx context.Context, r repo.RepoInfo) executor.Result {
				if !r.Exists() {
					return cloneRepo(ctx, r)
				}
				return puller(ctx, r)
			})

			if !noLinks {
				if err := applyLinks(ctx, s); err != nil {
					log.FromContext(ctx).Printf("Warning: link files: %v\n", err)
				}
			}
			return finish(ctx, rep)
		},
	}

	cmd.Flags().BoolVar(&rebase, "rebase", false, "Rebase the default branch instead of merging")
	cmd.Flags().BoolVar(&noLinks, "no-links", false, "Do not apply copy and link files")

	return cmd
}

// pullMode resolves the configured mode, --rebase overriding it.
func pullMode(configured string, rebase bool) git.PullMode {
	if rebase || configured == string(git.PullRebase) {
		return git.PullRebase
	}
	return git.PullMerge
}

// cloneRepo clones a missing repo at its default branch.
func cloneRepo(ctx context.Context, r repo.RepoInfo) executor.Result {
	res, err := git.Clone(ctx, r.URL, r.AbsolutePath, r.DefaultBranch)
	if err != nil {
		return executor.Fail(err)
	}
	if res.FellBack {
		return executor.Ok(fmt.Sprintf("cloned (branch %s not found, using remote HEAD)", r.DefaultBranch))
	}
	return executor.Ok("cloned")
}

// puller returns the per-repo pull. Inside a griptree, repos follow the
// upstreams recorded for the griptree.
func (s *session) puller(mode git.PullMode) (executor.Func, error) {
	var gcfg *griptree.Config
	if s.ws.IsGriptree() {
		c, err := s.ws.GriptreeConfig()
		if err != nil {
			return nil, err
		}
		gcfg = c
	}
	return func(ctx context.Context, r repo.RepoInfo) executor.Result {
		opts := git.PullOptions{DefaultBranch: r.DefaultBranch, Mode: mode}
		if gcfg != nil {
			up, err := gcfg.UpstreamForRepo(r.Name, "")
			if err != nil {
				return executor.Fail(err)
			}
			opts.Upstream = up
			opts.BaseMapped = gcfg.IsBaseMapped(r.Name)
		}
		res, err := git.SafePullLatest(ctx, r.AbsolutePath, opts)
		cache.Shared().Invalidate(r.AbsolutePath)
		if err != nil {
			return executor.Fail(err)
		}
		switch res.Outcome {
		case git.PullUpdated:
			return executor.Ok(res.Message)
		case git.PullSkippedDirty, git.PullSkippedDiverged:
			return executor.Skip(res.Message)
		default:
			return executor.Noop(res.Message)
		}
	}, nil
}

// pullManifest updates the manifest repo and reloads the manifest.
func (s *session) pullManifest(ctx context.Context, mode git.PullMode) error {
	mr, ok := s.manifestRepo()
	if !ok {
		return nil
	}
	p := output.FromContext(ctx)
	res, err := git.SafePullLatest(ctx, mr.AbsolutePath, git.PullOptions{DefaultBranch: mr.DefaultBranch, Mode: mode})
	if err != nil {
		p.Error(mr.Name, err.Error())
		return nil
	}
	if res.Outcome == git.PullUpdated {
		p.Success(mr.Name, res.Message)
		m, err := s.ws.LoadManifest()
		if err != nil {
			return fmt.Errorf("reload manifest: %w", err)
		}
		s.m = m
	}
	return nil
}
