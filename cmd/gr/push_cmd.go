package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newPushCmd() *cobra.Command {
	var (
		setUpstream bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:     "push",
		Short:   "Push the current branch of every repo",
		GroupID: GroupGit,
		Args:    cobra.NoArgs,
		Long: `Push the current branch of every repo that has something to push.

A feature branch without an upstream is pushed with tracking. The default
branch is only pushed without an upstream when -u is given. --force uses
--force-with-lease.`,
		Example: `  gr push
  gr push -u
  gr push --force   # After a rebase`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.reposWithManifest(false)
			if err != nil {
				return err
			}
			rep := executor.RunRepos(ctx, repos, s.options("push"), func(ctx context.Context, g *git.Repo, r repo.RepoInfo) executor.Result {
				return pushRepo(ctx, g, r, setUpstream, force)
			})
			return finish(ctx, rep)
		},
	}

	cmd.Flags().BoolVarP(&setUpstream, "set-upstream", "u", false, "Set upstream tracking")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Force push with lease")

	return cmd
}

func pushRepo(ctx context.Context, g *git.Repo, r repo.RepoInfo, setUpstream, force bool) executor.Result {
	if g.IsDetached() {
		return executor.Skip("detached HEAD")
	}
	branch, err := g.CurrentBranch()
	if err != nil {
		return executor.Fail(err)
	}
	upstream := git.UpstreamOf(ctx, r.AbsolutePath)
	if upstream == "" {
		if branch == r.DefaultBranch && !setUpstream {
			return executor.Result{Outcome: executor.Skipped, Message: "no upstream", Silent: true}
		}
		if err := git.Push(ctx, r.AbsolutePath, git.PushOptions{Branch: branch, SetUpstream: true, Force: force}); err != nil {
			return executor.Fail(err)
		}
		return executor.Ok(fmt.Sprintf("pushed %s (new upstream)", branch))
	}

	ahead, err := git.CountBetween(ctx, r.AbsolutePath, upstream, "HEAD")
	if err != nil {
		return executor.Fail(err)
	}
	if ahead == 0 && !force {
		return executor.Result{Outcome: executor.Success, Message: "up to date", Unchanged: true, Silent: true}
	}
	if err := git.Push(ctx, r.AbsolutePath, git.PushOptions{Branch: branch, SetUpstream: setUpstream, Force: force}); err != nil {
		return executor.Fail(err)
	}
	return executor.Ok(fmt.Sprintf("pushed %s (%d commit(s))", branch, ahead))
}
