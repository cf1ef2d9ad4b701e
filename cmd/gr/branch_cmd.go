package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newBranchCmd() *cobra.Command {
	var (
		del   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:     "branch [name]",
		Short:   "Create, switch to or delete a branch in every repo",
		Aliases: []string{"b"},
		GroupID: GroupGit,
		Args:    cobra.MaximumNArgs(1),
		Long: `Create a branch in every repo and check it out.

Repos that already have the branch switch to it and report it as
existing, so the command can be re-run safely. Reference repos are never
touched. Without a name the current branch of every repo is shown.`,
		Example: `  gr branch feat/login            # Create and check out everywhere
  gr branch feat/login -r api     # Only in api
  gr branch -d feat/login         # Delete the merged branch
  gr branch -d feat/login --force # Delete even if unmerged
  gr branch                       # Show current branches`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if del {
					return errors.New("branch name required with --delete")
				}
				return showBranches(ctx, s)
			}
			name := args[0]

			repos, err := s.reposWithManifest(false)
			if err != nil {
				return err
			}
			if del {
				rep := executor.RunRepos(ctx, repos, s.options("delete branch"), func(ctx context.Context, g *git.Repo, r repo.RepoInfo) executor.Result {
					if !g.BranchExists(name) {
						return executor.Skip("no branch " + name)
					}
					if err := git.DeleteLocal(ctx, r.AbsolutePath, name, force); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("deleted " + name)
				})
				return finish(ctx, rep)
			}

			rep := executor.RunRepos(ctx, repos, s.options("branch"), func(ctx context.Context, g *git.Repo, r repo.RepoInfo) executor.Result {
				defer cache.Shared().Invalidate(r.AbsolutePath)
				if g.BranchExists(name) {
					if current, _ := g.CurrentBranch(); current == name {
						return executor.Noop("already exists")
					}
					if err := git.Checkout(ctx, r.AbsolutePath, name); err != nil {
						return executor.Fail(err)
					}
					return executor.Noop("already exists, switched to it")
				}
				if err := git.CreateAndCheckout(ctx, r.AbsolutePath, name); err != nil {
					return executor.Fail(err)
				}
				return executor.Ok("created " + name)
			})
			return finish(ctx, rep)
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "Delete the branch instead")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "With --delete, delete unmerged branches")

	return cmd
}

func showBranches(ctx context.Context, s *session) error {
	repos, err := s.reposWithManifest(true)
	if err != nil {
		return err
	}
	rep := executor.RunRepos(ctx, repos, s.options(""), func(ctx context.Context, g *git.Repo, r repo.RepoInfo) executor.Result {
		branch, err := g.CurrentBranch()
		if err != nil {
			return executor.Fail(err)
		}
		res := executor.Noop(branch)
		res.Data = branch
		return res
	})
	return finish(ctx, rep)
}
