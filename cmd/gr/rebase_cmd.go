package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newRebaseCmd() *cobra.Command {
	var (
		abort bool
		cont  bool
		fetch bool
	)

	cmd := &cobra.Command{
		Use:     "rebase [onto]",
		Short:   "Rebase the current branch of every repo",
		GroupID: GroupGit,
		Args:    cobra.MaximumNArgs(1),
		Long: `Rebase the current branch of every repo onto a ref.

Without an argument each repo rebases onto origin/<default branch>, or
the local default branch when there is no remote one. Dirty repos are
skipped. A conflicting rebase is left in progress for you to resolve;
finish it with --continue or give up with --abort.`,
		Example: `  gr rebase
  gr rebase origin/develop
  gr rebase --fetch
  gr rebase --continue
  gr rebase --abort`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if abort && cont {
				return errors.New("--abort and --continue are mutually exclusive")
			}
			if (abort || cont) && len(args) > 0 {
				return errors.New("--abort and --continue take no argument")
			}
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.repos(false)
			if err != nil {
				return err
			}

			var fn executor.Func
			switch {
			case abort:
				fn = func(ctx context.Context, r repo.RepoInfo) executor.Result {
					if !git.RebaseInProgress(r.AbsolutePath) {
						return executor.Result{Outcome: executor.Skipped, Message: "no rebase in progress", Silent: true}
					}
					if err := git.RebaseAbort(ctx, r.AbsolutePath); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("rebase aborted")
				}
			case cont:
				fn = func(ctx context.Context, r repo.RepoInfo) executor.Result {
					if !git.RebaseInProgress(r.AbsolutePath) {
						return executor.Result{Outcome: executor.Skipped, Message: "no rebase in progress", Silent: true}
					}
					if err := git.RebaseContinue(ctx, r.AbsolutePath); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("rebase continued")
				}
			default:
				onto := ""
				if len(args) == 1 {
					onto = args[0]
				}
				fn = func(ctx context.Context, r repo.RepoInfo) executor.Result {
					return rebaseRepo(ctx, r, onto, fetch)
				}
			}

			rep := executor.Run(ctx, repos, s.options("rebase"), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				defer cache.Shared().Invalidate(r.AbsolutePath)
				return fn(ctx, r)
			})
			return finish(ctx, rep)
		},
	}

	cmd.Flags().BoolVar(&abort, "abort", false, "Abort in-progress rebases")
	cmd.Flags().BoolVar(&cont, "continue", false, "Continue in-progress rebases")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Fetch origin before rebasing")

	return cmd
}

func rebaseRepo(ctx context.Context, r repo.RepoInfo, onto string, fetch bool) executor.Result {
	if git.RebaseInProgress(r.AbsolutePath) {
		return executor.Fail(errors.New("rebase already in progress (use --continue or --abort)"))
	}
	if git.IsDirty(ctx, r.AbsolutePath) {
		return executor.Skip("dirty, skipped")
	}
	if fetch {
		if err := git.Fetch(ctx, r.AbsolutePath, "origin"); err != nil {
			return executor.Fail(err)
		}
	}
	target := onto
	if target == "" {
		target = "origin/" + r.DefaultBranch
		if !git.RefExists(ctx, r.AbsolutePath, target) {
			target = r.DefaultBranch
		}
	}
	if !git.RefExists(ctx, r.AbsolutePath, target) {
		return executor.Skip(fmt.Sprintf("%s not found", target))
	}
	behind, err := git.CountBetween(ctx, r.AbsolutePath, "HEAD", target)
	if err != nil {
		return executor.Fail(err)
	}
	if behind == 0 {
		return executor.Noop("up to date with " + target)
	}
	if err := git.Rebase(ctx, r.AbsolutePath, target); err != nil {
		if git.RebaseInProgress(r.AbsolutePath) {
			return executor.Fail(fmt.Errorf("conflict rebasing onto %s; resolve, then run 'gr rebase --continue'", target))
		}
		return executor.Fail(err)
	}
	return executor.Ok(fmt.Sprintf("rebased onto %s (%d new)", target, behind))
}
