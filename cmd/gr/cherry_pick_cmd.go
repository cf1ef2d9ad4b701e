package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newCherryPickCmd() *cobra.Command {
	var (
		abort bool
		cont  bool
	)

	cmd := &cobra.Command{
		Use:     "cherry-pick <sha>",
		Short:   "Apply a commit in every repo that contains it",
		Aliases: []string{"cp"},
		GroupID: GroupGit,
		Args:    cobra.MaximumNArgs(1),
		Long: `Apply a commit onto the current branch of every repo that knows it.

Repos that do not contain the commit are skipped silently, so a sha can be
cherry-picked without naming its repo. A conflicting pick is left in
progress; resolve it and run --continue, or give up with --abort.`,
		Example: `  gr cherry-pick 3f2a9c1
  gr cherry-pick --continue
  gr cherry-pick --abort`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if abort && cont {
				return errors.New("--abort and --continue are mutually exclusive")
			}
			if !abort && !cont && len(args) == 0 {
				return errors.New("commit sha required")
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
			case abort, cont:
				fn = func(ctx context.Context, r repo.RepoInfo) executor.Result {
					if !git.CherryPickInProgress(r.AbsolutePath) {
						return executor.Result{Outcome: executor.Skipped, Message: "no cherry-pick in progress", Silent: true}
					}
					if abort {
						if err := git.CherryPickAbort(ctx, r.AbsolutePath); err != nil {
							return executor.Fail(err)
						}
						return executor.Ok("cherry-pick aborted")
					}
					if err := git.CherryPickContinue(ctx, r.AbsolutePath); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("cherry-pick continued")
				}
			default:
				sha := args[0]
				fn = func(ctx context.Context, r repo.RepoInfo) executor.Result {
					return cherryPickResult(git.CherryPick(ctx, r.AbsolutePath, sha))
				}
			}

			rep := executor.Run(ctx, repos, s.options("cherry-pick"), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				defer cache.Shared().Invalidate(r.AbsolutePath)
				return fn(ctx, r)
			})

			if !abort && !cont {
				if err := pickedNowhere(args[0], rep); err != nil {
					return err
				}
			}
			p := output.FromContext(ctx)
			if p.JSONMode() || abort || cont {
				return finish(ctx, rep)
			}
			p.Printf("\n%s\n", formatCounts(rep.Summary.Success, "cherry-picked into", rep.Summary.Skipped))
			if rep.Failed() {
				p.Summary(rep.Summary)
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&abort, "abort", false, "Abort in-progress cherry-picks")
	cmd.Flags().BoolVar(&cont, "continue", false, "Continue in-progress cherry-picks")

	return cmd
}

// pickedNowhere fails when no repo knows sha.
func pickedNowhere(sha string, rep *executor.Report) error {
	if rep.Summary.Success == 0 && rep.Summary.Failed == 0 {
		return fmt.Errorf("commit %s not found in any repo", sha)
	}
	return nil
}

// cherryPickResult maps each outcome to exactly one result kind.
func cherryPickResult(res git.CherryPickResult) executor.Result {
	switch res.Outcome {
	case git.CherryPickApplied:
		return executor.Ok("applied")
	case git.CherryPickCommitNotFound:
		return executor.Result{Outcome: executor.Skipped, Message: "commit not found", Silent: true}
	case git.CherryPickConflict:
		return executor.Fail(fmt.Errorf("conflict: %s; resolve, then run 'gr cherry-pick --continue'", res.Text))
	default:
		return executor.Fail(errors.New(res.Text))
	}
}
