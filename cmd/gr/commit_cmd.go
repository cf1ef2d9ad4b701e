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

func newCommitCmd() *cobra.Command {
	var (
		message string
		amend   bool
		all     bool
	)

	cmd := &cobra.Command{
		Use:     "commit",
		Short:   "Commit staged changes in every repo",
		GroupID: GroupGit,
		Args:    cobra.NoArgs,
		Long: `Commit staged changes with the same message in every repo that has
staged changes. Repos with nothing staged are left alone.`,
		Example: `  gr commit -m "Add login flow"
  gr commit -a -m "Fix typo"     # Stage tracked changes first
  gr commit --amend -m "Better message"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if message == "" {
				return errors.New("commit message required (-m)")
			}
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.reposWithManifest(false)
			if err != nil {
				return err
			}
			rep := executor.Run(ctx, repos, s.options("commit"), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				defer cache.Shared().Invalidate(r.AbsolutePath)
				if all && git.IsDirty(ctx, r.AbsolutePath) {
					if _, err := git.Run(ctx, r.AbsolutePath, "add", "--update"); err != nil {
						return executor.Fail(err)
					}
				}
				if !amend && !git.HasStagedChanges(ctx, r.AbsolutePath) {
					return executor.Result{Outcome: executor.Skipped, Message: "nothing staged", Silent: true}
				}
				if err := git.Commit(ctx, r.AbsolutePath, message, amend); err != nil {
					return executor.Fail(err)
				}
				if amend {
					return executor.Ok("amended")
				}
				return executor.Ok("committed")
			})
			return finish(ctx, rep)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	cmd.Flags().BoolVar(&amend, "amend", false, "Amend the previous commit")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Stage modified and deleted tracked files first")

	return cmd
}
