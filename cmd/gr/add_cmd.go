package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add [paths...]",
		Short:   "Stage changes in every repo",
		GroupID: GroupGit,
		Long: `Stage changes in every repo with local changes.

Paths are passed to git add in each repo and default to everything.`,
		Example: `  gr add
  gr add src/ -r frontend`,
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
			paths := args
			if len(paths) == 0 {
				paths = []string{"."}
			}
			rep := executor.Run(ctx, repos, s.options("add"), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				if !git.IsDirty(ctx, r.AbsolutePath) {
					return executor.Result{Outcome: executor.Skipped, Message: "no changes", Silent: true}
				}
				defer cache.Shared().Invalidate(r.AbsolutePath)
				if err := git.Add(ctx, r.AbsolutePath, paths...); err != nil {
					return executor.Fail(err)
				}
				return executor.Ok("staged")
			})
			return finish(ctx, rep)
		},
	}

	return cmd
}
