package main

import (
	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
)

func newPullCmd() *cobra.Command {
	var rebase bool

	cmd := &cobra.Command{
		Use:     "pull",
		Short:   "Pull the latest changes in every repo",
		GroupID: GroupWorkspace,
		Args:    cobra.NoArgs,
		Long: `Pull every cloned repo without cloning missing ones.

Dirty working copies are skipped and feature branches are only fetched.`,
		Example: `  gr pull
  gr pull --rebase
  gr pull -r frontend -r backend`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.repos(true)
			if err != nil {
				return err
			}
			puller, err := s.puller(pullMode(s.cfg.Pull.Mode, rebase))
			if err != nil {
				return err
			}
			return finish(ctx, executor.Run(ctx, repos, s.options("pull"), puller))
		},
	}

	cmd.Flags().BoolVar(&rebase, "rebase", false, "Rebase the default branch instead of merging")

	return cmd
}
