package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// grepMatch is one line of "gr grep --json".
type grepMatch struct {
	Repo string `json:"repo"`
	Line string `json:"line"`
}

func newGrepCmd() *cobra.Command {
	var ignoreCase bool

	cmd := &cobra.Command{
		Use:     "grep <pattern> [-- pathspec...]",
		Short:   "Search tracked files across repos",
		GroupID: GroupGit,
		Args:    cobra.MinimumNArgs(1),
		Long:    `Run git grep in every repo and prefix each match with its repo.`,
		Example: `  gr grep TODO
  gr grep -i "deprecated" -- '*.go'`,
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
			pattern, pathspecs := args[0], args[1:]

			rep := executor.Run(ctx, repos, s.options(""), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				lines, err := git.Grep(ctx, r.AbsolutePath, pattern, ignoreCase, pathspecs...)
				if err != nil {
					return executor.Fail(err)
				}
				if len(lines) == 0 {
					return executor.Result{Outcome: executor.Skipped, Silent: true}
				}
				return executor.Result{Outcome: executor.Success, Silent: true, Data: lines}
			})

			p := output.FromContext(ctx)
			matches := []grepMatch{}
			for _, res := range rep.Results {
				lines, _ := res.Data.([]string)
				for _, line := range lines {
					matches = append(matches, grepMatch{Repo: res.Repo, Line: line})
					p.Printf("%s:%s\n", styles.RepoStyle.Render(res.Repo), line)
				}
			}
			if p.JSONMode() {
				if err := p.JSON(matches); err != nil {
					return err
				}
			}
			if rep.Failed() {
				for _, f := range rep.Summary.Failures {
					p.Error(f.Repo, f.Message)
				}
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&ignoreCase, "ignore-case", "i", false, "Case-insensitive match")

	return cmd
}
