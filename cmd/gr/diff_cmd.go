package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

func newDiffCmd() *cobra.Command {
	var (
		staged bool
		stat   bool
	)

	cmd := &cobra.Command{
		Use:     "diff",
		Short:   "Show changes across repos",
		GroupID: GroupGit,
		Args:    cobra.NoArgs,
		Long:    `Show the working-tree diff of every repo, or the staged diff with --staged.`,
		Example: `  gr diff
  gr diff --staged
  gr diff --stat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.reposWithManifest(true)
			if err != nil {
				return err
			}
			rep := executor.Run(ctx, repos, s.options(""), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				d, err := git.Diff(ctx, r.AbsolutePath, staged, stat)
				if err != nil {
					res := executor.Fail(err)
					res.Silent = true
					return res
				}
				if strings.TrimSpace(d) == "" {
					return executor.Result{Outcome: executor.Skipped, Message: "no changes", Silent: true}
				}
				return executor.Result{Outcome: executor.Success, Silent: true, Data: d}
			})

			p := output.FromContext(ctx)
			if p.JSONMode() {
				diffs := make(map[string]string)
				for _, res := range rep.Results {
					if d, ok := res.Data.(string); ok {
						diffs[res.Repo] = d
					}
				}
				if err := p.JSON(diffs); err != nil {
					return err
				}
			} else {
				shown := 0
				for _, res := range rep.Results {
					switch {
					case res.Outcome == executor.Failed:
						p.Error(res.Repo, res.Message)
					case res.Data != nil:
						shown++
						p.Printf("%s\n", styles.RepoStyle.Render(fmt.Sprintf("── %s ──", res.Repo)))
						fmt.Fprint(p.Writer(), res.Data.(string))
						p.Println()
					}
				}
				if shown == 0 {
					p.Println("No changes")
				}
			}
			if rep.Failed() {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "Show staged changes")
	cmd.Flags().BoolVar(&stat, "stat", false, "Show a diffstat only")

	return cmd
}
