package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/static"
)

// repoStatus is one row of "gr status --json".
type repoStatus struct {
	Name      string          `json:"name"`
	Path      string          `json:"path"`
	Cloned    bool            `json:"cloned"`
	Reference bool            `json:"reference,omitempty"`
	Status    *git.StatusInfo `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type statusSummary struct {
	Total       int `json:"total"`
	Cloned      int `json:"cloned"`
	WithChanges int `json:"withChanges"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the status of every repo",
		Aliases: []string{"st"},
		GroupID: GroupWorkspace,
		Args:    cobra.NoArgs,
		Long: `Show branch, local changes and divergence of every repo.

UPSTREAM compares with the tracking branch, DEFAULT with the repo's
default branch.`,
		Example: `  gr status
  gr status -g web
  gr status --json`,
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

			opts := s.options("")
			opts.IncludeMissing = true
			rep := executor.Run(ctx, repos, opts, func(ctx context.Context, r repo.RepoInfo) executor.Result {
				if !r.Exists() {
					return executor.Result{Outcome: executor.Skipped, Message: "not cloned", Silent: true}
				}
				st, err := cache.Shared().Status(ctx, r.AbsolutePath, r.DefaultBranch)
				if err != nil {
					res := executor.Fail(err)
					res.Silent = true
					return res
				}
				return executor.Result{Outcome: executor.Success, Silent: true, Data: st}
			})

			rows := make([]repoStatus, len(repos))
			var sum statusSummary
			sum.Total = len(repos)
			for i, r := range repos {
				res := rep.Results[i]
				rows[i] = repoStatus{Name: r.Name, Path: r.Path, Cloned: r.Exists(), Reference: r.Reference}
				if res.Outcome == executor.Failed {
					rows[i].Error = res.Message
				}
				if st, ok := res.Data.(git.StatusInfo); ok {
					rows[i].Status = &st
					if !st.Clean {
						sum.WithChanges++
					}
				}
				if rows[i].Cloned {
					sum.Cloned++
				}
			}

			p := output.FromContext(ctx)
			if p.JSONMode() {
				if err := p.JSON(struct {
					Repos   []repoStatus  `json:"repos"`
					Summary statusSummary `json:"summary"`
				}{rows, sum}); err != nil {
					return err
				}
			} else {
				table := make([][]string, 0, len(rows))
				for _, row := range rows {
					switch {
					case !row.Cloned:
						table = append(table, static.MissingRow(row.Name))
					case row.Status == nil:
						table = append(table, []string{row.Name, "", "error: " + row.Error, "", ""})
					default:
						table = append(table, static.StatusRow(row.Name, *row.Status))
					}
				}
				p.Print(static.RenderTable(static.StatusHeaders, table))
				p.Printf("\n%d/%d cloned | %d with changes\n", sum.Cloned, sum.Total, sum.WithChanges)
			}
			if rep.Failed() {
				return errFailed
			}
			return nil
		},
	}

	return cmd
}
