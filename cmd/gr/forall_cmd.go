package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/scripts"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// forallOutput is one repo of "gr forall --json".
type forallOutput struct {
	Repo     string `json:"repo"`
	ExitCode int    `json:"exitCode"`
	Output   string `json:"output"`
}

func newForallCmd() *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:     "forall -c <command>",
		Short:   "Run a command in every repo",
		GroupID: GroupAutomate,
		Args:    cobra.NoArgs,
		Long: `Run a command in the directory of every cloned repo.

Simple commands run directly; commands using pipes, redirects or variable
expansion run through sh -c. The workspace env is exported along with
REPO_NAME, REPO_PATH and REPO_URL. Output is collected per repo and
printed after all repos finished.`,
		Example: `  gr forall -c "git log -1 --oneline"
  gr forall -c 'npm test' -g web
  gr forall -c 'echo $REPO_NAME' --sequential`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strings.TrimSpace(command) == "" {
				return errors.New("command required (-c)")
			}
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.repos(true)
			if err != nil {
				return err
			}
			base := scripts.Environ(s.ws.Root, s.m.Env(), nil)

			rep := executor.Run(ctx, repos, s.options("forall"), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				env := maps.Clone(base)
				env["REPO_NAME"] = r.Name
				env["REPO_PATH"] = r.AbsolutePath
				env["REPO_URL"] = r.URL
				c, err := scripts.Command(ctx, command, r.AbsolutePath, env)
				if err != nil {
					return executor.Fail(err)
				}
				out, err := c.CombinedOutput()
				data := forallOutput{Repo: r.Name, ExitCode: scripts.ExitCode(err), Output: string(out)}
				if err != nil {
					res := executor.Fail(fmt.Errorf("exit %d", data.ExitCode))
					res.Silent, res.Data = true, data
					return res
				}
				return executor.Result{Outcome: executor.Success, Silent: true, Data: data}
			})

			p := output.FromContext(ctx)
			if p.JSONMode() {
				outs := make([]forallOutput, 0, len(rep.Results))
				for _, res := range rep.Results {
					if d, ok := res.Data.(forallOutput); ok {
						outs = append(outs, d)
					}
				}
				if err := p.JSON(outs); err != nil {
					return err
				}
				return failedErr(rep)
			}
			for _, res := range rep.Results {
				d, ok := res.Data.(forallOutput)
				if !ok {
					continue
				}
				p.Printf("%s\n", styles.RepoStyle.Render(fmt.Sprintf("── %s ──", res.Repo)))
				if d.Output != "" {
					p.Print(d.Output)
					if !strings.HasSuffix(d.Output, "\n") {
						p.Println()
					}
				}
			}
			return finish(ctx, rep)
		},
	}

	cmd.Flags().StringVarP(&command, "command", "c", "", "Command to run")

	return cmd
}
