package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/ci"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/scripts"
	"github.com/raphi011/gitgrip/internal/ui/static"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

func newCICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ci",
		Short:   "Run local CI pipelines",
		GroupID: GroupAutomate,
		Long: `Run pipelines declared under workspace.ci.pipelines in the manifest.

Each run is recorded under .gitgrip/ci-results/ with per-step exit codes,
durations and captured output.`,
		Example: `  gr ci list
  gr ci run test
  gr ci status test`,
	}

	cmd.AddCommand(newCIListCmd(), newCIRunCmd(), newCIStatusCmd())
	return cmd
}

func newCIListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipelines and their last result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			infos, err := ci.List(s.m.Pipelines(), s.ws.CIResultsDir())
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(infos)
			}
			if len(infos) == 0 {
				p.Println("No pipelines defined (add them under workspace.ci.pipelines)")
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, i := range infos {
				rows = append(rows, []string{i.Name, plural(i.Steps, "step"), lastRun(i.Last), i.Description})
			}
			p.Print(static.RenderTable([]string{"PIPELINE", "STEPS", "LAST RUN", "DESCRIPTION"}, rows))
			return nil
		},
	}
}

func newCIRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "run <pipeline>",
		Short:             "Run a pipeline",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completePipelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			pl, err := ci.Lookup(s.m.Pipelines(), args[0])
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			r := &ci.Runner{
				Root:       s.ws.Root,
				Env:        scripts.Environ(s.ws.Root, s.m.Env(), nil),
				ResultsDir: s.ws.CIResultsDir(),
			}
			if !p.JSONMode() {
				r.Out = os.Stdout
			}
			res, err := r.Run(ctx, args[0], pl)
			if err != nil {
				return err
			}
			if p.JSONMode() {
				if err := p.JSON(res); err != nil {
					return err
				}
			} else {
				printCIResult(p, res)
			}
			if !res.Success {
				return errFailed
			}
			return nil
		},
	}
}

func newCIStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "status [pipeline]",
		Short:             "Show the last recorded run",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completePipelines,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			dir := s.ws.CIResultsDir()

			if len(args) == 1 {
				res, err := ci.Load(dir, args[0])
				if errors.Is(err, ci.ErrNoResult) && !p.JSONMode() {
					p.Printf("Pipeline %s has not run yet\n", args[0])
					return nil
				}
				if err != nil {
					return err
				}
				if p.JSONMode() {
					return p.JSON(res)
				}
				printCIResult(p, res)
				return nil
			}

			results, err := ci.LoadAll(dir)
			if err != nil {
				return err
			}
			if p.JSONMode() {
				if results == nil {
					results = []*ci.Result{}
				}
				return p.JSON(results)
			}
			if len(results) == 0 {
				p.Println("No recorded runs")
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, res := range results {
				rows = append(rows, []string{res.Pipeline, lastRun(res), strings.Join(res.Failed(), ", ")})
			}
			p.Print(static.RenderTable([]string{"PIPELINE", "LAST RUN", "FAILED STEPS"}, rows))
			return nil
		},
	}
}

// lastRun renders "✓ 3 minutes ago" or "-" for a pipeline that never ran.
func lastRun(res *ci.Result) string {
	if res == nil {
		return "-"
	}
	sym := styles.SuccessStyle.Render(styles.CurrentSymbols().Success)
	if !res.Success {
		sym = styles.ErrorStyle.Render(styles.CurrentSymbols().Error)
	}
	return fmt.Sprintf("%s %s", sym, humanize.Time(res.FinishedAt))
}

func printCIResult(p *output.Printer, res *ci.Result) {
	p.Println()
	for _, st := range res.Steps {
		d := (time.Duration(st.DurationMs) * time.Millisecond).String()
		switch {
		case st.Skipped:
			p.Skip(st.Name, "skipped")
		case st.Success:
			p.Success(st.Name, d)
		default:
			p.Error(st.Name, fmt.Sprintf("exit %d after %s", st.ExitCode, d))
		}
	}
	p.Println()
	total := (time.Duration(res.DurationMs) * time.Millisecond).String()
	if res.Success {
		p.Printf("Pipeline %s passed in %s\n", res.Pipeline, total)
		return
	}
	p.Printf("Pipeline %s failed (%s) in %s\n", res.Pipeline, strings.Join(res.Failed(), ", "), total)
}

func completePipelines(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(s.m.Pipelines()))
	for n := range s.m.Pipelines() {
		names = append(names, n)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
