package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/scripts"
	"github.com/raphi011/gitgrip/internal/ui/static"
)

func newRunCmd() *cobra.Command {
	var (
		list   bool
		envs   []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:     "run <script>",
		Short:   "Run a workspace script",
		GroupID: GroupAutomate,
		Args:    cobra.MaximumNArgs(1),
		Long: `Run a script declared under workspace.scripts in the manifest.

Scripts run in the workspace root (or their cwd) with workspace.env and
GITGRIP_WORKSPACE exported. Placeholders {root}, {script} and {KEY} are
substituted; {KEY:-default} falls back to default and {KEY:raw} skips
quoting. Multi-step scripts stop at the first failing step.`,
		Example: `  gr run --list
  gr run build
  gr run deploy -e ENV=staging
  gr run build --dry-run`,
		ValidArgsFunction: completeScripts,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)

			if list || len(args) == 0 {
				infos := scripts.List(s.m.Scripts())
				if p.JSONMode() {
					return p.JSON(infos)
				}
				if len(infos) == 0 {
					p.Println("No scripts defined (add them under workspace.scripts)")
					return nil
				}
				rows := make([][]string, 0, len(infos))
				for _, i := range infos {
					what := i.Command
					if i.Steps > 0 {
						what = plural(i.Steps, "step")
					}
					rows = append(rows, []string{i.Name, i.Description, what})
				}
				p.Print(static.RenderTable([]string{"SCRIPT", "DESCRIPTION", "COMMAND"}, rows))
				return nil
			}

			script, err := scripts.Lookup(s.m.Scripts(), args[0])
			if err != nil {
				return err
			}
			overrides, err := scripts.ParseEnv(envs)
			if err != nil {
				return err
			}
			r := &scripts.Runner{
				Root:   s.ws.Root,
				Env:    scripts.Environ(s.ws.Root, s.m.Env(), overrides),
				Stdin:  os.Stdin,
				Stdout: os.Stdout,
				Stderr: os.Stderr,
				DryRun: dryRun,
			}
			if err := r.Run(ctx, args[0], script); err != nil {
				if code := scripts.ExitCode(err); code > 0 {
					return &exitError{err: err, code: code}
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List scripts")
	cmd.Flags().StringArrayVarP(&envs, "env", "e", nil, "Set KEY=VALUE for this run (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print commands instead of running them")

	return cmd
}

func completeScripts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, i := range scripts.List(s.m.Scripts()) {
		names = append(names, i.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
