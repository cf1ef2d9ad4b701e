package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/scripts"
)

func newEnvCmd() *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:     "env",
		Short:   "Show the workspace environment",
		GroupID: GroupAutomate,
		Args:    cobra.NoArgs,
		Long: `Show the environment exported to scripts, pipelines and forall.

This is workspace.env from the manifest plus GITGRIP_WORKSPACE. With
--export the variables are printed as shell export statements.`,
		Example: `  gr env
  eval "$(gr env --export)"
  gr env --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			env := scripts.Environ(s.ws.Root, s.m.Env(), nil)
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(env)
			}
			keys := make([]string, 0, len(env))
			for k := range env {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				if export {
					p.Printf("export %s=%s\n", k, shellQuote(env[k]))
					continue
				}
				p.Printf("%s=%s\n", k, env[k])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Print as shell export statements")

	return cmd
}

func shellQuote(s string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", `'\''`))
}
