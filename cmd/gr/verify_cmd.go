package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/ui/styles"
	"github.com/raphi011/gitgrip/internal/verify"
)

// verifyOutput is the JSON form of "gr verify".
type verifyOutput struct {
	Pass bool `json:"pass"`
	*verify.Report
}

func newVerifyCmd() *cobra.Command {
	var (
		fix    bool
		clean  bool
		branch string
	)

	cmd := &cobra.Command{
		Use:     "verify",
		Short:   "Check the workspace for problems",
		GroupID: GroupWorkspace,
		Args:    cobra.NoArgs,
		Long: `Check the manifest against its schema, every repo for presence and the
expected remote, every copyfile and linkfile destination, and the
griptree registry for missing directories.

--fix re-applies broken links and drops missing griptrees from the
registry. --clean additionally requires every repo to be free of local
changes and --branch requires every repo to be on the given branch.
With --json the report is always printed and the exit code is 0; check
the "pass" field.`,
		Example: `  gr verify
  gr verify --fix
  gr verify --clean --branch main
  gr verify --json | jq .pass`,
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
			opts := verify.Options{
				ManifestPath: s.ws.ManifestPath,
				Manifest:     s.m,
				Root:         s.ws.Root,
				Repos:        repos,
				RegistryRoot: s.ws.MainRoot,
				Clean:        clean,
				Branch:       branch,
				Status:       cache.Shared().Status,
				Jobs:         s.cfg.Jobs,
			}
			rep, err := verify.Run(ctx, opts)
			if err != nil {
				return err
			}
			if fix {
				if err := verify.Fix(ctx, rep, opts); err != nil {
					return err
				}
			}

			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(verifyOutput{Pass: rep.OK(), Report: rep})
			}

			byCat := verify.ByCategory(rep.Issues)
			for _, cat := range verify.Categories {
				n, checked := rep.Checked[cat]
				if !checked {
					continue
				}
				issues := byCat[cat]
				if len(issues) == 0 {
					p.Success(string(cat), fmt.Sprintf("%d checked, no issues", n))
					continue
				}
				for _, i := range issues {
					switch {
					case i.Fixed:
						p.Success(i.Key, i.Description+" (fixed)")
					case i.Fix != verify.FixNone:
						p.Warn(i.Key, i.Description+styles.MutedStyle.Render(" (fixable with --fix)"))
					default:
						p.Error(i.Key, i.Description)
					}
				}
			}
			p.Println()
			if rep.OK() {
				p.Println(styles.SuccessStyle.Render("Workspace OK"))
				return nil
			}
			unfixed := 0
			for _, i := range rep.Issues {
				if !i.Fixed {
					unfixed++
				}
			}
			p.Println(styles.ErrorStyle.Render(plural(unfixed, "issue") + " found"))
			return errFailed
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Fix what can be fixed automatically")
	cmd.Flags().BoolVar(&clean, "clean", false, "Require every repo to have no local changes")
	cmd.Flags().StringVar(&branch, "branch", "", "Require every repo to be on this branch")

	return cmd
}
