package main

import (
	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/release"
)

// releaseOutput is the JSON form of "gr release".
type releaseOutput struct {
	*release.Plan
	DryRun bool             `json:"dryRun"`
	Report *executor.Report `json:"report"`
}

func newReleaseCmd() *cobra.Command {
	var (
		bump    string
		push    bool
		dryRun  bool
		prefix  string
		message string
	)

	cmd := &cobra.Command{
		Use:     "release [version]",
		Short:   "Tag a coordinated release across repos",
		GroupID: GroupAutomate,
		Args:    cobra.MaximumNArgs(1),
		Long: `Create the same annotated version tag in every repo.

Without a version the highest tag found in any repo is bumped (patch by
default). workspace.release in the manifest sets the tag prefix, the tag
message ("{version}" is replaced) and the groups released when no --repo
or --group is given. Repos that already carry the tag are left alone.`,
		Example: `  gr release --dry-run
  gr release --bump minor --push
  gr release 2.0.0 -m "Release {version}"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := release.ParseBump(bump)
			if err != nil {
				return err
			}
			s, err := openSession(ctx)
			if err != nil {
				return err
			}

			rc := manifest.ReleaseConfig{}
			if s.m.Workspace != nil && s.m.Workspace.Release != nil {
				rc = *s.m.Workspace.Release
			}
			if len(repoFlags) == 0 && len(groupFlags) == 0 {
				groupFlags = rc.Groups
			}
			if prefix == "" {
				prefix = rc.TagPrefix
			}
			if message == "" {
				message = rc.Message
			}

			repos, err := s.repos(false)
			if err != nil {
				return err
			}
			opts := release.Options{Bump: b, Prefix: prefix, Message: message}
			if len(args) == 1 {
				opts.Version = args[0]
			}
			plan, err := release.Resolve(ctx, repos, opts)
			if err != nil {
				return err
			}

			p := output.FromContext(ctx)
			if plan.Previous != "" {
				p.Printf("Releasing %s (previous %s)\n\n", plan.Tag, plan.Previous)
			} else {
				p.Printf("Releasing %s\n\n", plan.Tag)
			}

			rep := executor.Run(ctx, repos, s.options("release"), plan.TagRepo(push, dryRun))
			if p.JSONMode() {
				if err := p.JSON(releaseOutput{Plan: plan, DryRun: dryRun, Report: rep}); err != nil {
					return err
				}
				return failedErr(rep)
			}
			if err := finish(ctx, rep); err != nil {
				return err
			}
			if !push && !dryRun && rep.Summary.Success > 0 {
				p.Printf("\nTagged locally; rerun with --push to publish %s\n", plan.Tag)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bump, "bump", "patch", "Version component to bump: major, minor, patch")
	cmd.Flags().BoolVar(&push, "push", false, "Push the tag to origin")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be tagged")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Tag prefix (default \"v\")")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Tag message; {version} is replaced")
	_ = cmd.RegisterFlagCompletionFunc("bump", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"major", "minor", "patch"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// failedErr returns errFailed when a fan-out had failures.
func failedErr(rep *executor.Report) error {
	if rep.Failed() {
		return errFailed
	}
	return nil
}
