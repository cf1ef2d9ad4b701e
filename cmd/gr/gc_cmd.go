package main

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newGCCmd() *cobra.Command {
	var (
		aggressive bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:     "gc",
		Short:   "Run git gc in every repo",
		GroupID: GroupGit,
		Args:    cobra.NoArgs,
		Long: `Run git gc in every repo and report the space reclaimed.

--dry-run only reports the current size of each repo's git directory.`,
		Example: `  gr gc
  gr gc --aggressive
  gr gc --dry-run`,
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
			rep := executor.Run(ctx, repos, s.options("gc"), func(ctx context.Context, r repo.RepoInfo) executor.Result {
				if dryRun {
					size, err := git.RepoSize(r.AbsolutePath)
					if err != nil {
						return executor.Fail(err)
					}
					res := executor.Noop(humanize.Bytes(uint64(size)))
					res.Data = git.GCResult{SizeBefore: size, SizeAfter: size}
					return res
				}
				gc, err := git.GC(ctx, r.AbsolutePath, aggressive)
				if err != nil {
					return executor.Fail(err)
				}
				res := executor.Ok(gc.String())
				res.Data = gc
				return res
			})
			if err := finish(ctx, rep); err != nil {
				return err
			}

			var before, after int64
			for _, res := range rep.Results {
				if gc, ok := res.Data.(git.GCResult); ok {
					before += gc.SizeBefore
					after += gc.SizeAfter
				}
			}
			p := output.FromContext(ctx)
			if dryRun {
				p.Printf("Total: %s\n", humanize.Bytes(uint64(before)))
			} else {
				p.Printf("Total: %s\n", git.GCResult{SizeBefore: before, SizeAfter: after}.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "Use git gc --aggressive --prune=now")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report repository sizes")

	return cmd
}
