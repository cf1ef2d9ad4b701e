package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
)

func newPruneCmd() *cobra.Command {
	var execute bool

	cmd := &cobra.Command{
		Use:     "prune",
		Short:   "Delete local branches merged into the default branch",
		GroupID: GroupGit,
		Args:    cobra.NoArgs,
		Long: `List local branches already merged into each repo's default branch.

Nothing is deleted unless --execute is given. The default branch and the
checked-out branch are always kept.`,
		Example: `  gr prune            # Dry run
  gr prune --execute  # Delete merged branches`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.repos(false)
			if err != nil {
				return err
			}
			rep := executor.RunRepos(ctx, repos, s.options("prune"), func(ctx context.Context, g *git.Repo, r repo.RepoInfo) executor.Result {
				return pruneRepo(ctx, g, r, execute)
			})
			if err := finish(ctx, rep); err != nil {
				return err
			}
			if !execute {
				n := 0
				for _, res := range rep.Results {
					if names, ok := res.Data.([]string); ok {
						n += len(names)
					}
				}
				if n > 0 {
					output.FromContext(ctx).Printf("%d branch(es) would be deleted; run with --execute\n", n)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&execute, "execute", false, "Actually delete the branches")

	return cmd
}

func pruneRepo(ctx context.Context, g *git.Repo, r repo.RepoInfo, execute bool) executor.Result {
	target := r.DefaultBranch
	if !g.BranchExists(target) {
		return executor.Skip(fmt.Sprintf("no local %s branch", target))
	}
	merged, err := git.MergedBranches(ctx, r.AbsolutePath, target)
	if err != nil {
		return executor.Fail(err)
	}
	current, _ := g.CurrentBranch()
	var candidates []string
	for _, b := range merged {
		if b != target && b != current {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return executor.Result{Outcome: executor.Success, Unchanged: true, Message: "nothing to prune", Silent: true}
	}
	if !execute {
		res := executor.Noop("would delete " + strings.Join(candidates, ", "))
		res.Data = candidates
		return res
	}

	var deleted []string
	for _, b := range candidates {
		if err := git.DeleteLocal(ctx, r.AbsolutePath, b, false); err != nil {
			res := executor.Fail(fmt.Errorf("deleted %d, then: %w", len(deleted), err))
			res.Data = deleted
			return res
		}
		deleted = append(deleted, b)
	}
	slices.Sort(deleted)
	res := executor.Ok("deleted " + strings.Join(deleted, ", "))
	res.Data = deleted
	return res
}
