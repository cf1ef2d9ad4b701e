package main

import (
	"context"
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/prompt"
)

func newCheckoutCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:     "checkout [branch]",
		Short:   "Check out a branch in every repo that has it",
		Aliases: []string{"co"},
		GroupID: GroupGit,
		Args:    cobra.MaximumNArgs(1),
		Long: `Check out a branch across repos.

A local branch is checked out directly, a branch that only exists on
origin is checked out with tracking. Repos without the branch are skipped
unless --create is given. Without an argument on a terminal, a branch is
picked from the local branches of all repos.`,
		Example: `  gr checkout feat/login
  gr checkout main
  gr checkout feat/login --create   # Create where missing
  gr checkout                       # Pick interactively`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.reposWithManifest(false)
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				if !prompt.Interactive() {
					return errors.New("branch name required")
				}
				res, err := prompt.Select("Check out branch", localBranches(repos))
				if err != nil {
					return err
				}
				if res.Cancelled {
					return nil
				}
				name = res.Value
			}

			rep := executor.RunRepos(ctx, repos, s.options("checkout"), func(ctx context.Context, g *git.Repo, r repo.RepoInfo) executor.Result {
				defer cache.Shared().Invalidate(r.AbsolutePath)
				if current, _ := g.CurrentBranch(); current == name {
					return executor.Noop("already on " + name)
				}
				switch {
				case g.BranchExists(name):
					if err := git.Checkout(ctx, r.AbsolutePath, name); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("switched to " + name)
				case g.RemoteBranchExists(name, "origin"):
					if err := git.CheckoutTracking(ctx, r.AbsolutePath, name, "origin"); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("switched to " + name + " (tracking origin)")
				case create:
					if err := git.CreateAndCheckout(ctx, r.AbsolutePath, name); err != nil {
						return executor.Fail(err)
					}
					return executor.Ok("created " + name)
				default:
					return executor.Skip("no branch " + name)
				}
			})
			return finish(ctx, rep)
		},
	}

	cmd.Flags().BoolVarP(&create, "create", "b", false, "Create the branch in repos that lack it")

	return cmd
}

// localBranches returns the local branches across cloned repos, the most
// widespread first, each hinted with the number of repos that have it.
func localBranches(repos []repo.RepoInfo) []prompt.Option {
	counts := map[string]int{}
	for _, r := range repos {
		g, err := git.Open(r.AbsolutePath)
		if err != nil {
			continue
		}
		names, err := g.ListLocal()
		if err != nil {
			continue
		}
		for _, n := range names {
			counts[n]++
		}
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	out := make([]prompt.Option, len(names))
	for i, n := range names {
		out[i] = prompt.Option{Value: n, Hint: "in " + plural(counts[n], "repo")}
	}
	return out
}
