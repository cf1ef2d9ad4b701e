package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/griptree"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/ui/prompt"
	"github.com/raphi011/gitgrip/internal/ui/static"
)

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tree",
		Aliases: []string{"griptree"},
		Short:   "Manage griptrees (worktree-based workspaces)",
		GroupID: GroupTree,
		Long: `Manage griptrees: parallel workspaces where every repo is a git worktree
on the same branch. A griptree for branch feat/x of workspace ~/ws lives
at ~/ws-feat-x and shares objects with the main workspace.`,
		Example: `  gr tree add feat/login
  gr tree list
  gr tree lock feat/login --reason "release candidate"
  gr tree remove feat/login`,
	}

	cmd.AddCommand(
		newTreeAddCmd(),
		newTreeListCmd(),
		newTreeRemoveCmd(),
		newTreeLockCmd(),
		newTreeUnlockCmd(),
	)
	return cmd
}

func newTreeAddCmd() *cobra.Command {
	var upstreams []string

	cmd := &cobra.Command{
		Use:   "add <branch>",
		Short: "Create a griptree for a branch",
		Args:  cobra.ExactArgs(1),
		Long: `Create a griptree for branch. Each repo gets a worktree on the branch,
created from its upstream (origin/<default> unless overridden with
--upstream repo=remote/branch) when it does not exist yet. Reference repos
are skipped. The manifest gets a worktree on griptree-<branch>.`,
		Example: `  gr tree add feat/login
  gr tree add hotfix --upstream api=origin/release-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := git.CheckVersion(ctx); err != nil {
				return err
			}
			ups, err := parseUpstreams(upstreams)
			if err != nil {
				return err
			}
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			mgr := s.ws.GriptreeManager(s.m, s.cfg.Hosts)
			res, err := mgr.Create(ctx, args[0], griptree.CreateOptions{Upstreams: ups, CreatedBy: versionString()})
			if res == nil {
				return err
			}

			p := output.FromContext(ctx)
			if p.JSONMode() {
				out := treeOutput{Path: res.Path, ManifestBranch: res.ManifestBranch, Repos: treeRepoOutputs(res.Repos)}
				if jerr := p.JSON(out); jerr != nil {
					return jerr
				}
				if err != nil || res.Succeeded() < len(res.Repos) {
					return errFailed
				}
				return nil
			}
			failed := 0
			for _, rr := range res.Repos {
				switch {
				case rr.Err != nil:
					failed++
					p.Error(rr.Name, rr.Err.Error())
				case rr.NewBranch:
					p.Success(rr.Name, "created branch "+args[0])
				default:
					p.Success(rr.Name, "checked out "+args[0])
				}
			}
			if err != nil {
				return err
			}
			p.Println()
			p.Printf("Griptree created at %s (%d/%d repos)\n", res.Path, res.Succeeded(), len(res.Repos))
			if failed > 0 {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&upstreams, "upstream", nil, "Start point per repo as repo=remote/branch (repeatable)")
	_ = cmd.RegisterFlagCompletionFunc("upstream", completeRepoNames)

	return cmd
}

func newTreeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List griptrees",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			entries, err := s.ws.GriptreeManager(s.m, s.cfg.Hosts).List()
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			if p.JSONMode() {
				if entries == nil {
					entries = []griptree.ListEntry{}
				}
				return p.JSON(entries)
			}
			if len(entries) == 0 {
				p.Println("No griptrees (create one with 'gr tree add <branch>')")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, static.GriptreeRow(e))
			}
			p.Print(static.RenderTable(static.GriptreeHeaders, rows))
			return nil
		},
	}
}

func newTreeRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:               "remove <branch>",
		Aliases:           []string{"rm"},
		Short:             "Remove a griptree",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeGriptrees,
		Long: `Remove the worktrees and directory of a griptree. Branches are kept.
Locked griptrees and worktrees with local changes need --force.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			mgr := s.ws.GriptreeManager(s.m, s.cfg.Hosts)

			results, err := mgr.Remove(ctx, args[0], force)
			var locked *griptree.LockedError
			if errors.As(err, &locked) && !p.JSONMode() && prompt.Interactive() {
				msg := fmt.Sprintf("Griptree %s is locked", args[0])
				if locked.Reason != "" {
					msg += fmt.Sprintf(" (%s)", locked.Reason)
				}
				res, perr := prompt.Confirm(msg+". Remove anyway?", false)
				if perr != nil {
					return perr
				}
				if !res.Confirmed {
					return errors.New("cancelled")
				}
				results, err = mgr.Remove(ctx, args[0], true)
			}

			if p.JSONMode() {
				out := treeOutput{Branch: args[0], Repos: treeRepoOutputs(results)}
				if err != nil {
					out.Error = err.Error()
				}
				if jerr := p.JSON(out); jerr != nil {
					return jerr
				}
				if err != nil {
					return errFailed
				}
				return nil
			}
			for _, rr := range results {
				if rr.Err != nil {
					p.Error(rr.Name, rr.Err.Error())
					continue
				}
				p.Success(rr.Name, "removed worktree")
			}
			if err != nil {
				return err
			}
			p.Printf("Removed griptree %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove even if locked or dirty")

	return cmd
}

func newTreeLockCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:               "lock <branch>",
		Short:             "Protect a griptree from removal",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeGriptrees,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if err := s.ws.GriptreeManager(s.m, s.cfg.Hosts).Lock(args[0], reason); err != nil {
				return err
			}
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(treeOutput{Branch: args[0], Locked: true, Reason: reason})
			}
			p.Printf("Locked griptree %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the griptree is locked")

	return cmd
}

func newTreeUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "unlock <branch>",
		Short:             "Allow a griptree to be removed again",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeGriptrees,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if err := s.ws.GriptreeManager(s.m, s.cfg.Hosts).Unlock(args[0]); err != nil {
				return err
			}
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(treeOutput{Branch: args[0]})
			}
			p.Printf("Unlocked griptree %s\n", args[0])
			return nil
		},
	}
}

// treeOutput is the JSON form of griptree commands.
type treeOutput struct {
	Branch         string           `json:"branch,omitempty"`
	Path           string           `json:"path,omitempty"`
	ManifestBranch string           `json:"manifestBranch,omitempty"`
	Locked         bool             `json:"locked,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Repos          []treeRepoOutput `json:"repos,omitempty"`
	Error          string           `json:"error,omitempty"`
}

type treeRepoOutput struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	NewBranch bool   `json:"newBranch,omitempty"`
	Error     string `json:"error,omitempty"`
}

func treeRepoOutputs(results []griptree.RepoResult) []treeRepoOutput {
	out := make([]treeRepoOutput, 0, len(results))
	for _, rr := range results {
		o := treeRepoOutput{Name: rr.Name, Path: rr.Path, NewBranch: rr.NewBranch}
		if rr.Err != nil {
			o.Error = rr.Err.Error()
		}
		out = append(out, o)
	}
	return out
}

// parseUpstreams turns repo=remote/branch flags into a map.
func parseUpstreams(flags []string) (map[string]string, error) {
	out := make(map[string]string, len(flags))
	for _, f := range flags {
		name, ref, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --upstream %q: expected repo=remote/branch", f)
		}
		if err := griptree.ValidateUpstream(ref); err != nil {
			return nil, err
		}
		out[name] = ref
	}
	return out, nil
}

func completeGriptrees(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	entries, err := s.ws.GriptreeManager(s.m, s.cfg.Hosts).List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Branch)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
