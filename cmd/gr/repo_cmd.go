package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/prompt"
	"github.com/raphi011/gitgrip/internal/ui/static"
)

func newRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "repo",
		Short:   "Manage manifest repos",
		GroupID: GroupWorkspace,
		Long: `List, add and remove the repos of the manifest. Edits keep the
manifest's comments and key order.`,
		Example: `  gr repo list
  gr repo add git@github.com:acme/billing.git --group backend
  gr repo remove billing --delete`,
	}

	cmd.AddCommand(newRepoListCmd(), newRepoAddCmd(), newRepoRemoveCmd())
	return cmd
}

func newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List repos",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			repos, err := s.repos(true)
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			if p.JSONMode() {
				if repos == nil {
					repos = []repo.RepoInfo{}
				}
				return p.JSON(repos)
			}
			rows := make([][]string, 0, len(repos))
			for _, r := range repos {
				cloned := "✓"
				if !r.Exists() {
					cloned = "-"
				}
				name := r.Name
				if r.Reference {
					name += " (reference)"
				}
				rows = append(rows, []string{name, r.Path, r.DefaultBranch, strings.Join(r.Groups, ","), cloned, r.URL})
			}
			p.Print(static.RenderTable([]string{"NAME", "PATH", "BRANCH", "GROUPS", "CLONED", "URL"}, rows))
			return nil
		},
	}
}

func newRepoAddCmd() *cobra.Command {
	var (
		name      string
		path      string
		branch    string
		groups    []string
		reference bool
		noClone   bool
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a repo to the manifest and clone it",
		Args:  cobra.ExactArgs(1),
		Long: `Add a repo to the manifest. The name and path default to the repository
name from the URL. The repo is cloned unless --no-clone is given.`,
		Example: `  gr repo add git@github.com:acme/billing.git
  gr repo add https://gitlab.com/acme/docs.git --path vendor/docs --reference`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url := args[0]
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if name == "" {
				ref, ok := platform.ParseRepoURL(url, s.cfg.Hosts)
				if !ok {
					return fmt.Errorf("cannot derive a repo name from %q; use --name", url)
				}
				name = ref.Repo
			}
			if path == "" {
				path = name
			}
			rc := manifest.RepoConfig{URL: url, Path: path, DefaultBranch: branch, Groups: groups, Reference: reference}

			ed, err := manifest.OpenEditor(s.ws.ManifestPath)
			if err != nil {
				return err
			}
			if err := ed.AddRepo(name, rc); err != nil {
				return err
			}
			if err := ed.Save(); err != nil {
				return err
			}

			p := output.FromContext(ctx)
			p.Success(name, "added to manifest")
			r, ok := repo.FromConfig(name, rc, s.ws.Root, s.cfg.Hosts)
			if !ok {
				return fmt.Errorf("%s: invalid url or path", name)
			}
			if r.DefaultBranch == "" {
				r.DefaultBranch = "main"
			}
			res := executor.Noop("not cloned")
			if !noClone && !r.Exists() {
				res = cloneRepo(ctx, r)
				if res.Outcome == executor.Failed {
					p.Error(name, res.Message)
				} else {
					p.Success(name, res.Message)
				}
			}
			res.Repo, res.Status = name, res.Outcome.String()
			if p.JSONMode() {
				if err := p.JSON(map[string]any{"repo": r, "result": res}); err != nil {
					return err
				}
			}
			if res.Outcome == executor.Failed {
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Repo name (default from URL)")
	cmd.Flags().StringVar(&path, "path", "", "Path relative to the workspace (default: name)")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Default branch")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "Groups the repo belongs to")
	cmd.Flags().BoolVar(&reference, "reference", false, "Mark as read-only reference repo")
	cmd.Flags().BoolVar(&noClone, "no-clone", false, "Only edit the manifest")

	return cmd
}

func newRepoRemoveCmd() *cobra.Command {
	var (
		deleteFiles bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:               "remove <name>",
		Aliases:           []string{"rm"},
		Short:             "Remove a repo from the manifest",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRepoNames,
		Long: `Remove a repo from the manifest. With --delete its checkout is deleted
as well, after confirmation unless --force is given. A checkout with
local changes is never deleted without --force.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if err := repo.CheckNames(s.m, []string{name}); err != nil {
				return err
			}
			r, ok := repo.FromConfig(name, s.m.Repos[name], s.ws.Root, s.cfg.Hosts)
			p := output.FromContext(ctx)

			if deleteFiles && ok && r.Exists() && !force {
				if git.IsDirty(ctx, r.AbsolutePath) {
					return fmt.Errorf("%s has local changes; use --force to delete it anyway", name)
				}
				if p.JSONMode() || !prompt.Interactive() {
					return errors.New("--delete needs confirmation; use --force in non-interactive mode")
				}
				res, err := prompt.Confirm(fmt.Sprintf("Delete %s?", r.AbsolutePath), false)
				if err != nil {
					return err
				}
				if !res.Confirmed {
					return errors.New("cancelled")
				}
			}

			ed, err := manifest.OpenEditor(s.ws.ManifestPath)
			if err != nil {
				return err
			}
			if err := ed.RemoveRepo(name); err != nil {
				return err
			}
			if err := ed.Save(); err != nil {
				return err
			}
			p.Success(name, "removed from manifest")

			deleted := false
			if deleteFiles && ok && r.Exists() {
				if err := os.RemoveAll(r.AbsolutePath); err != nil {
					return fmt.Errorf("delete %s: %w", r.AbsolutePath, err)
				}
				deleted = true
				p.Success(name, "deleted "+r.Path)
			}
			if p.JSONMode() {
				return p.JSON(map[string]any{"repo": name, "deleted": deleted})
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteFiles, "delete", false, "Also delete the checkout")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without confirmation, even with local changes")

	return cmd
}
