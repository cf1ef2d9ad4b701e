package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/config"
	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/workspace"
)

func newInitCmd() *cobra.Command {
	var (
		fromDirs bool
		branch   string
		noClone  bool
	)

	cmd := &cobra.Command{
		Use:     "init [manifest-url]",
		Short:   "Create a workspace in the current directory",
		GroupID: GroupWorkspace,
		Args:    cobra.MaximumNArgs(1),
		Long: `Create a workspace in the current directory.

With a manifest URL the manifest repo is cloned into
.gitgrip/spaces/main and every repo it lists is cloned.

With --from-dirs the git repos already below the current directory are
discovered and written to a new manifest.`,
		Example: `  gr init git@github.com:acme/workspace.git
  gr init git@github.com:acme/workspace.git -b develop
  gr init --from-dirs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := manifest.FindPath(workDir); err == nil {
				return fmt.Errorf("workspace already initialized in %s", workDir)
			}
			if err := git.CheckVersion(ctx); err != nil {
				return err
			}

			switch {
			case fromDirs && len(args) > 0:
				return errors.New("--from-dirs does not take a manifest url")
			case fromDirs:
				return initFromDirs(ctx, workDir)
			case len(args) == 0:
				return errors.New("manifest url required (or use --from-dirs)")
			}

			p := output.FromContext(ctx)
			dest := filepath.Join(workDir, manifest.MainDir)
			res, err := git.Clone(ctx, args[0], dest, branch)
			if err != nil {
				return fmt.Errorf("clone manifest: %w", err)
			}
			msg := "cloned into " + manifest.MainDir
			if res.FellBack {
				msg += fmt.Sprintf(" (branch %s not found, using remote HEAD)", branch)
			}
			p.Success(repo.ManifestRepoName, msg)

			ws, err := workspace.Find(workDir)
			if err != nil {
				return fmt.Errorf("cloned manifest repo has no %s: %w", filepath.Base(manifest.MainManifestPath), err)
			}
			m, err := ws.LoadManifest()
			if err != nil {
				return err
			}
			if noClone {
				p.Printf("Workspace initialized with %s; run 'gr sync' to clone them\n", plural(len(m.Repos), "repo"))
				return nil
			}

			s := &session{ws: ws, m: m, cfg: config.FromContext(ctx)}
			repos, err := s.repos(true)
			if err != nil {
				return err
			}
			opts := s.options("clone")
			opts.IncludeMissing = true
			rep := executor.Run(ctx, repos, opts, func(ctx context.Context, r repo.RepoInfo) executor.Result {
				if r.Exists() {
					return executor.Noop("already cloned")
				}
				return cloneRepo(ctx, r)
			})
			if err := applyLinks(ctx, s); err != nil {
				log.FromContext(ctx).Printf("Warning: link files: %v\n", err)
			}
			return finish(ctx, rep)
		},
	}

	cmd.Flags().BoolVar(&fromDirs, "from-dirs", false, "Create a manifest from existing repos below the current directory")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Manifest repo branch to clone")
	cmd.Flags().BoolVar(&noClone, "no-clone", false, "Only clone the manifest repo")

	return cmd
}

func initFromDirs(ctx context.Context, root string) error {
	found, err := workspace.Discover(root)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("no git repositories with an origin remote found below %s", root)
	}
	path := filepath.Join(root, manifest.MainManifestPath)
	if err := manifest.Create(path, workspace.ManifestFrom(found)); err != nil {
		return err
	}

	p := output.FromContext(ctx)
	if p.JSONMode() {
		return p.JSON(struct {
			Manifest string                 `json:"manifest"`
			Repos    []workspace.Discovered `json:"repos"`
		}{path, found})
	}
	for _, d := range found {
		p.Success(d.Name, fmt.Sprintf("%s (%s)", d.Path, d.URL))
	}
	p.Printf("\nWrote %s with %s\n", manifest.MainManifestPath, plural(len(found), "repo"))
	return nil
}
