package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/linkfile"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/static"
)

func newLinkCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:     "link",
		Short:   "Apply copyfile and linkfile entries",
		GroupID: GroupWorkspace,
		Args:    cobra.NoArgs,
		Long: `Copy and link files from repos into the workspace root.

Each repo may declare copyfile entries (copied) and linkfile entries
(relative symlinks) whose dest is relative to the workspace root. Entries
already in place are left alone; stale copies and links are replaced.`,
		Example: `  gr link            # Apply all entries
  gr link --status   # Show ok, missing or stale per entry`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			entries, err := s.linkEntries()
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)

			if status {
				results := linkfile.Check(entries)
				if p.JSONMode() {
					return p.JSON(results)
				}
				if len(results) == 0 {
					p.Println("No copyfile or linkfile entries")
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.RelDest, string(r.Kind), r.Repo, string(r.Status)})
				}
				p.Print(static.RenderTable([]string{"DEST", "KIND", "REPO", "STATUS"}, rows))
				return nil
			}

			results := linkfile.Apply(ctx, entries)
			if p.JSONMode() {
				if err := p.JSON(results); err != nil {
					return err
				}
			}
			return reportLinks(p, results, true)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Report entry status without changing anything")

	return cmd
}

// linkEntries resolves the file mappings of every repo, the manifest repo
// included.
func (s *session) linkEntries() ([]linkfile.Entry, error) {
	repos := repo.All(s.m, s.ws.Root, s.cfg.Hosts)
	if mr, ok := repo.ManifestRepoInfo(s.m, s.ws.Root, s.ws.ManifestDir, s.cfg.Hosts); ok {
		repos = append(repos, mr)
	}
	return linkfile.Entries(s.ws.Root, repos)
}

// applyLinks brings every copy and link file up to date, reporting only
// changes and errors.
func applyLinks(ctx context.Context, s *session) error {
	entries, err := s.linkEntries()
	if err != nil {
		return err
	}
	return reportLinks(output.FromContext(ctx), linkfile.Apply(ctx, entries), false)
}

func reportLinks(p *output.Printer, results []linkfile.Result, all bool) error {
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			p.Error(r.RelDest, r.Message)
		case r.Changed:
			p.Success(r.RelDest, fmt.Sprintf("%s from %s", r.Kind, r.Repo))
		case all:
			p.Info(r.RelDest, "up to date")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d link file(s) failed", failed)
	}
	return nil
}
