package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "group",
		Short:   "Manage repo groups",
		GroupID: GroupWorkspace,
		Long: `Manage the groups repos belong to. Groups select repos for any command
via --group. Edits keep the manifest's comments and key order.`,
		Example: `  gr group list
  gr group add backend api worker
  gr group remove backend worker
  gr status -g backend`,
	}

	cmd.AddCommand(newGroupListCmd(), newGroupAddCmd(), newGroupRemoveCmd(), newGroupCreateCmd())
	return cmd
}

func newGroupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List groups and their repos",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			members := repo.GroupMembers(s.m)
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(members)
			}
			if len(members) == 0 {
				p.Println("No groups defined")
				return nil
			}
			for _, g := range s.m.Groups() {
				p.Printf("%s %s\n", styles.RepoStyle.Render(g), styles.MutedStyle.Render(fmt.Sprintf("(%s)", plural(len(members[g]), "repo"))))
				for _, name := range members[g] {
					p.Printf("  %s\n", name)
				}
			}
			return nil
		},
	}
}

func newGroupAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "add <group> <repo>...",
		Short:             "Add repos to a group",
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: completeGroupThenRepos,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editGroups(cmd, args[0], args[1:], false, false)
		},
	}
}

func newGroupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "create <group> <repo>...",
		Short:             "Create a new group from repos",
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: completeGroupThenRepos,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editGroups(cmd, args[0], args[1:], false, true)
		},
	}
}

func newGroupRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "remove <group> <repo>...",
		Aliases:           []string{"rm"},
		Short:             "Remove repos from a group",
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: completeGroupThenRepos,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editGroups(cmd, args[0], args[1:], true, false)
		},
	}
}

// editGroups adds (or removes) group to each of repos and saves the
// manifest once. With create the group must not exist yet.
func editGroups(cmd *cobra.Command, group string, repos []string, remove, create bool) error {
	ctx := cmd.Context()
	if strings.TrimSpace(group) == "" || strings.ContainsAny(group, " ,") {
		return fmt.Errorf("invalid group name %q", group)
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	if err := repo.CheckNames(s.m, repos); err != nil {
		return err
	}
	if create && slices.Contains(s.m.Groups(), group) {
		return fmt.Errorf("group %q already exists; use 'gr group add'", group)
	}
	ed, err := manifest.OpenEditor(s.ws.ManifestPath)
	if err != nil {
		return err
	}

	p := output.FromContext(ctx)
	changed := map[string]bool{}
	for _, name := range repos {
		var got []string
		if remove {
			got, err = ed.RemoveGroups(name, group)
		} else {
			got, err = ed.AddGroups(name, group)
		}
		if err != nil {
			return err
		}
		changed[name] = len(got) > 0
		switch {
		case len(got) == 0 && remove:
			p.Skip(name, "not in "+group)
		case len(got) == 0:
			p.Skip(name, "already in "+group)
		case remove:
			p.Success(name, "removed from "+group)
		default:
			p.Success(name, "added to "+group)
		}
	}
	if err := ed.Save(); err != nil {
		return err
	}
	if p.JSONMode() {
		return p.JSON(map[string]any{"group": group, "removed": remove, "changed": changed})
	}
	return nil
}

func completeGroupThenRepos(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeGroupNames(cmd, args, toComplete)
	}
	return completeRepoNames(cmd, args, toComplete)
}
