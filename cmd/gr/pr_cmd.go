package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/pr"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/prompt"
	"github.com/raphi011/gitgrip/internal/ui/static"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

func newPrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pr",
		Short:   "Manage linked pull requests",
		GroupID: GroupPR,
		Long: `Manage the pull requests of the current branch across repos.

PRs opened together form a change set: every PR description links to its
siblings and the set is recorded in .gitgrip/state.json. Merges follow
settings.merge_strategy: all-or-nothing refuses to merge unless every PR
is ready, independent merges each ready PR on its own.`,
		Example: `  gr pr create -t "Add login"
  gr pr status
  gr pr merge`,
	}

	cmd.AddCommand(
		newPrCreateCmd(),
		newPrStatusCmd(),
		newPrChecksCmd(),
		newPrDiffCmd(),
		newPrMergeCmd(),
	)
	return cmd
}

func newPrCreateCmd() *cobra.Command {
	var (
		title    string
		body     string
		draft    bool
		push     bool
		copyURLs bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open PRs for every repo with commits on the current branch",
		Args:  cobra.NoArgs,
		Long: `Open a pull request in every repo whose checked-out branch has commits
ahead of its default branch. Existing PRs for the branch are reused. When
no title is given and the terminal is interactive, it is prompted for.`,
		Example: `  gr pr create -t "Add login" --push
  gr pr create -t "WIP: search" --draft
  gr pr create -t "Fix auth" --copy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := output.FromContext(ctx)
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			c, err := s.coordinator()
			if err != nil {
				return err
			}
			if title == "" && !p.JSONMode() && prompt.Interactive() {
				res, err := prompt.TextInput(prompt.TextOptions{
					Prompt:      "PR title",
					Placeholder: "Describe the change",
					Initial:     titleFromBranch(currentBranch(c.Repos)),
					Validate:    requireTitle,
				})
				if err != nil {
					return err
				}
				if res.Cancelled {
					return errors.New("cancelled")
				}
				title = strings.TrimSpace(res.Value)
			}
			if err := requireTitle(title); err != nil {
				return err
			}

			res, err := c.Create(ctx, pr.CreateOptions{Title: title, Body: body, Draft: draft, Push: push})
			if res == nil {
				return err
			}
			if p.JSONMode() {
				if jerr := p.JSON(res); jerr != nil {
					return jerr
				}
				if err != nil {
					return errFailed
				}
				return nil
			}

			var urls []string
			for _, e := range res.Entries {
				switch {
				case e.Err != nil:
					p.Error(e.Name, e.Message)
				case e.Skipped != "":
					p.Skip(e.Name, e.Skipped)
				case e.Created:
					p.Success(e.Name, fmt.Sprintf("created #%d %s", e.Number, e.URL))
					urls = append(urls, e.URL)
				case e.HasPR():
					p.Info(e.Name, fmt.Sprintf("#%d %s (%s)", e.Number, e.URL, e.Note))
					urls = append(urls, e.URL)
				}
			}
			p.Println()
			p.Printf("Created %s\n", plural(res.Created(), "PR"))
			if copyURLs && len(urls) > 0 {
				if cerr := clipboard.WriteAll(strings.Join(urls, "\n")); cerr != nil {
					log.FromContext(ctx).Printf("Warning: copy to clipboard: %v\n", cerr)
				} else {
					p.Println("PR URLs copied to clipboard")
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "PR title")
	cmd.Flags().StringVarP(&body, "body", "b", "", "PR description")
	cmd.Flags().BoolVarP(&draft, "draft", "d", false, "Open as draft")
	cmd.Flags().BoolVarP(&push, "push", "p", false, "Push branches with upstream tracking first")
	cmd.Flags().BoolVar(&copyURLs, "copy", false, "Copy the PR URLs to the clipboard")

	return cmd
}

func newPrStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the PRs of the current branch and whether they are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			c, err := s.coordinator()
			if err != nil {
				return err
			}
			entries, err := c.Status(ctx)
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return prJSON(p, entries, err)
			}
			printPRTable(p, entries)
			return err
		},
	}
}

func newPrChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "Show CI checks of the current branch's PRs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			c, err := s.coordinator()
			if err != nil {
				return err
			}
			entries := c.Checks(ctx)
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(entries)
			}
			failing := 0
			for _, e := range entries {
				switch {
				case e.Err != nil:
					p.Error(e.Name, e.Message)
					continue
				case !e.HasPR():
					continue
				case e.Readiness == nil:
					continue
				}
				line := fmt.Sprintf("#%d checks %s", e.Number, e.Readiness.Checks)
				switch e.Readiness.Checks {
				case platform.CheckSuccess:
					p.Success(e.Name, line)
				case platform.CheckFailure:
					failing++
					p.Error(e.Name, line)
				default:
					p.Warn(e.Name, line)
				}
				for _, d := range e.Readiness.CheckDetails {
					p.Printf("    %s %s\n", styles.MutedStyle.Render(string(d.State)), d.Context)
				}
			}
			if failing > 0 {
				return errFailed
			}
			return nil
		},
	}
}

func newPrDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show the combined diff of the current branch's PRs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			c, err := s.coordinator()
			if err != nil {
				return err
			}
			entries := c.Diff(ctx)
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return p.JSON(entries)
			}
			for _, e := range entries {
				if e.Err != nil {
					p.Error(e.Name, e.Message)
					continue
				}
				if e.Diff == "" {
					continue
				}
				p.Printf("%s\n", styles.RepoStyle.Render(fmt.Sprintf("── %s ──", e.Name)))
				p.Print(e.Diff)
				if !strings.HasSuffix(e.Diff, "\n") {
					p.Println()
				}
			}
			return nil
		},
	}
}

func newPrMergeCmd() *cobra.Command {
	var (
		method       string
		strategy     string
		force        bool
		update       bool
		deleteBranch bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the PRs of the current branch",
		Args:  cobra.NoArgs,
		Long: `Merge every PR of the current branch's change set. The manifest PR is
merged last. With the all-or-nothing strategy nothing is merged unless
every PR is ready; --force overrides that. --update brings PRs that are
behind their base up to date before retrying the merge.`,
		Example: `  gr pr merge
  gr pr merge --method squash --delete-branch
  gr pr merge --strategy independent
  gr pr merge --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			opts := pr.MergeOptions{
				Strategy:     s.m.Strategy(),
				Method:       platform.MergeMethod(s.cfg.Merge.Method),
				Force:        force,
				Update:       update,
				DeleteBranch: deleteBranch,
			}
			if method != "" {
				opts.Method, err = parseMergeMethod(method)
				if err != nil {
					return err
				}
			}
			if strategy != "" {
				opts.Strategy, err = parseStrategy(strategy)
				if err != nil {
					return err
				}
			}

			c, err := s.coordinator()
			if err != nil {
				return err
			}
			entries, err := c.Merge(ctx, opts)
			p := output.FromContext(ctx)
			if p.JSONMode() {
				return prJSON(p, entries, err)
			}

			merged := 0
			for _, e := range entries {
				switch {
				case e.Merged:
					merged++
					p.Success(e.Name, fmt.Sprintf("merged #%d", e.Number))
				case e.Err != nil:
					p.Error(e.Name, e.Message)
				case e.Note != "":
					p.Info(e.Name, e.Note)
				case e.HasPR():
					p.Skip(e.Name, fmt.Sprintf("#%d not merged", e.Number))
				}
			}
			if merged > 0 {
				p.Println()
				p.Printf("Merged %s\n", plural(merged, "PR"))
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "", "Merge method: merge, squash, rebase (default from config)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Merge strategy: all-or-nothing, independent (default from manifest)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Merge even if PRs are not ready")
	cmd.Flags().BoolVarP(&update, "update", "u", false, "Update branches that are behind their base and retry")
	cmd.Flags().BoolVarP(&deleteBranch, "delete-branch", "d", false, "Delete the head branch after merging")
	_ = cmd.RegisterFlagCompletionFunc("method", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"merge", "squash", "rebase"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("strategy", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(manifest.MergeAllOrNothing), string(manifest.MergeIndependent)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func parseMergeMethod(s string) (platform.MergeMethod, error) {
	switch m := platform.MergeMethod(s); m {
	case platform.MethodMerge, platform.MethodSquash, platform.MethodRebase:
		return m, nil
	}
	return "", fmt.Errorf("invalid merge method %q: must be merge, squash, or rebase", s)
}

func parseStrategy(s string) (manifest.MergeStrategy, error) {
	switch st := manifest.MergeStrategy(s); st {
	case manifest.MergeAllOrNothing, manifest.MergeIndependent:
		return st, nil
	}
	return "", fmt.Errorf("invalid merge strategy %q: must be %s or %s", s, manifest.MergeAllOrNothing, manifest.MergeIndependent)
}

func requireTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("PR title required (-t)")
	}
	return nil
}

// currentBranch returns the branch checked out in the first cloned repo.
func currentBranch(repos []repo.RepoInfo) string {
	for _, r := range repos {
		if !r.Exists() {
			continue
		}
		if b, err := pr.LocalBranch(r); err == nil && b != "" {
			return b
		}
	}
	return ""
}

// titleFromBranch suggests a PR title: "feat/login-page" becomes
// "Login page".
func titleFromBranch(branch string) string {
	if i := strings.LastIndex(branch, "/"); i >= 0 {
		branch = branch[i+1:]
	}
	t := strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(branch))
	if t == "" {
		return ""
	}
	r := []rune(t)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// prOutput is the JSON form of PR commands.
type prOutput struct {
	Repos []pr.Entry `json:"repos"`
	Error string     `json:"error,omitempty"`
}

// prJSON writes entries together with err, which then only sets the exit
// code.
func prJSON(p *output.Printer, entries []pr.Entry, err error) error {
	out := prOutput{Repos: entries}
	if out.Repos == nil {
		out.Repos = []pr.Entry{}
	}
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

func printPRTable(p *output.Printer, entries []pr.Entry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, static.PRRow(e))
	}
	if len(rows) == 0 {
		p.Println("No pull requests for the current branch")
		return
	}
	p.Print(static.RenderTable(static.PRHeaders, rows))
}
