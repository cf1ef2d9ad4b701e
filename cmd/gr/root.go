package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/cache"
	"github.com/raphi011/gitgrip/internal/config"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/ui/styles"
	"github.com/raphi011/gitgrip/internal/workspace"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	repoFlags  []string
	groupFlags []string
	parallel   bool
	sequential bool

	// Shared state injected into commands
	cfg     *config.Config
	workDir string
)

// Command group IDs for organizing help output
const (
	GroupWorkspace = "workspace"
	GroupGit       = "git"
	GroupPR        = "pr"
	GroupTree      = "tree"
	GroupAutomate  = "automate"
	GroupConfig    = "config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gr",
	Short: "Multi-repo workflow tool with linked pull requests",
	Long: `gr (gitgrip) drives many git repositories as one workspace.

A manifest lists the repos of a workspace. Branch, commit, push and pull
run across all of them, pull requests opened together are linked, and
"gr pr merge" merges a linked set all-or-nothing.`,
	SilenceUsage:               true,
	SilenceErrors:              true,
	SuggestionsMinimumDistance: 2, // Enable typo suggestions
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for completion and help commands
		if cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "help" {
			return nil
		}

		// Validate mutually exclusive flags
		if verbose && quiet {
			return fmt.Errorf("--verbose and --quiet are mutually exclusive")
		}
		if parallel && sequential {
			return fmt.Errorf("--parallel and --sequential are mutually exclusive")
		}

		ctx := cmd.Context()
		ctx = log.WithLogger(ctx, log.New(os.Stderr, verbose, quiet))
		output.FromContext(ctx).SetJSON(jsonOut)

		effective := applyLocalConfig(ctx, cfg)
		cache.Shared().SetTTL(effective.CacheTTL)
		styles.SetNerdfont(effective.UI.Nerdfont)
		ctx = config.WithConfig(ctx, effective)
		cmd.SetContext(ctx)

		// Check git is available
		return git.CheckGit()
	},
	// Run is not set - shows help when no subcommand provided
}

// applyLocalConfig layers the workspace's .gitgrip/config.toml over the
// user config when the working directory is inside a workspace.
func applyLocalConfig(ctx context.Context, global *config.Config) *config.Config {
	ws, err := workspace.Find(workDir)
	if err != nil {
		return global
	}
	local, err := config.LoadLocal(ws.MainRoot)
	if err != nil {
		log.FromContext(ctx).Printf("Warning: %v\n", err)
		return global
	}
	return config.MergeLocal(global, local)
}

// errFailed marks a command whose failures were already reported.
var errFailed = errors.New("command failed")

// exitError carries the exit status of a failed child process.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Load config
	loadedCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg = &loadedCfg

	// Get working directory
	workDir, err = os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gr: failed to get working directory: %v\n", err)
		os.Exit(1)
	}

	// Create context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Add output printer (stdout for primary data)
	printer := output.New(os.Stdout)
	ctx = output.WithPrinter(ctx, printer)

	// Store context for commands to use
	rootCmd.SetContext(ctx)

	err = rootCmd.Execute()
	cancel()
	if err == nil {
		return
	}
	if errors.Is(err, errFailed) {
		os.Exit(1)
	}
	code := 1
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	if printer.JSONMode() {
		_ = printer.JSON(map[string]string{"error": err.Error()})
		os.Exit(code)
	}
	fmt.Fprintln(os.Stderr, err)
	if ee == nil {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'gr -h' for help")
	}
	os.Exit(code)
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show external commands being executed")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	pf.BoolVar(&jsonOut, "json", false, "Output as JSON")
	pf.StringSliceVarP(&repoFlags, "repo", "r", nil, "Limit to these repos (repeatable)")
	pf.StringSliceVarP(&groupFlags, "group", "g", nil, "Limit to repos in these groups (repeatable)")
	pf.BoolVar(&parallel, "parallel", false, "Run per-repo operations concurrently")
	pf.BoolVar(&sequential, "sequential", false, "Run per-repo operations one at a time")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("parallel", "sequential")

	_ = rootCmd.RegisterFlagCompletionFunc("repo", completeRepoNames)
	_ = rootCmd.RegisterFlagCompletionFunc("group", completeGroupNames)

	// Version flag
	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Add command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWorkspace, Title: "Workspace Commands:"},
		&cobra.Group{ID: GroupGit, Title: "Git Commands:"},
		&cobra.Group{ID: GroupPR, Title: "Pull Request Commands:"},
		&cobra.Group{ID: GroupTree, Title: "Griptree Commands:"},
		&cobra.Group{ID: GroupAutomate, Title: "Automation Commands:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration Commands:"},
	)

	// Workspace commands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newRepoCmd())
	rootCmd.AddCommand(newGroupCmd())

	// Git commands
	rootCmd.AddCommand(newBranchCmd())
	rootCmd.AddCommand(newCheckoutCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newCommitCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newRebaseCmd())
	rootCmd.AddCommand(newCherryPickCmd())
	rootCmd.AddCommand(newGrepCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newGCCmd())

	// PR commands
	rootCmd.AddCommand(newPrCmd())

	// Griptree commands
	rootCmd.AddCommand(newTreeCmd())

	// Automation commands
	rootCmd.AddCommand(newForallCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newEnvCmd())
	rootCmd.AddCommand(newCICmd())
	rootCmd.AddCommand(newReleaseCmd())

	// Config commands
	rootCmd.AddCommand(newManifestCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())
}
