package git

import (
	"context"
	"errors"

	"github.com/raphi011/gitgrip/internal/cmd"
)

// gitArgs prepends -C <dir> to args if dir is non-empty.
func gitArgs(dir string, args []string) []string {
	if dir == "" {
		return args
	}
	return append([]string{"-C", dir}, args...)
}

// runGit executes a git command with context support and verbose logging.
func runGit(ctx context.Context, dir string, args ...string) error {
	return cmd.RunContext(ctx, "", "git", gitArgs(dir, args)...)
}

// outputGit executes a git command with context support and verbose logging,
// returning stdout.
func outputGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return cmd.OutputContext(ctx, "", "git", gitArgs(dir, args)...)
}

// combinedGit executes a git command and returns stdout and stderr joined.
func combinedGit(ctx context.Context, dir string, args ...string) (string, error) {
	return cmd.CombinedContext(ctx, "", "git", gitArgs(dir, args)...)
}

// envGit executes a git command with extra environment variables.
func envGit(ctx context.Context, dir string, env map[string]string, args ...string) ([]byte, error) {
	return cmd.RunWith(ctx, cmd.Options{Env: env}, "git", gitArgs(dir, args)...)
}

// Run executes an arbitrary git command in dir and returns its output.
// Used by commands that pass user arguments straight through.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := combinedGit(ctx, dir, args...)
	if err != nil {
		return out, wrap("git", dir, err)
	}
	return out, nil
}

// exitCode returns the exit code of a failed git invocation, -1 if unknown.
func exitCode(err error) int {
	var ee *cmd.ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}
