package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/raphi011/gitgrip/internal/cmd"
)

// EnvWorkspace is exported to every command with the workspace root.
const EnvWorkspace = "GITGRIP_WORKSPACE"

// shellChars mark a command line that needs a shell.
const shellChars = "|&;<>()$`*?[]~\n"

// NeedsShell reports whether line uses shell syntax.
func NeedsShell(line string) bool {
	return strings.ContainsAny(line, shellChars)
}

// Command builds the process for line, running it in dir with env added to
// the process environment.
func Command(ctx context.Context, line, dir string, env map[string]string) (*exec.Cmd, error) {
	var c *exec.Cmd
	if NeedsShell(line) {
		c = exec.CommandContext(ctx, "sh", "-c", line)
	} else {
		args, err := shlex.Split(line)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", line, err)
		}
		if len(args) == 0 {
			return nil, errors.New("empty command")
		}
		c = exec.CommandContext(ctx, args[0], args[1:]...)
	}
	c.Dir = dir
	c.Env = append(os.Environ(), cmd.EnvList(env)...)
	return c, nil
}

// ExitCode extracts the exit status of a finished command. Commands that
// never started report -1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Environ merges the workspace env with overrides and sets
// GITGRIP_WORKSPACE.
func Environ(root string, env, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(env)+len(overrides)+1)
	for k, v := range env {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	out[EnvWorkspace] = root
	return out
}

// Dir resolves a step's cwd against the workspace root. Empty means the
// root; the result must stay inside it.
func Dir(root, cwd string) (string, error) {
	if cwd == "" {
		return root, nil
	}
	dir := filepath.Join(root, cwd)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q escapes the workspace", cwd)
	}
	return dir, nil
}

// ParseEnv parses a slice of "key=value" strings into a map.
// Returns an error if any entry doesn't contain "=".
func ParseEnv(envSlice []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, e := range envSlice {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env format %q: expected KEY=VALUE", e)
		}
		if key == "" {
			return nil, fmt.Errorf("invalid env format %q: key cannot be empty", e)
		}
		result[key] = value
	}
	return result, nil
}
