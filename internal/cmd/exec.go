package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/raphi011/gitgrip/internal/log"
)

// Options tunes a single command invocation.
type Options struct {
	Dir    string            // working directory (empty = inherit)
	Env    map[string]string // extra environment, appended to os.Environ()
	Stdin  *os.File          // optional stdin
	Stream bool              // stream stdout/stderr to the process streams instead of capturing
}

// ExitError carries the exit code and captured output of a failed command.
type ExitError struct {
	Code   int
	Stdout string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// RunContext executes a command and returns stderr in the error message if it fails.
func RunContext(ctx context.Context, dir, name string, args ...string) error {
	_, err := run(ctx, Options{Dir: dir}, name, args...)
	return err
}

// OutputContext executes a command and returns stdout, with stderr in error if it fails.
func OutputContext(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return run(ctx, Options{Dir: dir}, name, args...)
}

// CombinedContext executes a command and returns stdout followed by stderr.
// Git writes progress and most diagnostics to stderr, which callers often
// need to inspect even on success.
func CombinedContext(ctx context.Context, dir, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	c.Stdout = &stdout
	c.Stderr = &stderr

	done := log.FromContext(ctx).Command(dir, name, args...)
	start := time.Now()
	err := c.Run()
	done(time.Since(start))

	combined := strings.TrimSpace(stdout.String() + stderr.String())
	if err != nil {
		if ctx.Err() != nil {
			return combined, ctx.Err()
		}
		return combined, exitError(err, stdout.String(), stderr.String())
	}
	return combined, nil
}

// RunWith executes a command with the given options and returns stdout.
func RunWith(ctx context.Context, opts Options, name string, args ...string) ([]byte, error) {
	return run(ctx, opts, name, args...)
}

func run(ctx context.Context, opts Options, name string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = opts.Dir
	if len(opts.Env) > 0 {
		c.Env = append(os.Environ(), EnvList(opts.Env)...)
	}
	if opts.Stdin != nil {
		c.Stdin = opts.Stdin
	}

	var stdout, stderr bytes.Buffer
	if opts.Stream {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	done := log.FromContext(ctx).Command(opts.Dir, name, args...)
	start := time.Now()
	err := c.Run()
	done(time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, exitError(err, stdout.String(), stderr.String())
	}
	return stdout.Bytes(), nil
}

func exitError(err error, stdout, stderr string) error {
	code := -1
	if ee, ok := err.(*exec.ExitError); ok {
		code = ee.ExitCode()
	}
	return &ExitError{Code: code, Stdout: stdout, Stderr: stderr, Err: err}
}

// EnvList converts an env map into sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}
