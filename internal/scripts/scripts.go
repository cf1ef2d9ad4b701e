package scripts

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/repo"
)

// UnknownScriptError is returned for a script name the manifest does not
// declare.
type UnknownScriptError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownScriptError) Error() string {
	msg := fmt.Sprintf("unknown script %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestions[0])
	}
	return msg
}

// Info describes one script for "gr run --list".
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command,omitempty"`
	Steps       int    `json:"steps,omitempty"`
}

// List returns the scripts sorted by name.
func List(scripts map[string]manifest.Script) []Info {
	out := make([]Info, 0, len(scripts))
	for name, s := range scripts {
		out = append(out, Info{Name: name, Description: s.Description, Command: s.Command, Steps: len(s.Steps)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named script.
func Lookup(scripts map[string]manifest.Script, name string) (manifest.Script, error) {
	if s, ok := scripts[name]; ok {
		return s, nil
	}
	names := make([]string, 0, len(scripts))
	for n := range scripts {
		names = append(names, n)
	}
	return manifest.Script{}, &UnknownScriptError{Name: name, Suggestions: repo.Suggest(name, names)}
}

// Runner executes scripts in a workspace.
type Runner struct {
	Root string
	// Env is the merged environment exported to every command.
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// DryRun prints commands instead of executing them.
	DryRun bool
}

// Run executes script name. Multi-step scripts stop at the first failing
// step.
func (r *Runner) Run(ctx context.Context, name string, s manifest.Script) error {
	if !s.HasSteps() {
		return r.exec(ctx, name, s.Command, s.Cwd)
	}
	for i, step := range s.Steps {
		fmt.Fprintf(r.Stdout, "[%d/%d] %s\n", i+1, len(s.Steps), step.Name)
		if err := r.exec(ctx, name, step.Command, step.Cwd); err != nil {
			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, name, command, cwd string) error {
	line := Substitute(command, Context{Root: r.Root, Script: name, Env: r.Env})
	dir, err := Dir(r.Root, cwd)
	if err != nil {
		return err
	}
	if r.DryRun {
		fmt.Fprintf(r.Stdout, "[dry-run] %s\n", line)
		return nil
	}

	c, err := Command(ctx, line, dir, r.Env)
	if err != nil {
		return err
	}
	c.Stdin, c.Stdout, c.Stderr = r.Stdin, r.Stdout, r.Stderr

	done := log.FromContext(ctx).Command(dir, c.Path, c.Args[1:]...)
	start := time.Now()
	err = c.Run()
	done(time.Since(start))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
