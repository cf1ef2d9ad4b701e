package scripts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphi011/gitgrip/internal/manifest"
)

func TestSubstitute(t *testing.T) {
	t.Parallel()

	c := Context{
		Root:   "/work/space",
		Script: "build",
		Env:    map[string]string{"TARGET": "prod", "NOTE": "it's"},
	}

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"static", "cd {root} && echo {script}", "cd '/work/space' && echo 'build'"},
		{"env quoted", "deploy {TARGET}", "deploy 'prod'"},
		{"env raw", `echo "{TARGET:raw}"`, `echo "prod"`},
		{"default unused", "deploy {TARGET:-dev}", "deploy 'prod'"},
		{"default used", "deploy {REGION:-eu}", "deploy 'eu'"},
		{"missing", "echo {MISSING}", "echo ''"},
		{"single quote", "echo {NOTE}", `echo 'it'\''s'`},
		{"no placeholders", "make test", "make test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Substitute(tt.command, c); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestNeedsShell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want bool
	}{
		{"go test ./...", false},
		{`echo "hello world"`, false},
		{"make build && make test", true},
		{"ls | wc -l", true},
		{"echo $HOME", true},
		{"rm *.tmp", true},
	}

	for _, tt := range tests {
		if got := NeedsShell(tt.line); got != tt.want {
			t.Errorf("NeedsShell(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := Command(ctx, `echo "hello world"`, "/tmp", map[string]string{"A": "1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Args; len(got) != 2 || got[1] != "hello world" {
		t.Errorf("args = %q, want [echo, hello world]", got)
	}
	if c.Dir != "/tmp" {
		t.Errorf("dir = %q", c.Dir)
	}
	if last := c.Env[len(c.Env)-1]; last != "A=1" {
		t.Errorf("env tail = %q, want A=1", last)
	}

	c, err = Command(ctx, "echo a | tr a b", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Args[0] != "sh" || c.Args[1] != "-c" {
		t.Errorf("shell args = %q", c.Args)
	}

	if _, err := Command(ctx, "   ", "", nil); err == nil {
		t.Error("expected error for empty command")
	}
	if _, err := Command(ctx, `echo "unterminated`, "", nil); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

func TestDir(t *testing.T) {
	t.Parallel()

	root := "/ws"
	if got, err := Dir(root, ""); err != nil || got != root {
		t.Errorf("Dir(empty) = %q, %v", got, err)
	}
	if got, err := Dir(root, "frontend/app"); err != nil || got != "/ws/frontend/app" {
		t.Errorf("Dir(frontend/app) = %q, %v", got, err)
	}
	if _, err := Dir(root, "../outside"); err == nil {
		t.Error("expected escape error")
	}
}

func TestParseEnv(t *testing.T) {
	t.Parallel()

	got, err := ParseEnv([]string{"A=1", "B=x=y", "C="})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"A": "1", "B": "x=y", "C": ""}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	for _, bad := range []string{"NOEQUALS", "=value"} {
		if _, err := ParseEnv([]string{bad}); err == nil {
			t.Errorf("ParseEnv(%q) expected error", bad)
		}
	}
}

func TestEnviron(t *testing.T) {
	t.Parallel()

	env := Environ("/ws", map[string]string{"A": "1", "B": "2"}, map[string]string{"B": "override"})
	if env["A"] != "1" || env["B"] != "override" || env[EnvWorkspace] != "/ws" {
		t.Errorf("Environ = %v", env)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	scripts := map[string]manifest.Script{"build": {Command: "make"}, "test": {Command: "make test"}}
	if s, err := Lookup(scripts, "build"); err != nil || s.Command != "make" {
		t.Fatalf("Lookup(build) = %+v, %v", s, err)
	}

	_, err := Lookup(scripts, "bld")
	var unknown *UnknownScriptError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownScriptError, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "build"`) {
		t.Errorf("error = %q, want suggestion", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	got := List(map[string]manifest.Script{
		"test":  {Description: "run tests", Command: "make test"},
		"build": {Steps: []manifest.ScriptStep{{Name: "a"}, {Name: "b"}}},
	})
	if len(got) != 2 || got[0].Name != "build" || got[0].Steps != 2 || got[1].Description != "run tests" {
		t.Errorf("List = %+v", got)
	}
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	r := &Runner{
		Root:   root,
		Env:    Environ(root, map[string]string{"GREETING": "hi"}, nil),
		Stdout: &out,
		Stderr: &out,
	}

	t.Run("single command sees env", func(t *testing.T) {
		out.Reset()
		err := r.Run(ctx, "greet", manifest.Script{Command: `echo "$GREETING $GITGRIP_WORKSPACE"`})
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(out.String()); got != "hi "+root {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("steps run in cwd and stop on failure", func(t *testing.T) {
		out.Reset()
		err := r.Run(ctx, "multi", manifest.Script{Steps: []manifest.ScriptStep{
			{Name: "where", Command: "pwd", Cwd: "sub"},
			{Name: "fail", Command: "false"},
			{Name: "never", Command: "echo unreachable"},
		}})
		if err == nil || !strings.Contains(err.Error(), `step "fail" failed`) {
			t.Fatalf("err = %v", err)
		}
		if ExitCode(errors.Unwrap(err)) != 1 {
			t.Errorf("exit code = %d, want 1", ExitCode(errors.Unwrap(err)))
		}
		got := out.String()
		if !strings.Contains(got, "[1/3] where") || !strings.Contains(got, filepath.Join(root, "sub")) {
			t.Errorf("output = %q", got)
		}
		if strings.Contains(got, "unreachable") {
			t.Error("step after failure ran")
		}
	})

	t.Run("dry run", func(t *testing.T) {
		out.Reset()
		dry := *r
		dry.DryRun = true
		if err := dry.Run(ctx, "deploy", manifest.Script{Command: "deploy {script}"}); err != nil {
			t.Fatal(err)
		}
		if got := out.String(); got != "[dry-run] deploy 'deploy'\n" {
			t.Errorf("output = %q", got)
		}
	})
}
