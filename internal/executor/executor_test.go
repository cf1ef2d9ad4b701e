package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
)

// fakeRepos returns repos whose directories contain a .git entry, except
// for the names listed in missing.
func fakeRepos(t *testing.T, names []string, missing ...string) []repo.RepoInfo {
	t.Helper()
	root := t.TempDir()
	skip := map[string]bool{}
	for _, m := range missing {
		skip[m] = true
	}
	var repos []repo.RepoInfo
	for _, name := range names {
		abs := filepath.Join(root, name)
		if !skip[name] {
			if err := os.MkdirAll(filepath.Join(abs, ".git"), 0o755); err != nil {
				t.Fatal(err)
			}
		}
		repos = append(repos, repo.RepoInfo{Name: name, Path: name, AbsolutePath: abs})
	}
	return repos
}

func withPrinter(buf *bytes.Buffer) context.Context {
	return output.WithPrinter(context.Background(), output.New(buf))
}

func byName(ctx context.Context, r repo.RepoInfo) Result {
	switch {
	case strings.HasPrefix(r.Name, "ok"):
		return Ok("done")
	case strings.HasPrefix(r.Name, "skip"):
		return Skip("not applicable")
	case strings.HasPrefix(r.Name, "same"):
		return Noop("already exists")
	default:
		return Fail(errors.New("boom"))
	}
}

func TestRunCounts(t *testing.T) {
	t.Parallel()

	names := []string{"ok-a", "skip-b", "bad-c", "ok-d", "same-e", "gone"}
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			report := Run(withPrinter(&buf), fakeRepos(t, names, "gone"), Options{Parallel: parallel, Jobs: 2}, byName)

			s := report.Summary
			if s.Success+s.Skipped+s.Failed != len(names)-1 {
				t.Errorf("counts %+v do not cover %d visited repos", s, len(names)-1)
			}
			if s.Success != 3 || s.Skipped != 1 || s.Failed != 1 {
				t.Errorf("summary = %+v", s)
			}
			if len(s.Failures) != s.Failed || s.Failures[0].Repo != "bad-c" || s.Failures[0].Message != "boom" {
				t.Errorf("failures = %+v", s.Failures)
			}
			if len(report.Missing) != 1 || report.Missing[0] != "gone" {
				t.Errorf("missing = %v", report.Missing)
			}
			if !report.Failed() {
				t.Error("Failed() = false")
			}

			got := ansi.Strip(buf.String())
			want := []string{
				"✓ ok-a: done",
				"⊘ skip-b: not applicable",
				"✗ bad-c: boom",
				"✓ ok-d: done",
				"ℹ same-e: already exists",
			}
			if got != strings.Join(want, "\n")+"\n" {
				t.Errorf("output =\n%s\nwant lines in input order:\n%s", got, strings.Join(want, "\n"))
			}
		})
	}
}

func TestRunParallelKeepsInputOrder(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b", "c", "d", "e", "f"}
	repos := fakeRepos(t, names)
	report := Run(withPrinter(&bytes.Buffer{}), repos, Options{Parallel: true, Jobs: 6}, func(ctx context.Context, r repo.RepoInfo) Result {
		// Later repos finish first.
		time.Sleep(time.Duration(len(names)-strings.Index("abcdef", r.Name)) * 5 * time.Millisecond)
		return Ok(r.Name)
	})
	for i, res := range report.Results {
		if res.Repo != names[i] || res.Message != names[i] {
			t.Errorf("Results[%d] = %+v, want %s", i, res, names[i])
		}
	}
}

func TestRunRespectsJobLimit(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	repos := fakeRepos(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"})
	Run(withPrinter(&bytes.Buffer{}), repos, Options{Parallel: true, Jobs: 3}, func(ctx context.Context, r repo.RepoInfo) Result {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return Ok("")
	})
	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
}

func TestRunIncludeMissing(t *testing.T) {
	t.Parallel()

	var visited atomic.Int32
	repos := fakeRepos(t, []string{"present", "absent"}, "absent")
	report := Run(withPrinter(&bytes.Buffer{}), repos, Options{IncludeMissing: true}, func(ctx context.Context, r repo.RepoInfo) Result {
		visited.Add(1)
		return Ok("")
	})
	if visited.Load() != 2 || len(report.Missing) != 0 {
		t.Errorf("visited %d repos, missing %v", visited.Load(), report.Missing)
	}
}

func TestRunSilentAndJSONMode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := withPrinter(&buf)
	Run(ctx, fakeRepos(t, []string{"a"}), Options{}, func(context.Context, repo.RepoInfo) Result {
		r := Skip("nothing to do")
		r.Silent = true
		return r
	})
	if buf.Len() != 0 {
		t.Errorf("silent result printed %q", buf.String())
	}

	output.FromContext(ctx).SetJSON(true)
	report := Run(ctx, fakeRepos(t, []string{"a"}), Options{}, byName)
	if buf.Len() != 0 {
		t.Errorf("JSON mode printed %q", buf.String())
	}
	if report.Results[0].Status != "error" {
		t.Errorf("Status = %q", report.Results[0].Status)
	}
}

func TestRunRepos(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	good := filepath.Join(root, "good")
	if _, err := git.Run(context.Background(), "", "init", "-b", "main", good); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(root, "broken")
	if err := os.MkdirAll(filepath.Join(broken, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	repos := []repo.RepoInfo{
		{Name: "good", AbsolutePath: good},
		{Name: "broken", AbsolutePath: broken},
	}

	var called atomic.Int32
	report := RunRepos(withPrinter(&bytes.Buffer{}), repos, Options{Parallel: true}, func(ctx context.Context, g *git.Repo, r repo.RepoInfo) Result {
		called.Add(1)
		if g == nil {
			return Fail(errors.New("nil handle"))
		}
		return Ok("opened")
	})
	if called.Load() != 1 {
		t.Errorf("fn called %d times, want 1", called.Load())
	}
	if report.Results[0].Outcome != Success || report.Results[1].Outcome != Failed {
		t.Errorf("results = %+v", report.Results)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize([]Result{
		{Repo: "a", Outcome: Success},
		{Repo: "b", Outcome: Failed, Message: "x"},
		{Repo: "c", Outcome: Failed, Message: "y"},
	})
	if s.Success != 1 || s.Failed != 2 || len(s.Failures) != 2 || s.Failures[1].Repo != "c" {
		t.Errorf("Summarize() = %+v", s)
	}
	if Summarize(nil).Failed != 0 {
		t.Error("Summarize(nil) reported failures")
	}
}
