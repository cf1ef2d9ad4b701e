// Package executor runs one operation per repo, sequentially or on a
// bounded pool, and aggregates the outcomes.
//
// Per-repo errors never stop the fan-out: each visit is turned into a
// Result. In sequential mode lines are printed as repos finish; in
// parallel mode a progress bar is the only live element and lines are
// printed in input order after every worker has returned.
package executor

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/repo"
	"github.com/raphi011/gitgrip/internal/ui/progress"
)

// Outcome classifies one visit.
type Outcome int

const (
	Success Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	default:
		return "error"
	}
}

// Result is the outcome of one repo.
type Result struct {
	Repo    string  `json:"repo"`
	Outcome Outcome `json:"-"`
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	// Unchanged marks a success that did nothing, printed as an info line.
	Unchanged bool `json:"unchanged,omitempty"`
	// Silent results count in the summary but print no line.
	Silent bool `json:"-"`
	// Data carries command-specific values for JSON output.
	Data any `json:"data,omitempty"`
}

// Ok reports a success.
func Ok(msg string) Result { return Result{Outcome: Success, Message: msg} }

// Noop reports a success that changed nothing.
func Noop(msg string) Result { return Result{Outcome: Success, Message: msg, Unchanged: true} }

// Skip reports a skipped repo.
func Skip(reason string) Result { return Result{Outcome: Skipped, Message: reason} }

// Fail reports an error.
func Fail(err error) Result { return Result{Outcome: Failed, Message: err.Error()} }

// Options configure a fan-out.
type Options struct {
	// Parallel runs visits on a pool of Jobs workers.
	Parallel bool
	Jobs     int
	// Label names the operation in the progress display.
	Label string
	// IncludeMissing keeps repos that are not cloned yet.
	IncludeMissing bool
	// Progress receives the live indicator; nil means os.Stderr. It is
	// only drawn on a terminal.
	Progress io.Writer
}

// Func visits one repo.
type Func func(ctx context.Context, r repo.RepoInfo) Result

// RepoFunc visits one repo through an opened handle.
type RepoFunc func(ctx context.Context, g *git.Repo, r repo.RepoInfo) Result

// Report is the aggregate of a fan-out, with Results in input order.
type Report struct {
	Results []Result       `json:"results"`
	Summary output.Summary `json:"summary"`
	// Missing lists repos dropped because they are not cloned.
	Missing []string `json:"missing,omitempty"`
}

// Failed reports whether any visit failed.
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0
}

// Run visits every repo with fn.
func Run(ctx context.Context, repos []repo.RepoInfo, opts Options, fn Func) *Report {
	report := &Report{}
	targets := repos
	if !opts.IncludeMissing {
		targets = targets[:0:0]
		for _, r := range repos {
			if r.Exists() {
				targets = append(targets, r)
			} else {
				report.Missing = append(report.Missing, r.Name)
			}
		}
	}

	l := log.FromContext(ctx)
	p := output.FromContext(ctx)
	live := liveOutput(ctx, opts, len(targets))
	report.Results = make([]Result, len(targets))

	visit := func(i int) {
		r := targets[i]
		res := fn(ctx, r)
		res.Repo = r.Name
		res.Status = res.Outcome.String()
		report.Results[i] = res
		l.Debug("visited", "repo", r.Name, "outcome", res.Status)
	}

	if opts.Parallel && len(targets) > 1 {
		var indicator progress.Indicator = progress.Nop{}
		if live != nil {
			indicator = progress.NewBar(live, opts.Label, len(targets))
		}
		indicator.Start()
		var g errgroup.Group
		g.SetLimit(jobs(opts.Jobs))
		for i := range targets {
			g.Go(func() error {
				visit(i)
				indicator.Advance(targets[i].Name)
				return nil
			})
		}
		_ = g.Wait()
		indicator.Stop()
		for _, res := range report.Results {
			printResult(p, res)
		}
	} else {
		for i, r := range targets {
			var indicator progress.Indicator = progress.Nop{}
			if live != nil {
				indicator = progress.NewSpinner(live, opts.Label+" "+r.Name, i, len(targets))
			}
			indicator.Start()
			visit(i)
			indicator.Stop()
			printResult(p, report.Results[i])
		}
	}

	report.Summary = Summarize(report.Results)
	return report
}

// RunRepos visits every cloned repo with an opened handle. A repo that
// cannot be opened is reported as failed without calling fn.
func RunRepos(ctx context.Context, repos []repo.RepoInfo, opts Options, fn RepoFunc) *Report {
	opts.IncludeMissing = false
	return Run(ctx, repos, opts, func(ctx context.Context, r repo.RepoInfo) Result {
		g, err := git.Open(r.AbsolutePath)
		if err != nil {
			return Fail(err)
		}
		return fn(ctx, g, r)
	})
}

// Summarize counts results and collects failures in input order.
func Summarize(results []Result) output.Summary {
	var s output.Summary
	for _, res := range results {
		switch res.Outcome {
		case Success:
			s.Success++
		case Skipped:
			s.Skipped++
		default:
			s.Failed++
			s.Failures = append(s.Failures, output.Failure{Repo: res.Repo, Message: res.Message})
		}
	}
	return s
}

func jobs(n int) int {
	if n <= 0 {
		return 8
	}
	return n
}

func printResult(p *output.Printer, res Result) {
	if res.Silent {
		return
	}
	switch {
	case res.Outcome == Failed:
		p.Error(res.Repo, res.Message)
	case res.Outcome == Skipped:
		p.Skip(res.Repo, res.Message)
	case res.Unchanged:
		p.Info(res.Repo, res.Message)
	default:
		p.Success(res.Repo, res.Message)
	}
}

// liveOutput returns where to draw progress, or nil when nothing should
// be drawn.
func liveOutput(ctx context.Context, opts Options, total int) io.Writer {
	out := opts.Progress
	if out == nil {
		out = os.Stderr
	}
	if total == 0 || opts.Label == "" || log.FromContext(ctx).IsQuiet() ||
		output.FromContext(ctx).JSONMode() || !progress.Interactive(out) {
		return nil
	}
	return out
}
