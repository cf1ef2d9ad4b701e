package ci

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/scripts"
	"github.com/raphi011/gitgrip/internal/storage"
)

// maxOutput bounds the captured output kept per step; the tail is kept.
const maxOutput = 64 << 10

// ErrNoResult is returned when a pipeline has never run.
var ErrNoResult = errors.New("no recorded run")

// StepResult is the outcome of one step.
type StepResult struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	Output     string `json:"output,omitempty"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID      string       `json:"runId"`
	Pipeline   string       `json:"pipeline"`
	Success    bool         `json:"success"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	DurationMs int64        `json:"durationMs"`
	Steps      []StepResult `json:"steps"`
}

// Failed returns the names of failed steps.
func (r *Result) Failed() []string {
	var out []string
	for _, s := range r.Steps {
		if !s.Success && !s.Skipped {
			out = append(out, s.Name)
		}
	}
	return out
}

// Runner executes pipelines.
type Runner struct {
	Root string
	// Env is the workspace environment; step env is layered on top.
	Env        map[string]string
	ResultsDir string
	// Out receives live step output. Nil discards it.
	Out   io.Writer
	Clock clockwork.Clock
}

func (r *Runner) clock() clockwork.Clock {
	if r.Clock == nil {
		return clockwork.NewRealClock()
	}
	return r.Clock
}

// Run executes pipeline name and records the result. The returned error is
// reserved for failures to record; a failed step is reported through
// Result.Success.
func (r *Runner) Run(ctx context.Context, name string, p manifest.Pipeline) (*Result, error) {
	clock := r.clock()
	res := &Result{
		RunID:     uuid.NewString(),
		Pipeline:  name,
		Success:   true,
		StartedAt: clock.Now(),
	}
	l := log.FromContext(ctx)
	l.Debug("ci run", "pipeline", name, "run", res.RunID, "steps", len(p.Steps))

	stopped := false
	for _, step := range p.Steps {
		if stopped {
			res.Steps = append(res.Steps, StepResult{Name: step.Name, Skipped: true, ExitCode: -1})
			continue
		}
		sr := r.step(ctx, step)
		res.Steps = append(res.Steps, sr)
		if !sr.Success {
			res.Success = false
			if !step.ContinueOnError {
				stopped = true
			}
		}
	}

	res.FinishedAt = clock.Now()
	res.DurationMs = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	if err := storage.SaveJSON(ResultPath(r.ResultsDir, name), res); err != nil {
		return res, fmt.Errorf("save ci result: %w", err)
	}
	return res, nil
}

func (r *Runner) step(ctx context.Context, step manifest.PipelineStep) StepResult {
	clock := r.clock()
	start := clock.Now()
	sr := StepResult{Name: step.Name}

	out := r.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "==> %s\n", step.Name)

	var buf bytes.Buffer
	err := func() error {
		dir, err := scripts.Dir(r.Root, step.Cwd)
		if err != nil {
			return err
		}
		env := scripts.Environ(r.Root, r.Env, step.Env)
		c, err := scripts.Command(ctx, step.Command, dir, env)
		if err != nil {
			return err
		}
		w := io.MultiWriter(&buf, out)
		c.Stdout, c.Stderr = w, w
		return c.Run()
	}()

	sr.ExitCode = scripts.ExitCode(err)
	sr.Success = err == nil
	if err != nil && sr.ExitCode == -1 {
		fmt.Fprintf(&buf, "%v\n", err)
	}
	sr.Output = tail(buf.String(), maxOutput)
	sr.DurationMs = clock.Since(start).Milliseconds()
	return sr
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// ResultPath returns the file holding the latest result of pipeline.
func ResultPath(dir, pipeline string) string {
	return filepath.Join(dir, pipeline+".json")
}

// Load reads the latest result of pipeline.
func Load(dir, pipeline string) (*Result, error) {
	var res Result
	found, err := storage.LoadJSONIfExists(ResultPath(dir, pipeline), &res)
	if err != nil {
		return nil, fmt.Errorf("read ci result %s: %w", pipeline, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", pipeline, ErrNoResult)
	}
	return &res, nil
}

// LoadAll reads every recorded result, sorted by pipeline name.
func LoadAll(dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*Result
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		res, err := Load(dir, name)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pipeline < out[j].Pipeline })
	return out, nil
}

// Info describes a declared pipeline and its latest run.
type Info struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Steps       int     `json:"steps"`
	Last        *Result `json:"last,omitempty"`
}

// List returns the declared pipelines sorted by name, each with its latest
// result when one exists.
func List(pipelines map[string]manifest.Pipeline, dir string) ([]Info, error) {
	out := make([]Info, 0, len(pipelines))
	for name, p := range pipelines {
		info := Info{Name: name, Description: p.Description, Steps: len(p.Steps)}
		res, err := Load(dir, name)
		switch {
		case err == nil:
			info.Last = res
		case !errors.Is(err, ErrNoResult):
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Lookup returns the named pipeline.
func Lookup(pipelines map[string]manifest.Pipeline, name string) (manifest.Pipeline, error) {
	p, ok := pipelines[name]
	if !ok {
		names := make([]string, 0, len(pipelines))
		for n := range pipelines {
			names = append(names, n)
		}
		sort.Strings(names)
		return manifest.Pipeline{}, fmt.Errorf("unknown pipeline %q (available: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}
