// Package output provides context-aware output for gr.
// Stdout is used for primary data output (per-repo lines, tables, JSON).
// Stderr (via log package) is used for diagnostics.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/colorprofile"

	"github.com/raphi011/gitgrip/internal/ui/styles"
)

type ctxKey struct{}

// Printer writes primary output (data, tables, JSON) to stdout.
// It is safe for concurrent use so parallel fan-out workers can share it.
type Printer struct {
	mu sync.Mutex
	// w downsamples styled text to what the destination supports.
	w    io.Writer
	raw  io.Writer
	json bool
}

// New creates a new Printer writing to the given writer.
func New(w io.Writer) *Printer {
	return &Printer{w: colorprofile.NewWriter(w, os.Environ()), raw: w}
}

// WithPrinter attaches a Printer to the context.
func WithPrinter(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext retrieves the Printer from context.
// Returns a Printer writing to os.Stdout if none is attached.
func FromContext(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout)
}

// SetJSON switches the printer into JSON mode. In JSON mode human-readable
// lines are dropped and only JSON documents are written.
func (p *Printer) SetJSON(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.json = enabled
}

// JSONMode reports whether the printer is in JSON mode.
func (p *Printer) JSONMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.json
}

// Print writes output without a newline.
func (p *Printer) Print(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return
	}
	fmt.Fprint(p.w, a...)
}

// Printf writes formatted output.
func (p *Printer) Printf(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return
	}
	fmt.Fprintf(p.w, format, a...)
}

// Println writes a line of output.
func (p *Printer) Println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return
	}
	fmt.Fprintln(p.w, a...)
}

// JSON writes v as a pretty-printed JSON document regardless of mode.
func (p *Printer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintln(p.raw, string(data))
	return err
}

// Writer returns the underlying writer, for streaming raw data such as diffs.
func (p *Printer) Writer() io.Writer {
	return p.raw
}

func (p *Printer) repoLine(symbol string, style func(...string) string, repo, msg string) {
	p.Printf("%s %s: %s\n", style(symbol), styles.RepoStyle.Render(repo), msg)
}

// Success prints a per-repo success line.
func (p *Printer) Success(repo, msg string) {
	p.repoLine(styles.CurrentSymbols().Success, styles.SuccessStyle.Render, repo, msg)
}

// Skip prints a per-repo skip line.
func (p *Printer) Skip(repo, msg string) {
	p.repoLine(styles.CurrentSymbols().Skip, styles.MutedStyle.Render, repo, msg)
}

// Warn prints a per-repo warning line.
func (p *Printer) Warn(repo, msg string) {
	p.repoLine(styles.CurrentSymbols().Warn, styles.WarningStyle.Render, repo, msg)
}

// Error prints a per-repo error line.
func (p *Printer) Error(repo, msg string) {
	p.repoLine(styles.CurrentSymbols().Error, styles.ErrorStyle.Render, repo, msg)
}

// Info prints a per-repo informational line.
func (p *Printer) Info(repo, msg string) {
	p.repoLine(styles.CurrentSymbols().Info, styles.NormalStyle.Render, repo, msg)
}

// Failure is one failed repo of a fan-out.
type Failure struct {
	Repo    string `json:"repo"`
	Message string `json:"message"`
}

// Summary is the aggregate of a fan-out.
type Summary struct {
	Success  int       `json:"success"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures,omitempty"`
}

// Summary prints the counts line followed by the failure list.
func (p *Printer) Summary(s Summary) {
	parts := []string{
		styles.SuccessStyle.Render(fmt.Sprintf("%d succeeded", s.Success)),
	}
	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		failed = styles.ErrorStyle.Render(failed)
	}
	parts = append(parts, failed, styles.MutedStyle.Render(fmt.Sprintf("%d skipped", s.Skipped)))
	p.Printf("\n%s\n", strings.Join(parts, ", "))

	if len(s.Failures) == 0 {
		return
	}
	p.Printf("\nFailed:\n")
	for _, f := range s.Failures {
		p.Printf("  %s %s: %s\n", styles.ErrorStyle.Render(styles.CurrentSymbols().Error), styles.RepoStyle.Render(f.Repo), f.Message)
	}
}
