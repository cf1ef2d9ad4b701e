// Package progress provides the live progress indicators of fan-out
// commands: a spinner for sequential runs and a bar for parallel runs.
// Both render to stderr-like writers only, so stdout stays pipeable.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/mattn/go-isatty"
)

// Indicator is a live progress display over a known number of repos.
type Indicator interface {
	Start()
	// Advance records one finished repo.
	Advance(repo string)
	Stop()
}

// Interactive reports whether w is a terminal that can host a live display.
func Interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Nop is an Indicator that draws nothing.
type Nop struct{}

func (Nop) Start()         {}
func (Nop) Advance(string) {}
func (Nop) Stop()          {}

// advanceMsg is sent to the model when a repo finishes.
type advanceMsg struct {
	done int
	repo string
}

// live runs a bubbletea program fed by a channel of advanceMsg.
type live struct {
	out   io.Writer
	total int

	mu      sync.Mutex
	program *tea.Program
	updates chan advanceMsg
	done    chan struct{}
	running bool
	count   int
}

func newLive(out io.Writer, total int) live {
	return live{
		out:     out,
		total:   total,
		updates: make(chan advanceMsg, 16),
		done:    make(chan struct{}),
	}
}

func (l *live) start(model tea.Model) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.program = tea.NewProgram(model, tea.WithoutSignalHandler(), tea.WithOutput(l.out))
	l.running = true
	go func() {
		_, _ = l.program.Run()
		close(l.done)
	}()
}

func (l *live) advance(repo string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	if !l.running {
		return
	}
	// Dropping an update only delays the display.
	select {
	case l.updates <- advanceMsg{done: l.count, repo: repo}:
	default:
	}
}

func (l *live) stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.updates)
	l.mu.Unlock()

	l.program.Quit()
	select {
	case <-l.done:
	case <-time.After(500 * time.Millisecond):
	}
	fmt.Fprint(l.out, "\r\033[K")
}

// Done returns the number of repos advanced so far.
func (l *live) Done() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func waitFor(updates chan advanceMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return tea.Quit()
		}
		return msg
	}
}
