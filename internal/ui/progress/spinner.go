package progress

import (
	"fmt"
	"io"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// Spinner shows "<label> (done/total) last-repo" next to a spinner.
type Spinner struct {
	live
	label string
}

type spinnerModel struct {
	spinner spinner.Model
	label   string
	total   int
	done    int
	repo    string
	updates chan advanceMsg
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitFor(m.updates))
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case advanceMsg:
		m.done, m.repo = msg.done, msg.repo
		return m, waitFor(m.updates)
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() tea.View {
	return tea.NewView(spinnerLine(m.spinner.View(), m.label, m.done, m.total, m.repo))
}

func spinnerLine(frame, label string, done, total int, repo string) string {
	line := fmt.Sprintf("%s %s (%d/%d)", frame, label, done, total)
	if repo != "" {
		line += " " + styles.MutedStyle.Render(repo)
	}
	return line
}

// NewSpinner creates a spinner over total repos writing to out, of which
// done are already finished.
func NewSpinner(out io.Writer, label string, done, total int) *Spinner {
	s := &Spinner{live: newLive(out, total), label: label}
	s.count = done
	return s
}

// Start begins the animation.
func (s *Spinner) Start() {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.PrimaryStyle
	s.start(spinnerModel{spinner: sp, label: s.label, done: s.Done(), total: s.total, updates: s.updates})
}

// Advance records one finished repo.
func (s *Spinner) Advance(repo string) { s.advance(repo) }

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() { s.stop() }
