package progress

import (
	"fmt"
	"io"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"

	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// Bar is a determinate progress bar over a fixed number of repos.
type Bar struct {
	live
	label string
}

type barModel struct {
	bar     progress.Model
	label   string
	total   int
	done    int
	updates chan advanceMsg
}

func (m barModel) Init() tea.Cmd {
	return waitFor(m.updates)
}

func (m barModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case advanceMsg:
		m.done = msg.done
		return m, waitFor(m.updates)
	default:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}
}

func (m barModel) View() tea.View {
	return tea.NewView(fmt.Sprintf("%s %s", m.bar.ViewAs(fraction(m.done, m.total)), barLabel(m.label, m.done, m.total)))
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 1
	}
	return float64(done) / float64(total)
}

func barLabel(label string, done, total int) string {
	return fmt.Sprintf("%3d%% %s (%d/%d)", int(fraction(done, total)*100), label, done, total)
}

// NewBar creates a bar over total repos writing to out.
func NewBar(out io.Writer, label string, total int) *Bar {
	return &Bar{live: newLive(out, total), label: label}
}

// Start begins drawing.
func (b *Bar) Start() {
	bar := progress.New(
		progress.WithWidth(30),
		progress.WithoutPercentage(),
		progress.WithColors(styles.Primary, styles.Success),
	)
	b.start(barModel{bar: bar, label: b.label, total: b.total, updates: b.updates})
}

// Advance records one finished repo.
func (b *Bar) Advance(repo string) { b.advance(repo) }

// Stop clears the bar.
func (b *Bar) Stop() { b.stop() }
