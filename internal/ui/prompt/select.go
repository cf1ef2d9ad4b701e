package prompt

import (
	"fmt"
	"os"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/sahilm/fuzzy"

	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// maxVisible bounds the number of rows the picker draws.
const maxVisible = 12

// Option is one entry of a picker. Hint is rendered dimmed after the value.
type Option struct {
	Value string
	Hint  string
}

// SelectResult holds the result of a selection prompt.
type SelectResult struct {
	Value     string
	Index     int
	Cancelled bool
}

type selectModel struct {
	title   string
	options []Option
	values  []string

	filter  string
	visible []int // indexes into options, best match first
	cursor  int

	done      bool
	cancelled bool
	selected  int
}

func newSelectModel(title string, options []Option) selectModel {
	m := selectModel{title: title, options: options, selected: -1}
	m.values = make([]string, len(options))
	for i, o := range options {
		m.values[i] = o.Value
	}
	m.applyFilter()
	return m
}

// applyFilter ranks options against the filter. An empty filter keeps the
// original order.
func (m *selectModel) applyFilter() {
	m.visible = m.visible[:0]
	if m.filter == "" {
		for i := range m.options {
			m.visible = append(m.visible, i)
		}
	} else {
		for _, match := range fuzzy.Find(m.filter, m.values) {
			m.visible = append(m.visible, match.Index)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "enter":
		if len(m.visible) == 0 {
			return m, nil
		}
		m.selected = m.visible[m.cursor]
		m.done = true
		return m, tea.Quit
	case "ctrl+c", "esc":
		m.cancelled, m.done = true, true
		return m, tea.Quit
	case "up", "ctrl+p", "ctrl+k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "ctrl+n", "ctrl+j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "backspace":
		if m.filter != "" {
			r := []rune(m.filter)
			m.filter = string(r[:len(r)-1])
			m.applyFilter()
		}
	default:
		if key.Text != "" && key.Mod&^tea.ModShift == 0 {
			m.filter += key.Text
			m.cursor = 0
			m.applyFilter()
		}
	}
	return m, nil
}

func (m selectModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}
	var b strings.Builder
	b.WriteString(styles.PrimaryStyle.Bold(true).Render(m.title) + "\n")
	b.WriteString(styles.MutedStyle.Render("filter: ") + m.filter + "\n\n")

	if len(m.visible) == 0 {
		b.WriteString(styles.MutedStyle.Render("  no matches") + "\n")
	}
	start := 0
	if m.cursor >= maxVisible {
		start = m.cursor - maxVisible + 1
	}
	for row := start; row < len(m.visible) && row < start+maxVisible; row++ {
		o := m.options[m.visible[row]]
		line := "  " + o.Value
		if row == m.cursor {
			line = styles.PrimaryStyle.Bold(true).Render("> " + o.Value)
		}
		if o.Hint != "" {
			line += " " + styles.MutedStyle.Render(o.Hint)
		}
		b.WriteString(line + "\n")
	}
	if n := len(m.visible) - start - maxVisible; n > 0 {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  … %d more", n)) + "\n")
	}
	b.WriteString("\n" + styles.MutedStyle.Render("type to filter • ↑/↓ move • enter select • esc cancel"))
	return tea.NewView(b.String())
}

// Select shows a fuzzy-filtered picker on stderr and returns the chosen
// option.
func Select(title string, options []Option) (SelectResult, error) {
	if len(options) == 0 {
		return SelectResult{Cancelled: true}, nil
	}
	p := tea.NewProgram(newSelectModel(title, options), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return SelectResult{}, err
	}
	m := final.(selectModel)
	if m.cancelled || m.selected < 0 {
		return SelectResult{Cancelled: true}, nil
	}
	return SelectResult{Value: options[m.selected].Value, Index: m.selected}, nil
}
