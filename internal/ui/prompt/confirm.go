package prompt

import (
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/mattn/go-isatty"
)

// Interactive reports whether stdin and stderr are terminals, so a prompt
// can be answered.
func Interactive() bool {
	return isTTY(os.Stdin) && isTTY(os.Stderr)
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConfirmResult holds the result of a confirmation prompt.
type ConfirmResult struct {
	Confirmed bool
	Cancelled bool
}

type confirmModel struct {
	question string
	// yes is the answer enter picks.
	yes bool

	answer    bool
	done      bool
	cancelled bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.answer = true
	case "n", "N":
		m.answer = false
	case "enter":
		m.answer = m.yes
	case "ctrl+c", "q", "esc":
		m.cancelled = true
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m confirmModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}
	choices := "[y/N]"
	if m.yes {
		choices = "[Y/n]"
	}
	return tea.NewView(m.question + " " + choices + " ")
}

// Confirm asks a yes/no question on stderr. Enter picks def.
func Confirm(question string, def bool) (ConfirmResult, error) {
	p := tea.NewProgram(confirmModel{question: question, yes: def}, tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return ConfirmResult{}, err
	}
	m := final.(confirmModel)
	return ConfirmResult{Confirmed: m.answer && !m.cancelled, Cancelled: m.cancelled}, nil
}
