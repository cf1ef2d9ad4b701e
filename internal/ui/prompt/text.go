package prompt

import (
	"os"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// TextOptions configure TextInput.
type TextOptions struct {
	Prompt      string
	Placeholder string
	// Initial prefills the input.
	Initial string
	// Validate rejects a submitted value; the error is shown and the
	// prompt stays open.
	Validate func(string) error
}

// TextInputResult holds the result of a text input prompt.
type TextInputResult struct {
	Value     string
	Cancelled bool
}

type textModel struct {
	opts  TextOptions
	input textinput.Model
	err   error

	done      bool
	cancelled bool
}

func newTextModel(opts TextOptions) textModel {
	in := textinput.New()
	in.Placeholder = opts.Placeholder
	in.SetValue(opts.Initial)
	in.CharLimit = 200
	in.SetWidth(60)
	in.Focus()
	return textModel{opts: opts, input: in}
}

func (m textModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m textModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "enter":
			if m.opts.Validate != nil {
				if err := m.opts.Validate(m.input.Value()); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled, m.done = true, true
			return m, tea.Quit
		}
		m.err = nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m textModel) View() tea.View {
	if m.done {
		return tea.NewView("")
	}
	s := styles.PrimaryStyle.Bold(true).Render(m.opts.Prompt) + "\n" + m.input.View()
	if m.err != nil {
		s += "\n" + styles.ErrorStyle.Render(m.err.Error())
	}
	return tea.NewView(s)
}

// TextInput reads one line on stderr.
func TextInput(opts TextOptions) (TextInputResult, error) {
	p := tea.NewProgram(newTextModel(opts), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return TextInputResult{}, err
	}
	m := final.(textModel)
	return TextInputResult{Value: m.input.Value(), Cancelled: m.cancelled}, nil
}
