package prompt

import (
	"fmt"
	"testing"

	tea "charm.land/bubbletea/v2"
)

// viewText returns the plain string a view was built from.
func viewText(v tea.View) string {
	if s, ok := v.Content.(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}

func keyPress(key string) tea.KeyPressMsg {
	switch key {
	case "ctrl+c":
		return tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl}
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "backspace":
		return tea.KeyPressMsg{Code: tea.KeyBackspace}
	default:
		return tea.KeyPressMsg{Code: rune(key[0]), Text: key}
	}
}

func TestConfirmModel_Update(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		def       bool
		key       string
		answer    bool
		done      bool
		cancelled bool
	}{
		{"y confirms", false, "y", true, true, false},
		{"N declines", true, "N", false, true, false},
		{"enter takes default no", false, "enter", false, true, false},
		{"enter takes default yes", true, "enter", true, true, false},
		{"ctrl+c cancels", true, "ctrl+c", false, true, true},
		{"esc cancels", false, "esc", false, true, true},
		{"other keys are ignored", false, "x", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := confirmModel{question: "Remove griptree?", yes: tt.def}
			updated, cmd := m.Update(keyPress(tt.key))
			um := updated.(confirmModel)

			if um.answer != tt.answer {
				t.Errorf("answer = %v, want %v", um.answer, tt.answer)
			}
			if um.done != tt.done {
				t.Errorf("done = %v, want %v", um.done, tt.done)
			}
			if um.cancelled != tt.cancelled {
				t.Errorf("cancelled = %v, want %v", um.cancelled, tt.cancelled)
			}
			if (cmd != nil) != tt.done {
				t.Errorf("quit cmd returned = %v, want %v", cmd != nil, tt.done)
			}
		})
	}
}

func TestConfirmModel_View(t *testing.T) {
	t.Parallel()

	if got := viewText(confirmModel{question: "Delete api?"}.View()); got != "Delete api? [y/N] " {
		t.Errorf("View() = %q", got)
	}
	if got := viewText(confirmModel{question: "Push?", yes: true}.View()); got != "Push? [Y/n] " {
		t.Errorf("View() = %q", got)
	}
	if got := viewText(confirmModel{question: "x", done: true}.View()); got != "" {
		t.Errorf("View() after answer = %q, want empty", got)
	}
}
