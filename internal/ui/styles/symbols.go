package styles

// Symbols is the glyph set used for per-repo lines and table cells.
type Symbols struct {
	Success string
	Skip    string
	Warn    string
	Error   string
	Info    string

	Ahead   string
	Behind  string
	Pending string

	Open   string
	Draft  string
	Merged string
	Closed string
}

var plainSymbols = Symbols{
	Success: "✓",
	Skip:    "⊘",
	Warn:    "⚠",
	Error:   "✗",
	Info:    "ℹ",
	Ahead:   "↑",
	Behind:  "↓",
	Pending: "…",
	Open:    "○",
	Draft:   "◌",
	Merged:  "●",
	Closed:  "✕",
}

var nerdSymbols = Symbols{
	Success: "\uf00c", // nf-fa-check
	Skip:    "\uf05e", // nf-fa-ban
	Warn:    "\uf071", // nf-fa-warning
	Error:   "\uf00d", // nf-fa-times
	Info:    "\uf05a", // nf-fa-info_circle
	Ahead:   "\uf062", // nf-fa-arrow_up
	Behind:  "\uf063", // nf-fa-arrow_down
	Pending: "\uf017", // nf-fa-clock_o
	Open:    "\uea64", // nf-oct-git_pull_request
	Draft:   "\uebdb", // nf-oct-git_pull_request_draft
	Merged:  "\ueafe", // nf-oct-git_merge
	Closed:  "\uebda", // nf-oct-git_pull_request_closed
}

var symbols = plainSymbols

// SetNerdfont switches between the plain and the Nerd Font glyph set.
func SetNerdfont(enabled bool) {
	if enabled {
		symbols = nerdSymbols
		return
	}
	symbols = plainSymbols
}

// CurrentSymbols returns the active glyph set.
func CurrentSymbols() Symbols {
	return symbols
}

// PRState renders a pull request state ("open", "merged", "closed") with
// its glyph. An open draft renders as draft.
func PRState(state string, draft bool) string {
	switch state {
	case "open":
		if draft {
			return MutedStyle.Render(symbols.Draft + " draft")
		}
		return SuccessStyle.Render(symbols.Open + " open")
	case "merged":
		return MergedStyle.Render(symbols.Merged + " merged")
	case "closed":
		return ErrorStyle.Render(symbols.Closed + " closed")
	}
	return state
}

// CheckState renders an aggregate status check state. Empty means the
// platform reported no checks.
func CheckState(state string) string {
	switch state {
	case "":
		return MutedStyle.Render("-")
	case "success":
		return SuccessStyle.Render(symbols.Success + " passing")
	case "failure":
		return ErrorStyle.Render(symbols.Error + " failing")
	}
	return WarningStyle.Render(symbols.Pending + " " + state)
}
