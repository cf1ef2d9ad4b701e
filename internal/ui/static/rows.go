package static

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/griptree"
	"github.com/raphi011/gitgrip/internal/pr"
	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// StatusHeaders are the columns of StatusRow.
var StatusHeaders = []string{"REPO", "BRANCH", "STATUS", "UPSTREAM", "DEFAULT"}

// StatusRow renders one repo of "gr status".
func StatusRow(name string, s git.StatusInfo) []string {
	state := styles.SuccessStyle.Render(styles.CurrentSymbols().Success + " clean")
	if !s.Clean {
		state = styles.WarningStyle.Render(styles.CurrentSymbols().Warn + " " + s.Summary())
	}
	branch := s.Branch
	if branch == "" {
		branch = styles.MutedStyle.Render("(detached)")
	}
	return []string{name, branch, state, aheadBehind(s.Ahead, s.Behind), aheadBehind(s.AheadMain, s.BehindMain)}
}

// MissingRow renders a repo that is not cloned.
func MissingRow(name string) []string {
	return []string{name, "", styles.MutedStyle.Render(styles.CurrentSymbols().Skip + " not cloned"), "", ""}
}

func aheadBehind(ahead, behind int) string {
	sym := styles.CurrentSymbols()
	var parts []string
	if ahead > 0 {
		parts = append(parts, fmt.Sprintf("%s%d", sym.Ahead, ahead))
	}
	if behind > 0 {
		parts = append(parts, fmt.Sprintf("%s%d", sym.Behind, behind))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// GriptreeHeaders are the columns of GriptreeRow.
var GriptreeHeaders = []string{"BRANCH", "STATUS", "PATH", "CREATED", "NOTE"}

// GriptreeRow renders one registered griptree.
func GriptreeRow(e griptree.ListEntry) []string {
	status := string(e.Status)
	switch e.Status {
	case griptree.StatusMissing:
		status = styles.ErrorStyle.Render(status)
	case griptree.StatusLocked:
		status = styles.WarningStyle.Render(status)
	default:
		status = styles.SuccessStyle.Render(status)
	}
	created := ""
	if !e.CreatedAt.IsZero() {
		created = humanize.Time(e.CreatedAt)
	}
	return []string{e.Branch, status, e.Path, created, e.LockedReason}
}

// PRHeaders are the columns of PRRow.
var PRHeaders = []string{"REPO", "PR", "STATE", "CHECKS", "APPROVED", "READY"}

// PRRow renders one repo of "gr pr status". Entries without a PR show
// the reason they were skipped or the error.
func PRRow(e pr.Entry) []string {
	name := e.Name
	if e.IsManifest {
		name += " (manifest)"
	}
	switch {
	case e.Err != nil:
		return []string{name, "", styles.ErrorStyle.Render(e.Message), "", "", ""}
	case !e.HasPR():
		return []string{name, "", styles.MutedStyle.Render(e.Skipped), "", "", ""}
	}
	row := []string{name, fmt.Sprintf("#%d", e.Number), "", "", "", ""}
	r := e.Readiness
	if r == nil {
		return row
	}
	row[2] = styles.PRState(string(r.State), r.Draft)
	row[3] = styles.CheckState(string(r.Checks))
	row[4] = "no"
	if r.Approved {
		row[4] = "yes"
	}
	if r.Ready() {
		row[5] = styles.SuccessStyle.Render(styles.CurrentSymbols().Success)
	} else {
		row[5] = styles.WarningStyle.Render(strings.Join(r.Reasons(), ", "))
	}
	return row
}
