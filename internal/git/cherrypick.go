package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// CherryPickOutcome partitions the result of applying a commit.
type CherryPickOutcome int

const (
	CherryPickApplied CherryPickOutcome = iota
	// CherryPickCommitNotFound means the commit is absent from this repo.
	CherryPickCommitNotFound
	// CherryPickConflict leaves the working tree mid cherry-pick.
	CherryPickConflict
	CherryPickError
)

func (o CherryPickOutcome) String() string {
	switch o {
	case CherryPickApplied:
		return "applied"
	case CherryPickCommitNotFound:
		return "not found"
	case CherryPickConflict:
		return "conflict"
	}
	return "error"
}

// CherryPickResult is the outcome for one repository.
type CherryPickResult struct {
	Outcome CherryPickOutcome
	Text    string
}

// CherryPick applies sha onto HEAD of the repository at path.
func CherryPick(ctx context.Context, path, sha string) CherryPickResult {
	if err := runGit(ctx, path, "cat-file", "-e", sha+"^{commit}"); err != nil {
		return CherryPickResult{Outcome: CherryPickCommitNotFound}
	}
	if err := WaitForIndexLock(ctx, path); err != nil {
		return CherryPickResult{Outcome: CherryPickError, Text: err.Error()}
	}

	out, err := combinedGit(ctx, path, "cherry-pick", sha)
	if err == nil {
		return CherryPickResult{Outcome: CherryPickApplied, Text: firstLine(out)}
	}
	if CherryPickInProgress(path) || strings.Contains(out, "CONFLICT") {
		return CherryPickResult{Outcome: CherryPickConflict, Text: conflictText(out)}
	}
	return CherryPickResult{Outcome: CherryPickError, Text: wrap("cherry-pick", path, err).Error()}
}

// conflictText keeps the CONFLICT lines of git's output.
func conflictText(out string) string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "CONFLICT") {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	if len(lines) == 0 {
		return firstLine(out)
	}
	return strings.Join(lines, "\n")
}

// CherryPickInProgress reports whether a cherry-pick awaits resolution.
func CherryPickInProgress(path string) bool {
	dir, err := gitDir(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, "CHERRY_PICK_HEAD"))
	return err == nil
}

// CherryPickAbort abandons an in-progress cherry-pick.
func CherryPickAbort(ctx context.Context, path string) error {
	return wrap("cherry-pick --abort", path, runGit(ctx, path, "cherry-pick", "--abort"))
}

// CherryPickContinue commits a resolved cherry-pick without an editor.
func CherryPickContinue(ctx context.Context, path string) error {
	if err := WaitForIndexLock(ctx, path); err != nil {
		return err
	}
	return wrap("cherry-pick --continue", path, runGit(ctx, path, "-c", "core.editor=true", "cherry-pick", "--continue"))
}
