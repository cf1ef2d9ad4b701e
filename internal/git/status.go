package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// StatusInfo is the working-copy state of one repository.
type StatusInfo struct {
	Branch    string `json:"branch"`
	Clean     bool   `json:"clean"`
	Staged    int    `json:"staged"`
	Modified  int    `json:"modified"`
	Untracked int    `json:"untracked"`
	Ahead     int    `json:"ahead"`
	Behind    int    `json:"behind"`

	// AheadMain and BehindMain compare HEAD with the default branch
	// (origin/<default> when it exists, the local branch otherwise).
	AheadMain  int `json:"aheadMain"`
	BehindMain int `json:"behindMain"`
}

// Changes returns the number of changed paths.
func (s StatusInfo) Changes() int {
	return s.Staged + s.Modified + s.Untracked
}

// Status computes the status of the working tree at path.
func Status(ctx context.Context, path, defaultBranch string) (StatusInfo, error) {
	r, err := Open(path)
	if err != nil {
		return StatusInfo{}, err
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		return StatusInfo{}, err
	}

	out, err := outputGit(ctx, path, "status", "--porcelain")
	if err != nil {
		return StatusInfo{}, wrap("status", path, err)
	}
	info := parsePorcelain(string(out))
	info.Branch = branch

	info.Ahead, info.Behind = aheadBehind(ctx, path, "@{upstream}")

	if defaultBranch != "" {
		base := "origin/" + defaultBranch
		if !r.RemoteBranchExists(defaultBranch, "origin") {
			base = defaultBranch
		}
		info.AheadMain, info.BehindMain = aheadBehind(ctx, path, base)
	}
	return info, nil
}

// parsePorcelain counts staged, modified and untracked entries of
// "git status --porcelain" output.
func parsePorcelain(out string) StatusInfo {
	var info StatusInfo
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 2 {
			continue
		}
		x, y := line[0], line[1]
		if x == '?' && y == '?' {
			info.Untracked++
			continue
		}
		if x != ' ' && x != '!' {
			info.Staged++
		}
		if y != ' ' && y != '!' {
			info.Modified++
		}
	}
	info.Clean = info.Staged == 0 && info.Modified == 0 && info.Untracked == 0
	return info
}

// aheadBehind counts commits HEAD has over base and base has over HEAD.
// Missing refs yield (0, 0).
func aheadBehind(ctx context.Context, path, base string) (int, int) {
	out, err := outputGit(ctx, path, "rev-list", "--left-right", "--count", base+"...HEAD")
	if err != nil {
		return 0, 0
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, 0
	}
	behind, _ := strconv.Atoi(fields[0])
	ahead, _ := strconv.Atoi(fields[1])
	return ahead, behind
}

// IsDirty returns true if the worktree has uncommitted changes or untracked files
func IsDirty(ctx context.Context, path string) bool {
	out, err := outputGit(ctx, path, "status", "--porcelain")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}

// HasStagedChanges reports whether the index differs from HEAD.
func HasStagedChanges(ctx context.Context, path string) bool {
	return runGit(ctx, path, "diff", "--cached", "--quiet") != nil
}

// Summary renders the status as a short phrase for list output.
func (s StatusInfo) Summary() string {
	if s.Clean {
		return "clean"
	}
	var parts []string
	if s.Staged > 0 {
		parts = append(parts, fmt.Sprintf("%d staged", s.Staged))
	}
	if s.Modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", s.Modified))
	}
	if s.Untracked > 0 {
		parts = append(parts, fmt.Sprintf("%d untracked", s.Untracked))
	}
	return strings.Join(parts, ", ")
}
