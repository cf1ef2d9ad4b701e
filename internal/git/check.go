package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/blang/semver"
)

// MinVersion is the oldest git release with every worktree subcommand gr
// uses (worktree remove and worktree prune --expire).
var MinVersion = semver.MustParse("2.17.0")

// CheckGit fails with ErrGitNotFound when no git binary is on PATH.
func CheckGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrGitNotFound
	}
	return nil
}

// Version returns the installed git version. Vendor suffixes such as
// "(Apple Git-146)" or ".windows.1" are ignored.
func Version(ctx context.Context) (semver.Version, error) {
	out, err := outputGit(ctx, "", "--version")
	if err != nil {
		return semver.Version{}, err
	}
	return parseVersion(string(out))
}

func parseVersion(out string) (semver.Version, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 3 || fields[0] != "git" || fields[1] != "version" {
		return semver.Version{}, fmt.Errorf("unexpected git --version output %q", out)
	}
	parts := strings.SplitN(fields[2], ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return semver.ParseTolerant(strings.Join(parts, "."))
}

// CheckVersion fails when the installed git is older than MinVersion.
func CheckVersion(ctx context.Context) error {
	v, err := Version(ctx)
	if err != nil {
		return err
	}
	if v.LT(MinVersion) {
		return fmt.Errorf("git %s is too old: gr needs git %s or newer", v, MinVersion)
	}
	return nil
}
