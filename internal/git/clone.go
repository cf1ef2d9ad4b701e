package git

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/raphi011/gitgrip/internal/log"
)

var remoteBranchNotFound = regexp.MustCompile(`Remote branch .* not found`)

// CloneResult reports how a clone was performed.
type CloneResult struct {
	// FellBack is set when the requested branch did not exist on the
	// remote and the remote HEAD was cloned instead.
	FellBack bool
}

// Clone clones url into dest. With a branch it clones that branch and,
// when git reports "Remote branch ... not found", retries without -b so
// the remote HEAD is checked out.
func Clone(ctx context.Context, url, dest, branch string) (CloneResult, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return CloneResult{}, &Error{Kind: KindIO, Op: "clone", Path: dest, Err: err}
	}

	args := []string{"clone"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, "--", url, dest)

	out, err := combinedGit(ctx, "", args...)
	if err == nil {
		return CloneResult{}, nil
	}
	if branch == "" || !remoteBranchNotFound.MatchString(out+err.Error()) {
		return CloneResult{}, wrap("clone", dest, err)
	}

	log.FromContext(ctx).Debug("branch missing on remote, cloning default", "url", url, "branch", branch)
	_ = os.RemoveAll(dest)
	if _, err := combinedGit(ctx, "", "clone", "--", url, dest); err != nil {
		return CloneResult{}, wrap("clone", dest, err)
	}
	return CloneResult{FellBack: true}, nil
}
