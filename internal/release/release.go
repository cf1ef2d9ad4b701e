// Package release computes the next workspace version and tags every
// selected repo with it.
package release

import (
	"context"
	"fmt"
	"strings"

	"github.com/blang/semver"

	"github.com/raphi011/gitgrip/internal/executor"
	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/repo"
)

// DefaultPrefix is prepended to versions when the manifest sets none.
const DefaultPrefix = "v"

// Bump selects which version component Next increments.
type Bump string

const (
	Major Bump = "major"
	Minor Bump = "minor"
	Patch Bump = "patch"
)

// ParseBump validates a --bump value.
func ParseBump(s string) (Bump, error) {
	switch b := Bump(s); b {
	case Major, Minor, Patch:
		return b, nil
	case "":
		return Patch, nil
	default:
		return "", fmt.Errorf("invalid bump %q: must be %q, %q, or %q", s, Major, Minor, Patch)
	}
}

// Next returns v with component b incremented and lower components reset.
// Pre-release and build metadata are dropped.
func Next(v semver.Version, b Bump) semver.Version {
	next := semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
	switch b {
	case Major:
		next.Major++
		next.Minor, next.Patch = 0, 0
	case Minor:
		next.Minor++
		next.Patch = 0
	default:
		next.Patch++
	}
	return next
}

// Latest returns the highest version tagged in the repo at path with
// prefix. Tags that do not parse as versions are ignored.
func Latest(ctx context.Context, path, prefix string) (semver.Version, bool, error) {
	tags, err := git.Tags(ctx, path, prefix+"*")
	if err != nil {
		return semver.Version{}, false, err
	}
	var best semver.Version
	found := false
	for _, tag := range tags {
		v, err := semver.Parse(strings.TrimPrefix(tag, prefix))
		if err != nil {
			continue
		}
		if !found || v.GT(best) {
			best, found = v, true
		}
	}
	return best, found, nil
}

// Plan is a resolved release.
type Plan struct {
	Version  semver.Version `json:"-"`
	Tag      string         `json:"tag"`
	Previous string         `json:"previous,omitempty"`
	Message  string         `json:"message"`
}

// Options configure Resolve.
type Options struct {
	// Version, when set, is used as is. Otherwise the highest version
	// tagged in any repo is bumped.
	Version string
	Bump    Bump
	Prefix  string
	// Message is the annotated tag message; "{version}" is replaced.
	Message string
}

// Resolve computes the release of repos.
func Resolve(ctx context.Context, repos []repo.RepoInfo, opts Options) (*Plan, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	plan := &Plan{}
	if opts.Version != "" {
		v, err := semver.ParseTolerant(opts.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", opts.Version, err)
		}
		plan.Version = v
	} else {
		var latest semver.Version
		found := false
		for _, r := range repos {
			if !r.Exists() {
				continue
			}
			v, ok, err := Latest(ctx, r.AbsolutePath, prefix)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", r.Name, err)
			}
			if ok && (!found || v.GT(latest)) {
				latest, found = v, true
			}
		}
		if found {
			plan.Previous = prefix + latest.String()
		}
		log.FromContext(ctx).Debug("release base", "previous", plan.Previous, "bump", opts.Bump)
		plan.Version = Next(latest, opts.Bump)
	}

	plan.Tag = prefix + plan.Version.String()
	msg := opts.Message
	if msg == "" {
		msg = "Release {version}"
	}
	plan.Message = strings.ReplaceAll(msg, "{version}", plan.Tag)
	return plan, nil
}

// TagRepo returns the executor function that tags one repo with the plan
// and optionally pushes the tag. Reference repos are skipped and an
// existing tag is left alone.
func (p *Plan) TagRepo(push, dryRun bool) executor.Func {
	return func(ctx context.Context, r repo.RepoInfo) executor.Result {
		if r.Reference {
			return executor.Skip("reference repo")
		}
		exists := git.TagExists(ctx, r.AbsolutePath, p.Tag)
		if dryRun {
			if exists {
				return executor.Noop(fmt.Sprintf("%s already exists", p.Tag))
			}
			return executor.Ok(fmt.Sprintf("would tag %s", p.Tag))
		}
		if exists {
			return executor.Noop(fmt.Sprintf("%s already exists", p.Tag))
		}
		if err := git.Tag(ctx, r.AbsolutePath, p.Tag, p.Message); err != nil {
			return executor.Fail(err)
		}
		if push {
			if err := git.PushTag(ctx, r.AbsolutePath, "origin", p.Tag); err != nil {
				return executor.Fail(fmt.Errorf("tagged %s but push failed: %w", p.Tag, err))
			}
			return executor.Ok(fmt.Sprintf("tagged and pushed %s", p.Tag))
		}
		return executor.Ok(fmt.Sprintf("tagged %s", p.Tag))
	}
}
