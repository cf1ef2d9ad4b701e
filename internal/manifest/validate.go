package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrPathEscape marks a path that would leave the workspace root.
var ErrPathEscape = errors.New("path escapes workspace root")

// ValidPlatformTypes lists the accepted platform.type values.
var ValidPlatformTypes = []string{"github", "gitlab", "azure", "bitbucket"}

// ValidationError aggregates every problem found in a manifest.
type ValidationError struct {
	Err *multierror.Error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Err.Errors))
	for _, err := range e.Err.Errors {
		msgs = append(msgs, err.Error())
	}
	return "invalid manifest: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error { return e.Err.Errors }

// Problems returns the individual validation errors.
func (e *ValidationError) Problems() []error { return e.Err.Errors }

// Validate checks repos, file mappings, groups, scripts and pipelines.
// All problems are reported at once.
func Validate(m *Manifest) error {
	var errs *multierror.Error

	if m.Manifest != nil {
		if m.Manifest.URL == "" {
			errs = multierror.Append(errs, errors.New("manifest.url is required"))
		}
		errs = validateMappings(errs, "manifest", m.Manifest.CopyFile, "copyfile")
		errs = validateMappings(errs, "manifest", m.Manifest.LinkFile, "linkfile")
	}

	for _, name := range m.RepoNames() {
		rc := m.Repos[name]
		if strings.TrimSpace(name) == "" {
			errs = multierror.Append(errs, errors.New("repo name must not be empty"))
		}
		if rc.URL == "" {
			errs = multierror.Append(errs, fmt.Errorf("repos.%s.url is required", name))
		}
		if rc.Path == "" {
			errs = multierror.Append(errs, fmt.Errorf("repos.%s.path is required", name))
		} else if err := CheckPath(rc.Path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("repos.%s.path: %w", name, err))
		}
		for i, g := range rc.Groups {
			if strings.TrimSpace(g) == "" {
				errs = multierror.Append(errs, fmt.Errorf("repos.%s.groups[%d] must not be empty", name, i))
			}
		}
		if rc.Platform != nil && !slices.Contains(ValidPlatformTypes, rc.Platform.Type) {
			errs = multierror.Append(errs, fmt.Errorf("repos.%s.platform.type %q: must be one of %s",
				name, rc.Platform.Type, strings.Join(ValidPlatformTypes, ", ")))
		}
		errs = validateMappings(errs, "repos."+name, rc.CopyFile, "copyfile")
		errs = validateMappings(errs, "repos."+name, rc.LinkFile, "linkfile")
	}

	switch m.Settings.MergeStrategy {
	case "", MergeAllOrNothing, MergeIndependent:
	default:
		errs = multierror.Append(errs, fmt.Errorf("settings.merge_strategy %q: must be %q or %q",
			m.Settings.MergeStrategy, MergeAllOrNothing, MergeIndependent))
	}

	for name, s := range m.Scripts() {
		switch {
		case s.Command != "" && len(s.Steps) > 0:
			errs = multierror.Append(errs, fmt.Errorf("workspace.scripts.%s: has both command and steps", name))
		case s.Command == "" && len(s.Steps) == 0:
			errs = multierror.Append(errs, fmt.Errorf("workspace.scripts.%s: needs a command or steps", name))
		}
		for i, step := range s.Steps {
			if step.Command == "" {
				errs = multierror.Append(errs, fmt.Errorf("workspace.scripts.%s.steps[%d]: command is required", name, i))
			}
		}
	}

	for name, p := range m.Pipelines() {
		if len(p.Steps) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("workspace.ci.pipelines.%s: has no steps", name))
		}
		for i, step := range p.Steps {
			if step.Command == "" {
				errs = multierror.Append(errs, fmt.Errorf("workspace.ci.pipelines.%s.steps[%d]: command is required", name, i))
			}
		}
	}

	if errs == nil {
		return nil
	}
	// Map iteration above is unordered for scripts and pipelines.
	slices.SortStableFunc(errs.Errors, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return &ValidationError{Err: errs}
}

func validateMappings(errs *multierror.Error, owner string, mappings []FileMapping, kind string) *multierror.Error {
	for i, fm := range mappings {
		if fm.Src == "" || fm.Dest == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s[%d]: src and dest are required", owner, kind, i))
			continue
		}
		if filepath.IsAbs(fm.Src) || strings.HasPrefix(fm.Src, "/") {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s[%d].src %q must be relative", owner, kind, i, fm.Src))
		}
		if err := CheckPath(fm.Dest); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s[%d].dest: %w", owner, kind, i, err))
		}
	}
	return errs
}

// CheckPath rejects paths that are absolute, equal to the root, or whose
// cleaned form climbs out of the root.
func CheckPath(p string) error {
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return fmt.Errorf("%q is absolute: %w", p, ErrPathEscape)
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == "." {
		return fmt.Errorf("%q is the workspace root: %w", p, ErrPathEscape)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%q: %w", p, ErrPathEscape)
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return fmt.Errorf("%q: %w", p, ErrPathEscape)
		}
	}
	return nil
}
