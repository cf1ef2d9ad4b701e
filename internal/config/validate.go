package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Accepted values of the enum settings.
var (
	ValidPlatformTypes = []string{"github", "gitlab", "azure", "bitbucket"}
	ValidMergeMethods  = []string{"merge", "squash", "rebase"}
	ValidPullModes     = []string{"merge", "rebase"}
)

// fileSettings are the keys shared by the user and the workspace config
// file, as written. Empty values mean unset.
type fileSettings struct {
	Jobs     int
	CacheTTL string
	Merge    string
	Pull     string
	Hosts    map[string]string
}

// check reports every invalid setting at once.
func (s fileSettings) check() error {
	var errs *multierror.Error
	if s.Jobs < 0 {
		errs = multierror.Append(errs, fmt.Errorf("invalid jobs %d: must be positive", s.Jobs))
	}
	if s.CacheTTL != "" {
		if _, err := time.ParseDuration(s.CacheTTL); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalid cache_ttl %q: %w", s.CacheTTL, err))
		}
	}
	errs = multierror.Append(errs,
		oneOf(s.Merge, "merge.method", ValidMergeMethods),
		oneOf(s.Pull, "pull.mode", ValidPullModes),
	)
	for _, host := range slices.Sorted(maps.Keys(s.Hosts)) {
		errs = multierror.Append(errs, oneOf(s.Hosts[host], fmt.Sprintf("platform type for host %q", host), ValidPlatformTypes))
	}
	errs.ErrorFormat = joinErrors
	return errs.ErrorOrNil()
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// oneOf returns nil for an empty value or one listed in allowed.
func oneOf(value, field string, allowed []string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q: must be %s", field, value, formatOptions(allowed))
}

// formatOptions renders `"a", "b", or "c"`.
func formatOptions(opts []string) string {
	quoted := make([]string, len(opts))
	for i, o := range opts {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	if n := len(quoted); n > 2 {
		return strings.Join(quoted[:n-1], ", ") + ", or " + quoted[n-1]
	}
	return strings.Join(quoted, " or ")
}
