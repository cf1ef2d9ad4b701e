package griptree

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/raphi011/gitgrip/internal/storage"
)

// ConfigFile is the griptree-relative path of the griptree config.
const ConfigFile = ".gitgrip/griptree.json"

// Config is the per-griptree document.
type Config struct {
	Branch       string     `json:"branch"`
	Path         string     `json:"path"`
	CreatedAt    time.Time  `json:"createdAt"`
	CreatedBy    string     `json:"createdBy,omitempty"`
	Locked       bool       `json:"locked"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`
	LockedReason string     `json:"lockedReason,omitempty"`

	// RepoUpstreams overrides the pull target per repo, e.g. "origin/dev".
	RepoUpstreams map[string]string `json:"repoUpstreams,omitempty"`
}

// ConfigPath returns the config location inside griptree dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ConfigFile)
}

// LoadConfig reads the config of the griptree at dir and checks that it
// describes dir itself.
func LoadConfig(dir string) (*Config, error) {
	var cfg Config
	if err := storage.LoadJSON(ConfigPath(dir), &cfg); err != nil {
		return nil, fmt.Errorf("read griptree config: %w", err)
	}
	if filepath.Clean(cfg.Path) != filepath.Clean(dir) {
		return nil, fmt.Errorf("griptree config in %s points at %s", dir, cfg.Path)
	}
	return &cfg, nil
}

// Save writes the config into cfg.Path.
func (c *Config) Save() error {
	return storage.SaveJSON(ConfigPath(c.Path), c)
}

// upstreamRef matches "<remote>/<branch>" with git-legal names.
var upstreamRef = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9._/-]+$`)

// ValidateUpstream checks that ref names a remote-tracking branch.
func ValidateUpstream(ref string) error {
	if !upstreamRef.MatchString(ref) ||
		strings.Contains(ref, "..") ||
		strings.HasSuffix(ref, "/") ||
		strings.HasSuffix(ref, ".lock") ||
		strings.Contains(ref, "//") {
		return fmt.Errorf("invalid upstream %q: want <remote>/<branch>", ref)
	}
	return nil
}

// UpstreamForRepo returns the upstream override of repo, or def when none
// is configured. A malformed override is an error.
func (c *Config) UpstreamForRepo(repo, def string) (string, error) {
	ref, ok := c.RepoUpstreams[repo]
	if !ok || ref == "" {
		return def, nil
	}
	if err := ValidateUpstream(ref); err != nil {
		return "", fmt.Errorf("griptree %s, repo %s: %w", c.Branch, repo, err)
	}
	return ref, nil
}

// IsBaseMapped reports whether repo has an upstream override.
func (c *Config) IsBaseMapped(repo string) bool {
	return c.RepoUpstreams[repo] != ""
}
