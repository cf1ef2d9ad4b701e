package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvConfigPath overrides the user config file location.
const EnvConfigPath = "GITGRIP_CONFIG"

// Defaults for unset values.
const (
	DefaultJobs     = 8
	DefaultCacheTTL = 5 * time.Second
)

// MergeConfig holds merge-related configuration
type MergeConfig struct {
	Method string `toml:"method"` // "merge", "squash", or "rebase"
}

// PullConfig holds sync-related configuration
type PullConfig struct {
	Mode string `toml:"mode"` // "merge" or "rebase"
}

// UIConfig holds display configuration
type UIConfig struct {
	Nerdfont bool `toml:"nerdfont"`
}

// Config holds the gr configuration
type Config struct {
	Parallel bool              `toml:"parallel"`
	Jobs     int               `toml:"jobs"`
	CacheTTL time.Duration     `toml:"-"`
	Merge    MergeConfig       `toml:"merge"`
	Pull     PullConfig        `toml:"pull"`
	UI       UIConfig          `toml:"ui"`
	Hosts    map[string]string `toml:"hosts"` // domain -> platform type mapping
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Parallel: true,
		Jobs:     DefaultJobs,
		CacheTTL: DefaultCacheTTL,
		Merge:    MergeConfig{Method: "merge"},
		Pull:     PullConfig{Mode: "merge"},
	}
}

// rawConfig mirrors the file layout. Pointer fields distinguish "unset"
// from explicit zero values so defaults survive partial files.
type rawConfig struct {
	Parallel *bool             `toml:"parallel"`
	Jobs     int               `toml:"jobs"`
	CacheTTL string            `toml:"cache_ttl"`
	Merge    MergeConfig       `toml:"merge"`
	Pull     PullConfig        `toml:"pull"`
	UI       UIConfig          `toml:"ui"`
	Hosts    map[string]string `toml:"hosts"`
}

// Path returns the path to the user config file.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gitgrip", "config.toml"), nil
}

// Load reads the user config.
// Returns Default() if file doesn't exist (no error)
// Returns error only if file exists but is invalid
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads config from the given path with the same semantics as Load.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Default(), fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := fileSettings{Jobs: raw.Jobs, CacheTTL: raw.CacheTTL, Merge: raw.Merge.Method, Pull: raw.Pull.Mode, Hosts: raw.Hosts}
	if err := settings.check(); err != nil {
		return Default(), err
	}

	cfg := Default()
	if raw.Parallel != nil {
		cfg.Parallel = *raw.Parallel
	}
	if raw.Jobs > 0 {
		cfg.Jobs = raw.Jobs
	}
	if raw.CacheTTL != "" {
		cfg.CacheTTL, _ = time.ParseDuration(raw.CacheTTL)
	}
	if raw.Merge.Method != "" {
		cfg.Merge.Method = raw.Merge.Method
	}
	if raw.Pull.Mode != "" {
		cfg.Pull.Mode = raw.Pull.Mode
	}
	cfg.UI = raw.UI
	cfg.Hosts = raw.Hosts

	return cfg, nil
}

const defaultConfig = `# gr configuration

# Run per-repo operations concurrently. Override per command with
# --parallel / --sequential.
# parallel = true

# Upper bound of concurrent per-repo operations.
# jobs = 8

# How long a repo's git status stays cached within one command.
# cache_ttl = "5s"

# Sync settings
# [pull]
# mode = "merge"  # merge or rebase, applies on the default branch only

# Merge settings for "gr pr merge"
# [merge]
# method = "squash"  # merge, squash, or rebase

# [ui]
# nerdfont = true

# Host mappings for self-hosted GitHub Enterprise, GitLab, Azure DevOps
# Server or Bitbucket instances.
#
# [hosts]
# "github.mycompany.com" = "github"
# "gitlab.internal.corp" = "gitlab"
# "tfs.company.com" = "azure"
# "bitbucket.company.com" = "bitbucket"
#
# Tokens are read from GITHUB_TOKEN / GH_TOKEN, GITLAB_TOKEN,
# AZURE_DEVOPS_TOKEN and BITBUCKET_TOKEN.
`

// DefaultContent returns the commented default config file.
func DefaultContent() string {
	return defaultConfig
}

// Init creates a default user config file.
// If force is true, overwrites existing file
// Returns the path to the created file
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", errors.New("config file already exists: " + path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", err
	}

	return path, nil
}

type ctxKey struct{}

// WithConfig attaches the effective config to the context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the config attached to ctx, or defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	cfg := Default()
	return &cfg
}
