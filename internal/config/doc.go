// Package config handles loading and validation of gr user configuration.
//
// Configuration is read from ~/.config/gitgrip/config.toml. GITGRIP_CONFIG
// points at a different file. A workspace may carry .gitgrip/config.toml
// whose set fields override the user config for that workspace only.
//
// # Configuration Sources (highest priority first)
//
//   - Command-line flags (--parallel, --sequential, --jobs, --method)
//   - Workspace config .gitgrip/config.toml
//   - User config file
//   - Default values
//
// # Key Settings
//
//   - parallel: run per-repo operations concurrently (default: true)
//   - jobs: upper bound of concurrent per-repo operations (default: 8)
//   - cache_ttl: lifetime of cached git status within one command (default: "5s")
//   - pull.mode: "merge" or "rebase" for sync on the default branch
//   - merge.method: "merge", "squash", or "rebase" for "gr pr merge"
//   - ui.nerdfont: use Nerd Font glyphs in per-repo output
//
// # Hosts
//
// The [hosts] section maps custom domains to platform types for self-hosted
// instances:
//
//	[hosts]
//	"github.mycompany.com" = "github"
//	"git.internal.corp" = "gitlab"
package config
