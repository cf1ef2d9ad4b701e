package config

import (
	"maps"
	"time"
)

// MergeLocal merges a workspace config into a global config,
// returning a new Config without mutating the global.
// Returns global unchanged if local is nil.
func MergeLocal(global *Config, local *LocalConfig) *Config {
	if local == nil {
		return global
	}

	merged := *global

	if local.Parallel != nil {
		merged.Parallel = *local.Parallel
	}
	if local.Jobs > 0 {
		merged.Jobs = local.Jobs
	}
	if local.CacheTTL != "" {
		// Already validated by LoadLocal.
		if ttl, err := time.ParseDuration(local.CacheTTL); err == nil {
			merged.CacheTTL = ttl
		}
	}
	if local.Merge.Method != "" {
		merged.Merge.Method = local.Merge.Method
	}
	if local.Pull.Mode != "" {
		merged.Pull.Mode = local.Pull.Mode
	}

	// Hosts merge by key, local wins.
	if len(local.Hosts) > 0 {
		merged.Hosts = make(map[string]string, len(global.Hosts)+len(local.Hosts))
		maps.Copy(merged.Hosts, global.Hosts)
		maps.Copy(merged.Hosts, local.Hosts)
	}

	return &merged
}
