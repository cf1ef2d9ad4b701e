package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LocalConfigPath is the workspace-relative location of workspace overrides.
const LocalConfigPath = ".gitgrip/config.toml"

// LocalConfig holds per-workspace overrides.
// Pointer fields and zero-value strings indicate "not set" (inherit from global).
type LocalConfig struct {
	Parallel *bool             `toml:"parallel"`
	Jobs     int               `toml:"jobs"`
	CacheTTL string            `toml:"cache_ttl"`
	Merge    MergeConfig       `toml:"merge"`
	Pull     PullConfig        `toml:"pull"`
	Hosts    map[string]string `toml:"hosts"`
}

// LoadLocal reads the workspace config from the given workspace root.
// Returns nil (no error) if the file doesn't exist.
// Returns an error only on parse or validation failure.
func LoadLocal(workspaceRoot string) (*LocalConfig, error) {
	configFile := filepath.Join(workspaceRoot, LocalConfigPath)

	data, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read workspace config %s: %w", configFile, err)
	}

	var local LocalConfig
	if err := toml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("failed to parse workspace config %s: %w", configFile, err)
	}

	settings := fileSettings{Jobs: local.Jobs, CacheTTL: local.CacheTTL, Merge: local.Merge.Method, Pull: local.Pull.Mode, Hosts: local.Hosts}
	if err := settings.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}

	return &local, nil
}
