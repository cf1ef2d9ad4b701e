package manifest

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

// Workspace-relative manifest locations.
const (
	MainDir            = ".gitgrip/spaces/main"
	MainManifestPath   = ".gitgrip/spaces/main/gripspace.yml"
	LocalManifestPath  = ".gitgrip/spaces/local/gripspace.yml"
	LegacyDir          = ".gitgrip/manifests"
	LegacyManifestPath = ".gitgrip/manifests/manifest.yaml"
)

// ErrNotFound is returned when no manifest exists under a workspace root.
var ErrNotFound = errors.New("no gitgrip manifest found")

// legacyNames are accepted file names inside the legacy directory.
var legacyNames = []string{"manifest.yaml", "manifest.yml", "gripspace.yml"}

// FindPath returns the manifest file for a workspace root, preferring the
// spaces layout over the legacy one.
func FindPath(root string) (string, error) {
	main := filepath.Join(root, MainManifestPath)
	if fileExists(main) {
		return main, nil
	}
	for _, name := range legacyNames {
		p := filepath.Join(root, LegacyDir, name)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNotFound, root)
}

// Load reads the workspace manifest under root, merges the local overlay
// when present and validates the result.
func Load(root string) (*Manifest, string, error) {
	path, err := FindPath(root)
	if err != nil {
		return nil, "", err
	}

	m, err := ParseFile(path)
	if err != nil {
		return nil, path, err
	}

	localPath := filepath.Join(root, LocalManifestPath)
	if fileExists(localPath) {
		overlay, err := parseOverlay(localPath)
		if err != nil {
			return nil, path, err
		}
		m = Merge(m, overlay)
	}

	if err := Validate(m); err != nil {
		return nil, path, err
	}
	return m, path, nil
}

// parseOverlay parses a local overlay, which may legitimately have no repos.
func parseOverlay(path string) (*Manifest, error) {
	m, err := ParseFile(path)
	if errors.Is(err, ErrNoRepos) {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, readErr
		}
		var overlay Manifest
		if err := decodeLoose(data, &overlay); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return &overlay, nil
	}
	return m, err
}

// Merge returns base with overlay applied: repos are added or replaced by
// name, env and scripts merge by key, settings fields override when set.
// Neither input is modified.
func Merge(base, overlay *Manifest) *Manifest {
	if overlay == nil {
		return base
	}
	merged := *base

	merged.Repos = make(map[string]RepoConfig, len(base.Repos)+len(overlay.Repos))
	maps.Copy(merged.Repos, base.Repos)
	maps.Copy(merged.Repos, overlay.Repos)

	if overlay.Manifest != nil {
		merged.Manifest = overlay.Manifest
	}
	if overlay.Settings.PRPrefix != "" {
		merged.Settings.PRPrefix = overlay.Settings.PRPrefix
	}
	if overlay.Settings.MergeStrategy != "" {
		merged.Settings.MergeStrategy = overlay.Settings.MergeStrategy
	}

	if overlay.Workspace != nil {
		ws := WorkspaceConfig{}
		if base.Workspace != nil {
			ws = *base.Workspace
		}
		ws.Env = mergeMap(ws.Env, overlay.Workspace.Env)
		ws.Scripts = mergeMap(ws.Scripts, overlay.Workspace.Scripts)
		if overlay.Workspace.CI != nil {
			ci := CIConfig{}
			if ws.CI != nil {
				ci = *ws.CI
			}
			ci.Pipelines = mergeMap(ci.Pipelines, overlay.Workspace.CI.Pipelines)
			ws.CI = &ci
		}
		if overlay.Workspace.Release != nil {
			ws.Release = overlay.Workspace.Release
		}
		if overlay.Workspace.Agent != nil {
			ws.Agent = overlay.Workspace.Agent
		}
		merged.Workspace = &ws
	}
	return &merged
}

func mergeMap[V any](base, extra map[string]V) map[string]V {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]V, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
