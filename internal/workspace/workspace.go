// Package workspace locates the gitgrip workspace a command runs in.
//
// A workspace is a directory holding a manifest under .gitgrip. A griptree
// is a sibling workspace marked by a .griptree pointer; inside one, the
// griptree directory is the root and the manifest falls back to the main
// workspace when the griptree carries no manifest worktree.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphi011/gitgrip/internal/griptree"
	"github.com/raphi011/gitgrip/internal/manifest"
)

// EnvWorkspace forces the workspace root.
const EnvWorkspace = "GITGRIP_WORKSPACE"

// ErrNotFound is returned outside of any workspace.
var ErrNotFound = errors.New("not in a gitgrip workspace (run 'gr init' first)")

// Workspace is a located workspace.
type Workspace struct {
	// Root is the directory repos are resolved against.
	Root string
	// MainRoot is the main workspace; equal to Root outside griptrees.
	MainRoot string
	// ManifestPath is the manifest file in use.
	ManifestPath string
	// ManifestDir is the directory holding ManifestPath, the manifest
	// repo checkout when the manifest is versioned.
	ManifestDir string
	// Griptree is set when Root is a griptree.
	Griptree *griptree.Pointer

	manifestRoot string
}

// Find locates the workspace containing start. GITGRIP_WORKSPACE, when
// set, names the root directly.
func Find(start string) (*Workspace, error) {
	if env := os.Getenv(EnvWorkspace); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return nil, err
		}
		ws, ok, err := at(abs)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s=%s: %w", EnvWorkspace, env, ErrNotFound)
		}
		return ws, nil
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	for {
		ws, ok, err := at(dir)
		if err != nil {
			return nil, err
		}
		if ok {
			return ws, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotFound
		}
		dir = parent
	}
}

// at reports the workspace rooted exactly at dir, if any. A pointer wins
// over a manifest, since griptrees may hold a manifest worktree.
func at(dir string) (*Workspace, bool, error) {
	if info, err := os.Lstat(filepath.Join(dir, griptree.PointerFile)); err == nil && info.Mode().IsRegular() {
		p, err := griptree.ReadPointer(dir)
		if err != nil {
			return nil, false, err
		}
		ws := &Workspace{Root: dir, MainRoot: filepath.Clean(p.MainWorkspace), Griptree: p}
		if path, err := manifest.FindPath(dir); err == nil {
			ws.setManifest(dir, path)
			return ws, true, nil
		}
		path, err := manifest.FindPath(ws.MainRoot)
		if err != nil {
			return nil, false, fmt.Errorf("griptree %s: main workspace %s: %w", dir, ws.MainRoot, err)
		}
		ws.setManifest(ws.MainRoot, path)
		return ws, true, nil
	}

	path, err := manifest.FindPath(dir)
	if err != nil {
		return nil, false, nil
	}
	ws := &Workspace{Root: dir, MainRoot: dir}
	ws.setManifest(dir, path)
	return ws, true, nil
}

func (w *Workspace) setManifest(owner, path string) {
	w.manifestRoot = owner
	w.ManifestPath = path
	w.ManifestDir = filepath.Dir(path)
}

// IsGriptree reports whether the workspace is a griptree.
func (w *Workspace) IsGriptree() bool {
	return w.Griptree != nil
}

// LoadManifest loads the manifest in use, merged with the local overlay
// of the workspace that owns it.
func (w *Workspace) LoadManifest() (*manifest.Manifest, error) {
	m, _, err := manifest.Load(w.manifestRoot)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GriptreeConfig returns the config of the griptree, nil outside griptrees.
func (w *Workspace) GriptreeConfig() (*griptree.Config, error) {
	if !w.IsGriptree() {
		return nil, nil
	}
	return griptree.LoadConfig(w.Root)
}

// StatePath is the state file of this workspace.
func (w *Workspace) StatePath() string {
	return filepath.Join(w.Root, ".gitgrip", "state.json")
}

// RegistryPath is the griptree registry, which lives in the main workspace.
func (w *Workspace) RegistryPath() string {
	return griptree.RegistryPath(w.MainRoot)
}

// CIResultsDir holds one JSON record per pipeline.
func (w *Workspace) CIResultsDir() string {
	return filepath.Join(w.Root, ".gitgrip", "ci-results")
}

// GriptreeManager returns a griptree manager for the main workspace.
func (w *Workspace) GriptreeManager(m *manifest.Manifest, hosts map[string]string) *griptree.Manager {
	mgr := &griptree.Manager{Root: w.MainRoot, Manifest: m, Hosts: hosts}
	if path, err := manifest.FindPath(w.MainRoot); err == nil {
		mgr.ManifestDir = filepath.Dir(path)
	}
	return mgr
}
