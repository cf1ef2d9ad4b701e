package griptree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/raphi011/gitgrip/internal/storage"
)

// RegistryFile is the workspace-relative path of the griptree registry.
const RegistryFile = ".gitgrip/griptrees.json"

// Status classifies a registry entry against the disk.
type Status string

const (
	StatusActive  Status = "active"
	StatusLocked  Status = "locked"
	StatusMissing Status = "missing"
)

// Entry is one registered griptree.
type Entry struct {
	Path         string    `json:"path"`
	Branch       string    `json:"branch"`
	CreatedAt    time.Time `json:"createdAt"`
	Locked       bool      `json:"locked"`
	LockedReason string    `json:"lockedReason,omitempty"`
}

// Status reports whether the entry's directory exists and is locked.
func (e Entry) Status() Status {
	if info, err := os.Stat(e.Path); err != nil || !info.IsDir() {
		return StatusMissing
	}
	if e.Locked {
		return StatusLocked
	}
	return StatusActive
}

// Registry holds every griptree of a workspace, keyed by branch.
type Registry struct {
	Griptrees map[string]Entry `json:"griptrees"`

	path string
}

// RegistryPath returns the registry location of a workspace root.
func RegistryPath(root string) string {
	return filepath.Join(root, RegistryFile)
}

// LoadRegistry reads the registry of workspace root. A missing file
// yields an empty registry.
func LoadRegistry(root string) (*Registry, error) {
	reg := &Registry{Griptrees: make(map[string]Entry), path: RegistryPath(root)}
	if _, err := storage.LoadJSONIfExists(reg.path, reg); err != nil {
		return nil, fmt.Errorf("read griptree registry: %w", err)
	}
	if reg.Griptrees == nil {
		reg.Griptrees = make(map[string]Entry)
	}
	return reg, nil
}

// Save writes the registry atomically.
func (r *Registry) Save() error {
	if err := storage.SaveJSON(r.path, r); err != nil {
		return fmt.Errorf("save griptree registry: %w", err)
	}
	return nil
}

// Get returns the entry of branch.
func (r *Registry) Get(branch string) (Entry, bool) {
	e, ok := r.Griptrees[branch]
	return e, ok
}

// Put adds or replaces the entry of e.Branch.
func (r *Registry) Put(e Entry) {
	r.Griptrees[e.Branch] = e
}

// Delete removes the entry of branch and reports whether it existed.
func (r *Registry) Delete(branch string) bool {
	if _, ok := r.Griptrees[branch]; !ok {
		return false
	}
	delete(r.Griptrees, branch)
	return true
}

// Entries returns all entries sorted by branch.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.Griptrees))
	for _, e := range r.Griptrees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Branch < out[j].Branch })
	return out
}

// FindByPath returns the entry whose directory is path.
func (r *Registry) FindByPath(path string) (Entry, bool) {
	path = filepath.Clean(path)
	for _, e := range r.Griptrees {
		if filepath.Clean(e.Path) == path {
			return e, true
		}
	}
	return Entry{}, false
}
