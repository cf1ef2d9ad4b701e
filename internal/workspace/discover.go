package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/manifest"
)

// maxDiscoverDepth bounds how deep Discover looks below the root.
const maxDiscoverDepth = 3

// Discovered is an existing checkout found under a directory.
type Discovered struct {
	Name string `json:"name"`
	// Path is relative to the scanned root, slash-separated.
	Path          string `json:"path"`
	URL           string `json:"url"`
	DefaultBranch string `json:"defaultBranch"`
}

// Discover finds git repositories below root for "gr init --from-dirs".
// Repositories are not searched for nested ones, hidden directories are
// skipped, and a checkout without an origin remote is ignored.
func Discover(root string) ([]Discovered, error) {
	var found []Discovered
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !git.IsRepo(path) {
			if strings.Count(rel, string(filepath.Separator)) >= maxDiscoverDepth-1 {
				return filepath.SkipDir
			}
			return nil
		}
		if info, ok := describe(path, rel); ok {
			found = append(found, info)
		}
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return uniqueNames(found), nil
}

func describe(path, rel string) (Discovered, bool) {
	r, err := git.Open(path)
	if err != nil {
		return Discovered{}, false
	}
	url, err := r.RemoteURL("origin")
	if err != nil || url == "" {
		return Discovered{}, false
	}
	branch := manifest.DefaultBranch
	if b, err := r.CurrentBranch(); err == nil && b != "" && !r.IsDetached() {
		branch = b
	}
	return Discovered{
		Name:          filepath.Base(path),
		Path:          filepath.ToSlash(rel),
		URL:           url,
		DefaultBranch: branch,
	}, true
}

// uniqueNames renames clashing base names to their slash path with
// dashes, e.g. services/api and tools/api become services-api and tools-api.
func uniqueNames(found []Discovered) []Discovered {
	count := make(map[string]int)
	for _, d := range found {
		count[d.Name]++
	}
	for i, d := range found {
		if count[d.Name] > 1 {
			found[i].Name = strings.ReplaceAll(d.Path, "/", "-")
		}
	}
	return found
}

// ManifestFrom builds a manifest listing discovered repos.
func ManifestFrom(found []Discovered) *manifest.Manifest {
	m := &manifest.Manifest{Version: 1, Repos: make(map[string]manifest.RepoConfig, len(found))}
	for _, d := range found {
		rc := manifest.RepoConfig{URL: d.URL, Path: d.Path}
		if d.DefaultBranch != manifest.DefaultBranch {
			rc.DefaultBranch = d.DefaultBranch
		}
		m.Repos[d.Name] = rc
	}
	return m
}
