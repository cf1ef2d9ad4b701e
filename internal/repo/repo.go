package repo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/platform"
)

// ManifestRepoName is the name of the synthesized manifest repository.
const ManifestRepoName = "manifest"

// RepoInfo is a manifest entry resolved against a workspace root.
type RepoInfo struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	AbsolutePath  string   `json:"absolutePath"`
	URL           string   `json:"url"`
	DefaultBranch string   `json:"defaultBranch"`
	Groups        []string `json:"groups,omitempty"`
	Reference     bool     `json:"reference,omitempty"`

	Owner           string        `json:"owner"`
	Repo            string        `json:"repo"`
	PlatformType    platform.Type `json:"platformType"`
	PlatformBaseURL string        `json:"platformBaseUrl,omitempty"`
	// Local marks file:// and path remotes, which never reach a platform API.
	Local bool `json:"local,omitempty"`

	CopyFile []manifest.FileMapping `json:"-"`
	LinkFile []manifest.FileMapping `json:"-"`
	Agent    *manifest.AgentConfig  `json:"-"`
}

// Exists reports whether the repo is cloned.
func (r RepoInfo) Exists() bool {
	_, err := os.Stat(filepath.Join(r.AbsolutePath, ".git"))
	return err == nil
}

// InGroup reports whether the repo carries group g.
func (r RepoInfo) InGroup(g string) bool {
	for _, have := range r.Groups {
		if have == g {
			return true
		}
	}
	return false
}

// FromConfig resolves one manifest entry. hosts maps custom domains to
// platform types. It returns false when the path escapes root or the URL
// yields no owner/repo.
func FromConfig(name string, rc manifest.RepoConfig, root string, hosts map[string]string) (RepoInfo, bool) {
	abs, ok := resolvePath(root, rc.Path)
	if !ok {
		return RepoInfo{}, false
	}

	ref, ok := platform.ParseRepoURL(rc.URL, hosts)
	if !ok {
		return RepoInfo{}, false
	}

	info := RepoInfo{
		Name:          name,
		Path:          filepath.ToSlash(filepath.Clean(rc.Path)),
		AbsolutePath:  abs,
		URL:           rc.URL,
		DefaultBranch: rc.Branch(),
		Groups:        rc.Groups,
		Reference:     rc.Reference,
		Owner:         ref.Owner,
		Repo:          ref.Repo,
		PlatformType:  ref.Type,
		Local:         ref.Local,
		CopyFile:      rc.CopyFile,
		LinkFile:      rc.LinkFile,
		Agent:         rc.Agent,
	}
	if rc.Platform != nil {
		if t, err := platform.ParseType(rc.Platform.Type); err == nil {
			info.PlatformType = t
		}
		info.PlatformBaseURL = rc.Platform.BaseURL
	}
	return info, true
}

// resolvePath joins rel onto root and reports false unless the result
// lies strictly inside root.
func resolvePath(root, rel string) (string, bool) {
	if rel == "" || filepath.IsAbs(rel) || manifest.CheckPath(rel) != nil {
		return "", false
	}
	root = filepath.Clean(root)
	abs := filepath.Join(root, rel)
	if abs == root || !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

// ManifestRepoInfo synthesizes the RepoInfo of the manifest repository,
// rooted at manifestDir (a directory inside root). It returns false when
// the manifest declares no repository of its own.
func ManifestRepoInfo(m *manifest.Manifest, root, manifestDir string, hosts map[string]string) (RepoInfo, bool) {
	if m.Manifest == nil || m.Manifest.URL == "" {
		return RepoInfo{}, false
	}
	rel, err := filepath.Rel(root, manifestDir)
	if err != nil {
		return RepoInfo{}, false
	}
	rc := manifest.RepoConfig{
		URL:           m.Manifest.URL,
		Path:          rel,
		DefaultBranch: m.Manifest.Branch(),
		CopyFile:      m.Manifest.CopyFile,
		LinkFile:      m.Manifest.LinkFile,
	}
	return FromConfig(ManifestRepoName, rc, root, hosts)
}
