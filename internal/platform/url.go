package platform

import (
	"net/url"
	"path/filepath"
	"strings"
)

// RepoRef is what a git remote URL tells us about a repository.
type RepoRef struct {
	Host  string
	Owner string // "ORG/PROJECT" for Azure DevOps, may contain subgroups on GitLab
	Repo  string
	Type  Type
	Local bool // file:// or bare path; never queried remotely
}

// FullName returns owner/repo.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Repo
}

// ParseRepoURL parses SSH (scp-like and ssh://), HTTP(S) and file:// git
// URLs. hosts maps custom domains to platform types. Returns false when
// no owner/repo pair can be extracted.
func ParseRepoURL(rawURL string, hosts map[string]string) (RepoRef, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return RepoRef{}, false
	}

	if ref, ok := parseLocal(rawURL); ok {
		return ref, true
	}

	host, path, ok := splitRemote(rawURL)
	if !ok {
		return RepoRef{}, false
	}

	t := DetectType(host, hosts)
	if t == Azure {
		return parseAzurePath(host, path)
	}

	segments := splitPath(path)
	if len(segments) < 2 {
		return RepoRef{}, false
	}
	return RepoRef{
		Host:  host,
		Owner: strings.Join(segments[:len(segments)-1], "/"),
		Repo:  segments[len(segments)-1],
		Type:  t,
	}, true
}

// DetectType maps a hostname to a platform type. Explicit host mappings
// win over host patterns. Unknown hosts are GitHub.
func DetectType(host string, hosts map[string]string) Type {
	if t, ok := hosts[host]; ok {
		if parsed, err := ParseType(t); err == nil {
			return parsed
		}
	}
	lower := strings.ToLower(host)
	switch {
	case lower == "dev.azure.com", lower == "ssh.dev.azure.com",
		strings.HasSuffix(lower, ".visualstudio.com"):
		return Azure
	case strings.Contains(lower, "gitlab"):
		return GitLab
	case strings.Contains(lower, "bitbucket"):
		return Bitbucket
	}
	return GitHub
}

// ExtractHost parses the hostname from a git remote URL.
func ExtractHost(rawURL string) string {
	host, _, _ := splitRemote(rawURL)
	return host
}

// splitRemote returns host and path of a remote URL.
func splitRemote(rawURL string) (string, string, bool) {
	if strings.Contains(rawURL, "://") {
		u, err := url.Parse(rawURL)
		if err != nil || u.Hostname() == "" {
			return "", "", false
		}
		switch u.Scheme {
		case "http", "https", "ssh", "git", "git+ssh":
		default:
			return "", "", false
		}
		return u.Hostname(), u.Path, true
	}

	// scp-like: [user@]host:path
	colon := strings.Index(rawURL, ":")
	if colon <= 0 {
		return "", "", false
	}
	host := rawURL[:colon]
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	if host == "" || strings.Contains(host, "/") {
		return "", "", false
	}
	return host, rawURL[colon+1:], true
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// parseAzurePath handles
// https://dev.azure.com/ORG/PROJECT/_git/REPO,
// https://ORG.visualstudio.com/PROJECT/_git/REPO and
// git@ssh.dev.azure.com:v3/ORG/PROJECT/REPO.
func parseAzurePath(host, path string) (RepoRef, bool) {
	segments := splitPath(path)
	ref := RepoRef{Host: host, Type: Azure}

	switch {
	case len(segments) == 4 && segments[0] == "v3":
		ref.Owner = segments[1] + "/" + segments[2]
		ref.Repo = segments[3]
	case len(segments) == 4 && segments[2] == "_git":
		ref.Owner = segments[0] + "/" + segments[1]
		ref.Repo = segments[3]
	case len(segments) == 3 && segments[1] == "_git" && strings.HasSuffix(strings.ToLower(host), ".visualstudio.com"):
		org := strings.SplitN(host, ".", 2)[0]
		ref.Owner = org + "/" + segments[0]
		ref.Repo = segments[2]
	default:
		return RepoRef{}, false
	}
	return ref, true
}

// parseLocal classifies file:// URLs and filesystem paths.
func parseLocal(rawURL string) (RepoRef, bool) {
	var path string
	switch {
	case strings.HasPrefix(rawURL, "file://"):
		path = strings.TrimPrefix(rawURL, "file://")
	case filepath.IsAbs(rawURL), strings.HasPrefix(rawURL, "./"), strings.HasPrefix(rawURL, "../"):
		path = rawURL
	default:
		return RepoRef{}, false
	}

	path = strings.TrimSuffix(filepath.Clean(path), ".git")
	repo := filepath.Base(path)
	owner := filepath.Base(filepath.Dir(path))
	if repo == "" || repo == "." || repo == string(filepath.Separator) {
		return RepoRef{}, false
	}
	if owner == "." || owner == string(filepath.Separator) {
		owner = "local"
	}
	return RepoRef{Owner: owner, Repo: repo, Type: GitHub, Local: true}, true
}
