// Package state persists branch to manifest-PR mappings and linked-PR
// records in .gitgrip/state.json.
//
// The file is read on demand and written right after a command mutates
// it. Writes go through a temp file that is renamed over the target;
// concurrent gr invocations are not coordinated.
package state

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/raphi011/gitgrip/internal/platform"
	"github.com/raphi011/gitgrip/internal/storage"
)

// LinkedPR ties one repository's PR to its manifest PR.
type LinkedPR struct {
	RepoName     string                 `json:"repoName"`
	Owner        string                 `json:"owner"`
	Repo         string                 `json:"repo"`
	Number       int                    `json:"number"`
	URL          string                 `json:"url"`
	State        platform.PRState       `json:"state"`
	Approved     bool                   `json:"approved"`
	ChecksPass   bool                   `json:"checksPass"`
	Mergeable    bool                   `json:"mergeable"`
	PlatformType platform.Type          `json:"platformType,omitempty"`
	CheckDetails []platform.CheckStatus `json:"checkDetails,omitempty"`
}

// Ready reports whether the PR is open, approved, green and mergeable.
func (l LinkedPR) Ready() bool {
	return l.State == platform.StateOpen && l.Approved && l.ChecksPass && l.Mergeable
}

// State is the on-disk document.
type State struct {
	CurrentManifestPR *int                  `json:"currentManifestPr,omitempty"`
	BranchToPR        map[string]int        `json:"branchToPr"`
	PRLinks           map[string][]LinkedPR `json:"prLinks"`

	path string
}

// New returns an empty state bound to path.
func New(path string) *State {
	return &State{
		BranchToPR: make(map[string]int),
		PRLinks:    make(map[string][]LinkedPR),
		path:       path,
	}
}

// Load reads the state file. A missing file is an empty state; a corrupt
// one is an error so state is never silently reset.
func Load(path string) (*State, error) {
	s := New(path)
	if _, err := storage.LoadJSONIfExists(path, s); err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if s.BranchToPR == nil {
		s.BranchToPR = make(map[string]int)
	}
	if s.PRLinks == nil {
		s.PRLinks = make(map[string][]LinkedPR)
	}
	s.path = path
	return s, nil
}

// Path returns the file the state was loaded from.
func (s *State) Path() string {
	return s.path
}

// Save writes the state atomically, creating .gitgrip/ when needed.
func (s *State) Save() error {
	if err := storage.SaveJSON(s.path, s); err != nil {
		return fmt.Errorf("save state %s: %w", s.path, err)
	}
	return nil
}

func key(manifestPR int) string {
	return strconv.Itoa(manifestPR)
}

// GetPRForBranch returns the manifest PR recorded for branch.
func (s *State) GetPRForBranch(branch string) (int, bool) {
	n, ok := s.BranchToPR[branch]
	return n, ok
}

// SetPRForBranch records manifestPR as the PR of branch.
func (s *State) SetPRForBranch(branch string, manifestPR int) {
	s.BranchToPR[branch] = manifestPR
}

// GetLinkedPRs returns the linked PRs of manifestPR.
func (s *State) GetLinkedPRs(manifestPR int) ([]LinkedPR, bool) {
	links, ok := s.PRLinks[key(manifestPR)]
	return links, ok
}

// SetLinkedPRs replaces the linked PRs of manifestPR. An empty list
// drops the key unless a branch still maps to manifestPR.
func (s *State) SetLinkedPRs(manifestPR int, links []LinkedPR) {
	if len(links) == 0 && !s.mapped(manifestPR) {
		delete(s.PRLinks, key(manifestPR))
		return
	}
	s.PRLinks[key(manifestPR)] = links
}

// AddLinkedPR appends link, replacing an existing record for the same repo.
func (s *State) AddLinkedPR(manifestPR int, link LinkedPR) {
	links := s.PRLinks[key(manifestPR)]
	if i := indexOf(links, link.RepoName); i >= 0 {
		links[i] = link
	} else {
		links = append(links, link)
	}
	s.PRLinks[key(manifestPR)] = links
}

// HasLinkedPR reports whether manifestPR holds a record for repoName.
func (s *State) HasLinkedPR(manifestPR int, repoName string) bool {
	return indexOf(s.PRLinks[key(manifestPR)], repoName) >= 0
}

// UpdateLinkedPR applies fn to the record of repoName under manifestPR
// and reports whether one existed.
func (s *State) UpdateLinkedPR(manifestPR int, repoName string, fn func(*LinkedPR)) bool {
	links := s.PRLinks[key(manifestPR)]
	i := indexOf(links, repoName)
	if i < 0 {
		return false
	}
	fn(&links[i])
	return true
}

// RemoveBranch forgets branch and the linked PRs of its manifest PR.
func (s *State) RemoveBranch(branch string) {
	n, ok := s.BranchToPR[branch]
	if !ok {
		return
	}
	delete(s.BranchToPR, branch)
	if !s.mapped(n) {
		delete(s.PRLinks, key(n))
	}
	if s.CurrentManifestPR != nil && *s.CurrentManifestPR == n {
		s.CurrentManifestPR = nil
	}
}

// AllLinkedPRsReady reports whether manifestPR has linked PRs and every
// one of them is ready to merge.
func (s *State) AllLinkedPRsReady(manifestPR int) bool {
	links, ok := s.GetLinkedPRs(manifestPR)
	if !ok || len(links) == 0 {
		return false
	}
	for _, l := range links {
		if !l.Ready() {
			return false
		}
	}
	return true
}

// SetCurrent marks manifestPR as the PR of the change set in progress.
func (s *State) SetCurrent(manifestPR int) {
	s.CurrentManifestPR = &manifestPR
}

// ManifestPRs returns every manifest PR number with linked records, ascending.
func (s *State) ManifestPRs() []int {
	var out []int
	for k := range s.PRLinks {
		if n, err := strconv.Atoi(k); err == nil {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// mapped reports whether any branch points at manifestPR.
func (s *State) mapped(manifestPR int) bool {
	for _, n := range s.BranchToPR {
		if n == manifestPR {
			return true
		}
	}
	return false
}

func indexOf(links []LinkedPR, repoName string) int {
	return slices.IndexFunc(links, func(l LinkedPR) bool { return l.RepoName == repoName })
}
