package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sahilm/fuzzy"

	"github.com/raphi011/gitgrip/internal/manifest"
)

// Filter narrows the resolved repo set.
type Filter struct {
	// Repos keeps only these names when non-empty.
	Repos []string
	// Groups keeps repos sharing at least one group when non-empty.
	Groups []string
	// IncludeReference keeps reference repos. Mutating commands leave it false.
	IncludeReference bool
}

// All resolves every manifest entry, sorted by name. Unresolvable entries
// are dropped.
func All(m *manifest.Manifest, root string, hosts map[string]string) []RepoInfo {
	var repos []RepoInfo
	for _, name := range m.RepoNames() {
		if info, ok := FromConfig(name, m.Repos[name], root, hosts); ok {
			repos = append(repos, info)
		}
	}
	return repos
}

// FilterRepos resolves the manifest and applies f.
func FilterRepos(m *manifest.Manifest, root string, f Filter, hosts map[string]string) []RepoInfo {
	return Apply(All(m, root, hosts), f)
}

// Apply filters an already resolved list, preserving its order.
func Apply(repos []RepoInfo, f Filter) []RepoInfo {
	names := mapset.NewSet(f.Repos...)
	groups := mapset.NewSet(f.Groups...)

	out := make([]RepoInfo, 0, len(repos))
	for _, r := range repos {
		if names.Cardinality() > 0 && !names.Contains(r.Name) {
			continue
		}
		if groups.Cardinality() > 0 && groups.Intersect(mapset.NewSet(r.Groups...)).Cardinality() == 0 {
			continue
		}
		if r.Reference && !f.IncludeReference {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GroupMembers maps every group to its repo names, both sorted.
func GroupMembers(m *manifest.Manifest) map[string][]string {
	members := make(map[string]mapset.Set[string])
	for name, rc := range m.Repos {
		for _, g := range rc.Groups {
			if members[g] == nil {
				members[g] = mapset.NewSet[string]()
			}
			members[g].Add(name)
		}
	}
	out := make(map[string][]string, len(members))
	for g, set := range members {
		names := set.ToSlice()
		sort.Strings(names)
		out[g] = names
	}
	return out
}

// UnknownNameError reports --repo names absent from the manifest.
type UnknownNameError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownNameError) Error() string {
	msg := fmt.Sprintf("unknown repo %q", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// CheckNames returns an *UnknownNameError for the first name that the
// manifest does not define, with fuzzy suggestions.
func CheckNames(m *manifest.Manifest, names []string) error {
	known := m.RepoNames()
	for _, name := range names {
		if _, ok := m.Repos[name]; ok {
			continue
		}
		return &UnknownNameError{Name: name, Suggestions: Suggest(name, known)}
	}
	return nil
}

// Suggest returns up to three candidates that fuzzily match name, best first.
func Suggest(name string, candidates []string) []string {
	matches := fuzzy.Find(name, candidates)
	var out []string
	for i, match := range matches {
		if i == 3 {
			break
		}
		out = append(out, match.Str)
	}
	return out
}

// CheckGroups reports a group name that no repo carries.
func CheckGroups(m *manifest.Manifest, groups []string) error {
	known := mapset.NewSet(m.Groups()...)
	for _, g := range groups {
		if !known.Contains(g) {
			msg := fmt.Sprintf("unknown group %q", g)
			if s := Suggest(g, m.Groups()); len(s) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
			}
			return errors.New(msg)
		}
	}
	return nil
}
