package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ErrRepoNotFound is returned by edits that name an unknown repo.
var ErrRepoNotFound = errors.New("repo not in manifest")

// ErrRepoExists is returned by AddRepo for a name already in use.
var ErrRepoExists = errors.New("repo already in manifest")

// Editor applies in-place edits to a YAML manifest file, keeping comments
// and key order of everything it does not touch.
type Editor struct {
	path string
	doc  yaml.Node
}

// OpenEditor loads the manifest file at path for editing.
func OpenEditor(path string) (*Editor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if isJSON(data) {
		return nil, fmt.Errorf("editing JSON manifests is not supported: %s", path)
	}
	e := &Editor{path: path}
	if err := yaml.Unmarshal(data, &e.doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if e.doc.Kind != yaml.DocumentNode || len(e.doc.Content) == 0 || e.doc.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{Path: path, Err: errors.New("top level is not a mapping")}
	}
	return e, nil
}

// Save writes the edited document back atomically.
func (e *Editor) Save() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&e.doc); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := Parse(buf.Bytes()); err != nil {
		return err
	}
	return atomic.WriteFile(e.path, &buf)
}

// AddGroups adds groups to a repo, skipping ones it already has.
// Returns the groups that were actually added.
func (e *Editor) AddGroups(repo string, groups ...string) ([]string, error) {
	node, err := e.repoNode(repo)
	if err != nil {
		return nil, err
	}
	seq := ensureSeq(node, "groups")
	var added []string
	for _, g := range groups {
		if !slices.Contains(seqValues(seq), g) {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: g})
			added = append(added, g)
		}
	}
	return added, nil
}

// RemoveGroups removes groups from a repo. The groups key is dropped when
// it becomes empty. Returns the groups that were actually removed.
func (e *Editor) RemoveGroups(repo string, groups ...string) ([]string, error) {
	node, err := e.repoNode(repo)
	if err != nil {
		return nil, err
	}
	_, seq := mapValue(node, "groups")
	if seq == nil {
		return nil, nil
	}
	var removed []string
	kept := seq.Content[:0]
	for _, item := range seq.Content {
		if slices.Contains(groups, item.Value) {
			removed = append(removed, item.Value)
			continue
		}
		kept = append(kept, item)
	}
	seq.Content = kept
	if len(seq.Content) == 0 {
		deleteKey(node, "groups")
	}
	return removed, nil
}

// AddRepo appends a new repo entry.
func (e *Editor) AddRepo(name string, rc RepoConfig) error {
	repos := e.reposNode()
	if repos == nil {
		return &ParseError{Path: e.path, Err: ErrNoRepos}
	}
	if _, v := mapValue(repos, name); v != nil {
		return fmt.Errorf("%w: %s", ErrRepoExists, name)
	}
	if err := CheckPath(rc.Path); err != nil {
		return err
	}
	var value yaml.Node
	if err := value.Encode(rc); err != nil {
		return fmt.Errorf("encode repo: %w", err)
	}
	repos.Content = append(repos.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
		&value,
	)
	return nil
}

// RemoveRepo deletes a repo entry.
func (e *Editor) RemoveRepo(name string) error {
	repos := e.reposNode()
	if repos == nil || !deleteKey(repos, name) {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, name)
	}
	return nil
}

func (e *Editor) reposNode() *yaml.Node {
	_, repos := mapValue(e.doc.Content[0], "repos")
	if repos == nil || repos.Kind != yaml.MappingNode {
		return nil
	}
	return repos
}

func (e *Editor) repoNode(name string) (*yaml.Node, error) {
	repos := e.reposNode()
	if repos == nil {
		return nil, &ParseError{Path: e.path, Err: ErrNoRepos}
	}
	_, node := mapValue(repos, name)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, name)
	}
	return node, nil
}

// mapValue returns the key and value nodes for key in a mapping node.
func mapValue(m *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i], m.Content[i+1]
		}
	}
	return nil, nil
}

func deleteKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

func ensureSeq(m *yaml.Node, key string) *yaml.Node {
	if _, v := mapValue(m, key); v != nil && v.Kind == yaml.SequenceNode {
		return v
	}
	deleteKey(m, key)
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, seq)
	return seq
}

func seqValues(seq *yaml.Node) []string {
	values := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		values = append(values, item.Value)
	}
	return values
}

// Create writes m as a new YAML manifest at path, creating parent
// directories. An existing file is never overwritten.
func Create(path string, m *Manifest) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("manifest already exists: %s", path)
	}
	if err := Validate(m); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}
