package manifest

import (
	"slices"
	"sort"
)

// DefaultBranch is used for repos that do not set default_branch.
const DefaultBranch = "main"

// MergeStrategy selects how "gr pr merge" treats a set of linked PRs.
type MergeStrategy string

const (
	// MergeAllOrNothing refuses to merge unless every PR is ready and stops
	// at the first failed merge.
	MergeAllOrNothing MergeStrategy = "all-or-nothing"
	// MergeIndependent merges every ready PR on its own.
	MergeIndependent MergeStrategy = "independent"
)

// Manifest is the root workspace document.
type Manifest struct {
	Version   int                   `yaml:"version,omitempty" json:"version,omitempty"`
	Manifest  *ManifestRepoConfig   `yaml:"manifest,omitempty" json:"manifest,omitempty"`
	Repos     map[string]RepoConfig `yaml:"repos" json:"repos"`
	Settings  Settings              `yaml:"settings,omitempty" json:"settings,omitempty"`
	Workspace *WorkspaceConfig      `yaml:"workspace,omitempty" json:"workspace,omitempty"`
}

// ManifestRepoConfig describes the repository that stores the manifest itself.
type ManifestRepoConfig struct {
	URL           string        `yaml:"url" json:"url"`
	DefaultBranch string        `yaml:"default_branch,omitempty" json:"default_branch,omitempty"`
	CopyFile      []FileMapping `yaml:"copyfile,omitempty" json:"copyfile,omitempty"`
	LinkFile      []FileMapping `yaml:"linkfile,omitempty" json:"linkfile,omitempty"`
}

// RepoConfig is one entry under repos.
type RepoConfig struct {
	URL           string          `yaml:"url" json:"url"`
	Path          string          `yaml:"path" json:"path"`
	DefaultBranch string          `yaml:"default_branch,omitempty" json:"default_branch,omitempty"`
	Groups        []string        `yaml:"groups,omitempty" json:"groups,omitempty"`
	Reference     bool            `yaml:"reference,omitempty" json:"reference,omitempty"`
	CopyFile      []FileMapping   `yaml:"copyfile,omitempty" json:"copyfile,omitempty"`
	LinkFile      []FileMapping   `yaml:"linkfile,omitempty" json:"linkfile,omitempty"`
	Platform      *PlatformConfig `yaml:"platform,omitempty" json:"platform,omitempty"`
	Agent         *AgentConfig    `yaml:"agent,omitempty" json:"agent,omitempty"`
}

// FileMapping copies or links src (relative to the repo) to dest (relative
// to the workspace root).
type FileMapping struct {
	Src  string `yaml:"src" json:"src"`
	Dest string `yaml:"dest" json:"dest"`
}

// PlatformConfig overrides hosting platform detection from the URL.
type PlatformConfig struct {
	Type    string `yaml:"type" json:"type" jsonschema:"enum=github,enum=gitlab,enum=azure,enum=bitbucket"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// AgentConfig carries optional per-repo metadata for tooling.
type AgentConfig struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Language    string `yaml:"language,omitempty" json:"language,omitempty"`
	Build       string `yaml:"build,omitempty" json:"build,omitempty"`
	Test        string `yaml:"test,omitempty" json:"test,omitempty"`
	Lint        string `yaml:"lint,omitempty" json:"lint,omitempty"`
}

// Settings holds global options.
type Settings struct {
	PRPrefix      string        `yaml:"pr_prefix,omitempty" json:"pr_prefix,omitempty"`
	MergeStrategy MergeStrategy `yaml:"merge_strategy,omitempty" json:"merge_strategy,omitempty" jsonschema:"enum=all-or-nothing,enum=independent"`
}

// WorkspaceConfig holds workspace-level env, scripts, CI and release config.
type WorkspaceConfig struct {
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Scripts map[string]Script `yaml:"scripts,omitempty" json:"scripts,omitempty"`
	CI      *CIConfig         `yaml:"ci,omitempty" json:"ci,omitempty"`
	Release *ReleaseConfig    `yaml:"release,omitempty" json:"release,omitempty"`
	Agent   *AgentConfig      `yaml:"agent,omitempty" json:"agent,omitempty"`
}

// Script is either a single command or a list of steps.
type Script struct {
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Command     string       `yaml:"command,omitempty" json:"command,omitempty"`
	Cwd         string       `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Steps       []ScriptStep `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// ScriptStep is one step of a multi-step script.
type ScriptStep struct {
	Name    string `yaml:"name" json:"name"`
	Command string `yaml:"command" json:"command"`
	Cwd     string `yaml:"cwd,omitempty" json:"cwd,omitempty"`
}

// CIConfig holds named pipelines.
type CIConfig struct {
	Pipelines map[string]Pipeline `yaml:"pipelines,omitempty" json:"pipelines,omitempty"`
}

// Pipeline is an ordered list of steps run by "gr ci run".
type Pipeline struct {
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []PipelineStep `yaml:"steps" json:"steps"`
}

// PipelineStep is one command of a pipeline.
type PipelineStep struct {
	Name            string            `yaml:"name" json:"name"`
	Command         string            `yaml:"command" json:"command"`
	Cwd             string            `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Env             map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	ContinueOnError bool              `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
}

// ReleaseConfig configures "gr release".
type ReleaseConfig struct {
	TagPrefix string   `yaml:"tag_prefix,omitempty" json:"tag_prefix,omitempty"`
	Message   string   `yaml:"message,omitempty" json:"message,omitempty"`
	Groups    []string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// RepoNames returns repo names in alphabetical order.
func (m *Manifest) RepoNames() []string {
	names := make([]string, 0, len(m.Repos))
	for name := range m.Repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategy returns the configured merge strategy, defaulting to all-or-nothing.
func (m *Manifest) Strategy() MergeStrategy {
	if m.Settings.MergeStrategy == "" {
		return MergeAllOrNothing
	}
	return m.Settings.MergeStrategy
}

// Env returns the workspace env, never nil.
func (m *Manifest) Env() map[string]string {
	if m.Workspace == nil || m.Workspace.Env == nil {
		return map[string]string{}
	}
	return m.Workspace.Env
}

// Scripts returns the workspace scripts, never nil.
func (m *Manifest) Scripts() map[string]Script {
	if m.Workspace == nil || m.Workspace.Scripts == nil {
		return map[string]Script{}
	}
	return m.Workspace.Scripts
}

// Pipelines returns the CI pipelines, never nil.
func (m *Manifest) Pipelines() map[string]Pipeline {
	if m.Workspace == nil || m.Workspace.CI == nil || m.Workspace.CI.Pipelines == nil {
		return map[string]Pipeline{}
	}
	return m.Workspace.CI.Pipelines
}

// Groups returns every group name used by any repo, sorted.
func (m *Manifest) Groups() []string {
	var groups []string
	for _, rc := range m.Repos {
		for _, g := range rc.Groups {
			if !slices.Contains(groups, g) {
				groups = append(groups, g)
			}
		}
	}
	sort.Strings(groups)
	return groups
}

// Branch returns the repo's default branch.
func (rc RepoConfig) Branch() string {
	if rc.DefaultBranch == "" {
		return DefaultBranch
	}
	return rc.DefaultBranch
}

// Branch returns the manifest repo's default branch.
func (mc ManifestRepoConfig) Branch() string {
	if mc.DefaultBranch == "" {
		return DefaultBranch
	}
	return mc.DefaultBranch
}

// HasSteps reports whether the script is a multi-step script.
func (s Script) HasSteps() bool {
	return len(s.Steps) > 0
}
