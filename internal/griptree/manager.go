package griptree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/raphi011/gitgrip/internal/git"
	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/repo"
)

// ErrNotFound is returned for branches without a registered griptree.
var ErrNotFound = errors.New("griptree not found")

// LockedError rejects operations on a locked griptree without force.
type LockedError struct {
	Branch string
	Reason string
}

func (e *LockedError) Error() string {
	msg := fmt.Sprintf("griptree %q is locked", e.Branch)
	if e.Reason != "" {
		msg += fmt.Sprintf(" (%s)", e.Reason)
	}
	return msg + "; use --force to override"
}

// Manager creates and maintains the griptrees of one workspace.
type Manager struct {
	// Root is the main workspace root.
	Root     string
	Manifest *manifest.Manifest
	// ManifestDir is the manifest repo checkout, empty when the manifest
	// is not versioned.
	ManifestDir string
	Hosts       map[string]string
	Clock       clockwork.Clock
}

func (m *Manager) clock() clockwork.Clock {
	if m.Clock == nil {
		return clockwork.NewRealClock()
	}
	return m.Clock
}

// SanitizeBranch turns a branch name into a directory-safe suffix.
func SanitizeBranch(branch string) string {
	return strings.NewReplacer("/", "-", `\`, "-", " ", "-").Replace(branch)
}

// PathFor returns the griptree directory of branch: a sibling of the
// workspace named <workspace>-<sanitized branch>.
func (m *Manager) PathFor(branch string) string {
	root := filepath.Clean(m.Root)
	return filepath.Join(filepath.Dir(root), filepath.Base(root)+"-"+SanitizeBranch(branch))
}

// ManifestBranchFor returns the branch of the manifest worktree.
func ManifestBranchFor(branch string) string {
	return "griptree-" + SanitizeBranch(branch)
}

// CreateOptions tune Create.
type CreateOptions struct {
	// Upstreams maps repo names to "<remote>/<branch>" refs used as the
	// start point of new branches and as the pull target later on.
	Upstreams map[string]string
	CreatedBy string
}

// RepoResult is the outcome of one repo during Create or Remove.
type RepoResult struct {
	Name string
	Path string
	// NewBranch is set when Create made the branch rather than reusing it.
	NewBranch bool
	Err       error
}

// CreateResult summarizes Create.
type CreateResult struct {
	Path           string
	Repos          []RepoResult
	ManifestBranch string
}

// Succeeded returns the number of repos that got a worktree.
func (r *CreateResult) Succeeded() int {
	n := 0
	for _, rr := range r.Repos {
		if rr.Err == nil {
			n++
		}
	}
	return n
}

// Create lays out a griptree for branch. Worktrees are created in
// manifest order; a failing repo is reported and the rest continue. The
// registry entry is written only when at least one worktree succeeded
// and the config was saved.
func (m *Manager) Create(ctx context.Context, branch string, opts CreateOptions) (*CreateResult, error) {
	if branch == "" {
		return nil, errors.New("branch name required")
	}
	for name, ref := range opts.Upstreams {
		if _, ok := m.Manifest.Repos[name]; !ok {
			return nil, fmt.Errorf("upstream for unknown repo %q", name)
		}
		if err := ValidateUpstream(ref); err != nil {
			return nil, err
		}
	}

	reg, err := LoadRegistry(m.Root)
	if err != nil {
		return nil, err
	}
	if existing, ok := reg.Get(branch); ok {
		switch existing.Status() {
		case StatusLocked:
			return nil, &LockedError{Branch: branch, Reason: existing.LockedReason}
		case StatusActive:
			return nil, fmt.Errorf("griptree for %q already exists at %s", branch, existing.Path)
		}
		reg.Delete(branch)
	}

	path := m.PathFor(branch)
	if entries, err := os.ReadDir(path); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("%s already exists and is not empty", path)
	}
	if err := os.MkdirAll(filepath.Join(path, ".gitgrip"), 0o755); err != nil {
		return nil, fmt.Errorf("create griptree directory: %w", err)
	}

	l := log.FromContext(ctx)
	now := m.clock().Now()
	createdBy := opts.CreatedBy
	if createdBy == "" {
		createdBy = os.Getenv("USER")
	}
	res := &CreateResult{Path: path}
	pointer := &Pointer{MainWorkspace: m.Root, Branch: branch, CreatedAt: &now}

	for _, r := range repo.All(m.Manifest, m.Root, m.Hosts) {
		if r.Reference {
			pointer.Repos = append(pointer.Repos, PointerRepo{Name: r.Name, IsReference: true})
			continue
		}
		rr := m.addRepoWorktree(ctx, r, path, branch, opts.Upstreams[r.Name])
		if rr.Err != nil {
			l.Debug("griptree worktree failed", "repo", r.Name, "err", rr.Err)
		} else {
			original := ""
			if src, err := git.Open(r.AbsolutePath); err == nil {
				original, _ = src.CurrentBranch()
			}
			pointer.Repos = append(pointer.Repos, PointerRepo{Name: r.Name, OriginalBranch: original})
		}
		res.Repos = append(res.Repos, rr)
	}

	if res.Succeeded() == 0 {
		_ = os.RemoveAll(path)
		return res, fmt.Errorf("no worktree could be created for %q", branch)
	}

	if m.ManifestDir != "" && git.IsRepo(m.ManifestDir) {
		if mb, err := m.addManifestWorktree(ctx, path, branch); err != nil {
			l.Printf("warning: manifest worktree: %v\n", err)
		} else {
			res.ManifestBranch = mb
			pointer.ManifestBranch = mb
		}
	}

	cfg := &Config{
		Branch:        branch,
		Path:          path,
		CreatedAt:     now,
		CreatedBy:     createdBy,
		RepoUpstreams: opts.Upstreams,
	}
	if err := cfg.Save(); err != nil {
		return res, fmt.Errorf("save griptree config: %w", err)
	}
	if err := WritePointer(path, pointer); err != nil {
		return res, fmt.Errorf("write pointer: %w", err)
	}

	reg.Put(Entry{Path: path, Branch: branch, CreatedAt: now})
	if err := reg.Save(); err != nil {
		return res, err
	}
	return res, nil
}

func (m *Manager) addRepoWorktree(ctx context.Context, r repo.RepoInfo, griptreePath, branch, upstream string) RepoResult {
	wtPath := filepath.Join(griptreePath, filepath.FromSlash(r.Path))
	rr := RepoResult{Name: r.Name, Path: wtPath}
	if !r.Exists() {
		rr.Err = errors.New("not cloned")
		return rr
	}
	src, err := git.Open(r.AbsolutePath)
	if err != nil {
		rr.Err = err
		return rr
	}

	if src.BranchExists(branch) {
		rr.Err = git.AddWorktree(ctx, r.AbsolutePath, wtPath, git.WorktreeCheckout{Branch: branch})
		return rr
	}
	if upstream != "" && !git.RefExists(ctx, r.AbsolutePath, upstream) {
		rr.Err = fmt.Errorf("upstream %s not found", upstream)
		return rr
	}
	rr.NewBranch = true
	rr.Err = git.AddWorktree(ctx, r.AbsolutePath, wtPath, git.WorktreeCheckout{Branch: branch, Create: true, From: upstream})
	return rr
}

func (m *Manager) addManifestWorktree(ctx context.Context, griptreePath, branch string) (string, error) {
	rel, err := filepath.Rel(m.Root, m.ManifestDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("manifest dir %s is outside the workspace", m.ManifestDir)
	}
	mb := ManifestBranchFor(branch)
	src, err := git.Open(m.ManifestDir)
	if err != nil {
		return "", err
	}
	wtPath := filepath.Join(griptreePath, rel)
	if err := git.AddWorktree(ctx, m.ManifestDir, wtPath, git.WorktreeCheckout{Branch: mb, Create: !src.BranchExists(mb)}); err != nil {
		return "", err
	}
	return mb, nil
}

// ListEntry is a registry entry with its on-disk status.
type ListEntry struct {
	Entry
	Status Status `json:"status"`
}

// List returns every registered griptree, sorted by branch.
func (m *Manager) List() ([]ListEntry, error) {
	reg, err := LoadRegistry(m.Root)
	if err != nil {
		return nil, err
	}
	var out []ListEntry
	for _, e := range reg.Entries() {
		out = append(out, ListEntry{Entry: e, Status: e.Status()})
	}
	return out, nil
}

// Remove tears down the griptree of branch: its worktrees, its directory
// and its registry entry. Locked griptrees need force; without force a
// worktree with local changes stops the removal.
func (m *Manager) Remove(ctx context.Context, branch string, force bool) ([]RepoResult, error) {
	reg, err := LoadRegistry(m.Root)
	if err != nil {
		return nil, err
	}
	entry, ok := reg.Get(branch)
	if !ok {
		return nil, fmt.Errorf("%w for branch %q", ErrNotFound, branch)
	}
	locked, reason := entry.Locked, entry.LockedReason
	if cfg, err := LoadConfig(entry.Path); err == nil && cfg.Locked {
		locked, reason = true, cfg.LockedReason
	}
	if locked && !force {
		return nil, &LockedError{Branch: branch, Reason: reason}
	}

	var results []RepoResult
	if entry.Status() != StatusMissing {
		for _, r := range repo.All(m.Manifest, m.Root, m.Hosts) {
			if r.Reference {
				continue
			}
			wtPath := filepath.Join(entry.Path, filepath.FromSlash(r.Path))
			if _, err := os.Stat(wtPath); err != nil {
				continue
			}
			rr := RepoResult{Name: r.Name, Path: wtPath}
			rr.Err = git.RemoveWorktree(ctx, r.AbsolutePath, wtPath, force)
			results = append(results, rr)
			if rr.Err != nil && !force {
				return results, fmt.Errorf("remove worktree of %s: %w", r.Name, rr.Err)
			}
		}
		if m.ManifestDir != "" {
			if rel, err := filepath.Rel(m.Root, m.ManifestDir); err == nil {
				wtPath := filepath.Join(entry.Path, rel)
				if _, err := os.Stat(wtPath); err == nil {
					_ = git.RemoveWorktree(ctx, m.ManifestDir, wtPath, true)
				}
			}
		}
		if err := os.RemoveAll(entry.Path); err != nil {
			return results, fmt.Errorf("remove %s: %w", entry.Path, err)
		}
	}

	for _, r := range repo.All(m.Manifest, m.Root, m.Hosts) {
		if r.Exists() {
			_ = git.PruneWorktrees(ctx, r.AbsolutePath)
		}
	}

	reg.Delete(branch)
	return results, reg.Save()
}

// Lock marks the griptree of branch as locked.
func (m *Manager) Lock(branch, reason string) error {
	now := m.clock().Now()
	return m.setLock(branch, func(cfg *Config, e *Entry, p *Pointer) {
		cfg.Locked, cfg.LockedAt, cfg.LockedReason = true, &now, reason
		e.Locked, e.LockedReason = true, reason
		p.Locked = true
	})
}

// Unlock clears the lock of the griptree of branch.
func (m *Manager) Unlock(branch string) error {
	return m.setLock(branch, func(cfg *Config, e *Entry, p *Pointer) {
		cfg.Locked, cfg.LockedAt, cfg.LockedReason = false, nil, ""
		e.Locked, e.LockedReason = false, ""
		p.Locked = false
	})
}

func (m *Manager) setLock(branch string, apply func(*Config, *Entry, *Pointer)) error {
	reg, err := LoadRegistry(m.Root)
	if err != nil {
		return err
	}
	entry, ok := reg.Get(branch)
	if !ok {
		return fmt.Errorf("%w for branch %q", ErrNotFound, branch)
	}
	cfg, err := LoadConfig(entry.Path)
	if err != nil {
		return err
	}
	pointer, err := ReadPointer(entry.Path)
	if err != nil {
		return err
	}

	apply(cfg, &entry, pointer)
	if err := cfg.Save(); err != nil {
		return err
	}
	if err := WritePointer(entry.Path, pointer); err != nil {
		return err
	}
	reg.Put(entry)
	return reg.Save()
}
