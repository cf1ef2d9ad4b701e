package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repo is an opened repository. Reads use go-git; writes shell out.
type Repo struct {
	Path string
	repo *gogit.Repository
}

// Open opens the repository whose working tree is path. Linked worktrees
// are supported.
func Open(path string) (*Repo, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Kind: KindNotFound, Op: "open", Path: path, Msg: fmt.Sprintf("%s does not exist", path), Err: err}
		}
		return nil, &Error{Kind: KindIO, Op: "open", Path: path, Err: err}
	}
	r, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, &Error{Kind: KindNotARepo, Op: "open", Path: path, Msg: fmt.Sprintf("%s is not a git repository", path), Err: err}
		}
		return nil, &Error{Kind: KindGit, Op: "open", Path: path, Err: err}
	}
	return &Repo{Path: path, repo: r}, nil
}

// IsRepo reports whether path holds a git working tree.
func IsRepo(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// CurrentBranch returns the short name of HEAD, or
// "(HEAD detached at <sha7>)" when detached. An unborn branch returns its
// name.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			if sym, serr := r.repo.Storer.Reference(plumbing.HEAD); serr == nil && sym.Type() == plumbing.SymbolicReference {
				return sym.Target().Short(), nil
			}
		}
		return "", &Error{Kind: KindReference, Op: "current branch", Path: r.Path, Err: err}
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return fmt.Sprintf("(HEAD detached at %s)", head.Hash().String()[:7]), nil
}

// IsDetached reports whether HEAD points at a commit rather than a branch.
func (r *Repo) IsDetached() bool {
	head, err := r.repo.Head()
	return err == nil && !head.Name().IsBranch()
}

// HeadSHA returns the full hash of HEAD.
func (r *Repo) HeadSHA() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", &Error{Kind: KindReference, Op: "resolve HEAD", Path: r.Path, Err: err}
	}
	return head.Hash().String(), nil
}

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(name string) bool {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

// RemoteBranchExists reports whether the remote-tracking ref remote/name
// exists locally. It does not contact the remote.
func (r *Repo) RemoteBranchExists(name, remote string) bool {
	_, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, name), false)
	return err == nil
}

// ListLocal returns local branch names, sorted.
func (r *Repo) ListLocal() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, &Error{Kind: KindReference, Op: "list branches", Path: r.Path, Err: err}
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, &Error{Kind: KindReference, Op: "list branches", Path: r.Path, Err: err}
	}
	sort.Strings(names)
	return names, nil
}

// ListRemote returns the branch names tracked for remote, without the
// remote prefix and without HEAD, sorted.
func (r *Repo) ListRemote(remote string) ([]string, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, &Error{Kind: KindReference, Op: "list remote branches", Path: r.Path, Err: err}
	}
	prefix := "refs/remotes/" + remote + "/"
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		short := strings.TrimPrefix(name, prefix)
		if short != "HEAD" {
			names = append(names, short)
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Kind: KindReference, Op: "list remote branches", Path: r.Path, Err: err}
	}
	sort.Strings(names)
	return names, nil
}

// RemoteURL returns the first URL of the named remote.
func (r *Repo) RemoteURL(remote string) (string, error) {
	rem, err := r.repo.Remote(remote)
	if err != nil {
		return "", &Error{Kind: KindReference, Op: "remote url", Path: r.Path, Msg: fmt.Sprintf("remote %q not found", remote), Err: err}
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", &Error{Kind: KindReference, Op: "remote url", Path: r.Path, Msg: fmt.Sprintf("remote %q has no url", remote)}
	}
	return urls[0], nil
}

// gitDir returns the git directory of the working tree at path, following
// the "gitdir:" pointer of linked worktrees.
func gitDir(path string) (string, error) {
	dotGit := filepath.Join(path, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return dotGit, nil
	}
	content, err := os.ReadFile(dotGit)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(content))
	if idx := strings.Index(line, "\n"); idx != -1 {
		line = strings.TrimSpace(line[:idx])
	}
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", fmt.Errorf("invalid .git file format: expected 'gitdir: <path>'")
	}
	dir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(path, dir)
	}
	return filepath.Clean(dir), nil
}

// commonDir returns the shared git directory of a working tree: the main
// repository's .git for linked worktrees.
func commonDir(path string) (string, error) {
	dir, err := gitDir(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, "commondir"))
	if err != nil {
		return dir, nil
	}
	common := strings.TrimSpace(string(data))
	if !filepath.IsAbs(common) {
		common = filepath.Join(dir, common)
	}
	return filepath.Clean(common), nil
}
