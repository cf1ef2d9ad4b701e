// Package linkfile applies the copyfile and linkfile mappings of the
// manifest: files from inside a repo that are copied or symlinked to a
// location relative to the workspace root.
package linkfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/raphi011/gitgrip/internal/log"
	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/repo"
)

// Kind distinguishes copies from symlinks.
type Kind string

const (
	Copy Kind = "copy"
	Link Kind = "link"
)

// Status is the state of one mapping on disk.
type Status string

const (
	StatusOK            Status = "ok"
	StatusMissing       Status = "missing"
	StatusStale         Status = "stale"
	StatusSourceMissing Status = "source-missing"
)

// Entry is one resolved mapping.
type Entry struct {
	Repo string `json:"repo"`
	Kind Kind   `json:"kind"`
	// Src and Dest are absolute.
	Src  string `json:"src"`
	Dest string `json:"dest"`
	// RelDest is Dest relative to the workspace root.
	RelDest string `json:"relDest"`
}

// Result is the outcome of applying or checking one entry.
type Result struct {
	Entry
	Status  Status `json:"status"`
	Changed bool   `json:"changed,omitempty"`
	Err     error  `json:"-"`
	Message string `json:"error,omitempty"`
}

// Entries resolves the mappings of repos against root. Repos that are not
// cloned are skipped. Paths climbing out of the repo or the workspace are
// rejected.
func Entries(root string, repos []repo.RepoInfo) ([]Entry, error) {
	var out []Entry
	for _, r := range repos {
		if !r.Exists() {
			continue
		}
		for _, m := range []struct {
			kind     Kind
			mappings []manifest.FileMapping
		}{{Copy, r.CopyFile}, {Link, r.LinkFile}} {
			for _, fm := range m.mappings {
				if err := manifest.CheckPath(fm.Src); err != nil {
					return nil, fmt.Errorf("%s %s src: %w", r.Name, m.kind, err)
				}
				if err := manifest.CheckPath(fm.Dest); err != nil {
					return nil, fmt.Errorf("%s %s dest: %w", r.Name, m.kind, err)
				}
				out = append(out, Entry{
					Repo:    r.Name,
					Kind:    m.kind,
					Src:     filepath.Join(r.AbsolutePath, fm.Src),
					Dest:    filepath.Join(root, fm.Dest),
					RelDest: filepath.Clean(fm.Dest),
				})
			}
		}
	}
	return out, nil
}

// Apply brings every entry up to date. Entries already in place are left
// untouched.
func Apply(ctx context.Context, entries []Entry) []Result {
	l := log.FromContext(ctx)
	results := make([]Result, len(entries))
	for i, e := range entries {
		res := check(e)
		if res.Status == StatusMissing || res.Status == StatusStale {
			var err error
			if e.Kind == Copy {
				err = copyFile(e.Src, e.Dest)
			} else {
				err = symlink(e.Src, e.Dest)
			}
			if err != nil {
				res.Err = err
				res.Message = err.Error()
			} else {
				res.Status, res.Changed = StatusOK, true
			}
		}
		l.Debug("linkfile", "repo", e.Repo, "kind", e.Kind, "dest", e.RelDest, "status", res.Status, "changed", res.Changed)
		results[i] = res
	}
	return results
}

// Check reports the status of every entry without touching the disk.
func Check(entries []Entry) []Result {
	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i] = check(e)
	}
	return results
}

func check(e Entry) Result {
	res := Result{Entry: e}
	if _, err := os.Stat(e.Src); err != nil {
		res.Status = StatusSourceMissing
		res.Err = fmt.Errorf("source %s: %w", e.Src, err)
		res.Message = res.Err.Error()
		return res
	}
	info, err := os.Lstat(e.Dest)
	if err != nil {
		res.Status = StatusMissing
		return res
	}

	res.Status = StatusStale
	switch e.Kind {
	case Copy:
		if info.Mode().IsRegular() && sameContent(e.Src, e.Dest) {
			res.Status = StatusOK
		}
	case Link:
		if info.Mode()&os.ModeSymlink != 0 && pointsTo(e.Dest, e.Src) {
			res.Status = StatusOK
		}
	}
	return res
}

func sameContent(a, b string) bool {
	da, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	return bytes.Equal(da, db)
}

func pointsTo(link, target string) bool {
	dest, err := os.Readlink(link)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(link), dest)
	}
	return filepath.Clean(dest) == filepath.Clean(target)
}

// copyFile replaces dst with the content and permission bits of src.
func copyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if srcInfo.IsDir() {
		return fmt.Errorf("copyfile source %s is a directory", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if info, err := os.Lstat(dst); err == nil && !info.Mode().IsRegular() {
		if err := removeFile(dst); err != nil {
			return err
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := atomic.WriteFile(dst, f); err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode().Perm())
}

// symlink points dst at src with a path relative to dst's directory.
func symlink(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := removeFile(dst); err != nil {
		return err
	}
	rel, err := filepath.Rel(filepath.Dir(dst), src)
	if err != nil {
		rel = src
	}
	return os.Symlink(rel, dst)
}

// removeFile deletes a file or symlink at path. Directories are never
// removed.
func removeFile(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return os.Remove(path)
}
