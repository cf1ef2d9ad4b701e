package git

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// GCResult reports the .git size around a garbage collection.
type GCResult struct {
	SizeBefore int64 `json:"sizeBefore"`
	SizeAfter  int64 `json:"sizeAfter"`
	Success    bool  `json:"success"`
}

// Saved returns the number of bytes reclaimed.
func (r GCResult) Saved() int64 {
	return r.SizeBefore - r.SizeAfter
}

// String renders the sizes for humans, e.g. "12 MB -> 9.1 MB (saved 2.9 MB)".
func (r GCResult) String() string {
	saved := r.Saved()
	if saved < 0 {
		saved = 0
	}
	return fmt.Sprintf("%s -> %s (saved %s)",
		humanize.Bytes(uint64(r.SizeBefore)), humanize.Bytes(uint64(r.SizeAfter)), humanize.Bytes(uint64(saved)))
}

// GC runs git gc and measures the shared git directory before and after.
func GC(ctx context.Context, path string, aggressive bool) (GCResult, error) {
	dir, err := commonDir(path)
	if err != nil {
		return GCResult{}, &Error{Kind: KindNotARepo, Op: "gc", Path: path, Err: err}
	}
	before, err := DirSize(dir)
	if err != nil {
		return GCResult{}, &Error{Kind: KindIO, Op: "gc", Path: path, Err: err}
	}
	if err := WaitForIndexLock(ctx, path); err != nil {
		return GCResult{SizeBefore: before, SizeAfter: before}, err
	}

	args := []string{"gc", "--quiet"}
	if aggressive {
		args = append(args, "--aggressive", "--prune=now")
	}
	if err := runGit(ctx, path, args...); err != nil {
		return GCResult{SizeBefore: before, SizeAfter: before}, wrap("gc", path, err)
	}

	after, err := DirSize(dir)
	if err != nil {
		return GCResult{SizeBefore: before, SizeAfter: before}, &Error{Kind: KindIO, Op: "gc", Path: path, Err: err}
	}
	return GCResult{SizeBefore: before, SizeAfter: after, Success: true}, nil
}

// RepoSize returns the size of the shared git directory of path.
func RepoSize(path string) (int64, error) {
	dir, err := commonDir(path)
	if err != nil {
		return 0, &Error{Kind: KindNotARepo, Op: "size", Path: path, Err: err}
	}
	return DirSize(dir)
}

// DirSize sums the sizes of regular files below dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
