package griptree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raphi011/gitgrip/internal/storage"
)

// PointerFile is the name of the pointer at a griptree root.
const PointerFile = ".griptree"

// PointerRepo records one repo of a griptree.
type PointerRepo struct {
	Name           string `json:"name"`
	OriginalBranch string `json:"originalBranch"`
	IsReference    bool   `json:"isReference"`
}

// Pointer lets a process started inside a griptree find its workspace.
type Pointer struct {
	MainWorkspace  string        `json:"mainWorkspace"`
	Branch         string        `json:"branch"`
	Locked         bool          `json:"locked"`
	CreatedAt      *time.Time    `json:"createdAt,omitempty"`
	Repos          []PointerRepo `json:"repos"`
	ManifestBranch string        `json:"manifestBranch,omitempty"`
}

// ReadPointer reads the pointer at griptree root dir.
func ReadPointer(dir string) (*Pointer, error) {
	var p Pointer
	if err := storage.LoadJSON(filepath.Join(dir, PointerFile), &p); err != nil {
		return nil, fmt.Errorf("read %s: %w", PointerFile, err)
	}
	if p.MainWorkspace == "" {
		return nil, fmt.Errorf("%s in %s has no mainWorkspace", PointerFile, dir)
	}
	return &p, nil
}

// WritePointer writes p at griptree root dir.
func WritePointer(dir string, p *Pointer) error {
	return storage.SaveJSON(filepath.Join(dir, PointerFile), p)
}

// FindPointer walks from start towards the filesystem root and returns
// the first directory holding a pointer file. Ancestors are computed
// lexically, so symlinks are never followed upwards.
func FindPointer(start string) (string, *Pointer, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", nil, err
	}
	for {
		info, err := os.Lstat(filepath.Join(dir, PointerFile))
		if err == nil && info.Mode().IsRegular() {
			p, err := ReadPointer(dir)
			if err != nil {
				return "", nil, err
			}
			return dir, p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, errors.New("not inside a griptree")
		}
		dir = parent
	}
}
