// Package storage reads and writes the JSON documents gr keeps under
// .gitgrip/: sync state, the griptree registry and pointers, CI results.
// Writes go through a temp file renamed over the target, so a crashed or
// interrupted command never leaves a truncated document behind.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// SaveJSON writes v to path as indented JSON, creating parent directories.
// HTML characters are left unescaped so URLs stay readable.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return atomic.WriteFile(path, &buf)
}

// LoadJSON decodes path into v. A missing file yields an error matching
// fs.ErrNotExist.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadJSONIfExists is LoadJSON that leaves v untouched and reports false
// when path does not exist.
func LoadJSONIfExists(path string, v any) (bool, error) {
	switch err := LoadJSON(path, v); {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return true, err
	}
	return true, nil
}
