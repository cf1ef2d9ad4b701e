package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrNoRepos is returned for a manifest without any repos.
var ErrNoRepos = errors.New("manifest has no repos")

// ParseError reports a manifest that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse manifest: %v", e.Err)
	}
	return fmt.Sprintf("parse manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a manifest from YAML or JSON (with comments).
// Unknown keys are ignored. A malformed or empty repos section is an error.
// Parse does not validate paths, use Validate or Load for that.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := decodeLoose(data, &m); err != nil {
		return nil, &ParseError{Err: err}
	}

	if len(m.Repos) == 0 {
		return nil, &ParseError{Err: ErrNoRepos}
	}
	return &m, nil
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return m, nil
}

// decodeLoose decodes YAML or JSON into m without any checks.
func decodeLoose(data []byte, m *Manifest) error {
	if isJSON(data) {
		return json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data))).Decode(m)
	}
	return yaml.Unmarshal(data, m)
}

// isJSON reports whether data looks like a JSON object.
func isJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(jsonc.ToJSON(data))
	return len(trimmed) > 0 && trimmed[0] == '{'
}
