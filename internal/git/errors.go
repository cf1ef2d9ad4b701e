package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphi011/gitgrip/internal/cmd"
)

// Kind classifies a git failure.
type Kind int

const (
	KindGit Kind = iota
	KindNotFound
	KindNotARepo
	KindBranchNotFound
	KindIO
	KindOperationFailed
	KindReference
	KindObject
	KindRepositoryLocked
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNotARepo:
		return "not a repository"
	case KindBranchNotFound:
		return "branch not found"
	case KindIO:
		return "io"
	case KindOperationFailed:
		return "operation failed"
	case KindReference:
		return "reference"
	case KindObject:
		return "object"
	case KindRepositoryLocked:
		return "repository locked"
	}
	return "git"
}

// Error is returned by every operation in this package.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrGitNotFound indicates git is not installed or not in PATH
var ErrGitNotFound = fmt.Errorf("git not found: please install git (https://git-scm.com)")

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// IsLocked reports whether err means the index lock never cleared.
func IsLocked(err error) bool { return IsKind(err, KindRepositoryLocked) }

// IsNotARepo reports whether err means the path holds no repository.
func IsNotARepo(err error) bool { return IsKind(err, KindNotARepo) }

// IsBranchNotFound reports whether err means a branch is missing.
func IsBranchNotFound(err error) bool { return IsKind(err, KindBranchNotFound) }

// wrap converts a git subprocess failure into an *Error, classifying by
// git's message.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	msg := err.Error()
	var ee *cmd.ExitError
	if errors.As(err, &ee) {
		msg = firstLine(ee.Stderr, ee.Stdout, ee.Err.Error())
	}
	return &Error{Kind: classify(msg), Op: op, Path: path, Msg: msg, Err: err}
}

func classify(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not a git repository"):
		return KindNotARepo
	case strings.Contains(lower, "index.lock"):
		return KindRepositoryLocked
	case strings.Contains(lower, "did not match any") ||
		strings.Contains(lower, "invalid reference") ||
		strings.Contains(lower, "not a valid ref") ||
		strings.Contains(lower, "unknown revision"):
		return KindReference
	case strings.Contains(lower, "bad object") ||
		strings.Contains(lower, "bad revision") ||
		strings.Contains(lower, "not a valid object"):
		return KindObject
	case strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "permission denied"):
		return KindIO
	}
	return KindOperationFailed
}

// firstLine returns the first non-empty trimmed candidate, keeping git's
// "fatal:"/"error:" lines and dropping hints.
func firstLine(candidates ...string) string {
	for _, c := range candidates {
		var kept []string
		for _, line := range strings.Split(strings.TrimSpace(c), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "hint:") {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			return strings.Join(kept, "\n")
		}
	}
	return ""
}
