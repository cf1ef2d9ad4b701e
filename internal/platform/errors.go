package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies platform failures.
type ErrorKind int

const (
	KindAPI ErrorKind = iota
	KindAuth
	KindNotFound
	KindRateLimited
	KindNetwork
	KindParse
	KindBehindBase
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindBehindBase:
		return "behind base"
	case KindUnsupported:
		return "unsupported"
	}
	return "api"
}

// ErrUnsupported is wrapped by errors for operations a platform lacks.
var ErrUnsupported = errors.New("operation not supported")

// Error is returned by every adapter operation.
type Error struct {
	Kind       ErrorKind
	Platform   Type
	Op         string
	StatusCode int
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Platform, e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	switch {
	case e.Msg != "":
		fmt.Fprintf(&b, ": %s", e.Msg)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if !errors.As(err, &pe) {
		return 0, false
	}
	return pe.Kind, true
}

// IsAuth reports whether err is an authentication or permission failure.
func IsAuth(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAuth
}

// IsNotFound reports whether err is a 404-style failure.
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// IsRateLimited reports whether err was caused by an exhausted rate limit.
func IsRateLimited(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindRateLimited
}

// IsBehindBase reports whether a merge failed because the head branch is
// behind its base.
func IsBehindBase(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindBehindBase
}

// IsUnsupported reports whether the platform lacks the operation.
func IsUnsupported(err error) bool {
	k, ok := kindOf(err)
	return (ok && k == KindUnsupported) || errors.Is(err, ErrUnsupported)
}

func unsupported(p Type, op string) error {
	return &Error{Kind: KindUnsupported, Platform: p, Op: op, Err: ErrUnsupported}
}

// classifyStatus maps an HTTP failure to an *Error.
func classifyStatus(p Type, op string, status int, msg string) *Error {
	e := &Error{Platform: p, Op: op, StatusCode: status, Msg: strings.TrimSpace(msg)}
	switch {
	case status == 401:
		e.Kind = KindAuth
	case status == 403 && isRateLimitMessage(msg):
		e.Kind = KindRateLimited
	case status == 403:
		e.Kind = KindAuth
	case status == 404:
		e.Kind = KindNotFound
	case status == 429:
		e.Kind = KindRateLimited
	case isBehindBaseMessage(msg):
		e.Kind = KindBehindBase
	default:
		e.Kind = KindAPI
	}
	return e
}

func networkError(p Type, op string, err error) *Error {
	return &Error{Kind: KindNetwork, Platform: p, Op: op, Err: err}
}

func parseError(p Type, op string, err error) *Error {
	return &Error{Kind: KindParse, Platform: p, Op: op, Err: err}
}

// isRateLimitMessage checks whether a 403 error message indicates a
// rate limit rather than a permission issue.
func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

// isBehindBaseMessage recognizes "head is behind base" merge refusals.
func isBehindBaseMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range []string{
		"not up to date",
		"out of date",
		"out-of-date",
		"is behind",
		"need_rebase",
		"needs rebase",
		"must be rebased",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
