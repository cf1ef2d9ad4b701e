package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Markers delimiting the linked-PR block inside a PR body.
const (
	LinkedPRsBegin = "<!-- gitgrip-linked-prs"
	LinkedPRsEnd   = "-->"
)

// LinkedPRRef names one sibling PR of a cross-repo change.
type LinkedPRRef struct {
	RepoName string `json:"repoName"`
	Number   int    `json:"number"`
}

func (r LinkedPRRef) String() string {
	return fmt.Sprintf("%s:%d", r.RepoName, r.Number)
}

// GenerateLinkedPRComment encodes refs as an HTML comment block, one
// repo:number per line.
func GenerateLinkedPRComment(refs []LinkedPRRef) string {
	var b strings.Builder
	b.WriteString(LinkedPRsBegin)
	b.WriteByte('\n')
	for _, r := range refs {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	b.WriteString(LinkedPRsEnd)
	return b.String()
}

// ParseLinkedPRComment extracts refs from a body containing a linked-PR
// block. Bodies without both markers yield nil. Malformed lines are skipped.
func ParseLinkedPRComment(body string) []LinkedPRRef {
	start, end, ok := findLinkedBlock(body)
	if !ok {
		return nil
	}
	inner := body[start+len(LinkedPRsBegin) : end-len(LinkedPRsEnd)]

	var refs []LinkedPRRef
	for _, line := range strings.Split(inner, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil || n <= 0 {
			continue
		}
		refs = append(refs, LinkedPRRef{RepoName: strings.TrimSpace(line[:idx]), Number: n})
	}
	return refs
}

// UpdateBodyWithLinks replaces an existing linked-PR block in place or
// appends one. The rest of the body is left untouched.
func UpdateBodyWithLinks(body string, refs []LinkedPRRef) string {
	block := GenerateLinkedPRComment(refs)
	if start, end, ok := findLinkedBlock(body); ok {
		return body[:start] + block + body[end:]
	}
	if strings.TrimSpace(body) == "" {
		return block
	}
	return strings.TrimRight(body, "\n") + "\n\n" + block
}

// findLinkedBlock returns the byte range [start, end) of the block
// including both markers.
func findLinkedBlock(body string) (int, int, bool) {
	start := strings.Index(body, LinkedPRsBegin)
	if start < 0 {
		return 0, 0, false
	}
	rel := strings.Index(body[start+len(LinkedPRsBegin):], LinkedPRsEnd)
	if rel < 0 {
		return 0, 0, false
	}
	end := start + len(LinkedPRsBegin) + rel + len(LinkedPRsEnd)
	return start, end, true
}
