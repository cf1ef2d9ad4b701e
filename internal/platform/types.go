package platform

import (
	"fmt"
	"strings"
)

// Type identifies a hosting platform.
type Type string

const (
	GitHub    Type = "github"
	GitLab    Type = "gitlab"
	Azure     Type = "azure"
	Bitbucket Type = "bitbucket"
)

// Types lists every supported platform.
var Types = []Type{GitHub, GitLab, Azure, Bitbucket}

// ParseType converts a config or manifest value into a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "github":
		return GitHub, nil
	case "gitlab":
		return GitLab, nil
	case "azure", "azure-devops", "azuredevops":
		return Azure, nil
	case "bitbucket":
		return Bitbucket, nil
	}
	return "", fmt.Errorf("unknown platform type %q", s)
}

// PRState is the normalized state of a pull request.
type PRState string

const (
	StateOpen   PRState = "open"
	StateClosed PRState = "closed"
	StateMerged PRState = "merged"
)

// MergeMethod selects how a PR is merged.
type MergeMethod string

const (
	MethodMerge  MergeMethod = "merge"
	MethodSquash MergeMethod = "squash"
	MethodRebase MergeMethod = "rebase"
)

// CheckState is the aggregate or individual state of a status check.
type CheckState string

const (
	CheckSuccess CheckState = "success"
	CheckFailure CheckState = "failure"
	CheckPending CheckState = "pending"
)

// Review states, normalized across platforms.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
	ReviewDismissed        = "DISMISSED"
	ReviewPending          = "PENDING"
)

// CreatePR holds the parameters of a new pull request.
type CreatePR struct {
	Head  string
	Base  string
	Title string
	Body  string
	Draft bool
}

// PRCreateResult identifies a created or discovered pull request.
type PRCreateResult struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// BranchRef is one side of a pull request.
type BranchRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PullRequest is the normalized view of a PR.
type PullRequest struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     PRState   `json:"state"`
	Merged    bool      `json:"merged"`
	Draft     bool      `json:"draft"`
	URL       string    `json:"url"`
	Head      BranchRef `json:"head"`
	Base      BranchRef `json:"base"`
	Mergeable *bool     `json:"mergeable,omitempty"`
}

// Review is one reviewer's latest verdict.
type Review struct {
	User  string `json:"user"`
	State string `json:"state"`
}

// CheckStatus is one CI context.
type CheckStatus struct {
	Context string     `json:"context"`
	State   CheckState `json:"state"`
}

// StatusChecks is the aggregate CI state of a ref.
type StatusChecks struct {
	State    CheckState    `json:"state"`
	Statuses []CheckStatus `json:"statuses"`
}

// AllowedMergeMethods reports which merge methods a repo accepts.
type AllowedMergeMethods struct {
	Merge  bool `json:"merge"`
	Squash bool `json:"squash"`
	Rebase bool `json:"rebase"`
}

// Allows reports whether m is permitted.
func (a AllowedMergeMethods) Allows(m MergeMethod) bool {
	switch m {
	case MethodMerge:
		return a.Merge
	case MethodSquash:
		return a.Squash
	case MethodRebase:
		return a.Rebase
	}
	return false
}

// AggregateChecks folds individual states: any failure fails, any
// non-success keeps it pending, success only when all succeed.
// No checks at all counts as success.
func AggregateChecks(statuses []CheckStatus) CheckState {
	state := CheckSuccess
	for _, s := range statuses {
		switch s.State {
		case CheckFailure:
			return CheckFailure
		case CheckSuccess:
		default:
			state = CheckPending
		}
	}
	return state
}

// ApprovedFromReviews applies the GitHub review policy: the latest
// non-comment review of each user counts, at least one must approve and
// none may request changes.
func ApprovedFromReviews(reviews []Review) bool {
	latest := make(map[string]string)
	for _, r := range reviews {
		switch r.State {
		case ReviewApproved, ReviewChangesRequested:
			latest[r.User] = r.State
		case ReviewDismissed:
			delete(latest, r.User)
		}
	}
	approved := false
	for _, state := range latest {
		if state == ReviewChangesRequested {
			return false
		}
		if state == ReviewApproved {
			approved = true
		}
	}
	return approved
}
